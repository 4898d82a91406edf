package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/cache"
	"github.com/openvcon/vconstore/internal/config"
	"github.com/openvcon/vconstore/internal/hooks"
	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/searchindex"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/store/sqlite"
)

func strp(s string) *string { return &s }

// fakeIndex records writes and serves canned hits.
type fakeIndex struct {
	mu        sync.Mutex
	upserts   map[string][]searchindex.Document
	deletes   []string
	hits      []model.SearchHit
	lastAlpha float32
	failNext  bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: map[string][]searchindex.Document{}}
}

func (f *fakeIndex) UpsertVCon(_ context.Context, uuid string, docs []searchindex.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("index down")
	}
	f.upserts[uuid] = docs
	return nil
}

func (f *fakeIndex) DeleteVCon(_ context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, uuid)
	delete(f.upserts, uuid)
	return nil
}

func (f *fakeIndex) Keyword(context.Context, string, int) ([]model.SearchHit, error) {
	return f.hits, nil
}
func (f *fakeIndex) Semantic(context.Context, []float32, float64, int) ([]model.SearchHit, error) {
	return f.hits, nil
}
func (f *fakeIndex) Hybrid(_ context.Context, _ string, _ []float32, alpha float32, _ int) ([]model.SearchHit, error) {
	f.mu.Lock()
	f.lastAlpha = alpha
	f.mu.Unlock()
	return f.hits, nil
}
func (f *fakeIndex) HealthPing(context.Context) error { return nil }

// fakeEmbedder returns a constant vector.
type fakeEmbedder struct{ calls int }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if text == "" {
		return nil, errors.New("empty text")
	}
	return []float32{0.1, 0.2}, nil
}

type fixture struct {
	svc   *Service
	store store.Store
	cache *cache.Memory
	index *fakeIndex
	embed *fakeEmbedder
	pipe  *hooks.Pipeline
}

func newFixture(t *testing.T, hs ...hooks.Hook) *fixture {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	st, err := sqlite.New(db)
	require.NoError(t, err)

	f := &fixture{
		store: st,
		cache: cache.NewMemory(),
		index: newFakeIndex(),
		embed: &fakeEmbedder{},
		pipe:  hooks.NewPipeline(hs...),
	}
	f.svc = New(st, f.cache, f.index, f.embed, f.pipe, config.NewForTesting(), zerolog.Nop())
	return f
}

func validDoc() *model.VCon {
	enc := model.EncodingNone
	body := "customer asked about a refund"
	vendor := "whisper"
	analysisBody := `{"text":"customer asked about a refund"}`
	jsonEnc := model.EncodingJSON
	return &model.VCon{
		Subject: strp("refund request"),
		Parties: []model.Party{{Tel: strp("+15551230001")}},
		Dialog: []model.Dialog{
			{Type: model.DialogText, Parties: []int{0}, Body: &body, Encoding: &enc},
		},
		Analysis: []model.Analysis{
			{Type: "transcript", Dialog: []int{0}, Vendor: &vendor, Body: &analysisBody, Encoding: &jsonEnc},
		},
	}
}

// blocker rejects a named lifecycle phase.
type blocker struct {
	name  string
	phase string
}

func (b blocker) Name() string { return b.name }
func (b blocker) BeforeCreate(_ context.Context, v *model.VCon) (*model.VCon, error) {
	if b.phase == "create" {
		return nil, errors.New("blocked")
	}
	return v, nil
}
func (b blocker) BeforeDelete(_ context.Context, _ string) error {
	if b.phase == "delete" {
		return errors.New("blocked")
	}
	return nil
}

// stamper sets the subject in before-create.
type stamper struct{ subject string }

func (s stamper) Name() string { return "stamper" }
func (s stamper) BeforeCreate(_ context.Context, v *model.VCon) (*model.VCon, error) {
	v.Subject = &s.subject
	return v, nil
}

func TestCreateAssignsServerFields(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, v.UUID)
	require.Equal(t, model.VConVersion, v.Version)
	require.False(t, v.CreatedAt.IsZero())

	got, err := f.svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	require.Equal(t, "refund request", *got.Subject)
}

func TestCreateValidationFailureIsNotPersisted(t *testing.T) {
	f := newFixture(t)
	bad := validDoc()
	bad.Parties = nil

	_, err := f.svc.Create(context.Background(), bad, Options{})
	require.True(t, model.IsValidationError(err))

	ok, err := f.store.Exists(context.Background(), bad.UUID)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, f.index.upserts)
}

func TestCreateSkipValidation(t *testing.T) {
	f := newFixture(t)
	bad := validDoc()
	bad.Parties = nil

	v, err := f.svc.Create(context.Background(), bad, Options{SkipValidation: true})
	require.NoError(t, err)
	ok, err := f.store.Exists(context.Background(), v.UUID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCreateHookRejectionIsNotPersisted(t *testing.T) {
	f := newFixture(t, blocker{name: "policy", phase: "create"})
	_, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.True(t, model.IsHookRejection(err))

	stats, err := f.store.CorpusStats(context.Background())
	require.NoError(t, err)
	require.Zero(t, stats.VConCount)
}

func TestCreateSkipHooksBypassesRejection(t *testing.T) {
	f := newFixture(t, blocker{name: "policy", phase: "create"})
	_, err := f.svc.Create(context.Background(), validDoc(), Options{SkipHooks: true})
	require.NoError(t, err)
}

func TestBeforeCreateHookMutationPersists(t *testing.T) {
	f := newFixture(t, stamper{subject: "stamped"})
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	require.Equal(t, "stamped", *got.Subject)
}

func TestGetMissesThenHitsCache(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)

	// create invalidated, so the first read populates
	_, ok := f.cache.Get(context.Background(), "vcon:"+v.UUID)
	require.False(t, ok)

	_, err = f.svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	_, ok = f.cache.Get(context.Background(), "vcon:"+v.UUID)
	require.True(t, ok)

	// a cache hit survives store deletion (stale until invalidated)
	_, err = f.store.Delete(context.Background(), v.UUID)
	require.NoError(t, err)
	got, err := f.svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	require.Equal(t, v.UUID, got.UUID)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "2f6cfd5f-4f9c-41c7-9f3e-000000000000", Options{})
	require.True(t, model.IsNotFoundError(err))
}

func TestGetCorruptCacheEntryFallsThrough(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)

	f.cache.Set(context.Background(), "vcon:"+v.UUID, []byte("{not json"), time.Minute)
	got, err := f.svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	require.Equal(t, v.UUID, got.UUID)
}

func TestWritesInvalidateCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, validDoc(), Options{})
	require.NoError(t, err)

	warm := func() {
		_, err := f.svc.Get(ctx, v.UUID, Options{})
		require.NoError(t, err)
		_, ok := f.cache.Get(ctx, "vcon:"+v.UUID)
		require.True(t, ok)
	}
	cold := func(op string) {
		_, ok := f.cache.Get(ctx, "vcon:"+v.UUID)
		require.False(t, ok, "cache should be invalidated after %s", op)
	}

	warm()
	_, err = f.svc.UpdateSubject(ctx, v.UUID, strp("new subject"), Options{})
	require.NoError(t, err)
	cold("update subject")

	warm()
	body := "another message"
	enc := model.EncodingNone
	_, err = f.svc.AddDialog(ctx, v.UUID, model.Dialog{Type: model.DialogText, Parties: []int{0}, Body: &body, Encoding: &enc}, Options{})
	require.NoError(t, err)
	cold("add dialog")

	warm()
	require.NoError(t, f.svc.SetTag(ctx, v.UUID, "team", "support", Options{}))
	cold("set tag")

	warm()
	_, err = f.svc.Delete(ctx, v.UUID, Options{})
	require.NoError(t, err)
	cold("delete")
}

func TestDeleteAbsentIsNotAnError(t *testing.T) {
	f := newFixture(t)
	found, err := f.svc.Delete(context.Background(), "b3c1d8a2-1111-4222-8333-444455556666", Options{})
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteRemovesEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, validDoc(), Options{})
	require.NoError(t, err)
	require.Contains(t, f.index.upserts, v.UUID)

	found, err := f.svc.Delete(ctx, v.UUID, Options{})
	require.NoError(t, err)
	require.True(t, found)
	require.Contains(t, f.index.deletes, v.UUID)

	_, err = f.svc.Get(ctx, v.UUID, Options{})
	require.True(t, model.IsNotFoundError(err))
}

func TestDeleteHookRejectionKeepsRecord(t *testing.T) {
	f := newFixture(t, blocker{name: "retention", phase: "delete"})
	ctx := context.Background()
	v, err := f.svc.Create(ctx, validDoc(), Options{})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, v.UUID, Options{})
	require.True(t, model.IsHookRejection(err))

	ok, err := f.store.Exists(ctx, v.UUID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAddDialogValidatesResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, validDoc(), Options{})
	require.NoError(t, err)

	// party index out of bounds
	body := "x"
	enc := model.EncodingNone
	_, err = f.svc.AddDialog(ctx, v.UUID, model.Dialog{Type: model.DialogText, Parties: []int{5}, Body: &body, Encoding: &enc}, Options{})
	require.True(t, model.IsValidationError(err))

	got, err := f.svc.Get(ctx, v.UUID, Options{})
	require.NoError(t, err)
	require.Len(t, got.Dialog, 1)
}

func TestAddAnalysisRequiresVendor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := f.svc.Create(ctx, validDoc(), Options{})
	require.NoError(t, err)

	body := `{"score":1}`
	enc := model.EncodingJSON
	_, err = f.svc.AddAnalysis(ctx, v.UUID, model.Analysis{Type: "sentiment", Body: &body, Encoding: &enc}, Options{})
	require.True(t, model.IsValidationError(err))

	vendor := "acme"
	updated, err := f.svc.AddAnalysis(ctx, v.UUID, model.Analysis{Type: "sentiment", Vendor: &vendor, Body: &body, Encoding: &enc}, Options{})
	require.NoError(t, err)
	require.Len(t, updated.Analysis, 2)
	require.NotNil(t, updated.UpdatedAt)
}

func TestAppendToMissingRecord(t *testing.T) {
	f := newFixture(t)
	body := "x"
	enc := model.EncodingNone
	_, err := f.svc.AddDialog(context.Background(), "0c0ffee0-0000-4000-8000-000000000001",
		model.Dialog{Type: model.DialogText, Body: &body, Encoding: &enc}, Options{})
	require.True(t, model.IsNotFoundError(err))
}

func TestCreateBatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	good1 := validDoc()
	bad := validDoc()
	bad.Parties = nil
	good2 := validDoc()

	res := f.svc.CreateBatch(context.Background(), []*model.VCon{good1, bad, good2}, Options{})
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Created)
	require.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	require.True(t, res.Results[0].Success)
	require.False(t, res.Results[1].Success)
	require.Contains(t, res.Results[1].Error, "parties")
	require.True(t, res.Results[2].Success)

	stats, err := f.store.CorpusStats(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, stats.VConCount)
}

func TestIndexFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.index.failNext = true
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)
	ok, err := f.store.Exists(context.Background(), v.UUID)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReindexDocumentsCoverTextSections(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)

	docs := f.index.upserts[v.UUID]
	fields := map[string]bool{}
	for _, d := range docs {
		fields[d.Field] = true
		require.Equal(t, v.UUID, d.VConUUID)
		require.NotEmpty(t, d.Vector)
	}
	require.True(t, fields["subject"])
	require.True(t, fields["parties"])
	require.True(t, fields["dialog"])
	require.True(t, fields["analysis"])
}

func TestNilCollaboratorsDegrade(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))
	st, err := sqlite.New(db)
	require.NoError(t, err)

	svc := New(st, nil, nil, nil, nil, config.NewForTesting(), zerolog.Nop())
	v, err := svc.Create(context.Background(), validDoc(), Options{})
	require.NoError(t, err)
	got, err := svc.Get(context.Background(), v.UUID, Options{})
	require.NoError(t, err)
	require.Equal(t, v.UUID, got.UUID)
}

func TestHealthPing(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.HealthPing(context.Background()))
}
