package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/model"
)

// subjectStamper rewrites the subject on create.
type subjectStamper struct {
	name  string
	stamp string
}

func (s subjectStamper) Name() string { return s.name }

func (s subjectStamper) BeforeCreate(_ context.Context, v *model.VCon) (*model.VCon, error) {
	cp := *v
	subj := s.stamp
	if cp.Subject != nil {
		subj = *cp.Subject + "|" + s.stamp
	}
	cp.Subject = &subj
	return &cp, nil
}

// blocker rejects every operation it sees.
type blocker struct{ err error }

func (blocker) Name() string { return "blocker" }

func (b blocker) BeforeCreate(context.Context, *model.VCon) (*model.VCon, error) {
	return nil, b.err
}
func (b blocker) BeforeRead(context.Context, string) error   { return b.err }
func (b blocker) BeforeDelete(context.Context, string) error { return b.err }

// recorder tracks invocation order and implements only read hooks.
type recorder struct {
	name  string
	calls *[]string
}

func (r recorder) Name() string { return r.name }

func (r recorder) BeforeRead(_ context.Context, _ string) error {
	*r.calls = append(*r.calls, r.name)
	return nil
}

func TestPipeline_RewriteChainsInRegistrationOrder(t *testing.T) {
	p := NewPipeline(
		subjectStamper{name: "first", stamp: "a"},
		subjectStamper{name: "second", stamp: "b"},
	)

	out, err := p.BeforeCreate(context.Background(), &model.VCon{})
	require.NoError(t, err)
	require.NotNil(t, out.Subject)
	assert.Equal(t, "a|b", *out.Subject, "each rewrite must see the previous hook's output")
}

func TestPipeline_NilReturnKeepsWorkingObject(t *testing.T) {
	p := NewPipeline(passThrough{})
	in := &model.VCon{UUID: "u"}
	out, err := p.BeforeCreate(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

type passThrough struct{}

func (passThrough) Name() string { return "pass" }
func (passThrough) BeforeCreate(context.Context, *model.VCon) (*model.VCon, error) {
	return nil, nil
}

func TestPipeline_ErrorShortCircuits(t *testing.T) {
	var calls []string
	boom := errors.New("quota exceeded")
	p := NewPipeline(
		recorder{name: "one", calls: &calls},
		blocker{err: boom},
		recorder{name: "three", calls: &calls},
	)

	err := p.BeforeRead(context.Background(), "some-id")
	require.Error(t, err)
	assert.True(t, model.IsHookRejection(err))
	assert.ErrorIs(t, err, boom, "rejected error must be preserved for the caller")
	assert.Equal(t, []string{"one"}, calls, "hooks after the rejecting one must not run")
}

func TestPipeline_RejectionNamesHook(t *testing.T) {
	p := NewPipeline(blocker{err: errors.New("not allowed")})
	err := p.BeforeDelete(context.Background(), "id")
	require.Error(t, err)

	var he *model.HookRejectionError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "blocker", he.Hook)
}

func TestPipeline_CapabilityPresenceChecked(t *testing.T) {
	// subjectStamper implements only BeforeCreate; other phases must pass through.
	p := NewPipeline(subjectStamper{name: "s", stamp: "x"})

	require.NoError(t, p.BeforeRead(context.Background(), "id"))
	require.NoError(t, p.BeforeDelete(context.Background(), "id"))

	q := &model.SearchQuery{Subject: "x"}
	got, err := p.BeforeSearch(context.Background(), q)
	require.NoError(t, err)
	assert.Same(t, q, got)
}

type redactor struct{}

func (redactor) Name() string { return "redactor" }
func (redactor) AfterRead(_ context.Context, v *model.VCon) (*model.VCon, error) {
	cp := *v
	cp.Subject = nil
	return &cp, nil
}

func TestPipeline_AfterReadRewritesOutput(t *testing.T) {
	subj := "secret"
	p := NewPipeline(redactor{})
	out, err := p.AfterRead(context.Background(), &model.VCon{Subject: &subj})
	require.NoError(t, err)
	assert.Nil(t, out.Subject)
}

type searchTrimmer struct{ keep int }

func (searchTrimmer) Name() string { return "trimmer" }
func (s searchTrimmer) AfterSearch(_ context.Context, r *model.SearchResult) (*model.SearchResult, error) {
	cp := *r
	if len(cp.IDs) > s.keep {
		cp.IDs = cp.IDs[:s.keep]
	}
	return &cp, nil
}

func TestPipeline_AfterSearchFiltersResults(t *testing.T) {
	p := NewPipeline(searchTrimmer{keep: 1})
	r := &model.SearchResult{Format: model.FormatIDsOnly, IDs: []string{"a", "b", "c"}}
	out, err := p.AfterSearch(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, out.IDs)
}

func TestPipeline_RegisterAppends(t *testing.T) {
	p := NewPipeline()
	assert.Equal(t, 0, p.Len())
	p.Register(passThrough{})
	p.Register(redactor{})
	assert.Equal(t, 2, p.Len())
}
