// Package storetest holds a driver-agnostic compliance suite. Each driver
// package runs it against its own setup so postgres and sqlite stay
// behaviorally interchangeable.
package storetest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/vcon"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// timeEq compares instants, not representations. Drivers may return a
// different wall-clock location than what was stored.
var timeEq = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

func strp(s string) *string               { return &s }
func intp(i int) *int                     { return &i }
func f64p(f float64) *float64             { return &f }
func timep(t time.Time) *time.Time        { return &t }
func at(h int) time.Time                  { return time.Date(2026, 3, 10, h, 0, 0, 0, time.UTC) }
func diffRowSets(a, b vcon.RowSet) string { return cmp.Diff(a, b, timeEq) }

// fullRowSet builds a record exercising every table and most columns.
func fullRowSet(id string, created time.Time, subject string) vcon.RowSet {
	return vcon.RowSet{
		VCon: vcon.VConRow{
			UUID:        id,
			Version:     model.VConVersion,
			CreatedAt:   created,
			Subject:     strp(subject),
			Extensions:  []string{"x-custom"},
			MustSupport: []string{"x-custom"},
		},
		Parties: []vcon.PartyRow{
			{VConUUID: id, Idx: 0, Tel: strp("+15551230001"), Name: strp("Alice Ops")},
			{VConUUID: id, Idx: 1, Mailto: strp("bob@example.com"), Name: strp("Bob"), Timezone: strp("America/Chicago")},
		},
		Dialog: []vcon.DialogRow{
			{
				VConUUID: id, Idx: 0, Type: "recording",
				Start: timep(created), Duration: f64p(182.5),
				Parties: []int{0, 1}, Originator: intp(0),
				MediaType: strp("audio/wav"), URL: strp("https://media.example.com/" + id + ".wav"),
				ContentHash: strp("sha512-deadbeef"),
			},
			{
				VConUUID: id, Idx: 1, Type: "text",
				Parties: []int{0, 1},
				Body:    strp("thanks, that resolved it"), Encoding: strp("none"),
			},
		},
		Analysis: []vcon.AnalysisRow{
			{
				VConUUID: id, Idx: 0, Type: "transcript", Dialog: []int{0},
				Vendor: strp("whisper"), Product: strp("large-v3"),
				Body: strp(`{"text":"hello"}`), Encoding: strp("json"),
			},
		},
		Attachments: []vcon.AttachmentRow{
			{
				VConUUID: id, Idx: 0, Type: "tags",
				Body: strp(`["team:support","priority:high"]`), Encoding: strp("json"),
			},
			{
				VConUUID: id, Idx: 1, Type: "document", Party: intp(1),
				MediaType: strp("application/pdf"), Filename: strp("invoice.pdf"),
				URL: strp("https://files.example.com/invoice.pdf"), ContentHash: strp("sha512-cafe"),
			},
		},
	}
}

// Run executes the full compliance suite.
func Run(t *testing.T, factory Factory) {
	t.Run("UpsertGetRoundTrip", func(t *testing.T) { testRoundTrip(t, factory(t)) })
	t.Run("UpsertReplacesChildren", func(t *testing.T) { testUpsertReplaces(t, factory(t)) })
	t.Run("GetMissingReturnsNotFound", func(t *testing.T) { testGetMissing(t, factory(t)) })
	t.Run("ExistsAndDelete", func(t *testing.T) { testExistsDelete(t, factory(t)) })
	t.Run("AppendsAssignOrdinals", func(t *testing.T) { testAppends(t, factory(t)) })
	t.Run("AppendToMissingRecord", func(t *testing.T) { testAppendMissing(t, factory(t)) })
	t.Run("UpdateSubject", func(t *testing.T) { testUpdateSubject(t, factory(t)) })
	t.Run("ReplaceAttachments", func(t *testing.T) { testReplaceAttachments(t, factory(t)) })
	t.Run("SearchPredicates", func(t *testing.T) { testSearch(t, factory(t)) })
	t.Run("ListTagBodies", func(t *testing.T) { testListTagBodies(t, factory(t)) })
	t.Run("CorpusStats", func(t *testing.T) { testCorpusStats(t, factory(t)) })
	t.Run("HealthPing", func(t *testing.T) {
		require.NoError(t, factory(t).HealthPing(context.Background()))
	})
}

func testRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	want := fullRowSet(id, at(9), "billing dispute follow-up")

	require.NoError(t, s.Upsert(ctx, want))
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	if diff := diffRowSets(want, got); diff != "" {
		t.Fatalf("row set mismatch (-want +got):\n%s", diff)
	}
}

func testUpsertReplaces(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	first := fullRowSet(id, at(9), "first")
	require.NoError(t, s.Upsert(ctx, first))

	second := fullRowSet(id, at(9), "second")
	second.VCon.UpdatedAt = timep(at(10))
	second.Parties = second.Parties[:1]
	second.Analysis = nil
	require.NoError(t, s.Upsert(ctx, second))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "second", *got.VCon.Subject)
	require.Len(t, got.Parties, 1)
	require.Empty(t, got.Analysis)
	require.Len(t, got.Dialog, 2)
}

func testGetMissing(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), uuid.New().String())
	require.Error(t, err)
	require.True(t, model.IsNotFoundError(err), "want NotFoundError, got %v", err)
}

func testExistsDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(id, at(9), "to delete")))

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	found, err := s.Delete(ctx, id)
	require.NoError(t, err)
	require.True(t, found)

	ok, err = s.Exists(ctx, id)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.Get(ctx, id)
	require.True(t, model.IsNotFoundError(err))

	// deleting again is not an error, just reports absence
	found, err = s.Delete(ctx, id)
	require.NoError(t, err)
	require.False(t, found)
}

func testAppends(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(id, at(9), "appends")))

	upd := at(11)
	require.NoError(t, s.AppendDialog(ctx, id, vcon.DialogRow{
		Type: "text", Parties: []int{0}, Body: strp("follow-up note"), Encoding: strp("none"),
	}, upd))
	require.NoError(t, s.AppendAnalysis(ctx, id, vcon.AnalysisRow{
		Type: "sentiment", Dialog: []int{1}, Vendor: strp("acme"),
		Body: strp(`{"score":0.9}`), Encoding: strp("json"),
	}, upd))
	require.NoError(t, s.AppendAttachment(ctx, id, vcon.AttachmentRow{
		Type: "notes", Body: strp("escalated"), Encoding: strp("none"),
	}, upd))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Dialog, 3)
	require.Equal(t, 2, got.Dialog[2].Idx)
	require.Equal(t, id, got.Dialog[2].VConUUID)
	require.Len(t, got.Analysis, 2)
	require.Equal(t, 1, got.Analysis[1].Idx)
	require.Len(t, got.Attachments, 3)
	require.Equal(t, 2, got.Attachments[2].Idx)
	require.NotNil(t, got.VCon.UpdatedAt)
	require.True(t, got.VCon.UpdatedAt.Equal(upd))
}

func testAppendMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.AppendDialog(ctx, uuid.New().String(), vcon.DialogRow{Type: "text"}, at(11))
	require.True(t, model.IsNotFoundError(err), "want NotFoundError, got %v", err)
}

func testUpdateSubject(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(id, at(9), "before")))

	upd := at(12)
	require.NoError(t, s.UpdateSubject(ctx, id, strp("after"), upd))
	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "after", *got.VCon.Subject)
	require.True(t, got.VCon.UpdatedAt.Equal(upd))

	err = s.UpdateSubject(ctx, uuid.New().String(), strp("x"), upd)
	require.True(t, model.IsNotFoundError(err))
}

func testReplaceAttachments(t *testing.T, s store.Store) {
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(id, at(9), "attachments")))

	upd := at(13)
	require.NoError(t, s.ReplaceAttachments(ctx, id, []vcon.AttachmentRow{
		{Type: "tags", Body: strp(`["team:billing"]`), Encoding: strp("json")},
	}, upd))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 1)
	require.Equal(t, 0, got.Attachments[0].Idx)
	require.Equal(t, `["team:billing"]`, *got.Attachments[0].Body)
	require.True(t, got.VCon.UpdatedAt.Equal(upd))

	err = s.ReplaceAttachments(ctx, uuid.New().String(), nil, upd)
	require.True(t, model.IsNotFoundError(err))
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	older := uuid.New().String()
	newer := uuid.New().String()
	other := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(older, at(8), "billing dispute")))
	require.NoError(t, s.Upsert(ctx, fullRowSet(newer, at(10), "billing question")))

	rs := fullRowSet(other, at(9), "shipping delay")
	rs.Parties = []vcon.PartyRow{{VConUUID: other, Idx: 0, Tel: strp("+15559990000")}}
	require.NoError(t, s.Upsert(ctx, rs))

	// subject substring, case-insensitive, newest first
	ids, err := s.Search(ctx, model.SearchQuery{Subject: "BILLING"})
	require.NoError(t, err)
	require.Equal(t, []string{newer, older}, ids)

	// party identifier matches any identifier column
	ids, err = s.Search(ctx, model.SearchQuery{Party: "+15559990000"})
	require.NoError(t, err)
	require.Equal(t, []string{other}, ids)

	ids, err = s.Search(ctx, model.SearchQuery{Party: "bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, []string{newer, older}, ids)

	// half-open created_at window [from, until)
	ids, err = s.Search(ctx, model.SearchQuery{From: timep(at(9)), Until: timep(at(10))})
	require.NoError(t, err)
	require.Equal(t, []string{other}, ids)

	// conjunction of predicates
	ids, err = s.Search(ctx, model.SearchQuery{Subject: "billing", From: timep(at(9))})
	require.NoError(t, err)
	require.Equal(t, []string{newer}, ids)

	// limit truncates after ordering
	ids, err = s.Search(ctx, model.SearchQuery{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, []string{newer, other}, ids)

	// no predicates returns everything newest first
	ids, err = s.Search(ctx, model.SearchQuery{})
	require.NoError(t, err)
	require.Equal(t, []string{newer, other, older}, ids)
}

func testListTagBodies(t *testing.T, s store.Store) {
	ctx := context.Background()
	tagged := uuid.New().String()
	untagged := uuid.New().String()
	require.NoError(t, s.Upsert(ctx, fullRowSet(tagged, at(9), "tagged")))

	rs := fullRowSet(untagged, at(10), "untagged")
	rs.Attachments = rs.Attachments[1:]
	for i := range rs.Attachments {
		rs.Attachments[i].Idx = i
	}
	require.NoError(t, s.Upsert(ctx, rs))

	bodies, err := s.ListTagBodies(ctx, 0)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	require.Equal(t, tagged, bodies[0].UUID)

	var tags []string
	require.NoError(t, json.Unmarshal([]byte(bodies[0].Body), &tags))
	require.Equal(t, []string{"team:support", "priority:high"}, tags)
}

func testCorpusStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, fullRowSet(uuid.New().String(), at(8+i), "stats")))
	}
	cs, err := s.CorpusStats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, cs.VConCount)
	require.EqualValues(t, 6, cs.PartyRows)
	require.EqualValues(t, 6, cs.DialogRows)
	require.EqualValues(t, 3, cs.AnalysisRows)
	require.EqualValues(t, 6, cs.AttachmentRows)
}
