package vcon

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/openvcon/vconstore/internal/model"
)

func strp(s string) *string        { return &s }
func intp(i int) *int              { return &i }
func f64p(f float64) *float64      { return &f }
func timep(t time.Time) *time.Time { return &t }

// fullDocument builds a record exercising every field the mapper touches.
func fullDocument(t *testing.T) *model.VCon {
	t.Helper()
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	updated := created.Add(time.Hour)
	start := created.Add(5 * time.Minute)

	v := &model.VCon{
		UUID:      uuid.New().String(),
		Version:   model.VConVersion,
		CreatedAt: created,
		UpdatedAt: timep(updated),
		Subject:   strp("support call about billing"),
		Parties: []model.Party{
			{Tel: strp("+15551230001"), Name: strp("Ada Caller"), Timezone: strp("UTC")},
			{Mailto: strp("agent@example.com"), Name: strp("Agent Bee"), DID: strp("did:example:bee")},
			{SIP: strp("sip:super@example.com")},
		},
		Dialog: []model.Dialog{
			{
				Type:        model.DialogRecording,
				Start:       timep(start),
				Duration:    f64p(312.5),
				Parties:     []int{0, 1},
				Originator:  intp(0),
				MediaType:   strp("audio/wav"),
				URL:         strp("https://media.example.com/rec/1.wav"),
				ContentHash: strp("sha512-abcdef"),
				SessionID:   strp("sess-42"),
			},
			{
				Type:      model.DialogText,
				Parties:   []int{0, 1},
				Body:      strp("thanks for calling"),
				Encoding:  strp(model.EncodingNone),
				MessageID: strp("msg-7"),
			},
			{
				Type:           model.DialogTransfer,
				Parties:        []int{0, 1, 2},
				Body:           strp("transfer record"),
				Encoding:       strp(model.EncodingNone),
				Transferee:     intp(0),
				Transferor:     intp(1),
				TransferTarget: intp(2),
			},
			{
				Type:        model.DialogIncomplete,
				Parties:     []int{0},
				Body:        strp("caller hung up in queue"),
				Encoding:    strp(model.EncodingNone),
				Disposition: strp("hung-up"),
			},
		},
		Analysis: []model.Analysis{
			{
				Type:     "transcript",
				Dialog:   []int{0},
				Vendor:   strp("whisper"),
				Product:  strp("large-v3"),
				Body:     strp(`{"text":"hello"}`),
				Encoding: strp(model.EncodingJSON),
			},
			{
				Type:        "sentiment",
				Dialog:      []int{0, 1},
				Vendor:      strp("acme"),
				URL:         strp("https://analysis.example.com/7"),
				ContentHash: strp("sha512-123456"),
			},
		},
		Attachments: []model.Attachment{
			{
				Type:        "contract",
				Party:       intp(1),
				MediaType:   strp("application/pdf"),
				Filename:    strp("contract.pdf"),
				URL:         strp("https://files.example.com/contract.pdf"),
				ContentHash: strp("sha512-fedcba"),
			},
			{
				Type:     model.TagsAttachmentType,
				Body:     strp(`["department:sales","priority:high"]`),
				Encoding: strp(model.EncodingJSON),
			},
		},
		Extensions:  []string{"x-callcenter"},
		MustSupport: []string{"x-callcenter"},
		Redacted:    &model.DocRef{UUID: uuid.New().String()},
		Group:       []model.DocRef{{UUID: uuid.New().String()}},
	}
	return v
}

func TestRoundTrip_FullDocument(t *testing.T) {
	v := fullDocument(t)
	if res := Validate(v); !res.Valid {
		t.Fatalf("fixture must validate, got errors: %v", res.Errors)
	}

	got := Assemble(Disassemble(v))
	if diff := cmp.Diff(v, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_MinimalDocument(t *testing.T) {
	v := &model.VCon{
		Parties: []model.Party{{Tel: strp("+15550000000")}},
	}
	Normalize(v)
	if res := Validate(v); !res.Valid {
		t.Fatalf("normalized minimal doc must validate: %v", res.Errors)
	}

	got := Assemble(Disassemble(v))
	if diff := cmp.Diff(v, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if got.Dialog == nil || got.Analysis == nil || got.Attachments == nil {
		t.Fatal("assemble must yield empty arrays, not nil")
	}
}

func TestAssemble_RestoresOrdinalOrder(t *testing.T) {
	v := fullDocument(t)
	rs := Disassemble(v)

	// Shuffle rows; assemble must rebuild in index order.
	rs.Dialog[0], rs.Dialog[3] = rs.Dialog[3], rs.Dialog[0]
	rs.Parties[0], rs.Parties[2] = rs.Parties[2], rs.Parties[0]
	rs.Analysis[0], rs.Analysis[1] = rs.Analysis[1], rs.Analysis[0]

	got := Assemble(rs)
	if diff := cmp.Diff(v, got); diff != "" {
		t.Fatalf("assemble did not restore ordinal order (-want +got):\n%s", diff)
	}
}

func TestDisassemble_TagsRowsWithParentAndIndex(t *testing.T) {
	v := fullDocument(t)
	rs := Disassemble(v)

	for i, p := range rs.Parties {
		if p.VConUUID != v.UUID || p.Idx != i {
			t.Fatalf("party row %d mistagged: uuid=%s idx=%d", i, p.VConUUID, p.Idx)
		}
	}
	for i, d := range rs.Dialog {
		if d.VConUUID != v.UUID || d.Idx != i {
			t.Fatalf("dialog row %d mistagged: uuid=%s idx=%d", i, d.VConUUID, d.Idx)
		}
	}
	if rs.VCon.Subject == nil || *rs.VCon.Subject != *v.Subject {
		t.Fatal("subject lost in disassembly")
	}
}

func TestNormalize_AssignsServerFields(t *testing.T) {
	v := &model.VCon{Parties: []model.Party{{Name: strp("x")}}}
	Normalize(v)

	if _, err := uuid.Parse(v.UUID); err != nil {
		t.Fatalf("expected generated uuid, got %q", v.UUID)
	}
	if v.Version != model.VConVersion {
		t.Fatalf("expected default version, got %q", v.Version)
	}
	if v.CreatedAt.IsZero() {
		t.Fatal("expected creation timestamp")
	}

	// Caller-supplied values survive.
	id := uuid.New().String()
	created := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	v2 := &model.VCon{UUID: id, CreatedAt: created}
	Normalize(v2)
	if v2.UUID != id || !v2.CreatedAt.Equal(created) {
		t.Fatal("normalize must not overwrite caller-supplied id or timestamp")
	}
}

func TestMeta_Counts(t *testing.T) {
	v := fullDocument(t)
	m := Meta(v)
	if m.UUID != v.UUID || m.PartyCount != 3 || m.DialogCount != 4 || m.AnalysisCount != 2 || m.AttachmentCount != 2 {
		t.Fatalf("unexpected meta: %+v", m)
	}
}
