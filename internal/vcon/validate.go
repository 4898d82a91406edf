package vcon

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/openvcon/vconstore/internal/model"
)

// Result reports validation outcome. Errors accumulate every failed
// invariant; Warnings are non-fatal.
type Result struct {
	Valid    bool
	Errors   []model.Violation
	Warnings []string
}

// Err converts a failed Result into a *model.ValidationError, or nil when valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &model.ValidationError{Violations: r.Errors}
}

var dispositionSet = func() map[string]bool {
	m := make(map[string]bool, len(model.Dispositions))
	for _, d := range model.Dispositions {
		m[d] = true
	}
	return m
}()

var encodingSet = map[string]bool{
	model.EncodingBase64URL: true,
	model.EncodingJSON:      true,
	model.EncodingNone:      true,
}

var dialogTypeSet = map[string]bool{
	model.DialogRecording:  true,
	model.DialogText:       true,
	model.DialogTransfer:   true,
	model.DialogIncomplete: true,
}

// Validate checks every document invariant, accumulating all failures rather
// than stopping at the first. It never mutates its input.
func Validate(v *model.VCon) Result {
	var res Result

	fail := func(field, format string, args ...interface{}) {
		res.Errors = append(res.Errors, model.Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if v.UUID == "" {
		fail("uuid", "uuid is required")
	} else if _, err := uuid.Parse(v.UUID); err != nil {
		fail("uuid", "malformed uuid %q", v.UUID)
	}
	if v.CreatedAt.IsZero() {
		fail("created_at", "creation timestamp is required")
	}
	if v.UpdatedAt != nil && !v.CreatedAt.IsZero() && v.UpdatedAt.Before(v.CreatedAt) {
		fail("updated_at", "update timestamp precedes creation timestamp")
	}

	if len(v.Parties) == 0 {
		fail("parties", "at least one participant is required")
	}
	for i, p := range v.Parties {
		if p.Tel == nil && p.SIP == nil && p.Mailto == nil && p.Name == nil && p.DID == nil {
			fail(fmt.Sprintf("parties[%d]", i), "participant needs at least one of tel, sip, mailto, name, did")
		}
	}

	for i, d := range v.Dialog {
		field := fmt.Sprintf("dialog[%d]", i)
		if !dialogTypeSet[d.Type] {
			fail(field+".type", "unknown dialog type %q", d.Type)
		}
		validateContent(&res, field, d.Body, d.Encoding, d.URL, d.ContentHash, false)
		if d.Type == model.DialogIncomplete {
			if d.Disposition == nil {
				fail(field+".disposition", "incomplete dialog requires a disposition")
			} else if !dispositionSet[*d.Disposition] {
				fail(field+".disposition", "unknown disposition %q", *d.Disposition)
			}
		}
		if d.Type == model.DialogTransfer {
			if d.Transferee == nil || d.Transferor == nil || d.TransferTarget == nil {
				fail(field, "transfer dialog requires transferee, transferor and transfer_target")
			}
		}
		for _, pi := range d.Parties {
			if pi < 0 || pi >= len(v.Parties) {
				fail(field+".parties", "party index %d out of range", pi)
			}
		}
		if d.Originator != nil && (*d.Originator < 0 || *d.Originator >= len(v.Parties)) {
			fail(field+".originator", "party index %d out of range", *d.Originator)
		}
	}

	for i, a := range v.Analysis {
		field := fmt.Sprintf("analysis[%d]", i)
		if a.Vendor == nil || *a.Vendor == "" {
			fail(field+".vendor", "vendor is required")
		}
		validateContent(&res, field, a.Body, a.Encoding, a.URL, a.ContentHash, true)
		for _, di := range a.Dialog {
			if di < 0 || di >= len(v.Dialog) {
				fail(field+".dialog", "dialog index %d out of range", di)
			}
		}
	}

	for i, at := range v.Attachments {
		field := fmt.Sprintf("attachments[%d]", i)
		validateContent(&res, field, at.Body, at.Encoding, at.URL, at.ContentHash, false)
		if at.Party != nil && (*at.Party < 0 || *at.Party >= len(v.Parties)) {
			fail(field+".party", "party index %d out of range", *at.Party)
		}
		if at.Dialog != nil && (*at.Dialog < 0 || *at.Dialog >= len(v.Dialog)) {
			fail(field+".dialog", "dialog index %d out of range", *at.Dialog)
		}
	}

	if len(v.MustSupport) > 0 {
		declared := make(map[string]bool, len(v.Extensions))
		for _, e := range v.Extensions {
			declared[e] = true
		}
		for _, ms := range v.MustSupport {
			if !declared[ms] {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("must_support extension %q is not in the declared extensions list", ms))
			}
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// validateContent enforces the inline-vs-external exclusivity rule shared by
// dialog, analysis and attachment entries: exactly one of (body+encoding) or
// (url+content_hash). structured additionally requires json-encoded inline
// bodies to parse.
func validateContent(res *Result, field string, body, encoding, url, contentHash *string, structured bool) {
	inline := body != nil
	external := url != nil

	switch {
	case inline && external:
		res.Errors = append(res.Errors, model.Violation{
			Field: field, Message: "inline body and external url are mutually exclusive",
		})
	case !inline && !external:
		res.Errors = append(res.Errors, model.Violation{
			Field: field, Message: "content requires either body+encoding or url+content_hash",
		})
	case inline:
		if encoding == nil {
			res.Errors = append(res.Errors, model.Violation{
				Field: field + ".encoding", Message: "encoding is required with an inline body",
			})
		} else if !encodingSet[*encoding] {
			res.Errors = append(res.Errors, model.Violation{
				Field: field + ".encoding", Message: fmt.Sprintf("unknown encoding %q", *encoding),
			})
		} else if structured && *encoding == model.EncodingJSON {
			if !json.Valid([]byte(*body)) {
				res.Errors = append(res.Errors, model.Violation{
					Field: field + ".body", Message: "body declared as json does not parse",
				})
			}
		}
	case external:
		if contentHash == nil {
			res.Errors = append(res.Errors, model.Violation{
				Field: field + ".content_hash", Message: "content_hash is required with an external url",
			})
		}
	}
}
