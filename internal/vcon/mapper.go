// Package vcon converts between the nested conversation-record document and
// its normalized relational rows, and validates document invariants.
package vcon

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/openvcon/vconstore/internal/model"
)

// Normalize fills server-assigned fields on a new document: uuid, version,
// creation timestamp and non-nil child arrays. It mutates v in place and is
// called once on the create path, before validation.
func Normalize(v *model.VCon) {
	if v.UUID == "" {
		v.UUID = uuid.New().String()
	}
	if v.Version == "" {
		v.Version = model.VConVersion
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if v.Parties == nil {
		v.Parties = []model.Party{}
	}
	if v.Dialog == nil {
		v.Dialog = []model.Dialog{}
	}
	if v.Analysis == nil {
		v.Analysis = []model.Analysis{}
	}
	if v.Attachments == nil {
		v.Attachments = []model.Attachment{}
	}
}

// Assemble reconstructs the nested document from its rows. Child arrays are
// rebuilt in ordinal-index order; absent child tables yield empty arrays.
// Pure: no I/O, input is not retained.
func Assemble(rs RowSet) *model.VCon {
	out := &model.VCon{
		UUID:        rs.VCon.UUID,
		Version:     rs.VCon.Version,
		CreatedAt:   rs.VCon.CreatedAt,
		UpdatedAt:   rs.VCon.UpdatedAt,
		Subject:     rs.VCon.Subject,
		Extensions:  rs.VCon.Extensions,
		MustSupport: rs.VCon.MustSupport,
		Parties:     make([]model.Party, 0, len(rs.Parties)),
		Dialog:      make([]model.Dialog, 0, len(rs.Dialog)),
		Analysis:    make([]model.Analysis, 0, len(rs.Analysis)),
		Attachments: make([]model.Attachment, 0, len(rs.Attachments)),
	}
	if rs.VCon.RedactedUUID != nil {
		out.Redacted = &model.DocRef{UUID: *rs.VCon.RedactedUUID}
	}
	if rs.VCon.AppendedUUID != nil {
		out.Appended = &model.DocRef{UUID: *rs.VCon.AppendedUUID}
	}
	for _, g := range rs.VCon.GroupUUIDs {
		out.Group = append(out.Group, model.DocRef{UUID: g})
	}

	parties := append([]PartyRow(nil), rs.Parties...)
	sort.Slice(parties, func(i, j int) bool { return parties[i].Idx < parties[j].Idx })
	for _, p := range parties {
		out.Parties = append(out.Parties, model.Party{
			Tel:          p.Tel,
			SIP:          p.SIP,
			Mailto:       p.Mailto,
			Name:         p.Name,
			DID:          p.DID,
			UUID:         p.PartyUUID,
			STIR:         p.STIR,
			Validation:   p.Validation,
			GMLPos:       p.GMLPos,
			CivicAddress: p.CivicAddress,
			Timezone:     p.Timezone,
		})
	}

	dialog := append([]DialogRow(nil), rs.Dialog...)
	sort.Slice(dialog, func(i, j int) bool { return dialog[i].Idx < dialog[j].Idx })
	for _, d := range dialog {
		out.Dialog = append(out.Dialog, model.Dialog{
			Type:           d.Type,
			Start:          d.Start,
			Duration:       d.Duration,
			Parties:        d.Parties,
			Originator:     d.Originator,
			MediaType:      d.MediaType,
			Filename:       d.Filename,
			Body:           d.Body,
			Encoding:       d.Encoding,
			URL:            d.URL,
			ContentHash:    d.ContentHash,
			Disposition:    d.Disposition,
			SessionID:      d.SessionID,
			Application:    d.Application,
			MessageID:      d.MessageID,
			Transferee:     d.Transferee,
			Transferor:     d.Transferor,
			TransferTarget: d.TransferTarget,
		})
	}

	analysis := append([]AnalysisRow(nil), rs.Analysis...)
	sort.Slice(analysis, func(i, j int) bool { return analysis[i].Idx < analysis[j].Idx })
	for _, a := range analysis {
		out.Analysis = append(out.Analysis, model.Analysis{
			Type:        a.Type,
			Dialog:      a.Dialog,
			MediaType:   a.MediaType,
			Filename:    a.Filename,
			Vendor:      a.Vendor,
			Product:     a.Product,
			Schema:      a.Schema,
			Body:        a.Body,
			Encoding:    a.Encoding,
			URL:         a.URL,
			ContentHash: a.ContentHash,
		})
	}

	attachments := append([]AttachmentRow(nil), rs.Attachments...)
	sort.Slice(attachments, func(i, j int) bool { return attachments[i].Idx < attachments[j].Idx })
	for _, at := range attachments {
		out.Attachments = append(out.Attachments, model.Attachment{
			Type:        at.Type,
			Start:       at.Start,
			Party:       at.Party,
			Dialog:      at.Dialog,
			MediaType:   at.MediaType,
			Filename:    at.Filename,
			Body:        at.Body,
			Encoding:    at.Encoding,
			URL:         at.URL,
			ContentHash: at.ContentHash,
		})
	}

	return out
}

// Disassemble flattens the nested document into per-table rows tagged with
// the parent UUID and ordinal index. Pure inverse of Assemble for any
// document the validator accepts.
func Disassemble(v *model.VCon) RowSet {
	rs := RowSet{
		VCon: VConRow{
			UUID:        v.UUID,
			Version:     v.Version,
			CreatedAt:   v.CreatedAt,
			UpdatedAt:   v.UpdatedAt,
			Subject:     v.Subject,
			Extensions:  v.Extensions,
			MustSupport: v.MustSupport,
		},
	}
	if v.Redacted != nil {
		u := v.Redacted.UUID
		rs.VCon.RedactedUUID = &u
	}
	if v.Appended != nil {
		u := v.Appended.UUID
		rs.VCon.AppendedUUID = &u
	}
	for _, g := range v.Group {
		rs.VCon.GroupUUIDs = append(rs.VCon.GroupUUIDs, g.UUID)
	}

	for i, p := range v.Parties {
		rs.Parties = append(rs.Parties, PartyRow{
			VConUUID:     v.UUID,
			Idx:          i,
			Tel:          p.Tel,
			SIP:          p.SIP,
			Mailto:       p.Mailto,
			Name:         p.Name,
			DID:          p.DID,
			PartyUUID:    p.UUID,
			STIR:         p.STIR,
			Validation:   p.Validation,
			GMLPos:       p.GMLPos,
			CivicAddress: p.CivicAddress,
			Timezone:     p.Timezone,
		})
	}
	for i, d := range v.Dialog {
		rs.Dialog = append(rs.Dialog, DialogRow{
			VConUUID:       v.UUID,
			Idx:            i,
			Type:           d.Type,
			Start:          d.Start,
			Duration:       d.Duration,
			Parties:        d.Parties,
			Originator:     d.Originator,
			MediaType:      d.MediaType,
			Filename:       d.Filename,
			Body:           d.Body,
			Encoding:       d.Encoding,
			URL:            d.URL,
			ContentHash:    d.ContentHash,
			Disposition:    d.Disposition,
			SessionID:      d.SessionID,
			Application:    d.Application,
			MessageID:      d.MessageID,
			Transferee:     d.Transferee,
			Transferor:     d.Transferor,
			TransferTarget: d.TransferTarget,
		})
	}
	for i, a := range v.Analysis {
		rs.Analysis = append(rs.Analysis, AnalysisRow{
			VConUUID:    v.UUID,
			Idx:         i,
			Type:        a.Type,
			Dialog:      a.Dialog,
			MediaType:   a.MediaType,
			Filename:    a.Filename,
			Vendor:      a.Vendor,
			Product:     a.Product,
			Schema:      a.Schema,
			Body:        a.Body,
			Encoding:    a.Encoding,
			URL:         a.URL,
			ContentHash: a.ContentHash,
		})
	}
	for i, at := range v.Attachments {
		rs.Attachments = append(rs.Attachments, AttachmentRow{
			VConUUID:    v.UUID,
			Idx:         i,
			Type:        at.Type,
			Start:       at.Start,
			Party:       at.Party,
			Dialog:      at.Dialog,
			MediaType:   at.MediaType,
			Filename:    at.Filename,
			Body:        at.Body,
			Encoding:    at.Encoding,
			URL:         at.URL,
			ContentHash: at.ContentHash,
		})
	}
	return rs
}

// Meta derives the bounded metadata response shape from a document.
func Meta(v *model.VCon) model.VConMeta {
	return model.VConMeta{
		UUID:            v.UUID,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
		Subject:         v.Subject,
		PartyCount:      len(v.Parties),
		DialogCount:     len(v.Dialog),
		AnalysisCount:   len(v.Analysis),
		AttachmentCount: len(v.Attachments),
	}
}
