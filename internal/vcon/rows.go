package vcon

import "time"

// Relational row representations for one conversation record. Each child row
// carries its parent UUID and its ordinal position within the owning array;
// optional fields stay nil so drivers store NULL and round-trips stay exact.

// VConRow is the aggregate-root row.
type VConRow struct {
	UUID         string
	Version      string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	Subject      *string
	Extensions   []string
	MustSupport  []string
	RedactedUUID *string
	AppendedUUID *string
	GroupUUIDs   []string
}

// PartyRow is one participant row.
type PartyRow struct {
	VConUUID     string
	Idx          int
	Tel          *string
	SIP          *string
	Mailto       *string
	Name         *string
	DID          *string
	PartyUUID    *string
	STIR         *string
	Validation   *string
	GMLPos       *string
	CivicAddress *string
	Timezone     *string
}

// DialogRow is one dialog-segment row.
type DialogRow struct {
	VConUUID       string
	Idx            int
	Type           string
	Start          *time.Time
	Duration       *float64
	Parties        []int
	Originator     *int
	MediaType      *string
	Filename       *string
	Body           *string
	Encoding       *string
	URL            *string
	ContentHash    *string
	Disposition    *string
	SessionID      *string
	Application    *string
	MessageID      *string
	Transferee     *int
	Transferor     *int
	TransferTarget *int
}

// AnalysisRow is one analysis-record row.
type AnalysisRow struct {
	VConUUID    string
	Idx         int
	Type        string
	Dialog      []int
	MediaType   *string
	Filename    *string
	Vendor      *string
	Product     *string
	Schema      *string
	Body        *string
	Encoding    *string
	URL         *string
	ContentHash *string
}

// AttachmentRow is one attachment row.
type AttachmentRow struct {
	VConUUID    string
	Idx         int
	Type        string
	Start       *time.Time
	Party       *int
	Dialog      *int
	MediaType   *string
	Filename    *string
	Body        *string
	Encoding    *string
	URL         *string
	ContentHash *string
}

// RowSet is the complete per-table flattening of one record.
type RowSet struct {
	VCon        VConRow
	Parties     []PartyRow
	Dialog      []DialogRow
	Analysis    []AnalysisRow
	Attachments []AttachmentRow
}
