package model

import "time"

// VConVersion is the record syntax version written when the caller omits one.
const VConVersion = "0.3.0"

// Dialog entry types (closed set).
const (
	DialogRecording  = "recording"
	DialogText       = "text"
	DialogTransfer   = "transfer"
	DialogIncomplete = "incomplete"
)

// Dispositions allowed on incomplete dialog entries.
var Dispositions = []string{
	"no-answer", "congestion", "failed", "busy", "hung-up", "voicemail-no-message",
}

// Body encodings. EncodingJSON is the structured encoding: inline bodies
// declared with it must parse as JSON.
const (
	EncodingBase64URL = "base64url"
	EncodingJSON      = "json"
	EncodingNone      = "none"
)

// TagsAttachmentType marks the reserved attachment that carries the
// document's key/value tag set.
const TagsAttachmentType = "tags"

// VCon is the aggregate conversation record. Children are owned exclusively
// by the record and addressed by their position in the array.
type VCon struct {
	UUID        string       `json:"uuid"`
	Version     string       `json:"vcon"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   *time.Time   `json:"updated_at,omitempty"`
	Subject     *string      `json:"subject,omitempty"`
	Parties     []Party      `json:"parties"`
	Dialog      []Dialog     `json:"dialog"`
	Analysis    []Analysis   `json:"analysis"`
	Attachments []Attachment `json:"attachments"`
	Extensions  []string     `json:"extensions,omitempty"`
	MustSupport []string     `json:"must_support,omitempty"`
	Redacted    *DocRef      `json:"redacted,omitempty"`
	Appended    *DocRef      `json:"appended,omitempty"`
	Group       []DocRef     `json:"group,omitempty"`
}

// DocRef is a cross-document reference (redaction, append, group membership).
type DocRef struct {
	UUID string `json:"uuid"`
}

// Party identifies a conversation participant. At least one of
// Tel/SIP/Mailto/Name/DID must be present.
type Party struct {
	Tel          *string `json:"tel,omitempty"`
	SIP          *string `json:"sip,omitempty"`
	Mailto       *string `json:"mailto,omitempty"`
	Name         *string `json:"name,omitempty"`
	DID          *string `json:"did,omitempty"`
	UUID         *string `json:"uuid,omitempty"`
	STIR         *string `json:"stir,omitempty"`
	Validation   *string `json:"validation,omitempty"`
	GMLPos       *string `json:"gmlpos,omitempty"`
	CivicAddress *string `json:"civicaddress,omitempty"`
	Timezone     *string `json:"timezone,omitempty"`
}

// Dialog is one typed conversation segment. Content is exactly one of
// (Body+Encoding) inline or (URL+ContentHash) external.
type Dialog struct {
	Type           string     `json:"type"`
	Start          *time.Time `json:"start,omitempty"`
	Duration       *float64   `json:"duration,omitempty"`
	Parties        []int      `json:"parties,omitempty"`
	Originator     *int       `json:"originator,omitempty"`
	MediaType      *string    `json:"mediatype,omitempty"`
	Filename       *string    `json:"filename,omitempty"`
	Body           *string    `json:"body,omitempty"`
	Encoding       *string    `json:"encoding,omitempty"`
	URL            *string    `json:"url,omitempty"`
	ContentHash    *string    `json:"content_hash,omitempty"`
	Disposition    *string    `json:"disposition,omitempty"`
	SessionID      *string    `json:"session_id,omitempty"`
	Application    *string    `json:"application,omitempty"`
	MessageID      *string    `json:"message_id,omitempty"`
	Transferee     *int       `json:"transferee,omitempty"`
	Transferor     *int       `json:"transferor,omitempty"`
	TransferTarget *int       `json:"transfer_target,omitempty"`
}

// Analysis is a vendor-attributed derived record over dialog entries.
// Vendor is mandatory.
type Analysis struct {
	Type        string  `json:"type"`
	Dialog      []int   `json:"dialog,omitempty"`
	MediaType   *string `json:"mediatype,omitempty"`
	Filename    *string `json:"filename,omitempty"`
	Vendor      *string `json:"vendor,omitempty"`
	Product     *string `json:"product,omitempty"`
	Schema      *string `json:"schema,omitempty"`
	Body        *string `json:"body,omitempty"`
	Encoding    *string `json:"encoding,omitempty"`
	URL         *string `json:"url,omitempty"`
	ContentHash *string `json:"content_hash,omitempty"`
}

// Attachment is a generic typed payload attached to the record.
type Attachment struct {
	Type        string     `json:"type"`
	Start       *time.Time `json:"start,omitempty"`
	Party       *int       `json:"party,omitempty"`
	Dialog      *int       `json:"dialog,omitempty"`
	MediaType   *string    `json:"mediatype,omitempty"`
	Filename    *string    `json:"filename,omitempty"`
	Body        *string    `json:"body,omitempty"`
	Encoding    *string    `json:"encoding,omitempty"`
	URL         *string    `json:"url,omitempty"`
	ContentHash *string    `json:"content_hash,omitempty"`
}

// ResponseFormat selects the shape of search responses so callers can keep
// payloads bounded on large corpora.
type ResponseFormat string

const (
	FormatFull     ResponseFormat = "full"
	FormatMetadata ResponseFormat = "metadata"
	FormatSnippets ResponseFormat = "snippets"
	FormatIDsOnly  ResponseFormat = "ids_only"
)

// SearchQuery carries structured-search filters. Zero values mean
// "not filtered".
type SearchQuery struct {
	Subject string            `json:"subject,omitempty"`
	Party   string            `json:"party,omitempty"`
	From    *time.Time        `json:"from,omitempty"`
	Until   *time.Time        `json:"until,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Limit   int               `json:"limit,omitempty"`
	Format  ResponseFormat    `json:"format,omitempty"`
}

// RankedQuery carries parameters shared by the keyword, semantic and hybrid
// search paths. Vector may be pre-computed by the caller; when nil the
// service consults the embedder. Weight is the hybrid vector share in [0, 1];
// nil means "use the configured alpha", so an explicit 0 stays pure keyword.
type RankedQuery struct {
	Query     string            `json:"query"`
	Vector    []float32         `json:"vector,omitempty"`
	Threshold float64           `json:"threshold,omitempty"`
	Weight    *float32          `json:"weight,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Limit     int               `json:"limit,omitempty"`
	Format    ResponseFormat    `json:"format,omitempty"`
}

// SearchHit is one ranked result.
type SearchHit struct {
	UUID    string  `json:"uuid"`
	Field   string  `json:"field,omitempty"`
	Score   float64 `json:"score"`
	Text    string  `json:"-"`
	Snippet string  `json:"snippet,omitempty"`
}

// VConMeta is the bounded metadata response shape.
type VConMeta struct {
	UUID            string     `json:"uuid"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
	Subject         *string    `json:"subject,omitempty"`
	PartyCount      int        `json:"party_count"`
	DialogCount     int        `json:"dialog_count"`
	AnalysisCount   int        `json:"analysis_count"`
	AttachmentCount int        `json:"attachment_count"`
}

// SearchResult is the shaped response for every search variant. Exactly one
// of the payload slices is populated, matching Format.
type SearchResult struct {
	Format   ResponseFormat `json:"format"`
	VCons    []*VCon        `json:"vcons,omitempty"`
	Metadata []VConMeta     `json:"metadata,omitempty"`
	Hits     []SearchHit    `json:"hits,omitempty"`
	IDs      []string       `json:"ids,omitempty"`
}

// BatchItemResult reports the outcome of a single item in a batch create.
type BatchItemResult struct {
	Index   int    `json:"index"`
	UUID    string `json:"uuid,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates a batch create. A partial failure is not an error.
type BatchResult struct {
	Total   int               `json:"total"`
	Created int               `json:"created"`
	Failed  int               `json:"failed"`
	Results []BatchItemResult `json:"results"`
}

// CorpusStats reports corpus scale so callers can size requests.
type CorpusStats struct {
	VConCount      int64 `json:"vcon_count"`
	PartyRows      int64 `json:"party_rows"`
	DialogRows     int64 `json:"dialog_rows"`
	AnalysisRows   int64 `json:"analysis_rows"`
	AttachmentRows int64 `json:"attachment_rows"`
	ApproxBytes    int64 `json:"approx_bytes"`
}

// Recommendation pairs a response format with a limit for one query type.
type Recommendation struct {
	Format ResponseFormat `json:"format"`
	Limit  int            `json:"limit"`
}

// SizingReport combines corpus scale with per-query-type request sizing.
type SizingReport struct {
	Stats           CorpusStats               `json:"stats"`
	Recommendations map[string]Recommendation `json:"recommendations"`
}
