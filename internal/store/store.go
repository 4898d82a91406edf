// Package store defines the relational persistence interface for
// conversation records. Driver implementations live under
// internal/store/<driver>/ (postgres, sqlite).
package store

import (
	"context"
	"time"

	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/vcon"
)

// TagBody pairs a record id with the raw body of its reserved tags
// attachment, for tag filtering without assembling full documents.
type TagBody struct {
	UUID string
	Body string
}

// Store exposes the relational operations the lifecycle service needs.
// Multi-table writes run inside a single transaction; deletes cascade to
// every child table. Implementations return *model.NotFoundError when the
// target record is absent and *model.StoreUnavailableError when the store
// itself cannot be reached.
type Store interface {
	// Upsert writes the full document: main row plus all child rows.
	Upsert(ctx context.Context, rs vcon.RowSet) error

	// Get reads every table for one record.
	Get(ctx context.Context, uuid string) (vcon.RowSet, error)

	// Exists reports record presence without assembling children.
	Exists(ctx context.Context, uuid string) (bool, error)

	// Delete removes the record and all children transactionally. The
	// boolean reports whether a record was found; deleting an absent id is
	// not an error.
	Delete(ctx context.Context, uuid string) (bool, error)

	// Append* add one child row at the next ordinal index and bump the
	// record's update timestamp, touching nothing else. The ordinal is
	// computed inside the write transaction, so concurrent appends
	// serialize at the store.
	AppendDialog(ctx context.Context, uuid string, row vcon.DialogRow, updatedAt time.Time) error
	AppendAnalysis(ctx context.Context, uuid string, row vcon.AnalysisRow, updatedAt time.Time) error
	AppendAttachment(ctx context.Context, uuid string, row vcon.AttachmentRow, updatedAt time.Time) error

	// UpdateSubject rewrites the top-level subject and update timestamp.
	UpdateSubject(ctx context.Context, uuid string, subject *string, updatedAt time.Time) error

	// ReplaceAttachments rewrites the attachment list in one transaction
	// (tag mutation path).
	ReplaceAttachments(ctx context.Context, uuid string, rows []vcon.AttachmentRow, updatedAt time.Time) error

	// Search translates structured filters into relational predicates and
	// returns matching ids, newest first.
	Search(ctx context.Context, q model.SearchQuery) ([]string, error)

	// ListTagBodies returns raw reserved-attachment bodies, first per
	// record in ordinal order.
	ListTagBodies(ctx context.Context, limit int) ([]TagBody, error)

	// CorpusStats reports row and byte counts for request sizing.
	CorpusStats(ctx context.Context) (model.CorpusStats, error)

	// HealthPing verifies connectivity.
	HealthPing(ctx context.Context) error
}
