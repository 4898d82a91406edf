// Package searchindex maintains a text index over conversation content and
// serves the keyword, semantic and hybrid query paths.
package searchindex

import (
	"context"
	"time"

	"github.com/openvcon/vconstore/internal/model"
)

// Document is one indexable text section of a record: a dialog body, an
// analysis body or the subject line. A record fans out to one document per
// section so hits point back at the matching field.
type Document struct {
	VConUUID  string
	Field     string // "subject", "parties", "dialog", "analysis"
	Idx       int    // ordinal within the owning array, 0 for subject
	Text      string
	Tags      []string
	CreatedAt time.Time
	Vector    []float32
}

// Index abstracts the search backend.
type Index interface {
	// UpsertVCon replaces every indexed section of one record.
	UpsertVCon(ctx context.Context, uuid string, docs []Document) error

	// DeleteVCon removes every indexed section of one record. Missing
	// records are not an error.
	DeleteVCon(ctx context.Context, uuid string) error

	// Keyword runs BM25 ranking over section text.
	Keyword(ctx context.Context, query string, limit int) ([]model.SearchHit, error)

	// Semantic runs vector similarity with a minimum certainty threshold.
	Semantic(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.SearchHit, error)

	// Hybrid blends keyword and vector rank; alpha weighs the vector side.
	Hybrid(ctx context.Context, query string, vector []float32, alpha float32, limit int) ([]model.SearchHit, error)

	// HealthPing verifies the backend is reachable.
	HealthPing(ctx context.Context) error
}

// Noop discards writes and returns no hits, for deployments without a
// search backend.
type Noop struct{}

func (Noop) UpsertVCon(context.Context, string, []Document) error { return nil }
func (Noop) DeleteVCon(context.Context, string) error             { return nil }
func (Noop) Keyword(context.Context, string, int) ([]model.SearchHit, error) {
	return nil, nil
}
func (Noop) Semantic(context.Context, []float32, float64, int) ([]model.SearchHit, error) {
	return nil, nil
}
func (Noop) Hybrid(context.Context, string, []float32, float32, int) ([]model.SearchHit, error) {
	return nil, nil
}
func (Noop) HealthPing(context.Context) error { return nil }
