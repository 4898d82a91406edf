// Package embeddings produces vector representations for conversation text.
package embeddings

import "context"

// Provider produces dense vectors for text.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
