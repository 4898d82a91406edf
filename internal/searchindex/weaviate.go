package searchindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/openvcon/vconstore/internal/model"
)

const className = "VConText"

// object ids are derived from (record, field, ordinal) so re-indexing a
// section overwrites rather than duplicates
var objectNamespace = uuid.MustParse("7a1d3f60-9c9b-4f2e-8b4e-21cf1d6f0f44")

// Weaviate implements Index using weaviate-go-client.
type Weaviate struct {
	client *weaviate.Client
}

// NewWeaviate constructs an Index for a host like "localhost:8081".
func NewWeaviate(host string) (*Weaviate, error) {
	cl, err := weaviate.NewClient(weaviate.Config{Scheme: "http", Host: host})
	if err != nil {
		return nil, err
	}
	return &Weaviate{client: cl}, nil
}

// Bootstrap ensures the class exists. Existing classes are left untouched.
func (w *Weaviate) Bootstrap(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	ex, err := w.client.Schema().ClassGetter().WithClassName(className).Do(cctx)
	if err == nil && ex != nil {
		return nil
	}
	class := &models.Class{
		Class:      className,
		Vectorizer: "none",
		Properties: []*models.Property{
			{Name: "vconUuid", DataType: []string{"text"}},
			{Name: "field", DataType: []string{"text"}},
			{Name: "idx", DataType: []string{"int"}},
			{Name: "text", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "createdAt", DataType: []string{"date"}},
		},
	}
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(cctx); err != nil {
		return fmt.Errorf("bootstrap %s: %w", className, err)
	}
	return nil
}

func (w *Weaviate) HealthPing(ctx context.Context) error {
	ok, err := w.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("weaviate not ready")
	}
	return nil
}

func objectID(vconUUID, field string, idx int) string {
	return uuid.NewSHA1(objectNamespace, []byte(fmt.Sprintf("%s/%s/%d", vconUUID, field, idx))).String()
}

func (w *Weaviate) UpsertVCon(ctx context.Context, id string, docs []Document) error {
	if err := w.DeleteVCon(ctx, id); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	objs := make([]*models.Object, 0, len(docs))
	for _, d := range docs {
		objs = append(objs, &models.Object{
			Class: className,
			ID:    strfmt.UUID(objectID(d.VConUUID, d.Field, d.Idx)),
			Properties: map[string]interface{}{
				"vconUuid":  d.VConUUID,
				"field":     d.Field,
				"idx":       d.Idx,
				"text":      d.Text,
				"tags":      d.Tags,
				"createdAt": d.CreatedAt.Format(time.RFC3339),
			},
			Vector: d.Vector,
		})
	}
	if _, err := w.client.Batch().ObjectsBatcher().WithObjects(objs...).Do(ctx); err != nil {
		return fmt.Errorf("index %s: %w", id, err)
	}
	return nil
}

func (w *Weaviate) DeleteVCon(ctx context.Context, id string) error {
	where := filters.Where().WithPath([]string{"vconUuid"}).WithOperator(filters.Equal).WithValueText(id)
	_, err := w.client.Batch().ObjectsBatchDeleter().
		WithClassName(className).
		WithWhere(where).
		Do(ctx)
	return err
}

func hitFields() []gql.Field {
	return []gql.Field{
		{Name: "vconUuid"},
		{Name: "field"},
		{Name: "text"},
		{Name: "_additional", Fields: []gql.Field{{Name: "score"}, {Name: "certainty"}}},
	}
}

func (w *Weaviate) Keyword(ctx context.Context, query string, limit int) ([]model.SearchHit, error) {
	bm25 := (&gql.BM25ArgumentBuilder{}).WithQuery(query).WithProperties("text")
	resp, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithBM25(bm25).
		WithLimit(limit).
		WithFields(hitFields()...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	return parseHits(resp.Data, resp.Errors)
}

func (w *Weaviate) Semantic(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.SearchHit, error) {
	near := w.client.GraphQL().NearVectorArgBuilder().WithVector(vector)
	if threshold > 0 {
		near = near.WithCertainty(float32(threshold))
	}
	resp, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithNearVector(near).
		WithLimit(limit).
		WithFields(hitFields()...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	return parseHits(resp.Data, resp.Errors)
}

func (w *Weaviate) Hybrid(ctx context.Context, query string, vector []float32, alpha float32, limit int) ([]model.SearchHit, error) {
	hy := (&gql.HybridArgumentBuilder{}).
		WithQuery(query).
		WithAlpha(alpha).
		WithProperties([]string{"text"})
	if vector != nil {
		hy = hy.WithVector(vector)
	}
	resp, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithHybrid(hy).
		WithLimit(limit).
		WithFields(hitFields()...).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	return parseHits(resp.Data, resp.Errors)
}

// parseHits extracts hits from a GraphQL Get response. Missing or
// null result sets are treated as no hits.
func parseHits(data map[string]models.JSONObject, gqlErrs []*models.GraphQLError) ([]model.SearchHit, error) {
	if len(gqlErrs) > 0 {
		b, _ := json.Marshal(gqlErrs)
		return nil, fmt.Errorf("weaviate graphql: %s", string(b))
	}
	getData, ok := data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	val := getData[className]
	if val == nil {
		return []model.SearchHit{}, nil
	}
	raw, ok := val.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]model.SearchHit, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		hit := model.SearchHit{}
		hit.UUID, _ = m["vconUuid"].(string)
		hit.Field, _ = m["field"].(string)
		hit.Text, _ = m["text"].(string)
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			hit.Score = additionalScore(add)
		}
		out = append(out, hit)
	}
	return out, nil
}

// additionalScore prefers hybrid/BM25 score, falling back to nearVector
// certainty. Weaviate returns score as a string.
func additionalScore(add map[string]interface{}) float64 {
	switch v := add["score"].(type) {
	case float64:
		if v != 0 {
			return v
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil && f != 0 {
			return f
		}
	}
	switch v := add["certainty"].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}
