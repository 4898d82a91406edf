package service

import (
	"context"
	"fmt"

	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/searchindex"
	"github.com/openvcon/vconstore/internal/tags"
	"github.com/openvcon/vconstore/internal/vcon"
)

// snippetFallback bounds the plain-prefix excerpt used when no query term
// appears in the matched section text.
const snippetFallback = 120

// clampLimit applies the configured default and ceiling.
func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultSearchLimit
	}
	if limit > s.cfg.MaxSearchLimit {
		return s.cfg.MaxSearchLimit
	}
	return limit
}

func normalizeFormat(f model.ResponseFormat) model.ResponseFormat {
	if f == "" {
		return model.FormatMetadata
	}
	return f
}

func validateFormat(f model.ResponseFormat, keyword bool) error {
	switch f {
	case model.FormatFull, model.FormatMetadata, model.FormatIDsOnly:
		return nil
	case model.FormatSnippets:
		if keyword {
			return nil
		}
		return &model.ValidationError{Violations: []model.Violation{
			{Field: "format", Message: "snippets is only available for keyword search"},
		}}
	default:
		return &model.ValidationError{Violations: []model.Violation{
			{Field: "format", Message: fmt.Sprintf("unknown response format %q", f)},
		}}
	}
}

// Search runs structured filtering over the relational store: subject
// substring, party identifier equality, creation-time window and conjunctive
// tag equality.
func (s *Service) Search(ctx context.Context, q model.SearchQuery, opts Options) (*model.SearchResult, error) {
	q.Format = normalizeFormat(q.Format)
	q.Limit = s.clampLimit(q.Limit)

	if !opts.SkipHooks {
		out, err := s.hooks.BeforeSearch(ctx, &q)
		if err != nil {
			return nil, err
		}
		q = *out
		// hooks may rewrite the limit and format, so bound them again
		q.Limit = s.clampLimit(q.Limit)
		q.Format = normalizeFormat(q.Format)
	}
	if err := validateFormat(q.Format, false); err != nil {
		return nil, err
	}

	// tag filtering happens after the relational pass, so defer the limit
	// until the tag filter has run
	relational := q
	if len(q.Tags) > 0 {
		relational.Limit = 0
	}
	ids, err := s.store.Search(ctx, relational)
	if err != nil {
		return nil, err
	}
	ids, err = s.filterByTags(ctx, ids, q.Tags)
	if err != nil {
		return nil, err
	}
	if len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}

	res, err := s.shapeIDs(ctx, ids, q.Format)
	if err != nil {
		return nil, err
	}
	return s.afterSearch(ctx, res, opts)
}

// SearchByTags is structured search with only the tag predicate.
func (s *Service) SearchByTags(ctx context.Context, want map[string]string, limit int, format model.ResponseFormat, opts Options) (*model.SearchResult, error) {
	return s.Search(ctx, model.SearchQuery{Tags: want, Limit: limit, Format: format}, opts)
}

// SearchKeyword ranks by BM25 over indexed section text. The snippets format
// is only valid here.
func (s *Service) SearchKeyword(ctx context.Context, rq model.RankedQuery, opts Options) (*model.SearchResult, error) {
	rq, err := s.prepareRanked(ctx, &rq, opts)
	if err != nil {
		return nil, err
	}
	if err := validateFormat(rq.Format, true); err != nil {
		return nil, err
	}
	hits, err := s.index.Keyword(ctx, rq.Query, fetchLimit(rq.Limit))
	if err != nil {
		return nil, err
	}
	return s.finishRanked(ctx, hits, rq, opts)
}

// SearchSemantic ranks by vector similarity. When the caller does not supply
// a vector the configured embedder produces one from the query text.
func (s *Service) SearchSemantic(ctx context.Context, rq model.RankedQuery, opts Options) (*model.SearchResult, error) {
	rq, err := s.prepareRanked(ctx, &rq, opts)
	if err != nil {
		return nil, err
	}
	if err := validateFormat(rq.Format, false); err != nil {
		return nil, err
	}
	vec, err := s.queryVector(ctx, rq)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Semantic(ctx, vec, rq.Threshold, fetchLimit(rq.Limit))
	if err != nil {
		return nil, err
	}
	return s.finishRanked(ctx, hits, rq, opts)
}

// SearchHybrid blends keyword and vector rank. A nil weight falls back to
// the configured alpha; an explicit 0 or 1 pins the blend to one side.
func (s *Service) SearchHybrid(ctx context.Context, rq model.RankedQuery, opts Options) (*model.SearchResult, error) {
	rq, err := s.prepareRanked(ctx, &rq, opts)
	if err != nil {
		return nil, err
	}
	if err := validateFormat(rq.Format, false); err != nil {
		return nil, err
	}
	alpha := s.cfg.SearchAlpha
	if rq.Weight != nil {
		if *rq.Weight < 0 || *rq.Weight > 1 {
			return nil, &model.ValidationError{Violations: []model.Violation{
				{Field: "weight", Message: "must be between 0 and 1"},
			}}
		}
		alpha = *rq.Weight
	}
	vec, err := s.queryVector(ctx, rq)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Hybrid(ctx, rq.Query, vec, alpha, fetchLimit(rq.Limit))
	if err != nil {
		return nil, err
	}
	return s.finishRanked(ctx, hits, rq, opts)
}

// prepareRanked clamps limits, defaults the format, and lets before-search
// hooks adjust the filterable parts of the query through the shared
// SearchQuery shape.
func (s *Service) prepareRanked(ctx context.Context, rq *model.RankedQuery, opts Options) (model.RankedQuery, error) {
	out := *rq
	out.Format = normalizeFormat(out.Format)
	out.Limit = s.clampLimit(out.Limit)

	if !opts.SkipHooks {
		sq := &model.SearchQuery{Tags: out.Tags, Limit: out.Limit, Format: out.Format}
		sq, err := s.hooks.BeforeSearch(ctx, sq)
		if err != nil {
			return out, err
		}
		out.Tags = sq.Tags
		out.Limit = s.clampLimit(sq.Limit)
		out.Format = normalizeFormat(sq.Format)
	}
	return out, nil
}

// fetchLimit over-fetches so per-record deduplication and tag filtering
// still fill the requested page.
func fetchLimit(limit int) int {
	return limit * 4
}

func (s *Service) queryVector(ctx context.Context, rq model.RankedQuery) ([]float32, error) {
	if rq.Vector != nil {
		return rq.Vector, nil
	}
	if s.embed == nil {
		return nil, fmt.Errorf("no embedding provider configured and no vector supplied")
	}
	return s.embed.Embed(ctx, rq.Query)
}

// finishRanked deduplicates hits per record (best score wins), applies the
// tag filter, truncates and shapes.
func (s *Service) finishRanked(ctx context.Context, hits []model.SearchHit, rq model.RankedQuery, opts Options) (*model.SearchResult, error) {
	best := make(map[string]int, len(hits))
	deduped := make([]model.SearchHit, 0, len(hits))
	for _, h := range hits {
		if i, ok := best[h.UUID]; ok {
			if h.Score > deduped[i].Score {
				deduped[i] = h
			}
			continue
		}
		best[h.UUID] = len(deduped)
		deduped = append(deduped, h)
	}

	if len(rq.Tags) > 0 {
		allowed, err := s.allowedByTags(ctx, rq.Tags)
		if err != nil {
			return nil, err
		}
		kept := deduped[:0]
		for _, h := range deduped {
			if allowed[h.UUID] {
				kept = append(kept, h)
			}
		}
		deduped = kept
	}
	if len(deduped) > rq.Limit {
		deduped = deduped[:rq.Limit]
	}

	var res *model.SearchResult
	if rq.Format == model.FormatSnippets {
		for i := range deduped {
			deduped[i].Snippet = buildSnippet(deduped[i].Text, rq.Query)
		}
		res = &model.SearchResult{Format: model.FormatSnippets, Hits: deduped}
	} else {
		ids := make([]string, len(deduped))
		for i, h := range deduped {
			ids[i] = h.UUID
		}
		var err error
		res, err = s.shapeIDs(ctx, ids, rq.Format)
		if err != nil {
			return nil, err
		}
	}
	return s.afterSearch(ctx, res, opts)
}

func buildSnippet(text, query string) string {
	if sn := searchindex.Snippet(text, query); sn != "" {
		return sn
	}
	runes := []rune(text)
	if len(runes) > snippetFallback {
		return string(runes[:snippetFallback]) + "…"
	}
	return text
}

// shapeIDs materializes ids into the requested response shape, preserving
// order.
func (s *Service) shapeIDs(ctx context.Context, ids []string, format model.ResponseFormat) (*model.SearchResult, error) {
	res := &model.SearchResult{Format: format}
	switch format {
	case model.FormatIDsOnly:
		res.IDs = ids
	case model.FormatMetadata:
		res.Metadata = make([]model.VConMeta, 0, len(ids))
		for _, id := range ids {
			v, err := s.fetch(ctx, id)
			if err != nil {
				if model.IsNotFoundError(err) {
					continue // deleted between rank and fetch
				}
				return nil, err
			}
			res.Metadata = append(res.Metadata, vcon.Meta(v))
		}
	case model.FormatFull:
		res.VCons = make([]*model.VCon, 0, len(ids))
		for _, id := range ids {
			v, err := s.fetch(ctx, id)
			if err != nil {
				if model.IsNotFoundError(err) {
					continue
				}
				return nil, err
			}
			res.VCons = append(res.VCons, v)
		}
	default:
		return nil, fmt.Errorf("unhandled response format %q", format)
	}
	return res, nil
}

func (s *Service) afterSearch(ctx context.Context, res *model.SearchResult, opts Options) (*model.SearchResult, error) {
	if opts.SkipHooks {
		return res, nil
	}
	return s.hooks.AfterSearch(ctx, res)
}

// filterByTags keeps the ids whose decoded tag set satisfies every wanted
// pair, preserving order. Records without a readable tag set match only an
// empty filter.
func (s *Service) filterByTags(ctx context.Context, ids []string, want map[string]string) ([]string, error) {
	if len(want) == 0 {
		return ids, nil
	}
	allowed, err := s.allowedByTags(ctx, want)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if allowed[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *Service) allowedByTags(ctx context.Context, want map[string]string) (map[string]bool, error) {
	bodies, err := s.store.ListTagBodies(ctx, 0)
	if err != nil {
		return nil, err
	}
	allowed := make(map[string]bool, len(bodies))
	for _, tb := range bodies {
		if tags.Matches(tags.DecodeBody(tb.Body), want) {
			allowed[tb.UUID] = true
		}
	}
	return allowed, nil
}

// Recommend reports corpus scale with a recommended (format, limit) per
// query type, so clients on large corpora keep responses bounded.
func (s *Service) Recommend(ctx context.Context) (*model.SizingReport, error) {
	stats, err := s.store.CorpusStats(ctx)
	if err != nil {
		return nil, err
	}
	report := &model.SizingReport{Stats: stats, Recommendations: map[string]model.Recommendation{}}

	rec := func(format model.ResponseFormat, limit int) model.Recommendation {
		if limit > s.cfg.MaxSearchLimit {
			limit = s.cfg.MaxSearchLimit
		}
		return model.Recommendation{Format: format, Limit: limit}
	}
	switch {
	case stats.VConCount < 1_000:
		report.Recommendations["structured"] = rec(model.FormatFull, 50)
		report.Recommendations["keyword"] = rec(model.FormatSnippets, 20)
		report.Recommendations["semantic"] = rec(model.FormatMetadata, 20)
		report.Recommendations["hybrid"] = rec(model.FormatMetadata, 20)
	case stats.VConCount < 100_000:
		report.Recommendations["structured"] = rec(model.FormatMetadata, 100)
		report.Recommendations["keyword"] = rec(model.FormatSnippets, 10)
		report.Recommendations["semantic"] = rec(model.FormatMetadata, 10)
		report.Recommendations["hybrid"] = rec(model.FormatMetadata, 10)
	default:
		report.Recommendations["structured"] = rec(model.FormatIDsOnly, 200)
		report.Recommendations["keyword"] = rec(model.FormatSnippets, 5)
		report.Recommendations["semantic"] = rec(model.FormatIDsOnly, 10)
		report.Recommendations["hybrid"] = rec(model.FormatIDsOnly, 10)
	}
	return report, nil
}
