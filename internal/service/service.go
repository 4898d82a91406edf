// Package service is the lifecycle façade over validation, hooks, the
// relational store, the cache and the search index. All writes go through
// here so cache invalidation and index refresh stay consistent.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openvcon/vconstore/internal/cache"
	"github.com/openvcon/vconstore/internal/config"
	"github.com/openvcon/vconstore/internal/embeddings"
	"github.com/openvcon/vconstore/internal/hooks"
	"github.com/openvcon/vconstore/internal/model"
	"github.com/openvcon/vconstore/internal/searchindex"
	"github.com/openvcon/vconstore/internal/store"
	"github.com/openvcon/vconstore/internal/tags"
	"github.com/openvcon/vconstore/internal/vcon"
)

const cacheKeyPrefix = "vcon:"

// Options tune a single call. Zero value runs the full pipeline.
type Options struct {
	SkipHooks      bool
	SkipValidation bool
}

// Service wires the document lifecycle together.
type Service struct {
	store store.Store
	cache cache.Cache
	index searchindex.Index
	embed embeddings.Provider
	hooks *hooks.Pipeline
	cfg   *config.Config
	log   zerolog.Logger
}

// New builds a Service. cache, index and embed may be nil; nil collaborators
// degrade to cache.Noop, searchindex.Noop and no vectors.
func New(st store.Store, c cache.Cache, idx searchindex.Index, emb embeddings.Provider, pipe *hooks.Pipeline, cfg *config.Config, log zerolog.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if idx == nil {
		idx = searchindex.Noop{}
	}
	if pipe == nil {
		pipe = hooks.NewPipeline()
	}
	return &Service{store: st, cache: c, index: idx, embed: emb, hooks: pipe, cfg: cfg, log: log}
}

func cacheKey(uuid string) string { return cacheKeyPrefix + uuid }

func (s *Service) cacheTTL() time.Duration {
	return time.Duration(s.cfg.CacheTTLSeconds) * time.Second
}

// Create normalizes, runs before-create hooks, validates, persists, then
// invalidates the cache, refreshes the index and runs after-create hooks.
// A caller-supplied uuid that already exists is overwritten in full.
func (s *Service) Create(ctx context.Context, v *model.VCon, opts Options) (*model.VCon, error) {
	if v == nil {
		return nil, fmt.Errorf("nil document")
	}
	vcon.Normalize(v)

	if !opts.SkipHooks {
		out, err := s.hooks.BeforeCreate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
		vcon.Normalize(v) // a hook may have replaced the document
	}
	if !opts.SkipValidation {
		if err := vcon.Validate(v).Err(); err != nil {
			return nil, err
		}
	}

	if err := s.store.Upsert(ctx, vcon.Disassemble(v)); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cacheKey(v.UUID))
	s.reindex(ctx, v)

	if !opts.SkipHooks {
		out, err := s.hooks.AfterCreate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	return v, nil
}

// Get reads through the cache. A cache hit skips the store entirely; a miss
// assembles from rows and populates the cache best-effort.
func (s *Service) Get(ctx context.Context, uuid string, opts Options) (*model.VCon, error) {
	if !opts.SkipHooks {
		if err := s.hooks.BeforeRead(ctx, uuid); err != nil {
			return nil, err
		}
	}

	v, err := s.fetch(ctx, uuid)
	if err != nil {
		return nil, err
	}

	if !opts.SkipHooks {
		out, err := s.hooks.AfterRead(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	return v, nil
}

// fetch is the hook-free cache-aside read used by Get and the internal
// search/tag paths.
func (s *Service) fetch(ctx context.Context, uuid string) (*model.VCon, error) {
	if raw, ok := s.cache.Get(ctx, cacheKey(uuid)); ok {
		var v model.VCon
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v, nil
		}
		// corrupt entry; drop it and fall through to the store
		s.cache.Delete(ctx, cacheKey(uuid))
	}

	rs, err := s.store.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	v := vcon.Assemble(rs)
	if raw, err := json.Marshal(v); err == nil {
		s.cache.Set(ctx, cacheKey(uuid), raw, s.cacheTTL())
	}
	return v, nil
}

// Delete removes the record everywhere. Deleting an absent id reports
// found=false without error and skips the hooks.
func (s *Service) Delete(ctx context.Context, uuid string, opts Options) (bool, error) {
	exists, err := s.store.Exists(ctx, uuid)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	if !opts.SkipHooks {
		if err := s.hooks.BeforeDelete(ctx, uuid); err != nil {
			return false, err
		}
	}

	found, err := s.store.Delete(ctx, uuid)
	if err != nil {
		return false, err
	}
	s.cache.Delete(ctx, cacheKey(uuid))
	if err := s.index.DeleteVCon(ctx, uuid); err != nil {
		s.log.Warn().Err(err).Str("vcon", uuid).Msg("search index delete failed")
	}

	if !opts.SkipHooks {
		if err := s.hooks.AfterDelete(ctx, uuid); err != nil {
			return found, err
		}
	}
	return found, nil
}

// AddDialog appends one dialog entry. The resulting document is validated
// before anything is written.
func (s *Service) AddDialog(ctx context.Context, uuid string, d model.Dialog, opts Options) (*model.VCon, error) {
	return s.appendChild(ctx, uuid, opts,
		func(v *model.VCon) { v.Dialog = append(v.Dialog, d) },
		func(updated *model.VCon, updatedAt time.Time) error {
			rs := vcon.Disassemble(updated)
			return s.store.AppendDialog(ctx, uuid, rs.Dialog[len(rs.Dialog)-1], updatedAt)
		})
}

// AddAnalysis appends one analysis record.
func (s *Service) AddAnalysis(ctx context.Context, uuid string, a model.Analysis, opts Options) (*model.VCon, error) {
	return s.appendChild(ctx, uuid, opts,
		func(v *model.VCon) { v.Analysis = append(v.Analysis, a) },
		func(updated *model.VCon, updatedAt time.Time) error {
			rs := vcon.Disassemble(updated)
			return s.store.AppendAnalysis(ctx, uuid, rs.Analysis[len(rs.Analysis)-1], updatedAt)
		})
}

// AddAttachment appends one attachment.
func (s *Service) AddAttachment(ctx context.Context, uuid string, a model.Attachment, opts Options) (*model.VCon, error) {
	return s.appendChild(ctx, uuid, opts,
		func(v *model.VCon) { v.Attachments = append(v.Attachments, a) },
		func(updated *model.VCon, updatedAt time.Time) error {
			rs := vcon.Disassemble(updated)
			return s.store.AppendAttachment(ctx, uuid, rs.Attachments[len(rs.Attachments)-1], updatedAt)
		})
}

// appendChild reads the current document from the store, applies the
// mutation in memory so full-document validation sees the result, then
// persists the single appended row.
func (s *Service) appendChild(ctx context.Context, uuid string, opts Options, mutate func(*model.VCon), persist func(*model.VCon, time.Time) error) (*model.VCon, error) {
	rs, err := s.store.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	v := vcon.Assemble(rs)
	mutate(v)
	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	v.UpdatedAt = &updatedAt

	if !opts.SkipHooks {
		out, err := s.hooks.BeforeUpdate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	if !opts.SkipValidation {
		if err := vcon.Validate(v).Err(); err != nil {
			return nil, err
		}
	}

	if err := persist(v, updatedAt); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cacheKey(uuid))
	s.reindex(ctx, v)

	if !opts.SkipHooks {
		out, err := s.hooks.AfterUpdate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	return v, nil
}

// UpdateSubject rewrites the subject line.
func (s *Service) UpdateSubject(ctx context.Context, uuid string, subject *string, opts Options) (*model.VCon, error) {
	rs, err := s.store.Get(ctx, uuid)
	if err != nil {
		return nil, err
	}
	v := vcon.Assemble(rs)
	v.Subject = subject
	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	v.UpdatedAt = &updatedAt

	if !opts.SkipHooks {
		out, err := s.hooks.BeforeUpdate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	if !opts.SkipValidation {
		if err := vcon.Validate(v).Err(); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateSubject(ctx, uuid, v.Subject, updatedAt); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cacheKey(uuid))
	s.reindex(ctx, v)

	if !opts.SkipHooks {
		out, err := s.hooks.AfterUpdate(ctx, v)
		if err != nil {
			return nil, err
		}
		v = out
	}
	return v, nil
}

// CreateBatch runs the full single-create sequence per item, sequentially.
// Item failures are collected, not propagated; a partial failure is a
// successful batch call.
func (s *Service) CreateBatch(ctx context.Context, docs []*model.VCon, opts Options) model.BatchResult {
	res := model.BatchResult{Total: len(docs), Results: make([]model.BatchItemResult, 0, len(docs))}
	for i, d := range docs {
		created, err := s.Create(ctx, d, opts)
		item := model.BatchItemResult{Index: i}
		if err != nil {
			item.Error = err.Error()
			res.Failed++
		} else {
			item.UUID = created.UUID
			item.Success = true
			res.Created++
		}
		res.Results = append(res.Results, item)
	}
	return res
}

// HealthPing verifies the relational store.
func (s *Service) HealthPing(ctx context.Context) error {
	return s.store.HealthPing(ctx)
}

// reindex rebuilds the record's search documents. Failures are logged, never
// propagated; the relational store stays the source of truth.
func (s *Service) reindex(ctx context.Context, v *model.VCon) {
	docs := s.buildDocuments(ctx, v)
	if err := s.index.UpsertVCon(ctx, v.UUID, docs); err != nil {
		s.log.Warn().Err(err).Str("vcon", v.UUID).Msg("search index upsert failed")
	}
}

// buildDocuments extracts the indexable text sections: the subject line and
// every inline dialog or analysis body. Vectors are attached when an
// embedder is configured; embed failures leave the section keyword-only.
func (s *Service) buildDocuments(ctx context.Context, v *model.VCon) []searchindex.Document {
	tagSet := tags.Decode(func() *model.Attachment { a, _ := tags.Find(v.Attachments); return a }())
	tagStrings := make([]string, 0, len(tagSet))
	for k, val := range tagSet {
		tagStrings = append(tagStrings, k+":"+val)
	}
	sort.Strings(tagStrings)

	var docs []searchindex.Document
	add := func(field string, idx int, text string) {
		if text == "" {
			return
		}
		d := searchindex.Document{
			VConUUID:  v.UUID,
			Field:     field,
			Idx:       idx,
			Text:      text,
			Tags:      tagStrings,
			CreatedAt: v.CreatedAt,
		}
		if s.embed != nil {
			vec, err := s.embed.Embed(ctx, text)
			if err != nil {
				s.log.Warn().Err(err).Str("vcon", v.UUID).Str("field", field).Msg("embedding failed")
			} else {
				d.Vector = vec
			}
		}
		docs = append(docs, d)
	}

	if v.Subject != nil {
		add("subject", 0, *v.Subject)
	}
	if text := partyText(v.Parties); text != "" {
		add("parties", 0, text)
	}
	for i, d := range v.Dialog {
		if d.Body != nil && d.Encoding != nil && *d.Encoding == model.EncodingNone {
			add("dialog", i, *d.Body)
		}
	}
	for i, a := range v.Analysis {
		if a.Body != nil {
			add("analysis", i, *a.Body)
		}
	}
	return docs
}

// partyText flattens participant names and identifiers into one indexable
// section so keyword search can match people, not just content.
func partyText(parties []model.Party) string {
	var parts []string
	for _, p := range parties {
		for _, f := range []*string{p.Name, p.Tel, p.SIP, p.Mailto, p.DID} {
			if f != nil && *f != "" {
				parts = append(parts, *f)
			}
		}
	}
	return strings.Join(parts, " ")
}
