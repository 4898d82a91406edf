// Package hooks runs ordered, short-circuiting lifecycle interceptors around
// every document operation. Interceptors implement any subset of the
// capability interfaces below; the pipeline checks capability presence with
// type assertions rather than reflection.
package hooks

import (
	"context"

	"github.com/openvcon/vconstore/internal/model"
)

// Hook is the marker every interceptor implements. Name is used for error
// attribution when a hook rejects an operation.
type Hook interface {
	Name() string
}

// Capability interfaces. A non-nil returned object replaces the working
// object for all subsequent interceptors and the final caller; a nil return
// keeps the current one. An error stops the pipeline immediately.
type (
	BeforeCreateHook interface {
		BeforeCreate(ctx context.Context, v *model.VCon) (*model.VCon, error)
	}
	AfterCreateHook interface {
		AfterCreate(ctx context.Context, v *model.VCon) (*model.VCon, error)
	}
	BeforeReadHook interface {
		// BeforeRead receives only the id; it can block before any data is fetched.
		BeforeRead(ctx context.Context, uuid string) error
	}
	AfterReadHook interface {
		AfterRead(ctx context.Context, v *model.VCon) (*model.VCon, error)
	}
	BeforeUpdateHook interface {
		BeforeUpdate(ctx context.Context, v *model.VCon) (*model.VCon, error)
	}
	AfterUpdateHook interface {
		AfterUpdate(ctx context.Context, v *model.VCon) (*model.VCon, error)
	}
	BeforeDeleteHook interface {
		BeforeDelete(ctx context.Context, uuid string) error
	}
	AfterDeleteHook interface {
		AfterDelete(ctx context.Context, uuid string) error
	}
	BeforeSearchHook interface {
		BeforeSearch(ctx context.Context, q *model.SearchQuery) (*model.SearchQuery, error)
	}
	AfterSearchHook interface {
		AfterSearch(ctx context.Context, r *model.SearchResult) (*model.SearchResult, error)
	}
)

// Pipeline holds interceptors in registration order. Registration is
// append-only at startup; execution never mutates the list, so concurrent
// calls share it without locking.
type Pipeline struct {
	hooks []Hook
}

// NewPipeline builds a pipeline from hs in order.
func NewPipeline(hs ...Hook) *Pipeline {
	return &Pipeline{hooks: hs}
}

// Register appends h. Must not be called after the service starts taking
// requests.
func (p *Pipeline) Register(h Hook) {
	p.hooks = append(p.hooks, h)
}

// Len reports the number of registered hooks.
func (p *Pipeline) Len() int { return len(p.hooks) }

// reject wraps a before-hook error so callers can distinguish interceptor
// rejections from operation failures.
func reject(h Hook, err error) error {
	return &model.HookRejectionError{Hook: h.Name(), Err: err}
}

func (p *Pipeline) BeforeCreate(ctx context.Context, v *model.VCon) (*model.VCon, error) {
	cur := v
	for _, h := range p.hooks {
		bc, ok := h.(BeforeCreateHook)
		if !ok {
			continue
		}
		out, err := bc.BeforeCreate(ctx, cur)
		if err != nil {
			return nil, reject(h, err)
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) AfterCreate(ctx context.Context, v *model.VCon) (*model.VCon, error) {
	cur := v
	for _, h := range p.hooks {
		ac, ok := h.(AfterCreateHook)
		if !ok {
			continue
		}
		out, err := ac.AfterCreate(ctx, cur)
		if err != nil {
			return nil, err
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) BeforeRead(ctx context.Context, uuid string) error {
	for _, h := range p.hooks {
		br, ok := h.(BeforeReadHook)
		if !ok {
			continue
		}
		if err := br.BeforeRead(ctx, uuid); err != nil {
			return reject(h, err)
		}
	}
	return nil
}

func (p *Pipeline) AfterRead(ctx context.Context, v *model.VCon) (*model.VCon, error) {
	cur := v
	for _, h := range p.hooks {
		ar, ok := h.(AfterReadHook)
		if !ok {
			continue
		}
		out, err := ar.AfterRead(ctx, cur)
		if err != nil {
			return nil, err
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) BeforeUpdate(ctx context.Context, v *model.VCon) (*model.VCon, error) {
	cur := v
	for _, h := range p.hooks {
		bu, ok := h.(BeforeUpdateHook)
		if !ok {
			continue
		}
		out, err := bu.BeforeUpdate(ctx, cur)
		if err != nil {
			return nil, reject(h, err)
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) AfterUpdate(ctx context.Context, v *model.VCon) (*model.VCon, error) {
	cur := v
	for _, h := range p.hooks {
		au, ok := h.(AfterUpdateHook)
		if !ok {
			continue
		}
		out, err := au.AfterUpdate(ctx, cur)
		if err != nil {
			return nil, err
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) BeforeDelete(ctx context.Context, uuid string) error {
	for _, h := range p.hooks {
		bd, ok := h.(BeforeDeleteHook)
		if !ok {
			continue
		}
		if err := bd.BeforeDelete(ctx, uuid); err != nil {
			return reject(h, err)
		}
	}
	return nil
}

func (p *Pipeline) AfterDelete(ctx context.Context, uuid string) error {
	for _, h := range p.hooks {
		ad, ok := h.(AfterDeleteHook)
		if !ok {
			continue
		}
		if err := ad.AfterDelete(ctx, uuid); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) BeforeSearch(ctx context.Context, q *model.SearchQuery) (*model.SearchQuery, error) {
	cur := q
	for _, h := range p.hooks {
		bs, ok := h.(BeforeSearchHook)
		if !ok {
			continue
		}
		out, err := bs.BeforeSearch(ctx, cur)
		if err != nil {
			return nil, reject(h, err)
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}

func (p *Pipeline) AfterSearch(ctx context.Context, r *model.SearchResult) (*model.SearchResult, error) {
	cur := r
	for _, h := range p.hooks {
		as, ok := h.(AfterSearchHook)
		if !ok {
			continue
		}
		out, err := as.AfterSearch(ctx, cur)
		if err != nil {
			return nil, err
		}
		if out != nil {
			cur = out
		}
	}
	return cur, nil
}
