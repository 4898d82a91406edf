package service

import (
	"context"
	"time"

	"github.com/openvcon/vconstore/internal/tags"
	"github.com/openvcon/vconstore/internal/vcon"
)

// GetTags reads the record's tag set. A missing or malformed tags attachment
// yields an empty map.
func (s *Service) GetTags(ctx context.Context, uuid string) (map[string]string, error) {
	v, err := s.fetch(ctx, uuid)
	if err != nil {
		return nil, err
	}
	att, _ := tags.Find(v.Attachments)
	return tags.Decode(att), nil
}

// SetTag writes one key/value pair, replacing an existing value for the key.
// The rewritten attachment is always well-formed even when the stored one
// was not readable.
func (s *Service) SetTag(ctx context.Context, uuid, key, value string, opts Options) error {
	return s.mutateTags(ctx, uuid, opts, func(m map[string]string) map[string]string {
		return tags.Merge(m, map[string]string{key: value}, true)
	})
}

// RemoveTag deletes one key. Removing an absent key is a no-op that still
// rewrites the attachment.
func (s *Service) RemoveTag(ctx context.Context, uuid, key string, opts Options) error {
	return s.mutateTags(ctx, uuid, opts, func(m map[string]string) map[string]string {
		delete(m, key)
		return m
	})
}

// mutateTags rewrites the reserved attachment in place within the attachment
// list, leaving every other attachment untouched.
func (s *Service) mutateTags(ctx context.Context, uuid string, opts Options, mutate func(map[string]string) map[string]string) error {
	rs, err := s.store.Get(ctx, uuid)
	if err != nil {
		return err
	}
	v := vcon.Assemble(rs)

	att, at := tags.Find(v.Attachments)
	next := mutate(tags.Decode(att))
	encoded := tags.Encode(next)
	if at >= 0 {
		v.Attachments[at] = encoded
	} else {
		v.Attachments = append(v.Attachments, encoded)
	}
	updatedAt := time.Now().UTC().Truncate(time.Microsecond)
	v.UpdatedAt = &updatedAt

	if !opts.SkipHooks {
		out, err := s.hooks.BeforeUpdate(ctx, v)
		if err != nil {
			return err
		}
		v = out
	}
	if !opts.SkipValidation {
		if err := vcon.Validate(v).Err(); err != nil {
			return err
		}
	}

	if err := s.store.ReplaceAttachments(ctx, uuid, vcon.Disassemble(v).Attachments, updatedAt); err != nil {
		return err
	}
	s.cache.Delete(ctx, cacheKey(uuid))
	s.reindex(ctx, v)

	if !opts.SkipHooks {
		if _, err := s.hooks.AfterUpdate(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
