// Package service implements the discovery pipeline behind the streaming API
package service

import (
	"context"
	"sync"

	"webgap/internal/platform/logger"
	"webgap/internal/services/discovery/domain"
)

// Deduper keeps the cross-tile seen-identity set for one stream. First
// occurrence wins; later duplicates are dropped silently. With persistent
// scope it also consults the reported-businesses store so a resumed run
// never re-emits a business a prior invocation already reported
type Deduper struct {
	scope    domain.DedupScope
	cache    domain.CachePort
	queryKey string
	log      logger.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduper builds a seen-set for one invocation
func NewDeduper(scope domain.DedupScope, cache domain.CachePort, queryKey string) *Deduper {
	return &Deduper{
		scope:    scope,
		cache:    cache,
		queryKey: queryKey,
		log:      *logger.Named("dedupe"),
		seen:     make(map[string]struct{}),
	}
}

// Merge filters lists down to records whose identity has not been seen yet,
// marking each survivor as seen. Order within each list is preserved
func (d *Deduper) Merge(ctx context.Context, lists ...[]domain.BusinessRecord) []domain.BusinessRecord {
	var out []domain.BusinessRecord
	for _, list := range lists {
		for _, rec := range list {
			if rec.Identity == "" {
				continue
			}
			if d.admit(ctx, rec.Identity) {
				out = append(out, rec)
			}
		}
	}
	return out
}

func (d *Deduper) admit(ctx context.Context, identity string) bool {
	d.mu.Lock()
	if _, dup := d.seen[identity]; dup {
		d.mu.Unlock()
		return false
	}
	d.seen[identity] = struct{}{}
	d.mu.Unlock()

	if d.scope != domain.ScopePersistent || d.cache == nil {
		return true
	}

	// Store errors degrade to invocation scope rather than dropping records
	reported, err := d.cache.WasReported(ctx, d.queryKey, identity)
	if err != nil {
		d.log.Warn().Err(err).Str("identity", identity).Msg("reported lookup failed")
		return true
	}
	return !reported
}

// Emitted records an emission for persistent scope; no-op otherwise
func (d *Deduper) Emitted(ctx context.Context, identity string) {
	if d.scope != domain.ScopePersistent || d.cache == nil {
		return
	}
	if err := d.cache.MarkReported(ctx, d.queryKey, identity); err != nil {
		d.log.Warn().Err(err).Str("identity", identity).Msg("mark reported failed")
	}
}

// Unique returns how many distinct identities this stream has seen
func (d *Deduper) Unique() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
