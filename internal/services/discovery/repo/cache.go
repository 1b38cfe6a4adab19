// Package repo provides Postgres bindings for the discovery cache
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"webgap/internal/modkit/repokit"
	perr "webgap/internal/platform/errors"
	"webgap/internal/services/discovery/domain"
)

type (
	// PG is a Postgres binder for domain.CachePort
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

var _ domain.CachePort = (*queries)(nil)

// NewPG returns a Postgres binder for CachePort
func NewPG() repokit.Binder[domain.CachePort] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.CachePort { return &queries{q: q} }

// Get implements domain.CachePort
func (r *queries) Get(ctx context.Context, identity string) (domain.CacheEntry, error) {
	row := r.q.QueryRow(ctx, `
		SELECT business_key, business_name, has_website, checked_at
		FROM website_checks
		WHERE business_key = $1
	`, identity)

	var (
		e   domain.CacheEntry
		hw  string
		at  time.Time
		key string
	)
	if err := row.Scan(&key, &e.Name, &hw, &at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CacheEntry{}, perr.ErrNotFound
		}
		return domain.CacheEntry{}, fmt.Errorf("cache get %s: %w", identity, err)
	}
	e.Identity = key
	e.HasWebsite = domain.ParseTristate(hw)
	e.CheckedAt = at
	return e, nil
}

// Put implements domain.CachePort. Upsert so a later verified result
// replaces an earlier unknown placeholder
func (r *queries) Put(ctx context.Context, e domain.CacheEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO website_checks (business_key, business_name, has_website, checked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (business_key) DO UPDATE
		SET business_name = EXCLUDED.business_name,
		    has_website   = EXCLUDED.has_website,
		    checked_at    = EXCLUDED.checked_at
	`, e.Identity, e.Name, e.HasWebsite.String(), e.CheckedAt)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", e.Identity, err)
	}
	return nil
}

// WasReported implements domain.CachePort
func (r *queries) WasReported(ctx context.Context, queryKey, identity string) (bool, error) {
	row := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM reported_businesses
			WHERE query_key = $1 AND business_key = $2
		)
	`, queryKey, identity)

	var seen bool
	if err := row.Scan(&seen); err != nil {
		return false, fmt.Errorf("reported lookup: %w", err)
	}
	return seen, nil
}

// MarkReported implements domain.CachePort. Idempotent for replayed tiles
func (r *queries) MarkReported(ctx context.Context, queryKey, identity string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO reported_businesses (query_key, business_key, reported_at)
		VALUES ($1, $2, now())
		ON CONFLICT (query_key, business_key) DO NOTHING
	`, queryKey, identity)
	if err != nil {
		return fmt.Errorf("mark reported: %w", err)
	}
	return nil
}
