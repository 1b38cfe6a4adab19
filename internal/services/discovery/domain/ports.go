package domain

import (
	"context"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/tiler"
)

// CachePort is the website-check cache and persistent dedup store
type CachePort interface {
	// Get returns the cached check for an identity; perr.ErrNotFound when absent
	Get(ctx context.Context, identity string) (CacheEntry, error)

	// Put upserts a check result
	Put(ctx context.Context, e CacheEntry) error

	// WasReported reports whether (queryKey, identity) was already emitted
	WasReported(ctx context.Context, queryKey, identity string) (bool, error)

	// MarkReported records an emission for persistent dedup
	MarkReported(ctx context.Context, queryKey, identity string) error
}

// AuditPort records run lifecycle rows for offline analysis. Implementations
// must be safe to call when the backing store is disabled
type AuditPort interface {
	RunStarted(ctx context.Context, runID string, p Params, tileCount int)
	BusinessFound(ctx context.Context, runID string, b BusinessEvent)
	RunDone(ctx context.Context, runID string, d DoneEvent)
}

// Geocoder resolves a free-text location to a point
type Geocoder interface {
	Geocode(ctx context.Context, location string) (tiler.Point, error)
}

// PlacesPort is the optional paid-lookup step of website resolution
type PlacesPort interface {
	FindPlace(ctx context.Context, query string) (string, error)

	// Website returns nil when the details response omits the field;
	// a non-nil result, including the empty string, is authoritative
	Website(ctx context.Context, placeID string) (*string, error)
}

// VerifierPort is the external agent that confirms a live website
type VerifierPort interface {
	Enabled() bool
	CheckWebsite(ctx context.Context, pageURL, goal string) (bool, error)
}

// Fetcher re-exports the source adapter port
type Fetcher = sourcekit.Fetcher

// Emitter delivers one named event to the client. Implementations flush
// eagerly so slow tiles never batch behind fast ones
type Emitter interface {
	Emit(event string, payload any) error
}
