// Package domain defines the core types and interfaces for the discovery service
package domain

import (
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/tiler"
)

// BusinessRecord is one normalized business produced by a source adapter
type BusinessRecord = sourcekit.Record

// Tristate distinguishes "checked, no website" from "not yet checked"
type Tristate uint8

// Tristate values
const (
	TristateUnknown Tristate = iota
	TristateTrue
	TristateFalse
)

// String renders the wire form used in cache rows and events
func (t Tristate) String() string {
	switch t {
	case TristateTrue:
		return "true"
	case TristateFalse:
		return "false"
	default:
		return "unknown"
	}
}

// ParseTristate maps the wire form back; anything unrecognized is unknown
func ParseTristate(s string) Tristate {
	switch s {
	case "true":
		return TristateTrue
	case "false":
		return TristateFalse
	default:
		return TristateUnknown
	}
}

// TristateOf lifts a plain bool
func TristateOf(b bool) Tristate {
	if b {
		return TristateTrue
	}
	return TristateFalse
}

// CacheEntry is one row of the website-check cache, owned by the cache store
type CacheEntry struct {
	Identity   string
	Name       string
	HasWebsite Tristate
	CheckedAt  time.Time
}

// ResolutionSource explains why a has-website value was produced
type ResolutionSource string

// Resolution sources
const (
	SourceCache      ResolutionSource = "cache"
	SourceDeclared   ResolutionSource = "declared"
	SourceVerified   ResolutionSource = "verified"
	SourceUnresolved ResolutionSource = "unresolved"
)

// ResolutionResult is the per-business outcome of the website resolver
type ResolutionResult struct {
	Identity   string
	HasWebsite Tristate
	Source     ResolutionSource
}

// DedupScope selects where the seen-identity set lives
type DedupScope string

// Dedup scopes
const (
	// ScopeInvocation resets the seen-set per invocation; a resumed run may
	// re-emit a business already reported earlier (at-least-once delivery)
	ScopeInvocation DedupScope = "invocation"

	// ScopePersistent checks a persisted (query key, identity) set before
	// emission so resumes never re-report
	ScopePersistent DedupScope = "persistent"
)

// Params is one validated discovery invocation
type Params struct {
	BusinessTypes []string
	Location      string
	Center        tiler.Point
	RadiusKm      float64

	// StartTile is the clamped resume cursor
	StartTile int
}

// QueryKey identifies the logical query across invocations for persistent dedup
func (p Params) QueryKey() string {
	key := p.Location
	for _, t := range p.BusinessTypes {
		key += "|" + t
	}
	return key
}

// Event payloads, named after their SSE event types

// MetadataEvent opens every stream
type MetadataEvent struct {
	BusinessTypes  []string    `json:"businessTypes"`
	Location       string      `json:"location"`
	RadiusKm       float64     `json:"radiusKm"`
	TileCount      int         `json:"tileCount"`
	StartTileIndex int         `json:"startTileIndex"`
	Center         tiler.Point `json:"center"`
	RunID          string      `json:"runId"`
}

// TileEvent announces one tile starting
type TileEvent struct {
	ID     string     `json:"id"`
	Bounds tiler.BBox `json:"bounds"`
}

// BusinessEvent reports one business resolved to no website
type BusinessEvent struct {
	Identity   string            `json:"identity"`
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	Coords     *sourcekit.Coords `json:"coords,omitempty"`
	HasWebsite bool              `json:"hasWebsite"`
	Source     ResolutionSource  `json:"source"`
}

// ProgressEvent carries running counts after each tile
type ProgressEvent struct {
	TilesSearched    int   `json:"tilesSearched"`
	TotalTiles       int   `json:"totalTiles"`
	BusinessesFound  int   `json:"businessesFound"`
	UniqueBusinesses int   `json:"uniqueBusinesses"`
	ElapsedMs        int64 `json:"elapsedMs"`
}

// HeartbeatEvent keeps the transport alive
type HeartbeatEvent struct {
	Timestamp string `json:"timestamp"`
}

// DoneEvent terminates every successful stream
type DoneEvent struct {
	TotalFound       int  `json:"totalFound"`
	UniqueBusinesses int  `json:"uniqueBusinesses"`
	TilesSearched    int  `json:"tilesSearched"`
	TotalTiles       int  `json:"totalTiles"`
	HasMore          bool `json:"hasMore"`
	NextTileIndex    *int `json:"nextTileIndex"`
}

// ErrorEvent is the single abnormal stream terminator
type ErrorEvent struct {
	Message string `json:"message"`
}
