// Package sourcekit provides the shared contract and resilient HTTP plumbing
// for the business-data source adapters
package sourcekit

import (
	"context"

	"webgap/internal/core/tiler"
)

// Coords is a nullable coordinate pair carried on a Record
type Coords struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Record is one normalized business returned by a source adapter.
// Identity is provider-namespaced; the same physical business surfaced by two
// providers carries two distinct identities and is not cross-deduplicated.
type Record struct {
	Identity string  `json:"identity"`
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Coords   *Coords `json:"coords,omitempty"`

	// Website is the provider-declared website hint, empty when absent
	Website string `json:"website,omitempty"`

	// PlaceID is the commercial provider's native place id when known
	PlaceID string `json:"-"`

	// Source names the adapter that produced the record
	Source string `json:"source"`
}

// Fetcher is the polymorphic adapter contract. Implementations own their rate
// gate and failure policy: any upstream failure is logged and yields an empty
// list, never an error to the caller.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, tile tiler.Tile, businessTypes []string) []Record
}
