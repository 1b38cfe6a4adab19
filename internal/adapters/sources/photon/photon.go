// Package photon is the keyword-search adapter over the Photon geocoder
package photon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/tiler"
	"webgap/internal/platform/logger"
)

const (
	defaultBaseURL = "https://photon.komoot.io"
	resultLimit    = 50
)

// Config configures the adapter
type Config struct {
	BaseURL    string
	MinSpacing time.Duration
	Timeout    time.Duration
}

// Adapter performs keyword search scoped to the tile bounding box
type Adapter struct {
	base string
	c    *sourcekit.Client
	log  logger.Logger
}

// New constructs the adapter with its own rate-gated client
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MinSpacing == 0 {
		cfg.MinSpacing = 500 * time.Millisecond
	}
	return &Adapter{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		c: sourcekit.NewClient("photon", sourcekit.Options{
			MinSpacing: cfg.MinSpacing,
			Timeout:    cfg.Timeout,
		}),
		log: *logger.Named("photon"),
	}
}

// Name implements sourcekit.Fetcher
func (a *Adapter) Name() string { return "photon" }

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"` // lon, lat
	} `json:"geometry"`
	Properties struct {
		OsmID       int64  `json:"osm_id"`
		OsmType     string `json:"osm_type"` // N, W, R
		Name        string `json:"name"`
		Street      string `json:"street"`
		HouseNumber string `json:"housenumber"`
		City        string `json:"city"`
		Postcode    string `json:"postcode"`
	} `json:"properties"`
}

// Fetch implements sourcekit.Fetcher
func (a *Adapter) Fetch(ctx context.Context, tile tiler.Tile, businessTypes []string) []sourcekit.Record {
	var out []sourcekit.Record
	for _, bt := range businessTypes {
		q := url.Values{}
		q.Set("q", bt)
		q.Set("limit", fmt.Sprintf("%d", resultLimit))
		// bbox is minLon,minLat,maxLon,maxLat
		q.Set("bbox", fmt.Sprintf("%f,%f,%f,%f",
			tile.Bounds.West, tile.Bounds.South, tile.Bounds.East, tile.Bounds.North))

		var fc featureCollection
		if err := a.c.GetJSON(ctx, a.base+"/api?"+q.Encode(), &fc); err != nil {
			a.log.Warn().Err(err).Str("tile", tile.ID).Str("type", bt).Msg("photon fetch failed")
			continue
		}
		for _, f := range fc.Features {
			rec, ok := toRecord(f)
			if !ok {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

func toRecord(f feature) (sourcekit.Record, bool) {
	p := f.Properties
	if p.Name == "" || p.OsmID == 0 {
		return sourcekit.Record{}, false
	}

	rec := sourcekit.Record{
		Identity: fmt.Sprintf("photon:%s:%d", p.OsmType, p.OsmID),
		Name:     p.Name,
		Address:  address(p.HouseNumber, p.Street, p.City, p.Postcode),
		Source:   "photon",
	}
	if len(f.Geometry.Coordinates) == 2 {
		rec.Coords = &sourcekit.Coords{
			Lat: f.Geometry.Coordinates[1],
			Lon: f.Geometry.Coordinates[0],
		}
	}
	return rec, true
}

func address(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
