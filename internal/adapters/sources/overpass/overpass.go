// Package overpass is the structured-query adapter over the Overpass API
package overpass

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/categories"
	"webgap/internal/core/tiler"
	"webgap/internal/platform/logger"
)

const defaultBaseURL = "https://overpass-api.de/api/interpreter"

// Config configures the adapter
type Config struct {
	BaseURL    string
	MinSpacing time.Duration
	Timeout    time.Duration
}

// Adapter issues one Overpass QL query per tile, translating business types
// through the category vocabulary with a wildcard fallback
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
		cfg.MinSpacing = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second // overpass queries are slow
	}
	return &Adapter{
		base: cfg.BaseURL,
		c: sourcekit.NewClient("overpass", sourcekit.Options{
			MinSpacing: cfg.MinSpacing,
			Timeout:    cfg.Timeout,
		}),
		log: *logger.Named("overpass"),
	}
}

// Name implements sourcekit.Fetcher
func (a *Adapter) Name() string { return "overpass" }

type response struct {
	Elements []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center"`
	Tags map[string]string `json:"tags"`
}

// Fetch implements sourcekit.Fetcher
func (a *Adapter) Fetch(ctx context.Context, tile tiler.Tile, businessTypes []string) []sourcekit.Record {
	ql := BuildQuery(tile.Bounds, categories.OSMTagsFor(businessTypes))

	var resp response
	form := url.Values{"data": {ql}}
	err := a.c.PostForm(ctx, a.base, form, &resp)
	if err != nil {
		a.log.Warn().Err(err).Str("tile", tile.ID).Msg("overpass fetch failed")
		return nil
	}

	var out []sourcekit.Record
	for _, el := range resp.Elements {
		rec, ok := toRecord(el)
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// BuildQuery renders Overpass QL selecting nodes, ways and relations matching
// any of the tag selectors inside the bbox
func BuildQuery(b tiler.BBox, tags []string) string {
	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];(")
	bbox := fmt.Sprintf("(%f,%f,%f,%f)", b.South, b.West, b.North, b.East)
	for _, tag := range tags {
		sel := selector(tag)
		for _, kind := range []string{"node", "way", "relation"} {
			sb.WriteString(kind)
			sb.WriteString(sel)
			sb.WriteString(bbox)
			sb.WriteString(";")
		}
	}
	sb.WriteString(");out center 200;")
	return sb.String()
}

// selector turns "amenity=cafe" into ["amenity"="cafe"] and "shop=*" into ["shop"]
func selector(tag string) string {
	k, v, found := strings.Cut(tag, "=")
	if !found || v == "*" {
		return fmt.Sprintf("[%q]", k)
	}
	return fmt.Sprintf("[%q=%q]", k, v)
}

func toRecord(el element) (sourcekit.Record, bool) {
	name := el.Tags["name"]
	if name == "" {
		return sourcekit.Record{}, false
	}

	lat, lon := el.Lat, el.Lon
	if el.Center != nil {
		lat, lon = el.Center.Lat, el.Center.Lon
	}
	if lat == 0 && lon == 0 {
		// ways and relations without a computed center are unusable
		return sourcekit.Record{}, false
	}

	return sourcekit.Record{
		Identity: fmt.Sprintf("osm:%s:%d", el.Type, el.ID),
		Name:     name,
		Address:  address(el.Tags),
		Coords:   &sourcekit.Coords{Lat: lat, Lon: lon},
		Website:  website(el.Tags),
		Source:   "overpass",
	}, true
}

func website(tags map[string]string) string {
	if w := tags["website"]; w != "" {
		return w
	}
	return tags["contact:website"]
}

func address(tags map[string]string) string {
	parts := make([]string, 0, 4)
	if v := tags["addr:housenumber"]; v != "" {
		parts = append(parts, v)
	}
	if v := tags["addr:street"]; v != "" {
		parts = append(parts, v)
	}
	if v := tags["addr:city"]; v != "" {
		parts = append(parts, v)
	}
	if v := tags["addr:postcode"]; v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}
