// Package nominatim is the paginated keyword-search adapter over the
// Nominatim geocoder. It is also used to geocode the prompt location.
package nominatim

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/tiler"
	perr "webgap/internal/platform/errors"
	"webgap/internal/platform/logger"
)

const (
	defaultBaseURL = "https://nominatim.openstreetmap.org"
	pageSize       = 30
	maxPages       = 3
)

// Config configures the adapter
type Config struct {
	BaseURL    string
	MinSpacing time.Duration
	Timeout    time.Duration
}

// Adapter queries Nominatim keyword search scoped to a tile viewbox,
// paginating via exclude_place_ids until a short page signals exhaustion
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
		cfg.MinSpacing = time.Second // nominatim usage policy
	}
	return &Adapter{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		c: sourcekit.NewClient("nominatim", sourcekit.Options{
			MinSpacing: cfg.MinSpacing,
			Timeout:    cfg.Timeout,
		}),
		log: *logger.Named("nominatim"),
	}
}

// Name implements sourcekit.Fetcher
func (a *Adapter) Name() string { return "nominatim" }

type searchResult struct {
	PlaceID     int64             `json:"place_id"`
	OsmType     string            `json:"osm_type"`
	OsmID       int64             `json:"osm_id"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Name        string            `json:"name"`
	ExtraTags   map[string]string `json:"extratags"`
}

// Fetch implements sourcekit.Fetcher. Failures are logged and yield an empty
// list so one source outage never blocks the others.
func (a *Adapter) Fetch(ctx context.Context, tile tiler.Tile, businessTypes []string) []sourcekit.Record {
	var out []sourcekit.Record
	for _, bt := range businessTypes {
		recs, err := a.searchTile(ctx, tile, bt)
		if err != nil {
			a.log.Warn().Err(err).Str("tile", tile.ID).Str("type", bt).Msg("nominatim fetch failed")
			continue
		}
		out = append(out, recs...)
	}
	return out
}

func (a *Adapter) searchTile(ctx context.Context, tile tiler.Tile, businessType string) ([]sourcekit.Record, error) {
	var (
		out     []sourcekit.Record
		exclude []string
	)
	for page := 0; page < maxPages; page++ {
		q := url.Values{}
		q.Set("format", "jsonv2")
		q.Set("q", businessType)
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("extratags", "1")
		q.Set("bounded", "1")
		// viewbox is x1,y1,x2,y2 = west,north,east,south
		q.Set("viewbox", fmt.Sprintf("%f,%f,%f,%f",
			tile.Bounds.West, tile.Bounds.North, tile.Bounds.East, tile.Bounds.South))
		if len(exclude) > 0 {
			q.Set("exclude_place_ids", strings.Join(exclude, ","))
		}

		var results []searchResult
		if err := a.c.GetJSON(ctx, a.base+"/search?"+q.Encode(), &results); err != nil {
			return out, err
		}

		for _, r := range results {
			rec, ok := toRecord(r)
			if !ok {
				continue
			}
			out = append(out, rec)
			exclude = append(exclude, strconv.FormatInt(r.PlaceID, 10))
		}

		// a short page signals exhaustion
		if len(results) < pageSize {
			break
		}
	}
	return out, nil
}

func toRecord(r searchResult) (sourcekit.Record, bool) {
	if r.OsmType == "" || r.OsmID == 0 {
		return sourcekit.Record{}, false
	}
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)

	name := r.Name
	if name == "" {
		// display_name leads with the place name
		if i := strings.Index(r.DisplayName, ","); i > 0 {
			name = r.DisplayName[:i]
		} else {
			name = r.DisplayName
		}
	}
	if name == "" {
		return sourcekit.Record{}, false
	}

	rec := sourcekit.Record{
		Identity: fmt.Sprintf("osm:%s:%d", r.OsmType, r.OsmID),
		Name:     name,
		Address:  r.DisplayName,
		Website:  websiteTag(r.ExtraTags),
		Source:   "nominatim",
	}
	if errLat == nil && errLon == nil {
		rec.Coords = &sourcekit.Coords{Lat: lat, Lon: lon}
	}
	return rec, true
}

func websiteTag(tags map[string]string) string {
	if tags == nil {
		return ""
	}
	if w := tags["website"]; w != "" {
		return w
	}
	return tags["contact:website"]
}

// Geocode resolves a free-text location to a center point
func (a *Adapter) Geocode(ctx context.Context, location string) (tiler.Point, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", location)
	q.Set("limit", "1")

	var res []searchResult
	if err := a.c.GetJSON(ctx, a.base+"/search?"+q.Encode(), &res); err != nil {
		return tiler.Point{}, err
	}
	if len(res) == 0 {
		return tiler.Point{}, perr.InvalidArgf("location %q could not be geocoded", location)
	}
	lat, err := strconv.ParseFloat(res[0].Lat, 64)
	if err != nil {
		return tiler.Point{}, perr.Wrapf(err, perr.ErrorCodeJSON, "geocode lat")
	}
	lon, err := strconv.ParseFloat(res[0].Lon, 64)
	if err != nil {
		return tiler.Point{}, perr.Wrapf(err, perr.ErrorCodeJSON, "geocode lon")
	}
	return tiler.Point{Lat: lat, Lon: lon}, nil
}
