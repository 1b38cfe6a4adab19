// Package gplaces is the commercial places adapter. It is only wired when a
// credential is configured; without one its coverage is silently absent.
package gplaces

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	"webgap/internal/core/categories"
	"webgap/internal/core/tiler"
	perr "webgap/internal/platform/errors"
	"webgap/internal/platform/logger"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	// the provider mandates a delay before a next_page_token becomes valid
	pageTokenDelay = 2 * time.Second

	maxPages = 3
)

// Config configures the adapter
type Config struct {
	BaseURL    string
	Key        string
	MinSpacing time.Duration
	Timeout    time.Duration
}

// Adapter performs radius category search with continuation-token pagination
type Adapter struct {
	base  string
	key   string
	c     *sourcekit.Client
	log   logger.Logger
	sleep func(context.Context, time.Duration)
}

// New constructs the adapter; the caller must ensure the key is non-empty
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		key:  cfg.Key,
		c: sourcekit.NewClient("gplaces", sourcekit.Options{
			MinSpacing: cfg.MinSpacing,
			Timeout:    cfg.Timeout,
		}),
		log:   *logger.Named("gplaces"),
		sleep: sourcekit.SleepCtx,
	}
}

// Name implements sourcekit.Fetcher
func (a *Adapter) Name() string { return "gplaces" }

type nearbyResponse struct {
	Status        string        `json:"status"`
	NextPageToken string        `json:"next_page_token"`
	Results       []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID  string `json:"place_id"`
	Name     string `json:"name"`
	Vicinity string `json:"vicinity"`
	Website  string `json:"website"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// Fetch implements sourcekit.Fetcher
func (a *Adapter) Fetch(ctx context.Context, tile tiler.Tile, businessTypes []string) []sourcekit.Record {
	radiusM := tileRadiusMeters(tile)

	var out []sourcekit.Record
	token := ""
	for page := 0; page < maxPages; page++ {
		if token != "" {
			// next_page_token is not valid immediately
			a.sleep(ctx, pageTokenDelay)
			if ctx.Err() != nil {
				return out
			}
		}

		q := url.Values{}
		q.Set("key", a.key)
		if token != "" {
			q.Set("pagetoken", token)
		} else {
			q.Set("location", fmt.Sprintf("%f,%f", tile.Center.Lat, tile.Center.Lon))
			q.Set("radius", fmt.Sprintf("%d", radiusM))
			if t := categories.GPlacesTypeFor(businessTypes); t != "" {
				q.Set("type", t)
			}
			q.Set("keyword", strings.Join(businessTypes, " "))
		}

		var resp nearbyResponse
		if err := a.c.GetJSON(ctx, a.base+"/nearbysearch/json?"+q.Encode(), &resp); err != nil {
			a.log.Warn().Err(err).Str("tile", tile.ID).Msg("gplaces fetch failed")
			return out
		}
		if resp.Status != "OK" && resp.Status != "ZERO_RESULTS" {
			a.log.Warn().Str("status", resp.Status).Str("tile", tile.ID).Msg("gplaces non-ok status")
			return out
		}

		for _, r := range resp.Results {
			if r.PlaceID == "" || r.Name == "" {
				continue
			}
			out = append(out, sourcekit.Record{
				Identity: "gplaces:" + r.PlaceID,
				Name:     r.Name,
				Address:  r.Vicinity,
				Coords: &sourcekit.Coords{
					Lat: r.Geometry.Location.Lat,
					Lon: r.Geometry.Location.Lng,
				},
				Website: r.Website,
				PlaceID: r.PlaceID,
				Source:  "gplaces",
			})
		}

		token = resp.NextPageToken
		if token == "" {
			break
		}
	}
	return out
}

// tileRadiusMeters covers the tile with a circle through its corners
func tileRadiusMeters(tile tiler.Tile) int {
	corner := tiler.Point{Lat: tile.Bounds.North, Lon: tile.Bounds.East}
	km := tiler.DistanceKm(tile.Center, corner)
	m := int(math.Ceil(km * 1000))
	if m < 100 {
		m = 100
	}
	if m > 50000 {
		m = 50000 // provider ceiling
	}
	return m
}

type findPlaceResponse struct {
	Status     string `json:"status"`
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
}

// FindPlace resolves a place id from a name and address text match
func (a *Adapter) FindPlace(ctx context.Context, nameAndAddress string) (string, error) {
	q := url.Values{}
	q.Set("key", a.key)
	q.Set("input", nameAndAddress)
	q.Set("inputtype", "textquery")
	q.Set("fields", "place_id")

	var resp findPlaceResponse
	if err := a.c.GetJSON(ctx, a.base+"/findplacefromtext/json?"+q.Encode(), &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Candidates) == 0 {
		return "", perr.NotFoundf("no place match for %q", nameAndAddress)
	}
	return resp.Candidates[0].PlaceID, nil
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Website *string `json:"website"`
	} `json:"result"`
}

// Website fetches the declared website field for a place id.
// The pointer distinguishes "field absent" (nil) from "present but empty".
func (a *Adapter) Website(ctx context.Context, placeID string) (*string, error) {
	q := url.Values{}
	q.Set("key", a.key)
	q.Set("place_id", placeID)
	q.Set("fields", "website")

	var resp detailsResponse
	if err := a.c.GetJSON(ctx, a.base+"/details/json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, perr.NotFoundf("place details status %s", resp.Status)
	}
	// nil when the provider has no website field at all; the caller treats
	// that as non-authoritative and keeps resolving
	return resp.Result.Website, nil
}
