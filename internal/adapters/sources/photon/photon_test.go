package photon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"webgap/internal/core/tiler"
)

const sampleResponse = `{
  "features": [
    {"geometry": {"coordinates": [-73.9, 40.0]},
     "properties": {"osm_id": 11, "osm_type": "N", "name": "Sunrise Diner",
                    "street": "5th Ave", "housenumber": "101", "city": "New York"}},
    {"geometry": {"coordinates": [-73.91, 40.01]},
     "properties": {"osm_id": 0, "osm_type": "N", "name": "Broken"}},
    {"geometry": {"coordinates": []},
     "properties": {"osm_id": 22, "osm_type": "W", "name": "No Geometry Deli"}}
  ]
}`

func TestFetch(t *testing.T) {
	var bbox string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bbox = r.URL.Query().Get("bbox")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	tile := tiler.Tile{
		ID:     "t0",
		Bounds: tiler.BBox{West: -74.0, South: 39.9, East: -73.8, North: 40.1},
	}
	recs := a.Fetch(context.Background(), tile, []string{"diner"})

	if bbox == "" {
		t.Fatal("bbox param not sent")
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Identity != "photon:N:11" {
		t.Fatalf("identity %q", recs[0].Identity)
	}
	if recs[0].Address != "101 5th Ave New York" {
		t.Fatalf("address %q", recs[0].Address)
	}
	if recs[0].Coords == nil || recs[0].Coords.Lat != 40.0 || recs[0].Coords.Lon != -73.9 {
		t.Fatalf("coords %+v", recs[0].Coords)
	}
	// record without geometry keeps nil coords
	if recs[1].Coords != nil {
		t.Fatalf("expected nil coords, got %+v", recs[1].Coords)
	}
}

func TestFetchFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	if recs := a.Fetch(context.Background(), tiler.Tile{ID: "t0"}, []string{"diner"}); len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}
