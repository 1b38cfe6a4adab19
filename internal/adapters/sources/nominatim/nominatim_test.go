package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"webgap/internal/core/tiler"
)

func page(n, offset int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		id := offset + i
		out = append(out, map[string]any{
			"place_id": id,
			"osm_type": "node",
			"osm_id":   id,
			"lat":      "40.01",
			"lon":      "-73.91",
			"name":     fmt.Sprintf("cafe %d", id),
		})
	}
	return out
}

func TestFetchPaginatesUntilShortPage(t *testing.T) {
	var excludes []string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		excludes = append(excludes, r.URL.Query().Get("exclude_place_ids"))
		var body []map[string]any
		if calls == 1 {
			body = page(pageSize, 0) // full page, keep going
		} else {
			body = page(3, pageSize) // short page, stop
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	recs := a.Fetch(context.Background(), tiler.Tile{ID: "t0"}, []string{"cafe"})

	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if len(recs) != pageSize+3 {
		t.Fatalf("records = %d, want %d", len(recs), pageSize+3)
	}
	if excludes[0] != "" {
		t.Fatalf("first page had exclusions %q", excludes[0])
	}
	if excludes[1] == "" {
		t.Fatal("second page missing exclude_place_ids")
	}
	if recs[0].Identity != "osm:node:0" {
		t.Fatalf("identity %q", recs[0].Identity)
	}
	if recs[0].Source != "nominatim" {
		t.Fatalf("source %q", recs[0].Source)
	}
	if recs[0].Coords == nil || recs[0].Coords.Lat != 40.01 {
		t.Fatalf("coords %+v", recs[0].Coords)
	}
}

func TestFetchFailureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	recs := a.Fetch(context.Background(), tiler.Tile{ID: "t0"}, []string{"cafe"})
	if len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "portland" {
			t.Errorf("q = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"place_id": 1, "osm_type": "relation", "osm_id": 42,
			"lat": "45.52", "lon": "-122.67", "name": "Portland",
		}})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	pt, err := a.Geocode(context.Background(), "portland")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if pt.Lat != 45.52 || pt.Lon != -122.67 {
		t.Fatalf("point %+v", pt)
	}
}

func TestGeocodeNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, MinSpacing: -1})
	if _, err := a.Geocode(context.Background(), "nowhere at all"); err == nil {
		t.Fatal("expected error for empty geocode result")
	}
}

func TestWebsiteTag(t *testing.T) {
	if got := websiteTag(map[string]string{"website": "https://a.example"}); got != "https://a.example" {
		t.Fatalf("got %q", got)
	}
	if got := websiteTag(map[string]string{"contact:website": "https://b.example"}); got != "https://b.example" {
		t.Fatalf("got %q", got)
	}
	if got := websiteTag(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}
