package gplaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"webgap/internal/core/tiler"
)

func testTile() tiler.Tile {
	return tiler.Tile{
		ID:     "t0",
		Center: tiler.Point{Lat: 40.0, Lon: -73.9},
		Bounds: tiler.BBox{West: -73.92, East: -73.88, North: 40.02, South: 39.98},
	}
}

func TestFetchPaginatesWithTokenDelay(t *testing.T) {
	var tokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens = append(tokens, r.URL.Query().Get("pagetoken"))
		resp := map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"place_id": "p" + r.URL.Query().Get("pagetoken"),
				"name":     "Biz",
				"vicinity": "Somewhere",
				"geometry": map[string]any{"location": map[string]any{"lat": 40.0, "lng": -73.9}},
			}},
		}
		if len(tokens) == 1 {
			resp["next_page_token"] = "tok2"
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Key: "k", MinSpacing: -1})
	var slept []time.Duration
	a.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }

	recs := a.Fetch(context.Background(), testTile(), []string{"cafe"})

	if len(tokens) != 2 {
		t.Fatalf("pages = %d, want 2", len(tokens))
	}
	if tokens[0] != "" || tokens[1] != "tok2" {
		t.Fatalf("tokens %v", tokens)
	}
	if len(slept) != 1 || slept[0] != pageTokenDelay {
		t.Fatalf("expected one %v token delay, got %v", pageTokenDelay, slept)
	}
	if len(recs) != 2 {
		t.Fatalf("records = %d, want 2", len(recs))
	}
	if recs[0].Identity != "gplaces:p" {
		t.Fatalf("identity %q", recs[0].Identity)
	}
	if recs[0].PlaceID == "" {
		t.Fatal("expected native place id on record")
	}
}

func TestFetchStopsPaginationOnCancel(t *testing.T) {
	var pages int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":          "OK",
			"next_page_token": "more",
			"results": []map[string]any{{
				"place_id": "p1",
				"name":     "Biz",
				"geometry": map[string]any{"location": map[string]any{"lat": 40.0, "lng": -73.9}},
			}},
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := New(Config{BaseURL: srv.URL, Key: "k", MinSpacing: -1})
	a.sleep = func(context.Context, time.Duration) { cancel() }

	recs := a.Fetch(ctx, testTile(), []string{"cafe"})

	// cancellation during the token delay keeps the first page's results but
	// never requests the next one
	if pages != 1 {
		t.Fatalf("pages = %d, want 1", pages)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
}

func TestFetchNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "REQUEST_DENIED"})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Key: "bad", MinSpacing: -1})
	if recs := a.Fetch(context.Background(), testTile(), []string{"cafe"}); len(recs) != 0 {
		t.Fatalf("expected no records, got %d", len(recs))
	}
}

func TestFindPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "OK",
			"candidates": []map[string]any{{"place_id": "ChIJabc"}},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Key: "k", MinSpacing: -1})
	id, err := a.FindPlace(context.Background(), "Cafe Luna 12 Main St")
	if err != nil {
		t.Fatalf("FindPlace: %v", err)
	}
	if id != "ChIJabc" {
		t.Fatalf("place id %q", id)
	}
}

func TestFindPlaceNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS"})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, Key: "k", MinSpacing: -1})
	if _, err := a.FindPlace(context.Background(), "ghost shop"); err == nil {
		t.Fatal("expected error")
	}
}

func TestWebsite(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		want    *string
		wantErr bool
	}{
		{"populated", `{"status":"OK","result":{"website":"https://x.example"}}`, strptr("https://x.example"), false},
		{"declared empty", `{"status":"OK","result":{"website":""}}`, strptr(""), false},
		{"absent field", `{"status":"OK","result":{}}`, nil, false},
		{"bad status", `{"status":"NOT_FOUND"}`, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			a := New(Config{BaseURL: srv.URL, Key: "k", MinSpacing: -1})
			got, err := a.Website(context.Background(), "ChIJabc")
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Website: %v", err)
			}
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("got %q want %q", *got, *tc.want)
			}
		})
	}
}

func strptr(s string) *string { return &s }
