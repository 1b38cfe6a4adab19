package sourcekit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetJSONDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"cafe luna"}`))
	}))
	defer srv.Close()

	c := NewClient("test", Options{})
	c.sleep = func(context.Context, time.Duration) {}

	var out struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "cafe luna" {
		t.Fatalf("decoded %q", out.Name)
	}
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("test", Options{MaxRetries: 3})
	c.sleep = func(context.Context, time.Duration) {}

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if !out.OK {
		t.Fatal("expected decoded payload after retries")
	}
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("test", Options{MaxRetries: 1})
	c.sleep = func(context.Context, time.Duration) {}

	var out map[string]any
	if err := c.GetJSON(context.Background(), srv.URL, &out); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestNonTransientStatusDoesNotRetry(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test", Options{MaxRetries: 3})
	c.sleep = func(context.Context, time.Duration) {}

	var out map[string]any
	if err := c.GetJSON(context.Background(), srv.URL, &out); err == nil {
		t.Fatal("expected error for 404")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestMinSpacingGate(t *testing.T) {
	clock := time.Unix(1000, 0)
	var slept []time.Duration

	c := NewClient("test", Options{MinSpacing: 100 * time.Millisecond})
	c.now = func() time.Time { return clock }
	c.sleep = func(_ context.Context, d time.Duration) {
		slept = append(slept, d)
		clock = clock.Add(d)
	}

	// first call through the gate never sleeps more than the full spacing
	c.gate(context.Background())
	first := len(slept)

	// immediate second call must wait the full spacing
	c.gate(context.Background())
	if len(slept) != first+1 {
		t.Fatalf("second gate call did not sleep")
	}
	if got := slept[len(slept)-1]; got != 100*time.Millisecond {
		t.Fatalf("slept %v, want 100ms", got)
	}

	// after the spacing has elapsed naturally the gate is free
	clock = clock.Add(150 * time.Millisecond)
	before := len(slept)
	c.gate(context.Background())
	if len(slept) != before {
		t.Fatalf("gate slept despite elapsed spacing")
	}
}

func TestGateHonorsCancelledContext(t *testing.T) {
	c := NewClient("test", Options{MinSpacing: time.Hour})
	c.lastReq = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	c.gate(ctx)
	if time.Since(start) > time.Second {
		t.Fatal("gate kept sleeping through a cancelled context")
	}
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("test", Options{})
	var out map[string]any
	if err := c.GetJSON(ctx, "http://127.0.0.1:0/never", &out); err == nil {
		t.Fatal("expected context error")
	}
}
