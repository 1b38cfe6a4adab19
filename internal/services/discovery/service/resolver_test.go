package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	perr "webgap/internal/platform/errors"
	"webgap/internal/services/discovery/domain"
)

type memCache struct {
	mu       sync.Mutex
	entries  map[string]domain.CacheEntry
	reported map[string]bool
	gets     int
	puts     int
	putErr   error
}

func newMemCache() *memCache {
	return &memCache{
		entries:  make(map[string]domain.CacheEntry),
		reported: make(map[string]bool),
	}
}

func (c *memCache) Get(_ context.Context, identity string) (domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	e, ok := c.entries[identity]
	if !ok {
		return domain.CacheEntry{}, perr.ErrNotFound
	}
	return e, nil
}

func (c *memCache) Put(_ context.Context, e domain.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[e.Identity] = e
	return nil
}

func (c *memCache) WasReported(_ context.Context, queryKey, identity string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reported[queryKey+"/"+identity], nil
}

func (c *memCache) MarkReported(_ context.Context, queryKey, identity string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported[queryKey+"/"+identity] = true
	return nil
}

type agentStep struct {
	found bool
	err   error
}

type fakeAgent struct {
	mu    sync.Mutex
	steps []agentStep
	calls int
}

func (a *fakeAgent) Enabled() bool { return true }

func (a *fakeAgent) CheckWebsite(context.Context, string, string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.calls
	a.calls++
	if i >= len(a.steps) {
		i = len(a.steps) - 1
	}
	return a.steps[i].found, a.steps[i].err
}

type fakePlaces struct {
	findID    string
	findErr   error
	lastQuery string
	website   *string
	webErr    error
	calls     int
}

func (p *fakePlaces) FindPlace(_ context.Context, query string) (string, error) {
	p.calls++
	p.lastQuery = query
	return p.findID, p.findErr
}

func (p *fakePlaces) Website(context.Context, string) (*string, error) {
	p.calls++
	return p.website, p.webErr
}

func zeroBackoff() RetryPolicy { return RetryPolicy{MaxAttempts: 2, BackoffBase: 0} }

func newTestResolver(cache domain.CachePort, places domain.PlacesPort, agent domain.VerifierPort) *Resolver {
	r := NewResolver(cache, places, agent, zeroBackoff())
	r.sleep = func(context.Context, time.Duration) {}
	return r
}

func rec(identity, name string) domain.BusinessRecord {
	return domain.BusinessRecord{Identity: identity, Name: name, Address: "1 Main St"}
}

func TestResolveCacheHitSkipsNetwork(t *testing.T) {
	cache := newMemCache()
	cache.entries["osm:node:1"] = domain.CacheEntry{
		Identity:   "osm:node:1",
		HasWebsite: domain.TristateFalse,
		CheckedAt:  time.Now().Add(-1 * time.Hour),
	}
	agent := &fakeAgent{steps: []agentStep{{found: true}}}
	places := &fakePlaces{}
	r := newTestResolver(cache, places, agent)

	res := r.Resolve(context.Background(), rec("osm:node:1", "Bakery"))
	if res.Source != domain.SourceCache || res.HasWebsite != domain.TristateFalse {
		t.Fatalf("res = %+v", res)
	}
	if agent.calls != 0 || places.calls != 0 {
		t.Errorf("network calls made on cache hit: agent=%d places=%d", agent.calls, places.calls)
	}
}

func TestResolveCacheFreshnessBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		age     time.Duration
		wantSrc domain.ResolutionSource
	}{
		{"just inside", 24*time.Hour - time.Minute, domain.SourceCache},
		{"just expired", 24*time.Hour + time.Second, domain.SourceVerified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := newMemCache()
			cache.entries["osm:node:2"] = domain.CacheEntry{
				Identity:   "osm:node:2",
				HasWebsite: domain.TristateFalse,
				CheckedAt:  now.Add(-tc.age),
			}
			r := newTestResolver(cache, nil, &fakeAgent{steps: []agentStep{{found: false}}})
			r.now = func() time.Time { return now }

			res := r.Resolve(context.Background(), rec("osm:node:2", "Bakery"))
			if res.Source != tc.wantSrc {
				t.Fatalf("source = %s, want %s", res.Source, tc.wantSrc)
			}
		})
	}
}

func TestResolveCachedUnknownNotAuthoritative(t *testing.T) {
	cache := newMemCache()
	cache.entries["osm:node:3"] = domain.CacheEntry{
		Identity:   "osm:node:3",
		HasWebsite: domain.TristateUnknown,
		CheckedAt:  time.Now(),
	}
	agent := &fakeAgent{steps: []agentStep{{found: true}}}
	r := newTestResolver(cache, nil, agent)

	res := r.Resolve(context.Background(), rec("osm:node:3", "Bakery"))
	if res.Source != domain.SourceVerified || res.HasWebsite != domain.TristateTrue {
		t.Fatalf("res = %+v", res)
	}
	if agent.calls != 1 {
		t.Errorf("agent calls = %d, want 1", agent.calls)
	}
}

func TestResolveDeclaredWebsite(t *testing.T) {
	cache := newMemCache()
	agent := &fakeAgent{steps: []agentStep{{found: false}}}
	r := newTestResolver(cache, nil, agent)

	b := rec("photon:N:9", "Salon")
	b.Website = "https://salon.example"
	res := r.Resolve(context.Background(), b)

	if res.Source != domain.SourceDeclared || res.HasWebsite != domain.TristateTrue {
		t.Fatalf("res = %+v", res)
	}
	if agent.calls != 0 {
		t.Errorf("agent calls = %d, want 0", agent.calls)
	}
	if got := cache.entries["photon:N:9"].HasWebsite; got != domain.TristateTrue {
		t.Errorf("persisted = %v, want true", got)
	}
}

func TestResolvePlacesAuthoritative(t *testing.T) {
	empty := ""
	populated := "https://shop.example"

	cases := []struct {
		name     string
		website  *string
		wantHas  domain.Tristate
		wantSrc  domain.ResolutionSource
		wantCall int
	}{
		{"populated", &populated, domain.TristateTrue, domain.SourceVerified, 0},
		{"declared empty", &empty, domain.TristateFalse, domain.SourceVerified, 0},
		{"field absent", nil, domain.TristateFalse, domain.SourceVerified, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := newMemCache()
			agent := &fakeAgent{steps: []agentStep{{found: false}}}
			places := &fakePlaces{findID: "pid-1", website: tc.website}
			r := newTestResolver(cache, places, agent)

			res := r.Resolve(context.Background(), rec("osm:way:8", "Shop"))
			if res.HasWebsite != tc.wantHas || res.Source != tc.wantSrc {
				t.Fatalf("res = %+v", res)
			}
			if agent.calls != tc.wantCall {
				t.Errorf("agent calls = %d, want %d", agent.calls, tc.wantCall)
			}
		})
	}
}

func TestResolvePlacesNormalizesLookupQuery(t *testing.T) {
	website := "https://brioche.example"
	places := &fakePlaces{findID: "pid-2", website: &website}
	r := newTestResolver(newMemCache(), places, &fakeAgent{steps: []agentStep{{found: false}}})

	b := domain.BusinessRecord{Identity: "osm:node:12", Name: "Café  Brioche", Address: "Hauptstraße 1"}
	res := r.Resolve(context.Background(), b)
	if res.Source != domain.SourceVerified {
		t.Fatalf("res = %+v", res)
	}
	if places.lastQuery != "café brioche hauptstrasse 1" {
		t.Errorf("lookup query = %q, want normalized form", places.lastQuery)
	}
}

func TestResolveAgentRetriesIndeterminateOnly(t *testing.T) {
	t.Run("transient then answer", func(t *testing.T) {
		agent := &fakeAgent{steps: []agentStep{
			{err: errors.New("timeout")},
			{found: true},
		}}
		r := newTestResolver(newMemCache(), nil, agent)

		res := r.Resolve(context.Background(), rec("osm:node:5", "Cafe"))
		if res.HasWebsite != domain.TristateTrue || res.Source != domain.SourceVerified {
			t.Fatalf("res = %+v", res)
		}
		if agent.calls != 2 {
			t.Errorf("agent calls = %d, want 2", agent.calls)
		}
	})

	t.Run("clean false is final", func(t *testing.T) {
		agent := &fakeAgent{steps: []agentStep{{found: false}}}
		r := newTestResolver(newMemCache(), nil, agent)

		res := r.Resolve(context.Background(), rec("osm:node:6", "Cafe"))
		if res.HasWebsite != domain.TristateFalse || res.Source != domain.SourceVerified {
			t.Fatalf("res = %+v", res)
		}
		if agent.calls != 1 {
			t.Errorf("agent calls = %d, want 1 (no retry on clean false)", agent.calls)
		}
	})

	t.Run("exhausted stays unknown", func(t *testing.T) {
		cache := newMemCache()
		agent := &fakeAgent{steps: []agentStep{{err: errors.New("boom")}}}
		r := newTestResolver(cache, nil, agent)

		res := r.Resolve(context.Background(), rec("osm:node:7", "Cafe"))
		if res.HasWebsite != domain.TristateUnknown || res.Source != domain.SourceUnresolved {
			t.Fatalf("res = %+v", res)
		}
		if agent.calls != 3 {
			t.Errorf("agent calls = %d, want 3 (initial + 2 retries)", agent.calls)
		}
		if got := cache.entries["osm:node:7"].HasWebsite; got != domain.TristateUnknown {
			t.Errorf("persisted = %v, want unknown", got)
		}
	})
}

func TestResolveCacheWriteFailureSwallowed(t *testing.T) {
	cache := newMemCache()
	cache.putErr = errors.New("pg down")
	r := newTestResolver(cache, nil, &fakeAgent{steps: []agentStep{{found: true}}})

	res := r.Resolve(context.Background(), rec("osm:node:10", "Gym"))
	if res.HasWebsite != domain.TristateTrue || res.Source != domain.SourceVerified {
		t.Fatalf("res = %+v, want in-memory result despite cache failure", res)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BackoffBase: 400 * time.Millisecond}
	if p.Delay(1) != 400*time.Millisecond || p.Delay(2) != 800*time.Millisecond {
		t.Errorf("delays = %v, %v", p.Delay(1), p.Delay(2))
	}
}
