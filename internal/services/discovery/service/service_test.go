package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"webgap/internal/core/tiler"
	"webgap/internal/services/discovery/domain"
)

type emitted struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{event, payload})
	return nil
}

func (e *fakeEmitter) named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

type scriptedFetcher struct {
	mu     sync.Mutex
	byTile map[string][]domain.BusinessRecord
	calls  int
	onCall func(n int)
}

func (f *scriptedFetcher) Name() string { return "scripted" }

func (f *scriptedFetcher) Fetch(_ context.Context, tile tiler.Tile, _ []string) []domain.BusinessRecord {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall(n)
	}
	return f.byTile[tile.ID]
}

func testParams() domain.Params {
	return domain.Params{
		BusinessTypes: []string{"bakery"},
		Location:      "hamburg",
		Center:        tiler.Point{Lat: 53.55, Lon: 10.0},
		RadiusKm:      2,
	}
}

func testConfig(maxTiles int) Config {
	cfg := DefaultConfig()
	cfg.MaxTilesPerInvocation = maxTiles
	cfg.HeartbeatEvery = time.Hour
	return cfg
}

func newTestService(cfg Config, fetchers ...domain.Fetcher) (*Service, *memCache) {
	cache := newMemCache()
	resolver := newTestResolver(cache, nil, &fakeAgent{steps: []agentStep{{found: false}}})
	return New(cfg, fetchers, resolver, cache, nil), cache
}

func TestRunTwoTilesDeduplicatesAcrossTiles(t *testing.T) {
	a := domain.BusinessRecord{Identity: "osm:node:1", Name: "A"}
	b := domain.BusinessRecord{Identity: "osm:node:2", Name: "B"}

	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {a, b},
		"t1": {a, b},
	}}
	svc, _ := newTestService(testConfig(2), fetcher)

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := len(sink.named("metadata")); got != 1 {
		t.Fatalf("metadata events = %d", got)
	}
	if got := len(sink.named("tile")); got != 2 {
		t.Errorf("tile events = %d, want 2", got)
	}

	seen := map[string]bool{}
	for _, ev := range sink.named("business") {
		be := ev.payload.(domain.BusinessEvent)
		if seen[be.Identity] {
			t.Errorf("identity %s emitted twice", be.Identity)
		}
		seen[be.Identity] = true
		if be.HasWebsite {
			t.Errorf("business %s emitted with hasWebsite=true", be.Identity)
		}
	}
	if len(seen) != 2 {
		t.Errorf("unique businesses emitted = %d, want 2", len(seen))
	}

	progress := sink.named("progress")
	if len(progress) != 2 {
		t.Fatalf("progress events = %d, want 2", len(progress))
	}
	last := progress[1].payload.(domain.ProgressEvent)
	if last.UniqueBusinesses != 2 || last.BusinessesFound != 2 {
		t.Errorf("final progress = %+v", last)
	}

	dones := sink.named("done")
	if len(dones) != 1 {
		t.Fatalf("done events = %d", len(dones))
	}
	done := dones[0].payload.(domain.DoneEvent)
	if done.TotalFound != 2 || done.TilesSearched != 2 || done.UniqueBusinesses != 2 {
		t.Errorf("done = %+v", done)
	}
	if !done.HasMore || done.NextTileIndex == nil || *done.NextTileIndex != 2 {
		t.Errorf("cursor = %+v, want hasMore with next tile 2", done)
	}
}

func TestRunDeclaredWebsiteSuppressed(t *testing.T) {
	a := domain.BusinessRecord{Identity: "osm:node:1", Name: "A"}
	b := domain.BusinessRecord{Identity: "osm:node:2", Name: "B", Website: "http://x.com"}

	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {a, b},
		"t1": {a},
	}}
	svc, _ := newTestService(testConfig(2), fetcher)

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	businesses := sink.named("business")
	if len(businesses) != 1 {
		t.Fatalf("business events = %d, want only the website-less one", len(businesses))
	}
	be := businesses[0].payload.(domain.BusinessEvent)
	if be.Identity != "osm:node:1" {
		t.Errorf("emitted %s, want osm:node:1", be.Identity)
	}

	progress := sink.named("progress")
	last := progress[len(progress)-1].payload.(domain.ProgressEvent)
	if last.UniqueBusinesses != 2 {
		t.Errorf("uniqueBusinesses = %d, want 2 (both seen, one reported)", last.UniqueBusinesses)
	}
	done := sink.named("done")[0].payload.(domain.DoneEvent)
	if done.TotalFound != 1 {
		t.Errorf("totalFound = %d, want 1", done.TotalFound)
	}
	if done.UniqueBusinesses != 2 {
		t.Errorf("done uniqueBusinesses = %d, want 2 (both seen, one reported)", done.UniqueBusinesses)
	}
}

func TestRunEmitsEventsInOrder(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {{Identity: "osm:node:1", Name: "A"}},
	}}
	svc, _ := newTestService(testConfig(1), fetcher)

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"metadata", "tile", "business", "progress", "done"}
	if len(sink.events) != len(want) {
		t.Fatalf("events = %d, want %d", len(sink.events), len(want))
	}
	for i, ev := range sink.events {
		if ev.event != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, ev.event, want[i])
		}
	}
}

func TestRunCancellationStopsBetweenTiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := &scriptedFetcher{
		byTile: map[string][]domain.BusinessRecord{},
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	svc, _ := newTestService(testConfig(5), fetcher)

	sink := &fakeEmitter{}
	if err := svc.Run(ctx, testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// tile 0 completed; tile 1 was interrupted and must be re-processed
	if got := len(sink.named("tile")); got != 2 {
		t.Errorf("tile events = %d, want 2 (no tiles after the interrupted one)", got)
	}
	done := sink.named("done")[0].payload.(domain.DoneEvent)
	if done.TilesSearched != 1 {
		t.Errorf("tilesSearched = %d, want 1", done.TilesSearched)
	}
	if !done.HasMore || done.NextTileIndex == nil || *done.NextTileIndex != 1 {
		t.Errorf("done = %+v, want cursor back at the interrupted tile 1", done)
	}
}

func TestRunClampsCursor(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{}}
	svc, _ := newTestService(testConfig(50), fetcher)

	p := testParams()
	p.StartTile = 10_000

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), p, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	meta := sink.named("metadata")[0].payload.(domain.MetadataEvent)
	if meta.StartTileIndex != meta.TileCount-1 {
		t.Errorf("start = %d, want clamped to %d", meta.StartTileIndex, meta.TileCount-1)
	}
	done := sink.named("done")[0].payload.(domain.DoneEvent)
	if done.HasMore || done.TilesSearched != meta.TileCount {
		t.Errorf("done = %+v, want final single-tile pass covering all %d tiles", done, meta.TileCount)
	}
}

func TestRunResumeReportsAbsoluteProgress(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{}}
	svc, _ := newTestService(testConfig(2), fetcher)

	p := testParams()
	p.StartTile = 2

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), p, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	progress := sink.named("progress")
	if len(progress) != 2 {
		t.Fatalf("progress events = %d, want 2", len(progress))
	}
	for i, want := range []int{3, 4} {
		if got := progress[i].payload.(domain.ProgressEvent).TilesSearched; got != want {
			t.Errorf("progress[%d] tilesSearched = %d, want absolute %d", i, got, want)
		}
	}
	done := sink.named("done")[0].payload.(domain.DoneEvent)
	if done.TilesSearched != 4 {
		t.Errorf("done tilesSearched = %d, want 4", done.TilesSearched)
	}
	if !done.HasMore || done.NextTileIndex == nil || *done.NextTileIndex != 4 {
		t.Errorf("done = %+v, want cursor at tile 4", done)
	}
}

func TestRunZeroRadiusEmitsError(t *testing.T) {
	svc, _ := newTestService(testConfig(1), &scriptedFetcher{})

	p := testParams()
	p.RadiusKm = 0

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), p, sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := len(sink.named("error")); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
}

type panickyFetcher struct{}

func (panickyFetcher) Name() string { return "panicky" }

func (panickyFetcher) Fetch(context.Context, tiler.Tile, []string) []domain.BusinessRecord {
	panic("adapter exploded")
}

func TestRunAdapterPanicIsolated(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {{Identity: "osm:node:1", Name: "A"}},
	}}
	svc, _ := newTestService(testConfig(1), fetcher, panickyFetcher{})

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// the healthy adapter's business still comes through
	if got := len(sink.named("business")); got != 1 {
		t.Errorf("business events = %d, want 1", got)
	}
	if got := len(sink.named("error")); got != 0 {
		t.Errorf("error events = %d, want 0", got)
	}
	if got := len(sink.named("done")); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
}

type panickyAgent struct{}

func (panickyAgent) Enabled() bool { return true }

func (panickyAgent) CheckWebsite(context.Context, string, string) (bool, error) {
	panic("browser crashed")
}

func TestRunResolverPanicIsolated(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {{Identity: "osm:node:1", Name: "A"}},
	}}
	cache := newMemCache()
	resolver := newTestResolver(cache, nil, panickyAgent{})
	svc := New(testConfig(1), []domain.Fetcher{fetcher}, resolver, cache, nil)

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// the business contributes nothing, the stream still completes
	if got := len(sink.named("business")); got != 0 {
		t.Errorf("business events = %d, want 0", got)
	}
	if got := len(sink.named("done")); got != 1 {
		t.Errorf("done events = %d, want 1", got)
	}
}

type panickyAudit struct{}

func (panickyAudit) RunStarted(context.Context, string, domain.Params, int) { panic("audit down") }

func (panickyAudit) BusinessFound(context.Context, string, domain.BusinessEvent) {}

func (panickyAudit) RunDone(context.Context, string, domain.DoneEvent) {}

func TestRunLoopPanicEmitsErrorEvent(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{}}
	cache := newMemCache()
	resolver := newTestResolver(cache, nil, &fakeAgent{steps: []agentStep{{found: false}}})
	svc := New(testConfig(1), []domain.Fetcher{fetcher}, resolver, cache, panickyAudit{})

	sink := &fakeEmitter{}
	if err := svc.Run(context.Background(), testParams(), sink); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := len(sink.named("error")); got != 1 {
		t.Errorf("error events = %d, want 1", got)
	}
	if got := len(sink.named("done")); got != 0 {
		t.Errorf("done events = %d, want none after abnormal end", got)
	}
}

func TestRunPersistsResolution(t *testing.T) {
	fetcher := &scriptedFetcher{byTile: map[string][]domain.BusinessRecord{
		"t0": {{Identity: "osm:node:1", Name: "A"}},
	}}
	svc, cache := newTestService(testConfig(1), fetcher)

	if err := svc.Run(context.Background(), testParams(), &fakeEmitter{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := cache.entries["osm:node:1"].HasWebsite; got != domain.TristateFalse {
		t.Errorf("cached value = %v, want false", got)
	}
}
