package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"webgap/internal/core/tiler"
	"webgap/internal/platform/logger"
	"webgap/internal/services/discovery/domain"
)

// Config tunes one discovery pipeline
type Config struct {
	TileSizeKm            float64
	OverlapKm             float64
	MaxTilesPerInvocation int
	ResolverLimit         int
	DedupScope            domain.DedupScope
	HeartbeatEvery        time.Duration
}

// DefaultConfig matches the documented deployment defaults
func DefaultConfig() Config {
	return Config{
		TileSizeKm:            3,
		OverlapKm:             0.5,
		MaxTilesPerInvocation: 12,
		ResolverLimit:         4,
		DedupScope:            domain.ScopeInvocation,
		HeartbeatEvery:        15 * time.Second,
	}
}

// Service orchestrates one discovery stream: tiling, per-tile fan-out,
// dedup, governed resolution, and event emission
type Service struct {
	cfg      Config
	fetchers []domain.Fetcher
	resolver *Resolver
	cache    domain.CachePort
	audit    domain.AuditPort
	log      logger.Logger
	now      func() time.Time
}

// New wires the orchestrator. Fetchers run concurrently per tile in the
// order given; a nil audit disables lifecycle rows
func New(cfg Config, fetchers []domain.Fetcher, resolver *Resolver, cache domain.CachePort, audit domain.AuditPort) *Service {
	if cfg.MaxTilesPerInvocation < 1 {
		cfg.MaxTilesPerInvocation = 1
	}
	if cfg.ResolverLimit < 1 {
		cfg.ResolverLimit = 1
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 15 * time.Second
	}
	return &Service{
		cfg:      cfg,
		fetchers: fetchers,
		resolver: resolver,
		cache:    cache,
		audit:    audit,
		log:      *logger.Named("discovery"),
		now:      time.Now,
	}
}

// lockedEmitter serializes writes from the heartbeat ticker and the
// concurrent resolver goroutines onto one transport
type lockedEmitter struct {
	mu    sync.Mutex
	inner domain.Emitter
	err   error
}

func (e *lockedEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.err = e.inner.Emit(event, payload)
	return e.err
}

// Run executes one invocation and emits its event sequence. The returned
// error reports transport failure only; pipeline failures degrade to
// unknown results and never abort the stream
func (s *Service) Run(ctx context.Context, p domain.Params, sink domain.Emitter) (err error) {
	tiles := tiler.Build(p.Center, p.RadiusKm, s.cfg.TileSizeKm, s.cfg.OverlapKm)
	if len(tiles) == 0 {
		return sink.Emit("error", domain.ErrorEvent{Message: "no searchable area for the given radius"})
	}

	start := p.StartTile
	if start < 0 {
		start = 0
	}
	if start > len(tiles)-1 {
		start = len(tiles) - 1
	}
	end := start + s.cfg.MaxTilesPerInvocation
	if end > len(tiles) {
		end = len(tiles)
	}

	emit := &lockedEmitter{inner: sink}
	runID := uuid.NewString()
	startedAt := s.now()

	// A panic in the tile loop itself is the one abnormal way a stream ends;
	// it surfaces as a single error event, never as a dropped connection
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("run", runID).Msg("discovery run panicked")
			err = emit.Emit("error", domain.ErrorEvent{Message: "internal error; stream closed"})
		}
	}()

	if err := emit.Emit("metadata", domain.MetadataEvent{
		BusinessTypes:  p.BusinessTypes,
		Location:       p.Location,
		RadiusKm:       p.RadiusKm,
		TileCount:      len(tiles),
		StartTileIndex: start,
		Center:         p.Center,
		RunID:          runID,
	}); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.RunStarted(ctx, runID, p, len(tiles))
	}

	hbStop := make(chan struct{})
	var hbDone sync.WaitGroup
	hbDone.Add(1)
	go func() {
		defer hbDone.Done()
		t := time.NewTicker(s.cfg.HeartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-hbStop:
				return
			case <-t.C:
				_ = emit.Emit("heartbeat", domain.HeartbeatEvent{Timestamp: s.now().UTC().Format(time.RFC3339)})
			}
		}
	}()
	defer func() {
		close(hbStop)
		hbDone.Wait()
	}()

	dedupe := NewDeduper(s.cfg.DedupScope, s.cache, p.QueryKey())

	// tilesSearched is absolute across invocations: a resumed run continues
	// the count from its start cursor instead of restarting at zero
	var (
		found         int
		tilesSearched = start
		interrupted   = -1
	)

	for i := start; i < end; i++ {
		if ctx.Err() != nil {
			interrupted = i
			break
		}

		tile := tiles[i]
		if err := emit.Emit("tile", domain.TileEvent{ID: tile.ID, Bounds: tile.Bounds}); err != nil {
			return err
		}

		lists := s.fetchTile(ctx, tile, p.BusinessTypes)
		fresh := dedupe.Merge(ctx, lists...)
		s.log.Debug().
			Str("tile", tile.ID).
			Int("fresh", len(fresh)).
			Int("unique", dedupe.Unique()).
			Msg("tile fetched")

		var tileFound int
		var foundMu sync.Mutex
		ForEach(ctx, len(fresh), s.cfg.ResolverLimit, func(ctx context.Context, j int) {
			// A panicking resolution degrades to no contribution from this
			// business, same as any other upstream failure
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Str("identity", fresh[j].Identity).Msg("resolution panicked")
				}
			}()
			res := s.resolver.Resolve(ctx, fresh[j])
			if res.HasWebsite != domain.TristateFalse {
				return
			}

			ev := domain.BusinessEvent{
				Identity:   fresh[j].Identity,
				Name:       fresh[j].Name,
				Address:    fresh[j].Address,
				Coords:     fresh[j].Coords,
				HasWebsite: false,
				Source:     res.Source,
			}
			// Emit as soon as the resolver answers, not at tile end
			if emit.Emit("business", ev) == nil {
				foundMu.Lock()
				tileFound++
				foundMu.Unlock()
				dedupe.Emitted(ctx, fresh[j].Identity)
				if s.audit != nil {
					s.audit.BusinessFound(ctx, runID, ev)
				}
			}
		})

		found += tileFound

		// A tile interrupted mid-flight is incomplete; the cursor points back
		// at it so a resumed invocation re-processes it
		if ctx.Err() != nil {
			interrupted = i
			break
		}
		tilesSearched++

		if err := emit.Emit("progress", domain.ProgressEvent{
			TilesSearched:    tilesSearched,
			TotalTiles:       len(tiles),
			BusinessesFound:  found,
			UniqueBusinesses: dedupe.Unique(),
			ElapsedMs:        s.now().Sub(startedAt).Milliseconds(),
		}); err != nil {
			return err
		}
	}

	done := domain.DoneEvent{
		TotalFound:       found,
		UniqueBusinesses: dedupe.Unique(),
		TilesSearched:    tilesSearched,
		TotalTiles:       len(tiles),
	}
	switch {
	case interrupted >= 0:
		done.HasMore = true
		done.NextTileIndex = &interrupted
	case end < len(tiles):
		done.HasMore = true
		next := end
		done.NextTileIndex = &next
	}

	if s.audit != nil {
		s.audit.RunDone(ctx, runID, done)
	}
	return emit.Emit("done", done)
}

// fetchTile fans out every adapter concurrently and collects their lists.
// Adapter failures surface as empty lists, never as errors
func (s *Service) fetchTile(ctx context.Context, tile tiler.Tile, types []string) [][]domain.BusinessRecord {
	lists := make([][]domain.BusinessRecord, len(s.fetchers))
	var wg sync.WaitGroup
	for i, f := range s.fetchers {
		wg.Add(1)
		go func(i int, f domain.Fetcher) {
			defer wg.Done()
			// A panicking adapter contributes an empty list, same as any
			// other adapter failure
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Interface("panic", r).Str("adapter", f.Name()).Msg("adapter panicked")
				}
			}()
			lists[i] = f.Fetch(ctx, tile, types)
		}(i, f)
	}
	wg.Wait()
	return lists
}
