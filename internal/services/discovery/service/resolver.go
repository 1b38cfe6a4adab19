package service

import (
	"context"
	"net/url"
	"time"

	"webgap/internal/core/textnorm"
	perr "webgap/internal/platform/errors"
	"webgap/internal/platform/logger"
	"webgap/internal/services/discovery/domain"
)

// cacheTTL is how long a non-unknown cached check stays authoritative
const cacheTTL = 24 * time.Hour

// verifyGoal is the instruction sent with every page-interrogation request
const verifyGoal = "Open the business listing and report whether it links to a website."

// RetryPolicy bounds the page-interrogation retry loop. Backoff grows
// linearly with the attempt number so tests can inject a zero base
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// Delay returns the pause before the given retry attempt (1-based)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BackoffBase
}

// DefaultRetryPolicy matches production deployments
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, BackoffBase: 400 * time.Millisecond}
}

// Resolver decides website presence for one business record. Cheap sources
// first, the paid lookup and the automation agent only when nothing else
// answers
type Resolver struct {
	cache  domain.CachePort
	places domain.PlacesPort
	agent  domain.VerifierPort
	policy RetryPolicy
	log    logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// NewResolver wires a resolver; places may be nil when no credential is set
func NewResolver(cache domain.CachePort, places domain.PlacesPort, agent domain.VerifierPort, policy RetryPolicy) *Resolver {
	return &Resolver{
		cache:  cache,
		places: places,
		agent:  agent,
		policy: policy,
		log:    *logger.Named("resolver"),
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Resolve runs the decision procedure for one business
func (r *Resolver) Resolve(ctx context.Context, rec domain.BusinessRecord) domain.ResolutionResult {
	cached, wasCached := r.lookup(ctx, rec.Identity)
	if wasCached && cached.HasWebsite != domain.TristateUnknown && r.now().Sub(cached.CheckedAt) < cacheTTL {
		return domain.ResolutionResult{Identity: rec.Identity, HasWebsite: cached.HasWebsite, Source: domain.SourceCache}
	}

	if rec.Website != "" {
		r.persist(ctx, rec, domain.TristateTrue)
		return domain.ResolutionResult{Identity: rec.Identity, HasWebsite: domain.TristateTrue, Source: domain.SourceDeclared}
	}

	if r.places != nil {
		if res, ok := r.resolveViaPlaces(ctx, rec); ok {
			return res
		}
	}

	// Placeholder so concurrent resolutions of the same identity see it as
	// already tracked instead of stampeding the agent
	if !wasCached {
		r.persist(ctx, rec, domain.TristateUnknown)
	}

	return r.resolveViaAgent(ctx, rec)
}

func (r *Resolver) lookup(ctx context.Context, identity string) (domain.CacheEntry, bool) {
	e, err := r.cache.Get(ctx, identity)
	if err != nil {
		if !perr.IsCode(err, perr.ErrorCodeNotFound) {
			r.log.Warn().Err(err).Str("identity", identity).Msg("cache read failed")
		}
		return domain.CacheEntry{}, false
	}
	return e, true
}

func (r *Resolver) resolveViaPlaces(ctx context.Context, rec domain.BusinessRecord) (domain.ResolutionResult, bool) {
	placeID := rec.PlaceID
	if placeID == "" {
		// The text match always runs on the normalized name and address
		id, err := r.places.FindPlace(ctx, textnorm.Normalize(rec.Name+" "+rec.Address))
		if err != nil {
			return domain.ResolutionResult{}, false
		}
		placeID = id
	}

	website, err := r.places.Website(ctx, placeID)
	if err != nil || website == nil {
		return domain.ResolutionResult{}, false
	}

	// The details response carried the field, so its value is authoritative
	has := domain.TristateOf(*website != "")
	r.persist(ctx, rec, has)
	return domain.ResolutionResult{Identity: rec.Identity, HasWebsite: has, Source: domain.SourceVerified}, true
}

func (r *Resolver) resolveViaAgent(ctx context.Context, rec domain.BusinessRecord) domain.ResolutionResult {
	if r.agent == nil || !r.agent.Enabled() {
		return domain.ResolutionResult{Identity: rec.Identity, HasWebsite: domain.TristateUnknown, Source: domain.SourceUnresolved}
	}

	pageURL := mapSearchURL(rec)
	value := domain.TristateUnknown

	for attempt := 0; attempt <= r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			r.sleep(ctx, r.policy.Delay(attempt))
		}
		if ctx.Err() != nil {
			break
		}

		found, err := r.agent.CheckWebsite(ctx, pageURL, verifyGoal)
		if err != nil {
			// Indeterminate attempt; retry within budget
			r.log.Debug().Err(err).Str("identity", rec.Identity).Int("attempt", attempt).Msg("verification attempt failed")
			continue
		}

		// A well-formed answer is final either way
		value = domain.TristateOf(found)
		break
	}

	r.persist(ctx, rec, value)

	src := domain.SourceVerified
	if value == domain.TristateUnknown {
		src = domain.SourceUnresolved
	}
	return domain.ResolutionResult{Identity: rec.Identity, HasWebsite: value, Source: src}
}

func (r *Resolver) persist(ctx context.Context, rec domain.BusinessRecord, v domain.Tristate) {
	err := r.cache.Put(ctx, domain.CacheEntry{
		Identity:   rec.Identity,
		Name:       rec.Name,
		HasWebsite: v,
		CheckedAt:  r.now(),
	})
	if err != nil {
		r.log.Warn().Err(err).Str("identity", rec.Identity).Msg("cache write failed")
	}
}

// mapSearchURL builds the page the agent interrogates. The place identifier
// pins the exact listing when a source provided one
func mapSearchURL(rec domain.BusinessRecord) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("query", rec.Name+" "+rec.Address)
	if rec.PlaceID != "" {
		q.Set("query_place_id", rec.PlaceID)
	}
	return "https://www.google.com/maps/search/?" + q.Encode()
}
