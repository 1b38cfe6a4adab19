// Package module wires discovery into the API using modkit
package module

import (
	"net/http"
	"time"

	modkit "webgap/internal/modkit"
	"webgap/internal/modkit/httpkit"
	str "webgap/internal/platform/strings"

	"webgap/internal/adapters/sources/gplaces"
	"webgap/internal/adapters/sources/nominatim"
	"webgap/internal/adapters/sources/overpass"
	"webgap/internal/adapters/sources/photon"
	"webgap/internal/adapters/verify/agent"
	"webgap/internal/services/discovery/domain"
	discoveryhttp "webgap/internal/services/discovery/http"
	discoveryrepo "webgap/internal/services/discovery/repo"
	discoverysvc "webgap/internal/services/discovery/service"
)

// Module implements the modkit.Module interface
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(http.Handler) http.Handler
	ports     any
	swaggerOn bool

	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *discoverysvc.Service
}

// Ports exposes the orchestrator to sibling modules
type Ports struct {
	Runner discoveryhttp.Runner
}

// New constructs a discovery module from environment-driven configuration
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("discovery"), modkit.WithPrefix("/discover")}, opts...)...)

	dcfg := deps.Cfg.Prefix("DISCOVERY_")
	scfg := deps.Cfg.Prefix("SOURCE_")
	acfg := deps.Cfg.Prefix("AGENT_")

	nom := nominatim.New(nominatim.Config{
		BaseURL:    scfg.MayString("NOMINATIM_URL", ""),
		MinSpacing: scfg.MayDuration("NOMINATIM_SPACING", 0),
	})

	fetchers := []domain.Fetcher{
		nom,
		overpass.New(overpass.Config{
			BaseURL:    scfg.MayString("OVERPASS_URL", ""),
			MinSpacing: scfg.MayDuration("OVERPASS_SPACING", 0),
		}),
		photon.New(photon.Config{
			BaseURL:    scfg.MayString("PHOTON_URL", ""),
			MinSpacing: scfg.MayDuration("PHOTON_SPACING", 0),
		}),
	}

	var places domain.PlacesPort
	if key := scfg.MayString("GPLACES_KEY", ""); key != "" {
		gp := gplaces.New(gplaces.Config{
			BaseURL:    scfg.MayString("GPLACES_URL", ""),
			Key:        key,
			MinSpacing: scfg.MayDuration("GPLACES_SPACING", 0),
		})
		fetchers = append(fetchers, gp)
		places = gp
	}

	verifier := agent.New(agent.Config{
		URL:     acfg.MayString("URL", ""),
		Key:     acfg.MayString("KEY", ""),
		Timeout: acfg.MayDuration("TIMEOUT", 8*time.Second),
	})

	cache := discoveryrepo.NewPG().Bind(deps.PG)
	audit := discoveryrepo.NewCHAudit(deps.CH)

	resolver := discoverysvc.NewResolver(cache, places, verifier, discoverysvc.RetryPolicy{
		MaxAttempts: dcfg.MayInt("VERIFY_MAX_ATTEMPTS", 2),
		BackoffBase: dcfg.MayDuration("VERIFY_BACKOFF", 400*time.Millisecond),
	})

	svcCfg := discoverysvc.DefaultConfig()
	svcCfg.TileSizeKm = dcfg.MayFloat64("TILE_KM", svcCfg.TileSizeKm)
	svcCfg.OverlapKm = dcfg.MayFloat64("OVERLAP_KM", svcCfg.OverlapKm)
	svcCfg.MaxTilesPerInvocation = dcfg.MayInt("MAX_TILES_PER_RUN", svcCfg.MaxTilesPerInvocation)
	svcCfg.ResolverLimit = dcfg.MayInt("RESOLVER_WINDOW", svcCfg.ResolverLimit)
	svcCfg.HeartbeatEvery = dcfg.MayDuration("HEARTBEAT", svcCfg.HeartbeatEvery)
	svcCfg.DedupScope = domain.DedupScope(dcfg.MayEnum("DEDUP_SCOPE", string(domain.ScopeInvocation),
		string(domain.ScopeInvocation), string(domain.ScopePersistent)))

	svc := discoverysvc.New(svcCfg, fetchers, resolver, cache, audit)

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		swaggerOn: b.SwaggerOn,
		subrouter: b.Subrouter,
		svc:       svc,
	}
	m.ports = Ports{Runner: svc}

	radius := discoveryhttp.DefaultRadiusPolicy()
	radius.DefaultKm = dcfg.MayFloat64("RADIUS_DEFAULT_KM", radius.DefaultKm)
	radius.MinKm = dcfg.MayFloat64("RADIUS_MIN_KM", radius.MinKm)
	radius.MaxKm = dcfg.MayFloat64("RADIUS_MAX_KM", radius.MaxKm)

	external := b.Register
	m.register = func(r httpkit.Router) {
		discoveryhttp.Register(r, svc, nom, radius)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements the modkit.Module interface
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Ports returns the module ports value
func (m *Module) Ports() any { return m.ports }
