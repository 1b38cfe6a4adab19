// Package api provides the HTTP API for the application
package api

import (
	"webgap/internal/platform/config"
	"webgap/internal/platform/logger"
	phttp "webgap/internal/platform/net/http"
	"webgap/internal/platform/store"

	"webgap/internal/modkit"
	"webgap/internal/modkit/httpkit"
	"webgap/internal/modkit/module"
	"webgap/internal/modkit/swaggerkit"

	metamod "webgap/internal/services/api/meta/module"
	discoverymod "webgap/internal/services/discovery/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}

	mods := []module.Module{
		metamod.New(deps),
		discoverymod.New(deps),
	}

	// versioned API with a common middleware stack
	httpkit.MountAPIV1(r, httpkit.CommonStack(), func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})
}
