// @title         Webgap API
// @version       0.1.0
// @description   Streaming discovery of businesses without websites

package main

import (
	"context"

	"github.com/joho/godotenv"

	"webgap/internal/platform/config"
	"webgap/internal/platform/logger"
	phttp "webgap/internal/platform/net/http"
	"webgap/internal/platform/store"

	"webgap/internal/services/api"
)

func main() {
	// local development convenience; real deployments set the environment
	_ = godotenv.Load()

	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	// bring up logging early
	l := logger.Get()

	// open the platform store (postgres + CH adapter)
	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "webgap",
			PG: store.PGConfig{
				Enabled:     true,
				URL:         pgCfg.MustString("DBURL"),
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", true),
			},
			CH: store.CHConfig{
				Enabled: chCfg.MayBool("ENABLED", true),
				URL:     chCfg.MayString("DBURL", ""),
			},
		},
		store.WithLogger(*logger.Get()),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	api.Mount(
		srv.Router(),
		api.Options{
			Config:         root,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", true),
		},
	)

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}
