package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"webgap/internal/platform/net/middleware"
)

// CommonStack returns a baseline per module middleware slice.
// There is no global Timeout here: the discovery stream outlives any sane
// per-request deadline and carries its own invocation budget instead.
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		// tracing / correlation
		middleware.RequestID(),
		middleware.RealIP(),

		// safety
		middleware.RecoverJSON,

		// cache / freshness
		middleware.NoCache(),

		// observability
		middleware.AccessLogZerolog(middleware.AccessLogOptions{Slow: 2 * time.Second}),

		// cross-origin (tweak config in main if needed)
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.Heartbeat("/health"),
	}
}
