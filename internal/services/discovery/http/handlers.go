// Package http provides the streaming transport for discovery
package http

import (
	"context"
	stdhttp "net/http"

	"webgap/internal/core/prompt"
	"webgap/internal/modkit/httpkit"
	perr "webgap/internal/platform/errors"
	phttp "webgap/internal/platform/net/http"
	"webgap/internal/platform/net/http/bind"
	"webgap/internal/services/discovery/domain"
)

// Runner is the orchestrator surface the transport needs
type Runner interface {
	Run(ctx context.Context, p domain.Params, sink domain.Emitter) error
}

// RadiusPolicy clamps the search radius; out-of-range requests are pulled to
// the nearest bound rather than rejected
type RadiusPolicy struct {
	DefaultKm float64
	MinKm     float64
	MaxKm     float64
}

// DefaultRadiusPolicy matches the documented deployment defaults
func DefaultRadiusPolicy() RadiusPolicy {
	return RadiusPolicy{DefaultKm: 50, MinKm: 10, MaxKm: 1000}
}

// Clamp applies the policy; non-positive input falls back to the default
func (p RadiusPolicy) Clamp(km float64) float64 {
	if km <= 0 {
		km = p.DefaultKm
	}
	if km < p.MinKm {
		return p.MinKm
	}
	if km > p.MaxKm {
		return p.MaxKm
	}
	return km
}

// streamQuery is the GET /discover/stream query contract
type streamQuery struct {
	Prompt   string  `query:"prompt" validate:"required,min=3,max=500"`
	RadiusKm float64 `query:"radius_km" validate:"omitempty,gt=0"`
	Cursor   int     `query:"cursor" validate:"omitempty,min=0"`
}

// Register mounts discovery endpoints on the given router
func Register(r httpkit.Router, runner Runner, geo domain.Geocoder, radius RadiusPolicy) {
	h := &handlers{runner: runner, geo: geo, radius: radius}
	r.Get("/stream", httpkit.Raw(h.stream))
}

type handlers struct {
	runner Runner
	geo    domain.Geocoder
	radius RadiusPolicy
}

// stream validates inputs synchronously, then switches the connection to
// server-sent events. Input errors never reach the event protocol; they
// return as plain JSON envelopes so callers can distinguish "bad request"
// from "stream died"
func (h *handlers) stream(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q, err := bind.ParseQuery[streamQuery](r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	parsed, err := prompt.Parse(q.Prompt)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	center, err := h.geo.Geocode(r.Context(), parsed.Location)
	if err != nil {
		phttp.RespondError(w, r, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "locate %q", parsed.Location))
		return
	}

	radius := parsed.RadiusKm
	if q.RadiusKm > 0 {
		radius = q.RadiusKm
	}
	radius = h.radius.Clamp(radius)

	stream, err := httpkit.NewStream(w)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}

	p := domain.Params{
		BusinessTypes: parsed.BusinessTypes,
		Location:      parsed.Location,
		Center:        center,
		RadiusKm:      radius,
		StartTile:     q.Cursor,
	}
	if err := h.runner.Run(r.Context(), p, streamEmitter{stream}); err != nil {
		// Headers are gone; nothing left to tell the client
		return
	}
}

// streamEmitter adapts the SSE stream to the orchestrator's sink port
type streamEmitter struct{ s *phttp.Stream }

func (e streamEmitter) Emit(event string, payload any) error { return e.s.Send(event, payload) }
