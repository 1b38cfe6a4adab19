package swaggerkit

import "net/http"

// docJSON is a handwritten OAS3 document for the public surface
// the discovery stream is SSE so its payloads are described informally
const docJSON = `{
  "openapi": "3.0.3",
  "info": {"title": "webgap API", "version": "1.0.0"},
  "servers": [{"url": "/api/v1"}],
  "paths": {
    "/discover/stream": {
      "get": {
        "summary": "Stream business discovery results as server sent events",
        "parameters": [
          {"name": "prompt", "in": "query", "required": true, "schema": {"type": "string"}},
          {"name": "radius_km", "in": "query", "schema": {"type": "number", "minimum": 10, "maximum": 1000}},
          {"name": "cursor", "in": "query", "schema": {"type": "integer", "minimum": 0}}
        ],
        "responses": {
          "200": {
            "description": "text/event-stream of metadata, tile, business, progress, heartbeat, done and error events",
            "content": {"text/event-stream": {"schema": {"type": "string"}}}
          },
          "400": {"description": "invalid prompt, radius or cursor"}
        }
      }
    },
    "/meta/health": {"get": {"summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}},
    "/meta/ready": {"get": {"summary": "Readiness probe with dependency checks", "responses": {"200": {"description": "OK"}}}},
    "/meta/version": {"get": {"summary": "Build information", "responses": {"200": {"description": "OK"}}}},
    "/meta/service": {"get": {"summary": "Service info and uptime", "responses": {"200": {"description": "OK"}}}}
  }
}`

// serveDocJSON serves the spec so the UI can load it
func serveDocJSON() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(docJSON))
	}
}
