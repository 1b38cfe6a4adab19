package http

import (
	"encoding/json"
	stdhttp "net/http"
	"sync"

	perr "webgap/internal/platform/errors"
)

// Stream writes server-sent events over a live response
// safe for concurrent Send calls (heartbeats race with data events)
type Stream struct {
	w  stdhttp.ResponseWriter
	f  stdhttp.Flusher
	mu sync.Mutex

	err error
}

// NewStream prepares w for event streaming and flushes the headers
// returns an error when the transport cannot flush (no streaming possible)
func NewStream(w stdhttp.ResponseWriter) (*Stream, error) {
	f, ok := w.(stdhttp.Flusher)
	if !ok {
		return nil, perr.Unavailablef("response writer does not support streaming")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(stdhttp.StatusOK)
	f.Flush()
	return &Stream{w: w, f: f}, nil
}

// Send writes one `event: <name>\ndata: <json>\n\n` frame and flushes
// after the first write failure the stream latches the error and drops frames
func (s *Stream) Send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "sse marshal %s", event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}

	if _, err := s.w.Write([]byte("event: " + event + "\ndata: ")); err != nil {
		s.err = err
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		s.err = err
		return err
	}
	if _, err := s.w.Write([]byte("\n\n")); err != nil {
		s.err = err
		return err
	}
	s.f.Flush()
	return nil
}

// Err returns the latched write error, nil while the stream is healthy
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
