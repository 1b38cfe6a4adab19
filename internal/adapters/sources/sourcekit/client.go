package sourcekit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	perr "webgap/internal/platform/errors"
	"webgap/internal/platform/logger"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultUA        = "webgap-discovery"
	defaultMaxRetry  = 2
	defaultRetryBase = 500 * time.Millisecond
)

// Options configures the Client
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// MinSpacing is the minimum gap between consecutive requests through this
	// client instance; zero disables the gate
	MinSpacing time.Duration

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a minimal upstream HTTP client with a per-instance rate gate,
// retries on transient failures, and JSON decoding
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger

	mu      sync.Mutex
	lastReq time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// SleepCtx pauses for d or until ctx is cancelled, whichever comes first
func SleepCtx(ctx context.Context, d time.Duration) {
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

// NewClient creates a new Client with sane defaults
func NewClient(component string, o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http:  &http.Client{Timeout: o.Timeout},
		opts:  o,
		log:   *logger.Named(component),
		now:   time.Now,
		sleep: SleepCtx,
	}
}

// gate enforces the per-instance minimum inter-request spacing; a cancelled
// ctx ends the wait early
func (c *Client) gate(ctx context.Context) {
	if c.opts.MinSpacing <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := c.now().Sub(c.lastReq)
	if wait := c.opts.MinSpacing - elapsed; wait > 0 {
		c.sleep(ctx, wait)
	}
	c.lastReq = c.now()
}

// GetJSON issues a GET and decodes the body into out, retrying transient
// failures with exponential backoff
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, "", out)
}

// PostForm issues a form-encoded POST and decodes the response into out
func (c *Client) PostForm(ctx context.Context, url string, form neturl.Values, out any) error {
	return c.doJSON(ctx, http.MethodPost, url, []byte(form.Encode()), "application/x-www-form-urlencoded", out)
}

// PostJSON issues a POST with a JSON body and decodes the response into out
func (c *Client) PostJSON(ctx context.Context, url string, body any, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeJSON, "marshal request body")
	}
	return c.doJSON(ctx, http.MethodPost, url, raw, "application/json", out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, contentType string, out any) error {
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		c.gate(ctx)

		req, err := newRequest(ctx, method, url, body)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnknown, "new request failed")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := c.now()
		resp, err := c.http.Do(req)
		lat := c.now().Sub(start)

		if err != nil {
			if !c.shouldRetry(attempts) {
				return perr.Wrapf(err, perr.ErrorCodeUnavailable, "request failed")
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("attempt", attempts).Msg("transport error retrying")
			c.sleep(ctx, back)
			attempts++
			continue
		}

		c.log.Debug().
			Str("method", method).
			Str("url", url).
			Int("status", resp.StatusCode).
			Int("attempt", attempts).
			Dur("latency", lat).
			Msg("upstream response")

		switch {
		case resp.StatusCode == http.StatusOK:
			dec := json.NewDecoder(resp.Body)
			err := dec.Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return perr.Wrapf(err, perr.ErrorCodeJSON, "decode response")
			}
			return nil
		case resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode == http.StatusBadGateway ||
			resp.StatusCode == http.StatusServiceUnavailable ||
			resp.StatusCode == http.StatusGatewayTimeout:
			if !c.shouldRetry(attempts) {
				_ = drainAndClose(resp.Body)
				return perr.Newf(perr.ErrorCodeUnavailable, "transient upstream status %d", resp.StatusCode)
			}
			back := c.backoff(attempts)
			c.log.Warn().Dur("retry_in", back).Int("status", resp.StatusCode).Msg("transient status retrying")
			_ = drainAndClose(resp.Body)
			c.sleep(ctx, back)
			attempts++
			continue
		default:
			// read a small tail for diagnostics then return
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			_ = resp.Body.Close()
			return perr.Newf(perr.ErrorCodeUnknown, "unexpected status %d body %s", resp.StatusCode, string(tail))
		}
	}
}

func newRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	if body == nil {
		return http.NewRequestWithContext(ctx, method, url, nil)
	}
	return http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase
	// simple exponential with cap
	ms := int64(d / time.Millisecond)
	ms = ms << uint(attempt)
	ceiling := int64(30 * time.Second / time.Millisecond)
	if ms > ceiling {
		ms = ceiling
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) shouldRetry(attempt int) bool {
	return attempt < c.opts.MaxRetries
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<16))
	return rc.Close()
}
