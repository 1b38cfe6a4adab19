// Package agent is the client for the page-interrogation automation
// collaborator used as the last verification strategy
package agent

import (
	"context"
	"encoding/json"
	"time"

	"webgap/internal/adapters/sources/sourcekit"
	perr "webgap/internal/platform/errors"
)

const defaultTimeout = 8 * time.Second

// Config configures the client
type Config struct {
	URL     string
	Key     string
	Timeout time.Duration
}

// Client issues bounded-time automation requests. A response is authoritative
// only when it carries a boolean website_found field; anything else is
// indeterminate and left to the caller's retry policy.
type Client struct {
	url string
	key string
	c   *sourcekit.Client
}

// New constructs the client; Enabled is false when no URL is configured
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		url: cfg.URL,
		key: cfg.Key,
		c: sourcekit.NewClient("agent", sourcekit.Options{
			Timeout: cfg.Timeout,
			// retries belong to the resolver's policy, not the transport
			MaxRetries: 1,
		}),
	}
}

// Enabled reports whether the collaborator is configured
func (c *Client) Enabled() bool { return c != nil && c.url != "" }

type request struct {
	URL  string `json:"url"`
	Goal string `json:"goal"`
	Key  string `json:"key,omitempty"`
}

// CheckWebsite asks the agent to open pageURL and report whether a website
// link is present. The bool is only meaningful when err is nil.
func (c *Client) CheckWebsite(ctx context.Context, pageURL, goal string) (bool, error) {
	var raw map[string]json.RawMessage
	err := c.c.PostJSON(ctx, c.url, request{URL: pageURL, Goal: goal, Key: c.key}, &raw)
	if err != nil {
		return false, err
	}

	field, ok := raw["website_found"]
	if !ok {
		return false, perr.JSONErrf("agent response missing website_found")
	}
	var found bool
	if err := json.Unmarshal(field, &found); err != nil {
		return false, perr.JSONErrf("agent website_found is not a boolean")
	}
	return found, nil
}
