// Package backend talks to the request/response side of the visualization
// backend: topic directory, partition data and publishing.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"kafkaviz/internal/domain"
)

// maxErrorBody caps how much of a failed response is quoted in errors
const maxErrorBody = 512

// Client is safe for concurrent use
type Client struct {
	base *url.URL
	http *http.Client
	log  zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger attaches a logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log.With().Str("component", "backend").Logger()
	}
}

// New creates a client rooted at base, e.g. http://localhost:8090
func New(base *url.URL, opts ...Option) *Client {
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/")
	c := &Client{
		base: &u,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns a copy of the root URL
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) endpoint(query url.Values, segments ...string) *url.URL {
	u := c.base.JoinPath(segments...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u
}

// get performs a GET and returns the body of a 2xx response. Any other
// outcome is a *domain.FetchError.
func (c *Client) get(ctx context.Context, op string, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &domain.FetchError{Op: op, URL: u.String(), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Str("url", u.String()).Msg("request failed")
		return nil, &domain.FetchError{Op: op, URL: u.String(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Op: op, URL: u.String(), Status: resp.StatusCode, Err: err}
	}

	c.log.Debug().
		Str("op", op).
		Str("url", u.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("request done")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.FetchError{
			Op:     op,
			URL:    u.String(),
			Status: resp.StatusCode,
			Err:    statusError(resp.StatusCode, body),
		}
	}
	return body, nil
}

func statusError(status int, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	if text == "" {
		return errors.New(http.StatusText(status))
	}
	return fmt.Errorf("%s: %s", http.StatusText(status), text)
}
