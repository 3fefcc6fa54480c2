// Package live opens the backend's push channels: the poll channel that
// streams topic snapshots and the search channel that streams matches.
package live

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/net/websocket"

	"kafkaviz/internal/domain"
)

const (
	// DefaultBufferSize is the poll snapshot buffer
	DefaultBufferSize = 16
	// DefaultDialTimeout bounds one handshake
	DefaultDialTimeout = 10 * time.Second
)

// Dialer opens push channels against one backend
type Dialer struct {
	base   *url.URL
	origin string
	log    zerolog.Logger

	bufferSize          int
	dialTimeout         time.Duration
	reconnectMaxElapsed time.Duration
	newBackOff          func() backoff.BackOff
}

// DialerOption configures a Dialer
type DialerOption func(*Dialer)

// WithLogger attaches a logger
func WithLogger(log zerolog.Logger) DialerOption {
	return func(d *Dialer) {
		d.log = log.With().Str("component", "live").Logger()
	}
}

// WithBufferSize sets the poll snapshot buffer
func WithBufferSize(n int) DialerOption {
	return func(d *Dialer) {
		if n > 0 {
			d.bufferSize = n
		}
	}
}

// WithDialTimeout bounds each handshake. It does not limit how long an open
// channel lives.
func WithDialTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		if timeout > 0 {
			d.dialTimeout = timeout
		}
	}
}

// WithReconnectMaxElapsed bounds how long a poll channel keeps redialing
func WithReconnectMaxElapsed(max time.Duration) DialerOption {
	return func(d *Dialer) {
		if max > 0 {
			d.reconnectMaxElapsed = max
		}
	}
}

// WithBackOff replaces the reconnect policy
func WithBackOff(fn func() backoff.BackOff) DialerOption {
	return func(d *Dialer) {
		if fn != nil {
			d.newBackOff = fn
		}
	}
}

// NewDialer creates a dialer for base (ws://host[:port]). origin is sent in
// the handshake and is usually the http base URL.
func NewDialer(base *url.URL, origin string, opts ...DialerOption) *Dialer {
	u := *base
	u.Path = strings.TrimSuffix(u.Path, "/")
	d := &Dialer{
		base:                &u,
		origin:              origin,
		log:                 zerolog.Nop(),
		bufferSize:          DefaultBufferSize,
		dialTimeout:         DefaultDialTimeout,
		reconnectMaxElapsed: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.newBackOff == nil {
		d.newBackOff = d.defaultBackOff
	}
	return d
}

func (d *Dialer) defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = d.reconnectMaxElapsed
	return b
}

// dial opens a socket at rawURL and sends frames in order. The dial timeout
// only covers the handshake.
func (d *Dialer) dial(ctx context.Context, op, rawURL string, frames ...string) (*websocket.Conn, error) {
	cfg, err := websocket.NewConfig(rawURL, d.origin)
	if err != nil {
		return nil, &domain.FetchError{Op: op, URL: rawURL, Err: err}
	}
	dctx, cancel := context.WithTimeout(ctx, d.dialTimeout)
	defer cancel()
	conn, err := cfg.DialContext(dctx)
	if err != nil {
		return nil, &domain.FetchError{Op: op, URL: rawURL, Err: err}
	}
	for _, f := range frames {
		if err := websocket.Message.Send(conn, f); err != nil {
			conn.Close()
			return nil, &domain.FetchError{Op: op, URL: rawURL, Err: err}
		}
	}
	d.log.Debug().Str("op", op).Str("url", rawURL).Msg("socket open")
	return conn, nil
}
