package live

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/websocket"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/wire"
)

// stableAfter is how long a poll socket must stay up before the reconnect
// budget starts over, even if it never delivered a snapshot
const stableAfter = 2 * time.Second

// PollHandle streams snapshots of one topic. Snapshots supersede each other:
// when the consumer falls behind the oldest queued snapshot is discarded.
type PollHandle struct {
	topic string
	url   string
	d     *Dialer

	out       chan domain.Topic
	dropped   atomic.Int64
	malformed atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	conn *websocket.Conn
	err  error
}

// OpenPoll dials the poll channel for topic and starts streaming. ctx bounds
// the dial and the lifetime of the handle: cancelling it releases the socket
// and ends the handle like Close.
func (d *Dialer) OpenPoll(ctx context.Context, topic string) (*PollHandle, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &domain.InvalidRequestError{Op: "open poll", Reason: "topic is required"}
	}

	rawURL := d.base.String() + "/topics/" + url.PathEscape(topic) + "/poll"
	conn, err := d.dial(ctx, "open poll", rawURL, topic)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &PollHandle{
		topic:  topic,
		url:    rawURL,
		d:      d,
		out:    make(chan domain.Topic, d.bufferSize),
		ctx:    hctx,
		cancel: cancel,
		done:   make(chan struct{}),
		conn:   conn,
	}
	context.AfterFunc(hctx, h.closeConn)
	go h.run(conn)
	return h, nil
}

// Topic is the topic this handle follows
func (h *PollHandle) Topic() string { return h.topic }

// Snapshots delivers topic snapshots in arrival order. It is closed after
// Close or when reconnecting gives up.
func (h *PollHandle) Snapshots() <-chan domain.Topic { return h.out }

// Dropped counts snapshots discarded because the consumer fell behind
func (h *PollHandle) Dropped() int64 { return h.dropped.Load() }

// Malformed counts frames that could not be decoded
func (h *PollHandle) Malformed() int64 { return h.malformed.Load() }

// Err reports why the channel ended on its own. It is nil while running and
// after Close.
func (h *PollHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed once the handle has stopped
func (h *PollHandle) Done() <-chan struct{} { return h.done }

// Close stops delivery and releases the socket. Safe to call more than once.
// No snapshot is received from Snapshots after Close returns.
func (h *PollHandle) Close() {
	h.once.Do(func() {
		h.cancel()
		h.closeConn()
	})
	<-h.done
	for range h.out {
	}
}

// closeConn closes whichever socket the handle currently reads
func (h *PollHandle) closeConn() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		h.conn.Close()
	}
}

func (h *PollHandle) run(conn *websocket.Conn) {
	log := h.d.log.With().Str("channel", "poll").Str("topic", h.topic).Logger()
	defer close(h.out)
	defer close(h.done)

	b := backoff.WithContext(h.d.newBackOff(), h.ctx)
	b.Reset()
	for {
		opened := time.Now()
		delivered, err := h.read(conn)
		if h.ctx.Err() != nil {
			return
		}
		if delivered || time.Since(opened) >= stableAfter {
			b.Reset()
		}
		log.Warn().Err(err).Bool("delivered", delivered).Msg("poll channel lost, reconnecting")

		conn, err = h.redial(b)
		if err != nil {
			if h.ctx.Err() == nil {
				log.Error().Err(err).Msg("poll channel gave up")
				h.mu.Lock()
				h.err = err
				h.mu.Unlock()
			}
			return
		}

		h.mu.Lock()
		h.conn = conn
		closed := h.ctx.Err() != nil
		h.mu.Unlock()
		if closed {
			conn.Close()
			return
		}
		log.Info().Msg("poll channel reconnected")
	}
}

// redial waits out the next interval of b before every attempt. b is shared
// across reconnect cycles so a socket that keeps dying right after the
// handshake still backs off and eventually gives up.
func (h *PollHandle) redial(b backoff.BackOff) (*websocket.Conn, error) {
	var lastErr error
	for {
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			if err := h.ctx.Err(); err != nil {
				return nil, err
			}
			if lastErr == nil {
				lastErr = &domain.FetchError{Op: "open poll", URL: h.url, Err: errors.New("connection keeps closing")}
			}
			return nil, lastErr
		}

		t := time.NewTimer(wait)
		select {
		case <-h.ctx.Done():
			t.Stop()
			return nil, h.ctx.Err()
		case <-t.C:
		}

		conn, err := h.d.dial(h.ctx, "open poll", h.url, h.topic)
		if err == nil {
			return conn, nil
		}
		h.d.log.Debug().Err(err).Str("topic", h.topic).Dur("waited", wait).Msg("redial failed")
		lastErr = err
	}
}

// read consumes frames until the socket fails and reports whether any
// snapshot reached the consumer
func (h *PollHandle) read(conn *websocket.Conn) (bool, error) {
	defer conn.Close()
	delivered := false
	for {
		var frame string
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return delivered, err
		}

		snap, err := h.decode(frame)
		if err != nil {
			h.malformed.Add(1)
			h.d.log.Warn().Err(err).Str("topic", h.topic).Msg("dropping poll frame")
			continue
		}
		h.deliver(snap)
		delivered = true
	}
}

func (h *PollHandle) decode(frame string) (domain.Topic, error) {
	topics, err := wire.DecodeEnvelope([]byte(frame))
	if err == nil {
		for _, t := range topics {
			if t.Name == h.topic {
				return t, nil
			}
		}
		err = errors.New("frame carries no snapshot for this topic")
	}
	return domain.Topic{}, &domain.DecodeError{Channel: "poll", Topic: h.topic, Frame: frame, Err: err}
}

// deliver never blocks the reader: a full buffer loses its oldest entry
func (h *PollHandle) deliver(t domain.Topic) {
	for {
		if h.ctx.Err() != nil {
			return
		}
		select {
		case h.out <- t:
			return
		default:
		}
		select {
		case <-h.out:
			h.dropped.Add(1)
		default:
		}
	}
}
