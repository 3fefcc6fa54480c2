package live

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/websocket"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/wire"
)

// SearchHandle streams the matches of one keyword search. Matches are never
// dropped: they queue in memory until the consumer takes them.
type SearchHandle struct {
	topic   string
	keyword string
	conn    *websocket.Conn
	d       *Dialer

	out       chan domain.SearchMatch
	malformed atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu         sync.Mutex
	queue      []domain.SearchMatch
	readerDone bool
	err        error
	notify     chan struct{}
}

// ValidateSearch rejects a search that lacks a topic or keyword
func ValidateSearch(topic, keyword string) error {
	topic, keyword = strings.TrimSpace(topic), strings.TrimSpace(keyword)
	if topic == "" || keyword == "" {
		return &domain.InvalidSearchRequestError{Topic: topic, Keyword: keyword}
	}
	return nil
}

// OpenSearch dials the search channel, sends the topic then the keyword and
// starts streaming matches. Invalid input fails before any dial. Cancelling
// ctx ends the search like Close.
func (d *Dialer) OpenSearch(ctx context.Context, topic, keyword string) (*SearchHandle, error) {
	if err := ValidateSearch(topic, keyword); err != nil {
		return nil, err
	}
	topic, keyword = strings.TrimSpace(topic), strings.TrimSpace(keyword)

	rawURL := d.base.String() + "/topics/socket/" + url.PathEscape(topic) + "/" + url.PathEscape(keyword)
	conn, err := d.dial(ctx, "open search", rawURL, topic, keyword)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithCancel(ctx)
	h := &SearchHandle{
		topic:   topic,
		keyword: keyword,
		conn:    conn,
		d:       d,
		out:     make(chan domain.SearchMatch),
		ctx:     hctx,
		cancel:  cancel,
		notify:  make(chan struct{}, 1),
	}
	context.AfterFunc(hctx, func() { conn.Close() })
	h.wg.Add(2)
	go h.read()
	go h.pump()
	return h, nil
}

// Topic is the searched topic
func (h *SearchHandle) Topic() string { return h.topic }

// Keyword is the search keyword
func (h *SearchHandle) Keyword() string { return h.keyword }

// Matches delivers matches in arrival order. It is closed once the backend
// ends the search and every queued match was taken, or after Close.
func (h *SearchHandle) Matches() <-chan domain.SearchMatch { return h.out }

// Malformed counts frames that could not be decoded
func (h *SearchHandle) Malformed() int64 { return h.malformed.Load() }

// Pending is the number of matches queued but not yet taken
func (h *SearchHandle) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queue)
}

// Err reports a socket failure that ended the search, nil otherwise
func (h *SearchHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close releases the socket and waits for the handle to stop. Safe to call
// more than once.
func (h *SearchHandle) Close() {
	h.once.Do(func() {
		h.cancel()
		h.conn.Close()
	})
	h.wg.Wait()
}

func (h *SearchHandle) signal() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *SearchHandle) read() {
	defer h.wg.Done()
	defer h.signal()

	for {
		var frame string
		err := websocket.Message.Receive(h.conn, &frame)
		if err != nil {
			h.mu.Lock()
			h.readerDone = true
			if h.ctx.Err() == nil && !errors.Is(err, io.EOF) {
				h.err = err
			}
			h.mu.Unlock()
			return
		}

		m, err := wire.DecodeMatch([]byte(frame))
		if err != nil {
			h.malformed.Add(1)
			derr := &domain.DecodeError{Channel: "search", Topic: h.topic, Frame: frame, Err: err}
			h.d.log.Warn().Err(derr).Str("keyword", h.keyword).Msg("dropping search frame")
			continue
		}

		h.mu.Lock()
		h.queue = append(h.queue, m)
		h.mu.Unlock()
		h.signal()
	}
}

// pump moves queued matches to the consumer so the reader never waits on it
func (h *SearchHandle) pump() {
	defer h.wg.Done()
	defer close(h.out)

	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			finished := h.readerDone
			h.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-h.notify:
				continue
			case <-h.ctx.Done():
				return
			}
		}
		m := h.queue[0]
		h.queue[0] = domain.SearchMatch{}
		h.queue = h.queue[1:]
		h.mu.Unlock()

		select {
		case h.out <- m:
		case <-h.ctx.Done():
			return
		}
	}
}
