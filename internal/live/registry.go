package live

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// searchSlot holds a topic while its search dials and after it opened
type searchSlot struct {
	h      *SearchHandle // nil while dialing
	cancel context.CancelFunc
}

func (s *searchSlot) release() {
	s.cancel()
	if s.h != nil {
		s.h.Close()
	}
}

// Searches keeps at most one open search per topic. Dials run outside the
// registry lock so Stop and StopAll never wait on a slow backend.
type Searches struct {
	d *Dialer

	mu     sync.Mutex
	active map[string]*searchSlot
}

// NewSearches creates an empty registry
func NewSearches(d *Dialer) *Searches {
	return &Searches{d: d, active: make(map[string]*searchSlot)}
}

// Start closes any search already open on topic, waits for it to stop, then
// opens the new one. An invalid request leaves the current search running.
// A Start that is superseded or stopped while dialing fails with
// context.Canceled.
func (s *Searches) Start(ctx context.Context, topic, keyword string) (*SearchHandle, error) {
	if err := ValidateSearch(topic, keyword); err != nil {
		return nil, err
	}
	topic = strings.TrimSpace(topic)

	s.mu.Lock()
	if old, ok := s.active[topic]; ok {
		old.release()
		delete(s.active, topic)
		s.d.log.Debug().Str("topic", topic).Str("keyword", keyword).Msg("replacing search")
	}
	sctx, cancel := context.WithCancel(ctx)
	slot := &searchSlot{cancel: cancel}
	s.active[topic] = slot
	s.mu.Unlock()

	h, err := s.d.OpenSearch(sctx, topic, keyword)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[topic] != slot {
		if h != nil {
			h.Close()
		}
		cancel()
		return nil, fmt.Errorf("search on %q stopped while dialing: %w", topic, context.Canceled)
	}
	if err != nil {
		delete(s.active, topic)
		cancel()
		return nil, err
	}
	slot.h = h
	return h, nil
}

// Active returns the open search on topic, if any
func (s *Searches) Active(topic string) (*SearchHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.active[strings.TrimSpace(topic)]
	if !ok || slot.h == nil {
		return nil, false
	}
	return slot.h, true
}

// Stop closes the search on topic, or aborts its dial. It reports whether
// one was open or starting.
func (s *Searches) Stop(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	topic = strings.TrimSpace(topic)
	slot, ok := s.active[topic]
	if !ok {
		return false
	}
	slot.release()
	delete(s.active, topic)
	return true
}

// StopAll closes every open search and aborts pending dials
func (s *Searches) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, slot := range s.active {
		slot.release()
		delete(s.active, topic)
	}
}

// Len is the number of open searches
func (s *Searches) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, slot := range s.active {
		if slot.h != nil {
			n++
		}
	}
	return n
}
