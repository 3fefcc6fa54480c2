// Package topics turns request events into backend calls and publishes the
// results back on the bus.
package topics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/live"
	"kafkaviz/internal/logic"
)

// Backend is the request/response side of the backend
type Backend interface {
	ListTopics(ctx context.Context) ([]domain.Topic, error)
	RefreshTopic(ctx context.Context, name string) (domain.Topic, error)
	FetchMessages(ctx context.Context, topic string, partitionID int, rng domain.MessageRange) ([]domain.Message, error)
	Publish(ctx context.Context, topic, payload string) error
}

// Poller opens poll channels
type Poller interface {
	OpenPoll(ctx context.Context, topic string) (*live.PollHandle, error)
}

// Service handles topic directory, partition data, publish and poll requests
type Service struct {
	bus     eventbus.EventBus
	backend Backend
	poller  Poller
	store   logic.TopicStore
	log     zerolog.Logger
	timeout time.Duration

	workerPool chan struct{} // Semaphore for limiting concurrent backend calls
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	unsubs     []func()

	pollMu   sync.Mutex // held while swapping the poll handle
	poll     *live.PollHandle
	genMu    sync.Mutex
	pollGen  uint64
	stopOnce sync.Once
}

// Option configures a Service
type Option func(*Service)

// WithLogger attaches a logger
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) {
		s.log = log.With().Str("component", "topics").Logger()
	}
}

// WithTimeout bounds each request/response call
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewService creates the service and subscribes it to request events
func NewService(bus eventbus.EventBus, backend Backend, poller Poller, store logic.TopicStore, opts ...Option) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		bus:        bus,
		backend:    backend,
		poller:     poller,
		store:      store,
		log:        zerolog.Nop(),
		timeout:    30 * time.Second,
		workerPool: make(chan struct{}, 4),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unsubs = append(s.unsubs,
		bus.Subscribe(eventbus.EventTopicsRequested, func(eventbus.DomainEvent) {
			s.async(s.loadTopics)
		}),
		bus.Subscribe(eventbus.EventTopicRefreshRequested, func(e eventbus.DomainEvent) {
			if event, ok := e.(domain.TopicRefreshRequestedEvent); ok {
				s.async(func(ctx context.Context) { s.refreshTopic(ctx, event.Topic) })
			}
		}),
		bus.Subscribe(eventbus.EventMessagesRequested, func(e eventbus.DomainEvent) {
			if event, ok := e.(domain.MessagesRequestedEvent); ok {
				s.async(func(ctx context.Context) { s.fetchMessages(ctx, event) })
			}
		}),
		bus.Subscribe(eventbus.EventPublishRequested, func(e eventbus.DomainEvent) {
			if event, ok := e.(domain.PublishRequestedEvent); ok {
				s.async(func(ctx context.Context) { s.publish(ctx, event) })
			}
		}),
		bus.Subscribe(eventbus.EventPollRequested, func(e eventbus.DomainEvent) {
			if event, ok := e.(domain.PollRequestedEvent); ok {
				gen := s.nextPollGen()
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.follow(gen, event.Topic)
				}()
			}
		}),
		bus.Subscribe(eventbus.EventPollStopRequested, func(eventbus.DomainEvent) {
			gen := s.nextPollGen()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.follow(gen, "")
			}()
		}),
	)

	return s
}

// Close unsubscribes, closes the poll channel and waits for in-flight work
func (s *Service) Close() {
	s.stopOnce.Do(func() {
		for _, unsub := range s.unsubs {
			unsub()
		}
		s.cancel()
		s.pollMu.Lock()
		if s.poll != nil {
			s.poll.Close()
			s.poll = nil
		}
		s.pollMu.Unlock()
	})
	s.wg.Wait()
}

// Following returns the topic of the open poll channel, if any
func (s *Service) Following() (string, bool) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	if s.poll == nil {
		return "", false
	}
	return s.poll.Topic(), true
}

// async runs fn on its own goroutine once a worker slot is free. Bus handlers
// must not block, so the wait for a slot happens off the dispatch goroutine.
func (s *Service) async(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case s.workerPool <- struct{}{}:
			defer func() { <-s.workerPool }()
		case <-s.ctx.Done():
			return
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *Service) loadTopics(ctx context.Context) {
	topics, err := s.backend.ListTopics(ctx)
	switch {
	case errors.Is(err, domain.ErrNoTopicsFound):
		s.store.Clear()
		s.bus.Publish(domain.NoTopicsFoundEvent{})
	case err != nil:
		s.log.Error().Err(err).Msg("list topics")
		s.bus.Publish(domain.ErrorEvent{Message: "Failed to load topics", Err: err})
	default:
		s.store.ReplaceAll(topics)
		s.bus.Publish(domain.TopicsLoadedEvent{Topics: topics})
	}
}

func (s *Service) refreshTopic(ctx context.Context, name string) {
	topic, err := s.backend.RefreshTopic(ctx, name)
	if err != nil {
		s.log.Error().Err(err).Str("topic", name).Msg("refresh topic")
		s.bus.Publish(domain.ErrorEvent{Message: fmt.Sprintf("Failed to refresh %s", name), Err: err})
		return
	}
	s.store.UpdateTopic(topic)
	s.bus.Publish(domain.TopicUpdatedEvent{Topic: topic, Source: "refresh"})
}

func (s *Service) fetchMessages(ctx context.Context, req domain.MessagesRequestedEvent) {
	var msgs []domain.Message
	err := s.checkPartition(req.Topic, req.PartitionID)
	if err == nil {
		msgs, err = s.backend.FetchMessages(ctx, req.Topic, req.PartitionID, req.Range)
	}
	if err != nil {
		s.log.Error().Err(err).
			Str("topic", req.Topic).
			Int("partition", req.PartitionID).
			Str("range", req.Range.String()).
			Msg("fetch messages")
	}
	s.bus.Publish(domain.MessagesLoadedEvent{
		Topic:       req.Topic,
		PartitionID: req.PartitionID,
		Range:       req.Range,
		Messages:    msgs,
		Err:         err,
	})
}

// checkPartition rejects a partition the latest snapshot of topic does not
// list. Topics the store has not seen yet go to the backend unchecked.
func (s *Service) checkPartition(topic string, partitionID int) error {
	known, ok := s.store.GetTopic(topic)
	if !ok {
		return nil
	}
	if _, ok := known.Partition(partitionID); !ok {
		return &domain.InvalidRequestError{Op: "fetch messages", Reason: fmt.Sprintf("topic %s has no partition %d", topic, partitionID)}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, req domain.PublishRequestedEvent) {
	err := s.backend.Publish(ctx, req.Topic, req.Payload)
	if err != nil {
		s.log.Error().Err(err).Str("topic", req.Topic).Msg("publish")
	}
	s.bus.Publish(domain.PublishCompletedEvent{Topic: req.Topic, Payload: req.Payload, Err: err})
}

func (s *Service) nextPollGen() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.pollGen++
	return s.pollGen
}

func (s *Service) currentPollGen() uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.pollGen
}

// follow swaps the poll channel to topic, or just closes it for "". A request
// that was overtaken by a newer one does nothing.
func (s *Service) follow(gen uint64, topic string) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	if gen != s.currentPollGen() || s.ctx.Err() != nil {
		return
	}
	if s.poll != nil {
		s.poll.Close()
		s.poll = nil
	}
	if topic == "" {
		return
	}

	h, err := s.poller.OpenPoll(s.ctx, topic)
	if err != nil {
		s.log.Error().Err(err).Str("topic", topic).Msg("open poll")
		s.bus.Publish(domain.PollEndedEvent{Topic: topic, Err: err})
		s.bus.Publish(domain.ErrorEvent{Message: fmt.Sprintf("Live updates for %s unavailable", topic), Err: err})
		return
	}
	if gen != s.currentPollGen() {
		h.Close()
		return
	}
	s.poll = h
	s.bus.Publish(domain.PollStartedEvent{Topic: topic})

	s.wg.Add(1)
	go s.forward(h)
}

// forward republishes changed snapshots until the handle ends
func (s *Service) forward(h *live.PollHandle) {
	defer s.wg.Done()
	for snap := range h.Snapshots() {
		if prev, ok := s.store.GetTopic(snap.Name); ok && prev.Equal(snap) {
			continue
		}
		s.store.UpdateTopic(snap)
		s.bus.Publish(domain.TopicUpdatedEvent{Topic: snap, Source: "poll"})
	}

	if dropped := h.Dropped(); dropped > 0 {
		s.log.Debug().Str("topic", h.Topic()).Int64("dropped", dropped).Msg("poll snapshots superseded")
	}
	err := h.Err()
	if err != nil {
		s.bus.Publish(domain.ErrorEvent{Message: fmt.Sprintf("Live updates for %s stopped", h.Topic()), Err: err})
	}
	s.bus.Publish(domain.PollEndedEvent{Topic: h.Topic(), Err: err})
}
