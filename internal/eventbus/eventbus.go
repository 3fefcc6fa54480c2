package eventbus

import (
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"kafkaviz/internal/domain"
)

// Re-export domain types for convenience
type DomainEvent = domain.DomainEvent
type EventType = domain.EventType

// Event type constants
const (
	EventTopicsRequested       = domain.EventTopicsRequested
	EventTopicRefreshRequested = domain.EventTopicRefreshRequested
	EventMessagesRequested     = domain.EventMessagesRequested
	EventPublishRequested      = domain.EventPublishRequested
	EventPollRequested         = domain.EventPollRequested
	EventPollStopRequested     = domain.EventPollStopRequested
	EventTopicsLoaded          = domain.EventTopicsLoaded
	EventNoTopicsFound         = domain.EventNoTopicsFound
	EventTopicUpdated          = domain.EventTopicUpdated
	EventMessagesLoaded        = domain.EventMessagesLoaded
	EventPublishCompleted      = domain.EventPublishCompleted
	EventPollStarted           = domain.EventPollStarted
	EventPollEnded             = domain.EventPollEnded
	EventError                 = domain.EventError
	EventConfigLoaded          = domain.EventConfigLoaded
	EventConfigSaved           = domain.EventConfigSaved
)

// DefaultQueueSize is the number of events the bus holds before dropping
const DefaultQueueSize = 1000

// EventHandler is a function that handles domain events
type EventHandler func(DomainEvent)

// EventBus is the interface for the event bus
type EventBus interface {
	Publish(event DomainEvent)
	Subscribe(eventType EventType, handler EventHandler) func()
	Close()
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// bus is the concrete implementation of EventBus. Events are delivered from a
// single dispatch goroutine in publish order, so handlers must return quickly
// and hand long work to their own goroutine.
type bus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]subscription
	nextID    uint64
	eventChan chan DomainEvent
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
	log       zerolog.Logger
}

// New creates a new event bus
func New(log zerolog.Logger) EventBus {
	return NewWithSize(log, DefaultQueueSize)
}

// NewWithSize creates a bus with a custom queue size
func NewWithSize(log zerolog.Logger, size int) EventBus {
	if size < 1 {
		size = 1
	}
	b := &bus{
		handlers:  make(map[EventType][]subscription),
		eventChan: make(chan DomainEvent, size),
		quit:      make(chan struct{}),
		log:       log.With().Str("component", "eventbus").Logger(),
	}

	b.wg.Add(1)
	go b.dispatch()

	return b
}

// Publish queues an event for all subscribers. It never blocks: when the
// queue is full the event is logged and dropped.
func (b *bus) Publish(event DomainEvent) {
	switch event.Type() {
	case EventTopicUpdated:
		// too frequent to log
	default:
		b.log.Debug().Str("event", string(event.Type())).Msg("publish")
	}

	select {
	case <-b.quit:
		return
	default:
	}

	select {
	case b.eventChan <- event:
	default:
		b.log.Warn().Str("event", string(event.Type())).Msg("event bus full, dropping event")
	}
}

// Subscribe subscribes to events of a specific type
// Returns an unsubscribe function
func (b *bus) Subscribe(eventType EventType, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Close stops dispatching. Queued events are discarded.
func (b *bus) Close() {
	b.closeOnce.Do(func() {
		close(b.quit)
	})
	b.wg.Wait()
}

// dispatch handles event distribution to subscribers
func (b *bus) dispatch() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.eventChan:
			// Copy so handlers can subscribe/unsubscribe without deadlocking
			b.mu.RLock()
			subs := append([]subscription(nil), b.handlers[event.Type()]...)
			b.mu.RUnlock()

			for _, s := range subs {
				b.call(s.handler, event)
			}

		case <-b.quit:
			// Drain remaining events
			for {
				select {
				case <-b.eventChan:
				default:
					return
				}
			}
		}
	}
}

func (b *bus) call(h EventHandler, event DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", string(event.Type())).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panic")
		}
	}()
	h(event)
}
