package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kafkaviz/internal/domain"
)

func collect(t *testing.T, b EventBus, eventType EventType) (func() []DomainEvent, func()) {
	t.Helper()
	var mu sync.Mutex
	var got []DomainEvent
	unsub := b.Subscribe(eventType, func(e DomainEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})
	return func() []DomainEvent {
		mu.Lock()
		defer mu.Unlock()
		return append([]DomainEvent(nil), got...)
	}, unsub
}

func TestPublishDeliversInOrder(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	events, _ := collect(t, b, EventTopicUpdated)
	for i := 0; i < 50; i++ {
		b.Publish(domain.TopicUpdatedEvent{Topic: domain.Topic{Name: "t", PartitionCount: i}})
	}

	require.Eventually(t, func() bool { return len(events()) == 50 }, time.Second, 5*time.Millisecond)
	for i, e := range events() {
		assert.Equal(t, i, e.(domain.TopicUpdatedEvent).Topic.PartitionCount)
	}
}

func TestUnsubscribeRemovesOnlyThatHandler(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	first, unsubFirst := collect(t, b, EventNoTopicsFound)
	second, _ := collect(t, b, EventNoTopicsFound)

	unsubFirst()
	b.Publish(domain.NoTopicsFoundEvent{})

	require.Eventually(t, func() bool { return len(second()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, first())
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	b := New(zerolog.Nop())
	defer b.Close()

	b.Subscribe(EventError, func(DomainEvent) { panic("boom") })
	events, _ := collect(t, b, EventError)

	b.Publish(domain.ErrorEvent{Message: "one"})
	b.Publish(domain.ErrorEvent{Message: "two"})

	require.Eventually(t, func() bool { return len(events()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := NewWithSize(zerolog.Nop(), 1)
	defer b.Close()

	release := make(chan struct{})
	var delivered sync.WaitGroup
	delivered.Add(1)
	var once sync.Once
	b.Subscribe(EventTopicsRequested, func(DomainEvent) {
		once.Do(delivered.Done)
		<-release
	})

	b.Publish(domain.TopicsRequestedEvent{})
	delivered.Wait()

	// dispatcher is parked in the handler; queue holds one, the rest drop
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(domain.TopicsRequestedEvent{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	close(release)
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	b := New(zerolog.Nop())
	b.Close()
	b.Close()

	assert.NotPanics(t, func() { b.Publish(domain.TopicsRequestedEvent{}) })
}
