package topics

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kafkaviz/internal/backend"
	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/fakebackend"
	"kafkaviz/internal/live"
	"kafkaviz/internal/logic"
)

type recorder struct {
	mu     sync.Mutex
	events []eventbus.DomainEvent
}

func (r *recorder) record(e eventbus.DomainEvent) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) find(eventType eventbus.EventType) []eventbus.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []eventbus.DomainEvent
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	srv   *fakebackend.Server
	bus   eventbus.EventBus
	store *logic.MemoryTopicStore
	svc   *Service
	rec   *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := fakebackend.New()
	bus := eventbus.New(zerolog.Nop())
	store := logic.NewMemoryTopicStore()
	client := backend.New(srv.URL(), backend.WithTimeout(2*time.Second))
	dialer := live.NewDialer(srv.SocketURL(), srv.URL().String())
	svc := NewService(bus, client, dialer, store, WithTimeout(2*time.Second))

	rec := &recorder{}
	for _, et := range []eventbus.EventType{
		eventbus.EventTopicsLoaded, eventbus.EventNoTopicsFound, eventbus.EventTopicUpdated,
		eventbus.EventMessagesLoaded, eventbus.EventPublishCompleted, eventbus.EventPollStarted,
		eventbus.EventPollEnded, eventbus.EventError,
	} {
		bus.Subscribe(et, rec.record)
	}

	t.Cleanup(func() {
		svc.Close()
		bus.Close()
		srv.Close()
	})
	return &harness{srv: srv, bus: bus, store: store, svc: svc, rec: rec}
}

func (h *harness) waitFor(t *testing.T, eventType eventbus.EventType, n int) []eventbus.DomainEvent {
	t.Helper()
	require.Eventually(t, func() bool { return len(h.rec.find(eventType)) >= n }, 3*time.Second, 5*time.Millisecond)
	return h.rec.find(eventType)
}

func TestTopicsRequestedLoadsDirectory(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 0, 1)

	h.bus.Publish(domain.TopicsRequestedEvent{})

	events := h.waitFor(t, eventbus.EventTopicsLoaded, 1)
	loaded := events[0].(domain.TopicsLoadedEvent)
	require.Len(t, loaded.Topics, 1)
	assert.Equal(t, "orders", loaded.Topics[0].Name)

	_, ok := h.store.GetTopic("orders")
	assert.True(t, ok)
}

func TestTopicsRequestedEmptyDirectory(t *testing.T) {
	h := newHarness(t)
	h.store.UpdateTopic(domain.Topic{Name: "stale"})

	h.bus.Publish(domain.TopicsRequestedEvent{})

	h.waitFor(t, eventbus.EventNoTopicsFound, 1)
	assert.Empty(t, h.store.GetAllTopics())
	assert.Empty(t, h.rec.find(eventbus.EventError))
}

func TestTopicsRequestedFailure(t *testing.T) {
	h := newHarness(t)
	h.srv.FailTopics(http.StatusBadGateway)

	h.bus.Publish(domain.TopicsRequestedEvent{})

	events := h.waitFor(t, eventbus.EventError, 1)
	assert.ErrorIs(t, events[0].(domain.ErrorEvent).Err, domain.ErrFetch)
}

func TestMessagesRequested(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 3)
	h.srv.Append("orders", 3, "a")
	h.srv.Append("orders", 3, "b")

	h.bus.Publish(domain.MessagesRequestedEvent{Topic: "orders", PartitionID: 3, Range: domain.MessageRange{Start: 0, End: 1}})

	events := h.waitFor(t, eventbus.EventMessagesLoaded, 1)
	loaded := events[0].(domain.MessagesLoadedEvent)
	require.NoError(t, loaded.Err)
	assert.Equal(t, 3, loaded.PartitionID)
	assert.Equal(t, []domain.Message{{Offset: 0, Payload: "a"}, {Offset: 1, Payload: "b"}}, loaded.Messages)
}

func TestMessagesRequestedForUnknownPartition(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 3)

	h.bus.Publish(domain.TopicsRequestedEvent{})
	h.waitFor(t, eventbus.EventTopicsLoaded, 1)

	h.bus.Publish(domain.MessagesRequestedEvent{Topic: "orders", PartitionID: 9, Range: domain.MessageRange{Start: 0, End: 1}})

	events := h.waitFor(t, eventbus.EventMessagesLoaded, 1)
	loaded := events[0].(domain.MessagesLoadedEvent)
	assert.ErrorIs(t, loaded.Err, domain.ErrInvalidRequest)
	assert.Empty(t, loaded.Messages)
	assert.NotContains(t, h.srv.Requests(), "GET /topics/orders/9/0-1")
}

func TestPollSkipsUnchangedSnapshots(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 0)

	h.bus.Publish(domain.TopicsRequestedEvent{})
	h.waitFor(t, eventbus.EventTopicsLoaded, 1)

	h.bus.Publish(domain.PollRequestedEvent{Topic: "orders"})
	h.waitFor(t, eventbus.EventPollStarted, 1)

	// several poll intervals pass with nothing new
	time.Sleep(10 * h.srv.PollInterval)
	assert.Empty(t, h.rec.find(eventbus.EventTopicUpdated))

	h.srv.Append("orders", 0, "live")
	events := h.waitFor(t, eventbus.EventTopicUpdated, 1)
	assert.EqualValues(t, 1, events[0].(domain.TopicUpdatedEvent).Topic.TotalMessages())

	stored, ok := h.store.GetTopic("orders")
	require.True(t, ok)
	assert.EqualValues(t, 1, stored.TotalMessages())
}

func TestPublishRequestedReportsOutcome(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 0)

	h.bus.Publish(domain.PublishRequestedEvent{Topic: "orders", Payload: "hi"})
	events := h.waitFor(t, eventbus.EventPublishCompleted, 1)
	assert.NoError(t, events[0].(domain.PublishCompletedEvent).Err)

	h.srv.FailPublish(http.StatusInternalServerError)
	h.bus.Publish(domain.PublishRequestedEvent{Topic: "orders", Payload: "again"})
	events = h.waitFor(t, eventbus.EventPublishCompleted, 2)
	assert.ErrorIs(t, events[1].(domain.PublishCompletedEvent).Err, domain.ErrPublish)

	// refreshing is the coordinator's call
	assert.Empty(t, h.rec.find(eventbus.EventTopicUpdated))
}

func TestTopicRefreshRequested(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 0)
	h.srv.Append("orders", 0, "x")

	h.bus.Publish(domain.TopicRefreshRequestedEvent{Topic: "orders"})

	events := h.waitFor(t, eventbus.EventTopicUpdated, 1)
	updated := events[0].(domain.TopicUpdatedEvent)
	assert.Equal(t, "refresh", updated.Source)
	assert.EqualValues(t, 1, updated.Topic.TotalMessages())
}

func TestPollFollowsLatestTopic(t *testing.T) {
	h := newHarness(t)
	h.srv.AddTopic("orders", 1, 0)
	h.srv.AddTopic("payments", 1, 0)

	h.bus.Publish(domain.PollRequestedEvent{Topic: "orders"})
	h.bus.Publish(domain.PollRequestedEvent{Topic: "payments"})

	require.Eventually(t, func() bool {
		topic, ok := h.svc.Following()
		return ok && topic == "payments"
	}, 3*time.Second, 5*time.Millisecond)

	h.srv.Append("payments", 0, "live")
	require.Eventually(t, func() bool {
		for _, e := range h.rec.find(eventbus.EventTopicUpdated) {
			u := e.(domain.TopicUpdatedEvent)
			if u.Source == "poll" && u.Topic.Name == "payments" && u.Topic.TotalMessages() == 1 {
				return true
			}
		}
		return false
	}, 3*time.Second, 5*time.Millisecond)

	h.bus.Publish(domain.PollStopRequestedEvent{})
	require.Eventually(t, func() bool {
		_, ok := h.svc.Following()
		return !ok
	}, 3*time.Second, 5*time.Millisecond)

	ended := h.waitFor(t, eventbus.EventPollEnded, 1)
	assert.NoError(t, ended[len(ended)-1].(domain.PollEndedEvent).Err)
}

func TestPollOpenFailure(t *testing.T) {
	h := newHarness(t)

	h.bus.Publish(domain.PollRequestedEvent{Topic: " "})

	ended := h.waitFor(t, eventbus.EventPollEnded, 1)
	assert.ErrorIs(t, ended[0].(domain.PollEndedEvent).Err, domain.ErrInvalidRequest)
	h.waitFor(t, eventbus.EventError, 1)
}
