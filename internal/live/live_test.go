package live

import (
	"context"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/fakebackend"
)

func newFake(t *testing.T, opts ...DialerOption) (*fakebackend.Server, *Dialer) {
	t.Helper()
	srv := fakebackend.New()
	t.Cleanup(srv.Close)
	opts = append([]DialerOption{WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), 20)
	})}, opts...)
	return srv, NewDialer(srv.SocketURL(), srv.URL().String(), opts...)
}

func nextSnapshot(t *testing.T, h *PollHandle) domain.Topic {
	t.Helper()
	select {
	case snap, ok := <-h.Snapshots():
		require.True(t, ok, "snapshot channel closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
	return domain.Topic{}
}

// waitSnapshot reads snapshots until one satisfies ok
func waitSnapshot(t *testing.T, h *PollHandle, ok func(domain.Topic) bool) domain.Topic {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, open := <-h.Snapshots():
			require.True(t, open, "snapshot channel closed")
			if ok(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("no matching snapshot")
		}
	}
}

func TestPollStreamsSnapshots(t *testing.T) {
	srv, d := newFake(t)
	srv.AddTopic("orders", 1, 0, 1)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	defer h.Close()

	first := nextSnapshot(t, h)
	assert.Equal(t, "orders", first.Name)
	assert.Equal(t, []int{0, 1}, first.PartitionIDs())

	srv.Append("orders", 1, "x")
	waitSnapshot(t, h, func(snap domain.Topic) bool {
		p, _ := snap.Partition(1)
		return p.MessageCount == 1
	})

	assert.Contains(t, srv.Requests(), "GET /topics/orders/poll")
}

func TestPollSkipsMalformedFrames(t *testing.T) {
	srv, d := newFake(t)
	srv.AddTopic("orders", 1, 0)
	srv.InjectPollFrame("orders", `not json`)
	srv.InjectPollFrame("orders", `{"result":[{"name":"orders","partition_info":[{"length":1}]}]}`)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	defer h.Close()

	snap := nextSnapshot(t, h)
	assert.Equal(t, "orders", snap.Name)
	assert.EqualValues(t, 2, h.Malformed())
}

func TestPollReconnectsAndResendsTopic(t *testing.T) {
	srv, d := newFake(t)
	srv.AddTopic("orders", 1, 0)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	defer h.Close()

	nextSnapshot(t, h)
	srv.DropPollConnections()

	require.Eventually(t, func() bool { return srv.PollDials() >= 2 }, 2*time.Second, 5*time.Millisecond)
	srv.Append("orders", 0, "after reconnect")
	waitSnapshot(t, h, func(snap domain.Topic) bool { return snap.TotalMessages() == 1 })
	assert.NoError(t, h.Err())
}

func TestPollGivesUp(t *testing.T) {
	srv, d := newFake(t, WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}))
	srv.AddTopic("orders", 1, 0)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	nextSnapshot(t, h)

	srv.Close()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle did not stop")
	}
	assert.Error(t, h.Err())
	h.Close()
}

func TestPollDropsOldestWhenFull(t *testing.T) {
	srv, d := newFake(t, WithBufferSize(1))
	srv.PollInterval = time.Millisecond
	srv.AddTopic("orders", 1, 0)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	defer h.Close()

	require.Eventually(t, func() bool { return h.Dropped() > 0 }, 2*time.Second, 5*time.Millisecond)

	srv.Append("orders", 0, "newest")
	waitSnapshot(t, h, func(snap domain.Topic) bool { return snap.TotalMessages() == 1 })
}

func TestPollCloseStopsDelivery(t *testing.T) {
	srv, d := newFake(t)
	srv.AddTopic("orders", 1, 0)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	nextSnapshot(t, h)

	h.Close()
	h.Close()

	_, ok := <-h.Snapshots()
	assert.False(t, ok)
	assert.NoError(t, h.Err())
}

func TestPollRejectsEmptyTopic(t *testing.T) {
	srv, d := newFake(t)

	_, err := d.OpenPoll(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, srv.Requests())
}

func TestPollDialFailure(t *testing.T) {
	srv, d := newFake(t)
	srv.Close()

	_, err := d.OpenPoll(context.Background(), "orders")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestPollBacksOffWhenSocketClosesAtOnce(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		dials.Add(1)
		var topic string
		_ = websocket.Message.Receive(ws, &topic)
		ws.Close()
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	base.Scheme = "ws"
	d := NewDialer(base, srv.URL)

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)
	time.Sleep(time.Second)
	h.Close()

	assert.Less(t, dials.Load(), int64(10))
	assert.GreaterOrEqual(t, dials.Load(), int64(2), "never redialed")
}

func TestPollKeepsBackingOffAcrossEmptyConnections(t *testing.T) {
	var dials atomic.Int64
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		dials.Add(1)
		ws.Close()
	}))
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	base.Scheme = "ws"
	d := NewDialer(base, srv.URL, WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 3)
	}))

	h, err := d.OpenPoll(context.Background(), "orders")
	require.NoError(t, err)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle kept redialing")
	}
	assert.ErrorIs(t, h.Err(), domain.ErrFetch)
	assert.EqualValues(t, 4, dials.Load())
	h.Close()
}

func TestPollEndsWhenContextCancelled(t *testing.T) {
	srv, d := newFake(t)
	srv.AddTopic("orders", 1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	h, err := d.OpenPoll(ctx, "orders")
	require.NoError(t, err)
	nextSnapshot(t, h)

	cancel()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle still running after cancel")
	}
	for range h.Snapshots() {
	}
	assert.NoError(t, h.Err())
	assert.EqualValues(t, 1, srv.PollDials())
}
