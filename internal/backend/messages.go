package backend

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/wire"
)

// FetchMessages fetches one range of one partition. The backend's order is
// kept as is.
func (c *Client) FetchMessages(ctx context.Context, topic string, partitionID int, rng domain.MessageRange) ([]domain.Message, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &domain.InvalidRequestError{Op: "fetch messages", Reason: "topic is required"}
	}
	if partitionID < 0 {
		return nil, &domain.InvalidRequestError{Op: "fetch messages", Reason: "partition id must be >= 0"}
	}

	u := c.endpoint(nil, "topics", topic, strconv.Itoa(partitionID), rng.String())
	body, err := c.get(ctx, "fetch messages", u)
	if err != nil {
		return nil, err
	}

	msgs, err := wire.DecodeMessages(body)
	if err != nil {
		return nil, &domain.FetchError{Op: "fetch messages", URL: u.String(), Err: err}
	}
	return msgs, nil
}

// FetchAll fetches one range per partition concurrently. The first failure
// cancels the remaining requests and is returned.
func (c *Client) FetchAll(ctx context.Context, topic string, ranges map[int]domain.MessageRange) (map[int][]domain.Message, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	var mu sync.Mutex
	out := make(map[int][]domain.Message, len(ranges))

	for id, rng := range ranges {
		g.Go(func() error {
			msgs, err := c.FetchMessages(ctx, topic, id, rng)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = msgs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
