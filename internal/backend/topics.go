package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/wire"
)

// ListTopics fetches the topic directory. The backend signals "no topics" with
// a single entry whose name is empty; that entry is filtered out and, when
// nothing else is left, domain.ErrNoTopicsFound is returned.
func (c *Client) ListTopics(ctx context.Context) ([]domain.Topic, error) {
	u := c.endpoint(nil, "topics")
	body, err := c.get(ctx, "list topics", u)
	if err != nil {
		return nil, err
	}

	all, err := wire.DecodeEnvelope(body)
	if err != nil {
		return nil, &domain.FetchError{Op: "list topics", URL: u.String(), Err: err}
	}

	topics := make([]domain.Topic, 0, len(all))
	for _, t := range all {
		if t.Name == "" {
			continue
		}
		topics = append(topics, t)
	}
	if len(topics) == 0 {
		return nil, domain.ErrNoTopicsFound
	}

	c.log.Debug().Int("topics", len(topics)).Msg("directory loaded")
	return topics, nil
}

// RefreshTopic fetches fresh metadata for one topic
func (c *Client) RefreshTopic(ctx context.Context, name string) (domain.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Topic{}, &domain.InvalidRequestError{Op: "refresh topic", Reason: "topic is required"}
	}

	u := c.endpoint(url.Values{"topic": {name}}, "topics")
	body, err := c.get(ctx, "refresh topic", u)
	if err != nil {
		return domain.Topic{}, err
	}

	all, err := wire.DecodeEnvelope(body)
	if err != nil {
		return domain.Topic{}, &domain.FetchError{Op: "refresh topic", URL: u.String(), Err: err}
	}
	for _, t := range all {
		if t.Name == name {
			return t, nil
		}
	}
	return domain.Topic{}, &domain.FetchError{
		Op:  "refresh topic",
		URL: u.String(),
		Err: fmt.Errorf("topic %q missing from response", name),
	}
}
