package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"kafkaviz/internal/domain"
)

// Publish posts payload to topic as the form field "data". Any 2xx response
// is success. It does not refresh metadata.
func (c *Client) Publish(ctx context.Context, topic, payload string) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return &domain.PublishError{Err: errors.New("topic is required")}
	}

	u := c.endpoint(nil, "topics", topic)
	form := url.Values{"data": {payload}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.PublishError{Topic: topic, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return &domain.PublishError{Topic: topic, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		c.log.Warn().Int("status", resp.StatusCode).Str("topic", topic).Msg("publish rejected")
		return &domain.PublishError{Topic: topic, Status: resp.StatusCode, Err: statusError(resp.StatusCode, body)}
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	c.log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("published")
	return nil
}
