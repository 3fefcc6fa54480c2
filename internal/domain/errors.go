package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// branch with errors.Is.
var (
	ErrNoTopicsFound        = errors.New("no topics found")
	ErrFetch                = errors.New("fetch failed")
	ErrDecode               = errors.New("decode failed")
	ErrPublish              = errors.New("publish failed")
	ErrInvalidRangeFormat   = errors.New("invalid range format")
	ErrInvalidSearchRequest = errors.New("invalid search request")
	ErrInvalidRequest       = errors.New("invalid request")
)

// FetchError reports a failed request/response call: transport failure,
// non-2xx status, or a malformed response body.
type FetchError struct {
	Op     string // "list topics", "refresh topic", "fetch messages"
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s: status %d: %v", e.Op, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// DecodeError reports a push-channel frame that could not be decoded.
// Channels log and skip these.
type DecodeError struct {
	Channel string // "poll" or "search"
	Topic   string
	Frame   string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s channel for %q: malformed frame: %v", e.Channel, e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// PublishError reports a failed publish with enough detail for the status line
type PublishError struct {
	Topic  string
	Status int
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish to %q failed: status %d: %v", e.Topic, e.Status, e.Err)
	}
	return fmt.Sprintf("publish to %q failed: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() []error { return []error{ErrPublish, e.Err} }

// InvalidRangeFormatError is returned for range text that is not "<start>-<end>"
type InvalidRangeFormatError struct {
	Input  string
	Reason string
}

func (e *InvalidRangeFormatError) Error() string {
	return fmt.Sprintf("invalid range %q: %s (want <start>-<end>)", e.Input, e.Reason)
}

func (e *InvalidRangeFormatError) Unwrap() error { return ErrInvalidRangeFormat }

// InvalidSearchRequestError is returned before any connection is made when
// the topic or keyword is missing.
type InvalidSearchRequestError struct {
	Topic   string
	Keyword string
}

func (e *InvalidSearchRequestError) Error() string {
	switch {
	case e.Topic == "":
		return "search needs a topic"
	case e.Keyword == "":
		return fmt.Sprintf("search on %q needs a keyword", e.Topic)
	}
	return fmt.Sprintf("invalid search on %q for %q", e.Topic, e.Keyword)
}

func (e *InvalidSearchRequestError) Unwrap() error { return ErrInvalidSearchRequest }

// InvalidRequestError is returned for other incomplete input rejected before
// any network call.
type InvalidRequestError struct {
	Op     string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvalidRequestError) Unwrap() error { return ErrInvalidRequest }
