package logic

import (
	"fmt"
	"strings"

	"kafkaviz/internal/domain"
)

// TopicStore provides access to the latest topic snapshots
type TopicStore interface {
	GetTopic(name string) (domain.Topic, bool)
	GetAllTopics() []domain.Topic
	ReplaceAll(topics []domain.Topic)
	UpdateTopic(topic domain.Topic)
	Clear()
}

// Sort modes
type SortMode int

const (
	SortByName SortMode = iota
	SortByMessages
	SortByPartitions
)

func (m SortMode) String() string {
	switch m {
	case SortByMessages:
		return "messages"
	case SortByPartitions:
		return "partitions"
	default:
		return "name"
	}
}

// Next cycles to the following sort mode
func (m SortMode) Next() SortMode {
	return (m + 1) % 3
}

// ParseSortMode reads a mode name as written by String. Empty means by name.
func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortByName, nil
	case "messages":
		return SortByMessages, nil
	case "partitions":
		return SortByPartitions, nil
	}
	return SortByName, fmt.Errorf("unknown sort mode %q (want name, messages or partitions)", s)
}
