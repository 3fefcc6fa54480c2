package logic

import (
	"sort"
	"strings"
	"sync"

	"kafkaviz/internal/domain"
)

// MemoryTopicStore is an in-memory implementation of TopicStore. Snapshots
// are replaced whole, never merged.
type MemoryTopicStore struct {
	mu     sync.RWMutex
	topics map[string]domain.Topic
}

// NewMemoryTopicStore creates a new memory-based topic store
func NewMemoryTopicStore() *MemoryTopicStore {
	return &MemoryTopicStore{
		topics: make(map[string]domain.Topic),
	}
}

func (s *MemoryTopicStore) GetTopic(name string) (domain.Topic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.topics[name]
	if !ok {
		return domain.Topic{}, false
	}
	return t.Clone(), true
}

// GetAllTopics returns copies sorted by name
func (s *MemoryTopicStore) GetAllTopics() []domain.Topic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Topic, 0, len(s.topics))
	for _, t := range s.topics {
		result = append(result, t.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// ReplaceAll swaps the whole directory
func (s *MemoryTopicStore) ReplaceAll(topics []domain.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = make(map[string]domain.Topic, len(topics))
	for _, t := range topics {
		s.topics[t.Name] = t.Clone()
	}
}

// UpdateTopic replaces one snapshot, adding it when unknown
func (s *MemoryTopicStore) UpdateTopic(topic domain.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic.Name] = topic.Clone()
}

func (s *MemoryTopicStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics = make(map[string]domain.Topic)
}

// SortTopics orders topics in place by mode. Ties fall back to name.
func SortTopics(topics []domain.Topic, mode SortMode) {
	sort.SliceStable(topics, func(i, j int) bool {
		a, b := topics[i], topics[j]
		switch mode {
		case SortByMessages:
			if a.TotalMessages() != b.TotalMessages() {
				return a.TotalMessages() > b.TotalMessages()
			}
		case SortByPartitions:
			if a.PartitionCount != b.PartitionCount {
				return a.PartitionCount > b.PartitionCount
			}
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
