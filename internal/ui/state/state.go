package state

import (
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/logic"
)

// Pane identifies the focused list
type Pane int

const (
	PaneTopics Pane = iota
	PanePartitions
	PaneMessages
	PaneMatches
)

func (p Pane) String() string {
	switch p {
	case PanePartitions:
		return "partitions"
	case PaneMessages:
		return "messages"
	case PaneMatches:
		return "matches"
	default:
		return "topics"
	}
}

// StatusKind colors the status line
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
	StatusLoading
)

// Session owns what the user picked. Nothing else holds these values; handlers
// get copies through Snapshot.
type Session struct {
	topic        string
	partitionID  int
	hasPartition bool
	rangeText    string
	keyword      string
}

// Selection is a read-only copy of a Session
type Selection struct {
	Topic        string
	PartitionID  int
	HasPartition bool
	RangeText    string
	Keyword      string
}

// Snapshot copies the current selection
func (s *Session) Snapshot() Selection {
	return Selection{
		Topic:        s.topic,
		PartitionID:  s.partitionID,
		HasPartition: s.hasPartition,
		RangeText:    s.rangeText,
		Keyword:      s.keyword,
	}
}

// SelectTopic switches topics. Partition and range are cleared when the
// topic actually changes. It reports whether it did.
func (s *Session) SelectTopic(name string) bool {
	if name == s.topic {
		return false
	}
	s.topic = name
	s.partitionID = 0
	s.hasPartition = false
	s.rangeText = ""
	return true
}

// SelectPartition picks a partition by id. Moving to another partition
// clears the range text so the default window applies.
func (s *Session) SelectPartition(id int) {
	if !s.hasPartition || s.partitionID != id {
		s.rangeText = ""
	}
	s.partitionID = id
	s.hasPartition = true
}

// ClearPartition forgets the partition
func (s *Session) ClearPartition() {
	s.partitionID = 0
	s.hasPartition = false
}

// SetRangeText stores the range field text as typed or resolved
func (s *Session) SetRangeText(text string) {
	s.rangeText = strings.TrimSpace(text)
}

// SetKeyword stores the active search keyword
func (s *Session) SetKeyword(keyword string) {
	s.keyword = strings.TrimSpace(keyword)
}

// AppState contains all the rendered application state
type AppState struct {
	// Topic directory
	Topics     []domain.Topic // display order
	NoTopics   bool           // backend reported the empty sentinel
	Loading    bool
	LastUpdate time.Time

	// Live channels
	Following string // topic with an open poll channel
	Searching bool   // a search channel is open

	// Partition data
	Messages      []domain.Message
	MessagesTopic string
	MessagesPart  int
	MessagesRange domain.MessageRange
	MessagesErr   error

	// Search results
	Matches domain.MatchList

	// Cursors
	Focus          Pane
	TopicIndex     int
	PartitionIndex int
	MessageOffset  int
	MatchOffset    int
	ViewportHeight int

	// Display
	FilterQuery   string
	SortMode      logic.SortMode
	ShowHelp      bool
	StatusMessage string
	StatusKind    StatusKind
}

// NewAppState creates a new application state
func NewAppState() *AppState {
	return &AppState{
		Topics:         make([]domain.Topic, 0),
		ViewportHeight: 20, // Default
	}
}

// SetTopics replaces the directory and keeps it sorted
func (s *AppState) SetTopics(topics []domain.Topic) {
	s.Topics = make([]domain.Topic, len(topics))
	for i, t := range topics {
		s.Topics[i] = t.Clone()
	}
	logic.SortTopics(s.Topics, s.SortMode)
	s.NoTopics = false
	s.Loading = false
	s.LastUpdate = time.Now()
	s.clampCursors()
}

// ClearTopics switches to the explicit empty state
func (s *AppState) ClearTopics() {
	s.Topics = s.Topics[:0]
	s.NoTopics = true
	s.Loading = false
	s.LastUpdate = time.Now()
	s.TopicIndex = 0
	s.PartitionIndex = 0
}

// UpdateTopic replaces one snapshot, appending it when new
func (s *AppState) UpdateTopic(t domain.Topic) {
	s.LastUpdate = time.Now()
	for i := range s.Topics {
		if s.Topics[i].Name == t.Name {
			s.Topics[i] = t.Clone()
			s.clampCursors()
			return
		}
	}
	s.Topics = append(s.Topics, t.Clone())
	logic.SortTopics(s.Topics, s.SortMode)
	s.NoTopics = false
}

// Topic looks up a topic by name
func (s *AppState) Topic(name string) (domain.Topic, bool) {
	for _, t := range s.Topics {
		if t.Name == name {
			return t, true
		}
	}
	return domain.Topic{}, false
}

// VisibleTopics applies the filter query
func (s *AppState) VisibleTopics() []domain.Topic {
	return FilterTopics(s.Topics, s.FilterQuery)
}

// TopicAtCursor returns the highlighted topic in the filtered list
func (s *AppState) TopicAtCursor() (domain.Topic, bool) {
	visible := s.VisibleTopics()
	if s.TopicIndex < 0 || s.TopicIndex >= len(visible) {
		return domain.Topic{}, false
	}
	return visible[s.TopicIndex], true
}

// Resort reorders topics for the current sort mode
func (s *AppState) Resort() {
	logic.SortTopics(s.Topics, s.SortMode)
}

// SetStatus sets the status line
func (s *AppState) SetStatus(kind StatusKind, msg string) {
	s.StatusKind = kind
	s.StatusMessage = msg
}

// MaxIndex returns the last valid cursor position for the focused pane
func (s *AppState) MaxIndex(sel Selection) int {
	return s.MaxIndexFor(s.Focus, sel)
}

// MaxIndexFor returns the last valid cursor position for pane, -1 when empty
func (s *AppState) MaxIndexFor(pane Pane, sel Selection) int {
	switch pane {
	case PanePartitions:
		if t, ok := s.Topic(sel.Topic); ok {
			return len(t.Partitions) - 1
		}
		return -1
	case PaneMessages:
		return len(s.Messages) - 1
	case PaneMatches:
		return s.Matches.Len() - 1
	default:
		return len(s.VisibleTopics()) - 1
	}
}

func (s *AppState) clampCursors() {
	if n := len(s.VisibleTopics()); s.TopicIndex >= n {
		s.TopicIndex = max(0, n-1)
	}
}

// FilterTopics keeps the topics whose name fuzzy-matches query, in their
// current order. Plain substring matching is the fallback.
func FilterTopics(topics []domain.Topic, query string) []domain.Topic {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return topics
	}
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(trimmed, names)
	if len(ranks) > 0 {
		matches := make(map[int]struct{}, len(ranks))
		for _, rank := range ranks {
			matches[rank.OriginalIndex] = struct{}{}
		}
		filtered := make([]domain.Topic, 0, len(matches))
		for idx, t := range topics {
			if _, ok := matches[idx]; ok {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) > 0 {
			return filtered
		}
	}

	lower := strings.ToLower(trimmed)
	filtered := make([]domain.Topic, 0, len(topics))
	for _, t := range topics {
		if strings.Contains(strings.ToLower(t.Name), lower) {
			filtered = append(filtered, t)
		}
	}
	return filtered
}
