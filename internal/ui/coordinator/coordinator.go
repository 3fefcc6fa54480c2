// Package coordinator turns user intents into bus requests and applies the
// results onto the render state.
package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/live"
	"kafkaviz/internal/offsets"
	"kafkaviz/internal/ui/state"
)

// maxMatchBatch bounds how many queued matches one drain step applies
const maxMatchBatch = 256

// SearchRegistry opens and closes search channels, one per topic
type SearchRegistry interface {
	Start(ctx context.Context, topic, keyword string) (*live.SearchHandle, error)
	Stop(topic string) bool
	StopAll()
}

// SearchStartedMsg reports the outcome of opening a search
type SearchStartedMsg struct {
	Gen     uint64
	Topic   string
	Keyword string
	Err     error
	handle  *live.SearchHandle
}

// MatchesMsg carries matches drained from a search
type MatchesMsg struct {
	Gen     uint64
	Matches []domain.SearchMatch
	handle  *live.SearchHandle
}

// SearchEndedMsg reports that the active search channel closed
type SearchEndedMsg struct {
	Gen   uint64
	Topic string
	Err   error
}

// Coordinator owns the session and the render state. All methods run on the
// Bubble Tea update goroutine; only the commands they return run elsewhere.
type Coordinator struct {
	bus      eventbus.EventBus
	searches SearchRegistry
	log      zerolog.Logger
	window   int64

	session *state.Session
	state   *state.AppState

	ctx    context.Context
	cancel context.CancelFunc

	// searchGen is read by start commands off the update goroutine
	searchGen   atomic.Uint64
	searchTopic string
	startMu     sync.Mutex
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLogger attaches a logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log.With().Str("component", "coordinator").Logger()
	}
}

// WithDefaultWindow sets how many offsets before the newest the default range covers
func WithDefaultWindow(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.window = int64(n)
		}
	}
}

// New creates a coordinator
func New(bus eventbus.EventBus, searches SearchRegistry, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		bus:      bus,
		searches: searches,
		log:      zerolog.Nop(),
		window:   offsets.DefaultWindow,
		session:  &state.Session{},
		state:    state.NewAppState(),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the render state
func (c *Coordinator) State() *state.AppState { return c.state }

// Selection returns a copy of the current selection
func (c *Coordinator) Selection() state.Selection { return c.session.Snapshot() }

// Close stops every search and cancels pending dials
func (c *Coordinator) Close() {
	c.cancel()
	c.searchGen.Add(1)
	c.searches.StopAll()
}

// LoadTopics requests the full directory
func (c *Coordinator) LoadTopics() {
	c.state.Loading = true
	c.state.SetStatus(state.StatusLoading, "Loading topics...")
	c.bus.Publish(domain.TopicsRequestedEvent{})
}

// RefreshSelected re-reads the selected topic's metadata
func (c *Coordinator) RefreshSelected() {
	sel := c.session.Snapshot()
	if sel.Topic == "" {
		c.LoadTopics()
		return
	}
	c.bus.Publish(domain.TopicRefreshRequestedEvent{Topic: sel.Topic})
}

// SelectTopic makes name the selected topic and follows it
func (c *Coordinator) SelectTopic(name string) {
	if !c.session.SelectTopic(name) {
		return
	}
	c.state.PartitionIndex = 0
	c.state.Messages = nil
	c.state.MessagesErr = nil
	c.state.MessageOffset = 0
	c.bus.Publish(domain.PollRequestedEvent{Topic: name})
}

// ToggleFollow starts or stops live updates for the selected topic
func (c *Coordinator) ToggleFollow() {
	sel := c.session.Snapshot()
	if sel.Topic == "" {
		return
	}
	if c.state.Following == sel.Topic {
		c.bus.Publish(domain.PollStopRequestedEvent{})
		return
	}
	c.bus.Publish(domain.PollRequestedEvent{Topic: sel.Topic})
}

// SelectPartition resolves the range for partition id, writes it back into
// the range field and requests the messages.
func (c *Coordinator) SelectPartition(id int) error {
	sel := c.session.Snapshot()
	topic, ok := c.state.Topic(sel.Topic)
	if !ok {
		return &domain.InvalidRequestError{Op: "select partition", Reason: "no topic selected"}
	}
	if _, ok := topic.Partition(id); !ok {
		return &domain.InvalidRequestError{Op: "select partition", Reason: fmt.Sprintf("topic %s has no partition %d", topic.Name, id)}
	}
	c.session.SelectPartition(id)
	return c.fetch(topic, c.session.Snapshot().RangeText)
}

// ApplyRange refetches the selected partition with typed range text. The
// text is kept only once it resolves, so a bad range never sticks.
func (c *Coordinator) ApplyRange(text string) error {
	sel := c.session.Snapshot()
	if !sel.HasPartition {
		if strings.TrimSpace(text) != "" {
			if _, err := offsets.Parse(text); err != nil {
				c.state.SetStatus(state.StatusError, err.Error())
				return err
			}
		}
		c.session.SetRangeText(text)
		return nil
	}
	topic, ok := c.state.Topic(sel.Topic)
	if !ok {
		return &domain.InvalidRequestError{Op: "apply range", Reason: "no topic selected"}
	}
	return c.fetch(topic, text)
}

// fetch resolves text for the selected partition, writes the resolved range
// back into the session and requests the messages
func (c *Coordinator) fetch(topic domain.Topic, text string) error {
	sel := c.session.Snapshot()
	part, _ := topic.Partition(sel.PartitionID)

	rng, err := offsets.ResolveWindow(text, part.MessageCount, c.window)
	if err != nil {
		c.state.SetStatus(state.StatusError, err.Error())
		return err
	}
	c.session.SetRangeText(rng.String())

	c.state.MessagesTopic = topic.Name
	c.state.MessagesPart = sel.PartitionID
	c.state.MessagesRange = rng
	c.state.MessagesErr = nil
	c.state.MessageOffset = 0
	c.state.SetStatus(state.StatusLoading, fmt.Sprintf("Fetching %s/%d [%s]...", topic.Name, sel.PartitionID, rng))
	c.bus.Publish(domain.MessagesRequestedEvent{Topic: topic.Name, PartitionID: sel.PartitionID, Range: rng})
	return nil
}

// Publish sends payload to the selected topic
func (c *Coordinator) Publish(payload string) error {
	sel := c.session.Snapshot()
	if sel.Topic == "" {
		err := &domain.PublishError{Err: fmt.Errorf("topic is required")}
		c.state.SetStatus(state.StatusError, err.Error())
		return err
	}
	c.state.SetStatus(state.StatusLoading, fmt.Sprintf("Publishing to %s...", sel.Topic))
	c.bus.Publish(domain.PublishRequestedEvent{Topic: sel.Topic, Payload: payload})
	return nil
}

// StartSearch returns the command that opens a search on the selected topic.
// The dial runs off the update goroutine and reports back with a
// SearchStartedMsg. An invalid request keeps the current search.
func (c *Coordinator) StartSearch(keyword string) tea.Cmd {
	sel := c.session.Snapshot()
	if err := live.ValidateSearch(sel.Topic, keyword); err != nil {
		c.state.SetStatus(state.StatusError, err.Error())
		return nil
	}

	// Only one match list is shown, so a search elsewhere ends the old one
	if c.searchTopic != "" && c.searchTopic != sel.Topic {
		c.searches.Stop(c.searchTopic)
	}

	gen := c.searchGen.Add(1)
	topic := sel.Topic
	c.searchTopic = topic
	c.state.Searching = true
	c.state.SetStatus(state.StatusLoading, fmt.Sprintf("Opening search on %s...", topic))

	return func() tea.Msg {
		// starts run one at a time and in order, a later one skips this dial
		c.startMu.Lock()
		defer c.startMu.Unlock()
		if c.searchGen.Load() != gen {
			return SearchStartedMsg{Gen: gen, Topic: topic, Keyword: keyword, Err: context.Canceled}
		}
		h, err := c.searches.Start(c.ctx, topic, keyword)
		return SearchStartedMsg{Gen: gen, Topic: topic, Keyword: keyword, Err: err, handle: h}
	}
}

// ApplySearchStarted installs a freshly opened search and returns the
// command that drains it. Results for a superseded search are ignored.
func (c *Coordinator) ApplySearchStarted(msg SearchStartedMsg) tea.Cmd {
	if msg.Gen != c.searchGen.Load() {
		// stopped while dialing; a newer start on the same topic replaces it
		if msg.handle != nil && c.searchTopic != msg.Topic {
			c.searches.Stop(msg.Topic)
		}
		return nil
	}
	if msg.Err != nil {
		// the previous search is already closed at this point
		c.searchGen.Add(1)
		c.searchTopic = ""
		c.state.Searching = false
		c.log.Error().Err(msg.Err).Str("topic", msg.Topic).Msg("start search")
		c.state.SetStatus(state.StatusError, fmt.Sprintf("Search failed: %v", msg.Err))
		return nil
	}

	h := msg.handle
	c.session.SetKeyword(h.Keyword())
	c.state.Matches.Reset(h.Topic(), h.Keyword())
	c.state.MatchOffset = 0
	c.state.SetStatus(state.StatusInfo, fmt.Sprintf("Searching %s for %q", h.Topic(), h.Keyword()))
	return drain(msg.Gen, h)
}

// StopSearch closes the active search. Matches stay on screen.
func (c *Coordinator) StopSearch() {
	if c.searchTopic == "" {
		return
	}
	c.searchGen.Add(1)
	c.searches.Stop(c.searchTopic)
	c.searchTopic = ""
	c.state.Searching = false
	c.state.SetStatus(state.StatusInfo, fmt.Sprintf("Search stopped, %s matches", humanize.Comma(int64(c.state.Matches.Len()))))
}

// ApplyMatches appends drained matches and schedules the next drain. Batches
// from a superseded search are ignored.
func (c *Coordinator) ApplyMatches(msg MatchesMsg) tea.Cmd {
	if msg.Gen != c.searchGen.Load() {
		return nil
	}
	for _, m := range msg.Matches {
		c.state.Matches.Append(m)
	}
	return drain(msg.Gen, msg.handle)
}

// ApplySearchEnded marks the search closed if it is still the active one
func (c *Coordinator) ApplySearchEnded(msg SearchEndedMsg) {
	if msg.Gen != c.searchGen.Load() {
		return
	}
	c.searchTopic = ""
	c.state.Searching = false
	if msg.Err != nil {
		c.state.SetStatus(state.StatusError, fmt.Sprintf("Search on %s ended: %v", msg.Topic, msg.Err))
		return
	}
	c.state.SetStatus(state.StatusInfo, fmt.Sprintf("Search on %s finished, %s matches", msg.Topic, humanize.Comma(int64(c.state.Matches.Len()))))
}

// drain waits for the next match, then takes whatever else is already queued
func drain(gen uint64, h *live.SearchHandle) tea.Cmd {
	return func() tea.Msg {
		m, ok := <-h.Matches()
		if !ok {
			return SearchEndedMsg{Gen: gen, Topic: h.Topic(), Err: h.Err()}
		}
		batch := []domain.SearchMatch{m}
		for len(batch) < maxMatchBatch {
			select {
			case m, ok := <-h.Matches():
				if !ok {
					return MatchesMsg{Gen: gen, Matches: batch, handle: h}
				}
				batch = append(batch, m)
			default:
				return MatchesMsg{Gen: gen, Matches: batch, handle: h}
			}
		}
		return MatchesMsg{Gen: gen, Matches: batch, handle: h}
	}
}

// Update routes search messages. It reports whether msg was one of them.
func (c *Coordinator) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case SearchStartedMsg:
		return c.ApplySearchStarted(msg), true
	case MatchesMsg:
		return c.ApplyMatches(msg), true
	case SearchEndedMsg:
		c.ApplySearchEnded(msg)
		return nil, true
	}
	return nil, false
}

// Apply folds a bus event into the render state
func (c *Coordinator) Apply(event eventbus.DomainEvent) {
	switch e := event.(type) {
	case domain.TopicsLoadedEvent:
		c.state.SetTopics(e.Topics)
		c.state.SetStatus(state.StatusSuccess, fmt.Sprintf("Loaded %d topics", len(e.Topics)))
		c.dropMissingSelection()

	case domain.NoTopicsFoundEvent:
		c.state.ClearTopics()
		c.state.SetStatus(state.StatusInfo, "No topics found")
		c.dropMissingSelection()

	case domain.TopicUpdatedEvent:
		c.state.UpdateTopic(e.Topic)
		if e.Source == "refresh" {
			c.state.SetStatus(state.StatusSuccess, fmt.Sprintf("%s: %s messages", e.Topic.Name, humanize.Comma(e.Topic.TotalMessages())))
		}

	case domain.MessagesLoadedEvent:
		// a later selection supersedes this result
		if e.Topic != c.state.MessagesTopic || e.PartitionID != c.state.MessagesPart || e.Range != c.state.MessagesRange {
			return
		}
		if e.Err != nil {
			c.state.Messages = nil
			c.state.MessagesErr = e.Err
			c.state.SetStatus(state.StatusError, fmt.Sprintf("Fetch failed: %v", e.Err))
			return
		}
		c.state.Messages = e.Messages
		c.state.MessagesErr = nil
		c.state.SetStatus(state.StatusSuccess, fmt.Sprintf("%s messages from %s/%d", humanize.Comma(int64(len(e.Messages))), e.Topic, e.PartitionID))

	case domain.PublishCompletedEvent:
		if e.Err != nil {
			c.state.SetStatus(state.StatusError, e.Err.Error())
			return
		}
		c.state.SetStatus(state.StatusSuccess, fmt.Sprintf("Published to %s", e.Topic))
		c.bus.Publish(domain.TopicRefreshRequestedEvent{Topic: e.Topic})

	case domain.PollStartedEvent:
		c.state.Following = e.Topic

	case domain.PollEndedEvent:
		if c.state.Following == e.Topic {
			c.state.Following = ""
		}
		if e.Err != nil {
			c.state.SetStatus(state.StatusError, fmt.Sprintf("Live updates for %s stopped: %v", e.Topic, e.Err))
		}

	case domain.ErrorEvent:
		if e.Err != nil {
			c.state.SetStatus(state.StatusError, fmt.Sprintf("%s: %v", e.Message, e.Err))
		} else {
			c.state.SetStatus(state.StatusError, e.Message)
		}
	}
}

// dropMissingSelection forgets a selected topic that left the directory
func (c *Coordinator) dropMissingSelection() {
	sel := c.session.Snapshot()
	if sel.Topic == "" {
		return
	}
	if _, ok := c.state.Topic(sel.Topic); ok {
		return
	}
	c.session.SelectTopic("")
	c.state.Messages = nil
	c.bus.Publish(domain.PollStopRequestedEvent{})
}

// Events lists the bus events Apply understands
func Events() []eventbus.EventType {
	return []eventbus.EventType{
		eventbus.EventTopicsLoaded,
		eventbus.EventNoTopicsFound,
		eventbus.EventTopicUpdated,
		eventbus.EventMessagesLoaded,
		eventbus.EventPublishCompleted,
		eventbus.EventPollStarted,
		eventbus.EventPollEnded,
		eventbus.EventError,
	}
}
