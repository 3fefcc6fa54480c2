package domain

// EventType represents the type of domain event
type EventType string

// Event types
const (
	// Requests published by the UI or CLI
	EventTopicsRequested       EventType = "TopicsRequested"
	EventTopicRefreshRequested EventType = "TopicRefreshRequested"
	EventMessagesRequested     EventType = "MessagesRequested"
	EventPublishRequested      EventType = "PublishRequested"
	EventPollRequested         EventType = "PollRequested"
	EventPollStopRequested     EventType = "PollStopRequested"

	// Results published by the topic service
	EventTopicsLoaded     EventType = "TopicsLoaded"
	EventNoTopicsFound    EventType = "NoTopicsFound"
	EventTopicUpdated     EventType = "TopicUpdated"
	EventMessagesLoaded   EventType = "MessagesLoaded"
	EventPublishCompleted EventType = "PublishCompleted"
	EventPollStarted      EventType = "PollStarted"
	EventPollEnded        EventType = "PollEnded"
	EventError            EventType = "Error"

	EventConfigLoaded EventType = "ConfigLoaded"
	EventConfigSaved  EventType = "ConfigSaved"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	Type() EventType
}

// TopicsRequestedEvent asks for a full directory fetch
type TopicsRequestedEvent struct{}

func (e TopicsRequestedEvent) Type() EventType { return EventTopicsRequested }

// TopicRefreshRequestedEvent asks for a single-topic metadata refresh
type TopicRefreshRequestedEvent struct {
	Topic string
}

func (e TopicRefreshRequestedEvent) Type() EventType { return EventTopicRefreshRequested }

// MessagesRequestedEvent asks for one range of one partition
type MessagesRequestedEvent struct {
	Topic       string
	PartitionID int
	Range       MessageRange
}

func (e MessagesRequestedEvent) Type() EventType { return EventMessagesRequested }

// PublishRequestedEvent asks for one message to be published
type PublishRequestedEvent struct {
	Topic   string
	Payload string
}

func (e PublishRequestedEvent) Type() EventType { return EventPublishRequested }

// PollRequestedEvent asks to follow a topic's metadata. Any previously
// followed topic is dropped.
type PollRequestedEvent struct {
	Topic string
}

func (e PollRequestedEvent) Type() EventType { return EventPollRequested }

// PollStopRequestedEvent stops following the current topic
type PollStopRequestedEvent struct{}

func (e PollStopRequestedEvent) Type() EventType { return EventPollStopRequested }

// TopicsLoadedEvent carries a fresh directory
type TopicsLoadedEvent struct {
	Topics []Topic
}

func (e TopicsLoadedEvent) Type() EventType { return EventTopicsLoaded }

// NoTopicsFoundEvent is emitted when the directory holds only the empty sentinel
type NoTopicsFoundEvent struct{}

func (e NoTopicsFoundEvent) Type() EventType { return EventNoTopicsFound }

// TopicUpdatedEvent carries a replacement snapshot for one topic
type TopicUpdatedEvent struct {
	Topic  Topic
	Source string // "poll" or "refresh"
}

func (e TopicUpdatedEvent) Type() EventType { return EventTopicUpdated }

// MessagesLoadedEvent carries the result of a MessagesRequestedEvent
type MessagesLoadedEvent struct {
	Topic       string
	PartitionID int
	Range       MessageRange
	Messages    []Message
	Err         error
}

func (e MessagesLoadedEvent) Type() EventType { return EventMessagesLoaded }

// PublishCompletedEvent reports the outcome of a publish
type PublishCompletedEvent struct {
	Topic   string
	Payload string
	Err     error // *PublishError on failure
}

func (e PublishCompletedEvent) Type() EventType { return EventPublishCompleted }

// PollStartedEvent is emitted once a poll channel is open
type PollStartedEvent struct {
	Topic string
}

func (e PollStartedEvent) Type() EventType { return EventPollStarted }

// PollEndedEvent is emitted when a poll channel terminates
type PollEndedEvent struct {
	Topic string
	Err   error // nil when closed on request
}

func (e PollEndedEvent) Type() EventType { return EventPollEnded }

// ErrorEvent is emitted when an error occurs
type ErrorEvent struct {
	Message string
	Err     error
}

func (e ErrorEvent) Type() EventType { return EventError }

// ConfigLoadedEvent is emitted when configuration is loaded
type ConfigLoadedEvent struct {
	Path string
}

func (e ConfigLoadedEvent) Type() EventType { return EventConfigLoaded }

// ConfigSavedEvent is emitted when configuration is saved
type ConfigSavedEvent struct {
	Path string
}

func (e ConfigSavedEvent) Type() EventType { return EventConfigSaved }
