package ui

import (
	"time"

	"kafkaviz/internal/eventbus"
)

// EventMsg wraps a domain event for the UI
type EventMsg struct {
	Event eventbus.DomainEvent
}

// tickMsg refreshes relative timestamps
type tickMsg time.Time

// quitMsg signals that the application should quit
type quitMsg struct{}
