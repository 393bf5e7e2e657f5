// Package pubsub fans diagram updates out to browser clients over
// Server-Sent Events.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
)

// Topics published by the diagram server.
const (
	TopicDiagram   = "diagram"
	TopicHighlight = "highlight"
	TopicStatus    = "status"
)

// ErrClosed is returned after the publisher has shut down.
var ErrClosed = errors.New("publisher is closed")

// Event is one message on a topic.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g. "rebuilt", "changed", "loading"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic, increasing
}

// Subscription delivers the events of one topic to one client.
type Subscription interface {
	ID() string
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher manages subscriptions and event publishing.
type Publisher interface {
	// Subscribe registers for a topic until ctx is done or Close is called.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends data, marshalled as JSON, to all subscribers of topic.
	Publish(topic string, eventType string, data any) error

	Close() error
}

// Status reports corpus loading progress.
type Status struct {
	State      string `json:"state"` // loading, ready, error
	Message    string `json:"message"`
	Generation uint64 `json:"generation"`
}
