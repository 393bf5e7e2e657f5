package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// subscriberBuffer bounds how far a slow client may fall behind before
// events are dropped for it.
const subscriberBuffer = 100

// TopicConfig controls what a new subscriber receives on connect.
type TopicConfig struct {
	BufferSize int  // events kept for replay, 0 disables replay
	ReplayAll  bool // replay the whole buffer instead of the last event
}

type topicState struct {
	config  TopicConfig
	version int
	recent  []Event
	subs    map[string]*sseSubscription
}

// replay returns the events a new subscriber starts with.
func (t *topicState) replay() []Event {
	if len(t.recent) == 0 || t.config.ReplayAll {
		return t.recent
	}
	return t.recent[len(t.recent)-1:]
}

func (t *topicState) remember(event Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.recent = append(t.recent, event)
	if over := len(t.recent) - t.config.BufferSize; over > 0 {
		t.recent = append([]Event(nil), t.recent[over:]...)
	}
}

// SSEPublisher implements Publisher for SSE handlers. Subscriptions are
// per client; each gets its own bounded queue.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topicState
	closed bool
}

// NewSSEPublisher returns a publisher with no topics configured.
func NewSSEPublisher() *SSEPublisher {
	return &SSEPublisher{topics: make(map[string]*topicState)}
}

// topic returns the state for name, creating it. Callers hold p.mu.
func (p *SSEPublisher) topic(name string) *topicState {
	t, ok := p.topics[name]
	if !ok {
		t = &topicState{subs: make(map[string]*sseSubscription)}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets the replay behaviour of topic. Events already
// buffered beyond the new size are discarded on the next publish.
func (p *SSEPublisher) ConfigureTopic(topic string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(topic).config = config
}

// Subscribe registers a subscriber that first receives the buffered events
// of topic. The subscription ends when ctx is done or Close is called; its
// event channel is then closed.
func (p *SSEPublisher) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		id:        uuid.NewString(),
		topic:     topic,
		events:    make(chan Event, subscriberBuffer),
		publisher: p,
	}
	t := p.topic(topic)
	t.subs[sub.id] = sub

	// Replaying under the lock keeps replayed events ahead of new ones.
	replay := t.replay()
	for _, event := range replay {
		select {
		case sub.events <- event:
		default:
			logging.Warn("replay exceeds subscriber queue", "topic", topic, "subscriber", sub.id)
		}
	}
	if len(replay) > 0 {
		logging.Debug("replayed events", "topic", topic, "count", len(replay), "subscriber", sub.id)
	}

	go func() {
		<-ctx.Done()
		sub.Close()
	}()

	return sub, nil
}

// Publish sends an event to all current subscribers without blocking. A
// subscriber whose queue is full misses the event.
func (p *SSEPublisher) Publish(topic string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}

	t := p.topic(topic)
	t.version++
	event := Event{Topic: topic, Type: eventType, Data: payload, Version: t.version}
	t.remember(event)

	for _, sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscriber queue full, dropping event",
				"topic", topic, "subscriber", sub.id, "version", event.Version)
		}
	}
	return nil
}

// Close ends every subscription. Later calls to Publish and Subscribe
// return ErrClosed.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, t := range p.topics {
		for id, sub := range t.subs {
			close(sub.events)
			delete(t.subs, id)
		}
	}
	return nil
}

// drop removes sub and closes its channel unless Close already did.
func (p *SSEPublisher) drop(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[sub.topic]; ok {
		if _, live := t.subs[sub.id]; live {
			delete(t.subs, sub.id)
			close(sub.events)
		}
	}
}

type sseSubscription struct {
	id        string
	topic     string
	events    chan Event
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) ID() string           { return s.id }
func (s *sseSubscription) Topic() string        { return s.topic }
func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Close() error {
	s.once.Do(func() { s.publisher.drop(s) })
	return nil
}

// WriteSSE writes event as one SSE frame: "id: <version>\ndata: {json}\n\n".
func WriteSSE(w io.Writer, event Event) error {
	frame, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.Version, frame)
	return err
}
