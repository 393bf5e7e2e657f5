package pubsub

import (
	"github.com/evnp/graph-of-thrones/pkg/diagram"
	"github.com/evnp/graph-of-thrones/pkg/highlight"
	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// Event types.
const (
	TypeRebuilt = "rebuilt"
	TypeChanged = "changed"
)

// ConfigureDiagramTopics makes late subscribers start from the latest
// generation, highlight and status.
func ConfigureDiagramTopics(p *SSEPublisher) {
	for _, topic := range []string{TopicDiagram, TopicHighlight, TopicStatus} {
		p.ConfigureTopic(topic, TopicConfig{BufferSize: 1})
	}
}

// Attach publishes every rebuild of d on TopicDiagram and every highlight
// transition on TopicHighlight.
func Attach(d *diagram.Diagram, p Publisher) {
	d.OnRebuild(func(v *diagram.View) {
		if err := p.Publish(TopicDiagram, TypeRebuilt, v); err != nil {
			logging.Warn("failed to publish diagram", "gen", v.Generation, "error", err)
		}
	})
	d.OnHighlight(func(s highlight.State) {
		if err := p.Publish(TopicHighlight, TypeChanged, s); err != nil {
			logging.Warn("failed to publish highlight", "gen", s.Generation, "error", err)
		}
	})
}

// PublishStatus reports loading progress on TopicStatus.
func PublishStatus(p Publisher, state, message string, gen uint64) {
	if err := p.Publish(TopicStatus, state, Status{State: state, Message: message, Generation: gen}); err != nil {
		logging.Warn("failed to publish status", "state", state, "error", err)
	}
}
