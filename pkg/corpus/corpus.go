// Package corpus indexes grouped chapter data into entity-centric and
// event-centric lookup tables. An Index is built once per data load and is
// read-only afterwards.
package corpus

import (
	"sort"

	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// Group is a book: an ordered run of events sharing a group number.
type Group struct {
	Number int
	Name   string
	Events []EventData
}

// EventData is one chapter as it appears in the source data.
type EventData struct {
	ID           string // stable identifier, the chapter url
	Name         string
	Presence     []string // characters appearing in the chapter
	Active       []string // characters actively taking part
	PrimaryActor string   // point-of-view character, may be empty
	Date         string   // "MM/DD/YY" style, opaque to the index
	Module       int
	Meta         map[string]any
}

// Options selects which source lists make up an event's participants.
type Options struct {
	IncludePresence     bool
	IncludePrimaryActor bool
}

// DefaultOptions includes both presence and primary participation.
func DefaultOptions() Options {
	return Options{IncludePresence: true, IncludePrimaryActor: true}
}

// Event is an indexed chapter.
type Event struct {
	ID           string
	Name         string
	Group        int
	Position     int // order within the group
	Participants []string
	PrimaryActor string
	Date         string
	Module       int
	Meta         map[string]any

	primaryOnly map[string]bool
}

// PrimaryOnly reports whether name participates only through the primary
// source (active list or point of view) and not through presence.
func (e *Event) PrimaryOnly(name string) bool {
	return e.primaryOnly[name]
}

// Entity is an indexed character. Positions in a diagram are never stored
// here; they belong to a single matrix generation.
type Entity struct {
	ID              string
	Meta            map[string]any
	EventIDs        []string
	PrimaryEventIDs []string
}

// DanglingRef is an event participant with no entry in the entity table.
type DanglingRef struct {
	EventID  string
	EntityID string
}

// Diagnostics collects the data problems skipped during Build.
type Diagnostics struct {
	SkippedRefs     int
	Dangling        []DanglingRef
	DuplicateEvents []string
}

// Clean reports whether Build skipped nothing.
func (d Diagnostics) Clean() bool {
	return d.SkippedRefs == 0 && len(d.DuplicateEvents) == 0
}

// Index holds the lookup tables produced by Build.
type Index struct {
	opts     Options
	events   []*Event
	eventMap map[string]*Event
	entities map[string]*Entity
	names    []string
}

// Build indexes groups against the entity table. Dangling references and
// duplicate event IDs are skipped and reported, never fatal.
func Build(groups []Group, entities map[string]map[string]any, opts Options) (*Index, Diagnostics) {
	var diag Diagnostics
	idx := &Index{
		opts:     opts,
		eventMap: make(map[string]*Event),
		entities: make(map[string]*Entity, len(entities)),
		names:    make([]string, 0, len(entities)),
	}

	for name, meta := range entities {
		idx.entities[name] = &Entity{ID: name, Meta: meta}
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)

	ordered := make([]Group, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for _, g := range ordered {
		for pos, data := range g.Events {
			if _, dup := idx.eventMap[data.ID]; dup {
				diag.DuplicateEvents = append(diag.DuplicateEvents, data.ID)
				continue
			}
			ev := newEvent(g.Number, pos, data, opts)

			kept := ev.Participants[:0]
			for _, name := range ev.Participants {
				ent, ok := idx.entities[name]
				if !ok {
					diag.SkippedRefs++
					diag.Dangling = append(diag.Dangling, DanglingRef{EventID: ev.ID, EntityID: name})
					delete(ev.primaryOnly, name)
					continue
				}
				kept = append(kept, name)
				ent.EventIDs = append(ent.EventIDs, ev.ID)
				if ev.PrimaryActor == name {
					ent.PrimaryEventIDs = append(ent.PrimaryEventIDs, ev.ID)
				}
			}
			ev.Participants = kept

			idx.events = append(idx.events, ev)
			idx.eventMap[ev.ID] = ev
		}
	}

	if !diag.Clean() {
		logging.Warn("corpus built with skipped data",
			"skippedRefs", diag.SkippedRefs, "duplicateEvents", len(diag.DuplicateEvents))
	}
	logging.Debug("corpus built", "events", len(idx.events), "entities", len(idx.entities))
	return idx, diag
}

func newEvent(group, pos int, data EventData, opts Options) *Event {
	ev := &Event{
		ID:           data.ID,
		Name:         data.Name,
		Group:        group,
		Position:     pos,
		PrimaryActor: data.PrimaryActor,
		Date:         data.Date,
		Module:       data.Module,
		Meta:         data.Meta,
		primaryOnly:  make(map[string]bool),
	}

	seen := make(map[string]bool)
	if opts.IncludePresence {
		for _, name := range data.Presence {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			ev.Participants = append(ev.Participants, name)
		}
	}
	if opts.IncludePrimaryActor {
		primary := data.Active
		if data.PrimaryActor != "" {
			primary = append(append([]string{}, data.Active...), data.PrimaryActor)
		}
		for _, name := range primary {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			ev.Participants = append(ev.Participants, name)
			ev.primaryOnly[name] = true
		}
	}
	return ev
}

// Options returns the options the index was built with.
func (idx *Index) Options() Options {
	return idx.opts
}

// Event looks up an event by ID.
func (idx *Index) Event(id string) (*Event, bool) {
	ev, ok := idx.eventMap[id]
	return ev, ok
}

// Entity looks up an entity by ID.
func (idx *Index) Entity(id string) (*Entity, bool) {
	ent, ok := idx.entities[id]
	return ent, ok
}

// Events returns all events in group, then position, order.
func (idx *Index) Events() []*Event {
	return idx.events
}

// EntityIDs returns every entity ID, sorted.
func (idx *Index) EntityIDs() []string {
	return idx.names
}

// Groups returns the distinct group numbers present, ascending.
func (idx *Index) Groups() []int {
	var out []int
	for _, ev := range idx.events {
		if len(out) == 0 || out[len(out)-1] != ev.Group {
			out = append(out, ev.Group)
		}
	}
	return out
}
