// Package highlight tracks which arcs and chords of a chord diagram are
// emphasised while the pointer moves over it.
//
// The controller works purely on indices: arcs are entity indices of the
// current generation and chords are index pairs supplied by the layout. All
// transitions that reference an unknown arc or chord are no-ops, since hover
// events can arrive after a rebuild has replaced the geometry they refer to.
package highlight

import (
	"fmt"
	"sort"

	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// ChordID identifies a chord by its unordered index pair.
type ChordID string

// ArcRef addresses an arc.
type ArcRef struct {
	Index int `json:"index"`
}

// ChordRef addresses a chord. Source and Target follow the layout, which
// may put the larger endpoint first.
type ChordRef struct {
	Source int     `json:"source"`
	Target int     `json:"target"`
	ID     ChordID `json:"id"`
}

// NewChordRef builds a ref whose ID does not depend on endpoint order.
func NewChordRef(source, target int) ChordRef {
	lo, hi := source, target
	if lo > hi {
		lo, hi = hi, lo
	}
	return ChordRef{Source: source, Target: target, ID: ChordID(fmt.Sprintf("%d-%d", lo, hi))}
}

// Touches reports whether the chord has arc as an endpoint.
func (c ChordRef) Touches(arc int) bool {
	return c.Source == arc || c.Target == arc
}

// State is a copy of the controller's highlight state.
type State struct {
	Generation uint64 `json:"generation"`
	FadeArcs   bool   `json:"fadeArcs"`
	FadeChords bool   `json:"fadeChords"`
	Arcs       []int  `json:"arcs"`
	// Chords are sorted by ID.
	Chords       []ChordID `json:"chords"`
	CurrentChord *ChordID  `json:"currentChord,omitempty"`
	// ChordColors overrides the default (source) color index of a chord.
	ChordColors map[ChordID]int `json:"chordColors,omitempty"`
	// Front asks the renderer to paint this chord above its neighbours.
	Front *ChordID `json:"front,omitempty"`
}

// ArcHighlighted reports whether arc i is in the highlighted set.
func (s State) ArcHighlighted(i int) bool {
	idx := sort.SearchInts(s.Arcs, i)
	return idx < len(s.Arcs) && s.Arcs[idx] == i
}

// ChordHighlighted reports whether chord id is in the highlighted set.
func (s State) ChordHighlighted(id ChordID) bool {
	for _, c := range s.Chords {
		if c == id {
			return true
		}
	}
	return false
}

// Controller owns the highlight state of one diagram. It is not safe for
// concurrent use; hosts serialize calls.
type Controller struct {
	gen      uint64
	arcCount int
	chords   map[ChordID]ChordRef
	byArc    map[int][]ChordRef

	fadeArcs   bool
	fadeChords bool
	arcs       map[int]bool
	lit        map[ChordID]bool
	colors     map[ChordID]int
	current    *ChordRef
	front      *ChordID

	listeners []func(State)
}

// NewController returns a controller with no geometry; every transition is a
// no-op until Reset supplies arcs and chords.
func NewController() *Controller {
	c := &Controller{}
	c.Reset(0, 0, nil)
	return c
}

// OnChange registers fn to receive the state after each effective transition.
func (c *Controller) OnChange(fn func(State)) {
	c.listeners = append(c.listeners, fn)
}

// Reset installs the geometry of a new generation and clears all state.
func (c *Controller) Reset(gen uint64, arcCount int, chords []ChordRef) {
	c.gen = gen
	c.arcCount = arcCount
	c.chords = make(map[ChordID]ChordRef, len(chords))
	c.byArc = make(map[int][]ChordRef)
	for _, ch := range chords {
		if ch.ID == "" {
			ch = NewChordRef(ch.Source, ch.Target)
		}
		c.chords[ch.ID] = ch
		c.byArc[ch.Source] = append(c.byArc[ch.Source], ch)
		if ch.Target != ch.Source {
			c.byArc[ch.Target] = append(c.byArc[ch.Target], ch)
		}
	}
	c.clear()
	c.notify()
}

func (c *Controller) clear() {
	c.fadeArcs = false
	c.fadeChords = false
	c.arcs = make(map[int]bool)
	c.lit = make(map[ChordID]bool)
	c.colors = make(map[ChordID]int)
	c.current = nil
	c.front = nil
}

func (c *Controller) idle() bool {
	return !c.fadeArcs && !c.fadeChords && len(c.arcs) == 0 && len(c.lit) == 0 && c.current == nil && c.front == nil
}

// HoverArc fades everything except arc i, the chords touching it and the
// arcs at their other ends. Each such chord takes the color of its far
// endpoint. Returns false if i is not an arc of this generation.
func (c *Controller) HoverArc(i int) bool {
	if i < 0 || i >= c.arcCount {
		logging.Trace("ignoring hover on unknown arc", "index", i, "gen", c.gen)
		return false
	}

	c.clear()
	c.fadeArcs = true
	c.fadeChords = true
	c.arcs[i] = true

	for _, ch := range c.byArc[i] {
		c.lit[ch.ID] = true
		if ch.Source == i {
			c.colors[ch.ID] = ch.Target
			c.arcs[ch.Target] = true
		} else {
			c.colors[ch.ID] = ch.Source
			c.arcs[ch.Source] = true
		}
	}

	c.notify()
	return true
}

// UnhoverAll returns to the idle state. Calling it when already idle does
// nothing.
func (c *Controller) UnhoverAll() {
	if c.idle() {
		return
	}
	c.clear()
	c.notify()
}

// HoverChord fades all arcs except the chord's two endpoints and asks for
// the chord to be painted on top. An arc highlight still showing is cleared
// first. Returns false for unknown chords.
func (c *Controller) HoverChord(ref ChordRef) bool {
	ch, ok := c.resolve(ref)
	if !ok {
		logging.Trace("ignoring hover on unknown chord", "chord", string(ref.ID), "gen", c.gen)
		return false
	}

	c.clear()
	c.fadeArcs = true
	c.arcs[ch.Source] = true
	c.arcs[ch.Target] = true
	c.current = &ch
	id := ch.ID
	c.front = &id

	c.notify()
	return true
}

// UnhoverChord clears the chord highlight only if ref is still the chord
// being hovered. A late unhover for a chord the pointer already left is
// ignored so it cannot wipe the newer highlight.
func (c *Controller) UnhoverChord(ref ChordRef) bool {
	ch, ok := c.resolve(ref)
	if !ok || c.current == nil || c.current.ID != ch.ID {
		return false
	}

	c.clear()
	c.notify()
	return true
}

func (c *Controller) resolve(ref ChordRef) (ChordRef, bool) {
	id := ref.ID
	if id == "" {
		id = NewChordRef(ref.Source, ref.Target).ID
	}
	ch, ok := c.chords[id]
	return ch, ok
}

// ColorIndex is the palette index a chord should currently be drawn with.
func (c *Controller) ColorIndex(ref ChordRef) int {
	if ch, ok := c.resolve(ref); ok {
		if idx, over := c.colors[ch.ID]; over {
			return idx
		}
		return ch.Source
	}
	return ref.Source
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	s := State{
		Generation: c.gen,
		FadeArcs:   c.fadeArcs,
		FadeChords: c.fadeChords,
		Arcs:       make([]int, 0, len(c.arcs)),
		Chords:     make([]ChordID, 0, len(c.lit)),
	}
	for i := range c.arcs {
		s.Arcs = append(s.Arcs, i)
	}
	sort.Ints(s.Arcs)
	for id := range c.lit {
		s.Chords = append(s.Chords, id)
	}
	sort.Slice(s.Chords, func(a, b int) bool { return s.Chords[a] < s.Chords[b] })
	if len(c.colors) > 0 {
		s.ChordColors = make(map[ChordID]int, len(c.colors))
		for id, idx := range c.colors {
			s.ChordColors[id] = idx
		}
	}
	if c.current != nil {
		id := c.current.ID
		s.CurrentChord = &id
	}
	if c.front != nil {
		id := *c.front
		s.Front = &id
	}
	return s
}

func (c *Controller) notify() {
	if len(c.listeners) == 0 {
		return
	}
	s := c.State()
	for _, fn := range c.listeners {
		fn(s)
	}
}
