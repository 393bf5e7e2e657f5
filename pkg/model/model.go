// Package model holds the current diagram generation: the ordered entity
// names, their matrix and the name-to-index mapping, swapped as one unit.
package model

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/evnp/graph-of-thrones/pkg/matrix"
)

// ErrInvalidMapping rejects a replacement whose names and matrix disagree.
var ErrInvalidMapping = errors.New("invalid entity mapping")

// Neighbor is one nonzero cell of a row.
type Neighbor struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Snapshot is one immutable generation. Indices from one Snapshot must not
// be used against another.
type Snapshot struct {
	Generation uint64
	names      []string
	matrix     *matrix.Matrix
	index      map[string]int
}

// Len is the number of entities in the view.
func (s *Snapshot) Len() int {
	return len(s.names)
}

// Names returns a copy of the ordered entity list.
func (s *Snapshot) Names() []string {
	return append([]string(nil), s.names...)
}

// Matrix returns the generation's matrix. Callers must not modify it.
func (s *Snapshot) Matrix() *matrix.Matrix {
	return s.matrix
}

func (s *Snapshot) valid(i int) bool {
	return i >= 0 && i < len(s.names)
}

// EntityAt returns the entity name at index i.
func (s *Snapshot) EntityAt(i int) (string, bool) {
	if !s.valid(i) {
		return "", false
	}
	return s.names[i], true
}

// IndexOf resolves a name to its index in this generation.
func (s *Snapshot) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// WeightBetween returns matrix[i][j], or 0 for indices outside the view.
func (s *Snapshot) WeightBetween(i, j int) float64 {
	if !s.valid(i) || !s.valid(j) {
		return 0
	}
	return s.matrix.At(i, j)
}

// NeighborsOf lists the nonzero cells of row i by descending weight, ties
// broken by index.
func (s *Snapshot) NeighborsOf(i int) []Neighbor {
	if !s.valid(i) {
		return nil
	}
	var out []Neighbor
	for j, w := range s.matrix.Row(i) {
		if w == 0 || j == i {
			continue
		}
		out = append(out, Neighbor{Index: j, Name: s.names[j], Weight: w})
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Weight != out[b].Weight {
			return out[a].Weight > out[b].Weight
		}
		return out[a].Index < out[b].Index
	})
	return out
}

// Model publishes Snapshots. Writers are expected to be serialized by the
// caller; readers on any goroutine see either the old or the new generation.
type Model struct {
	current atomic.Pointer[Snapshot]
	gen     atomic.Uint64
}

// New returns a model holding an empty generation 0.
func New() *Model {
	m := &Model{}
	m.current.Store(&Snapshot{matrix: matrix.New(0), index: map[string]int{}})
	return m
}

// Replace installs names and m as the next generation. On a shape mismatch
// or duplicate name the current generation is left untouched.
func (md *Model) Replace(names []string, m *matrix.Matrix) (*Snapshot, error) {
	if m == nil || m.Len() != len(names) {
		size := -1
		if m != nil {
			size = m.Len()
		}
		return nil, fmt.Errorf("%w: %d names for a %d-row matrix", ErrInvalidMapping, len(names), size)
	}
	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidMapping, name)
		}
		index[name] = i
	}

	snap := &Snapshot{
		Generation: md.gen.Add(1),
		names:      append([]string(nil), names...),
		matrix:     m,
		index:      index,
	}
	md.current.Store(snap)
	return snap, nil
}

// Current returns the latest generation.
func (md *Model) Current() *Snapshot {
	return md.current.Load()
}

// WeightBetween queries the latest generation; see Snapshot.WeightBetween.
func (md *Model) WeightBetween(i, j int) float64 {
	return md.Current().WeightBetween(i, j)
}

// NeighborsOf queries the latest generation; see Snapshot.NeighborsOf.
func (md *Model) NeighborsOf(i int) []Neighbor {
	return md.Current().NeighborsOf(i)
}

// EntityAt queries the latest generation; see Snapshot.EntityAt.
func (md *Model) EntityAt(i int) (string, bool) {
	return md.Current().EntityAt(i)
}
