// Package layout turns a relationship matrix into chord diagram geometry:
// one arc per entity around the circle and one ribbon per related pair.
package layout

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/evnp/graph-of-thrones/pkg/matrix"
)

// Group is the arc of one entity.
type Group struct {
	Index      int     `json:"index"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	Value      float64 `json:"value"`
}

// Subgroup is the slice of Index's arc given to its relation with Subindex.
type Subgroup struct {
	Index      int     `json:"index"`
	Subindex   int     `json:"subindex"`
	StartAngle float64 `json:"startAngle"`
	EndAngle   float64 `json:"endAngle"`
	Value      float64 `json:"value"`
}

// Chord joins two subgroups. Source is the side with the larger value.
type Chord struct {
	Source Subgroup `json:"source"`
	Target Subgroup `json:"target"`
}

// Layout is the geometry for one matrix.
type Layout struct {
	Groups []Group `json:"groups"`
	Chords []Chord `json:"chords"`
}

// Layouter computes geometry for a matrix.
type Layouter interface {
	Compute(m *matrix.Matrix) Layout
}

// Order sorts values. Descending is the only order the diagram uses; nil
// keeps matrix order.
type Order func(a, b float64) bool

// Descending orders larger values first.
func Descending(a, b float64) bool { return a > b }

// ChordLayout spreads groups around the full circle in proportion to their
// row sums, leaving Padding radians between neighbours.
type ChordLayout struct {
	Padding       float64
	SortSubgroups Order
	SortChords    Order
}

// DefaultPadding separates arcs.
const DefaultPadding = 0.02

// NewChordLayout returns the layout used by the diagram: descending
// subgroups and chords with the default padding.
func NewChordLayout() *ChordLayout {
	return &ChordLayout{
		Padding:       DefaultPadding,
		SortSubgroups: Descending,
		SortChords:    Descending,
	}
}

// Compute implements Layouter.
func (l *ChordLayout) Compute(m *matrix.Matrix) Layout {
	n := m.Len()
	out := Layout{Groups: make([]Group, n), Chords: []Chord{}}
	if n == 0 {
		return out
	}

	sums := make([]float64, n)
	order := make([][]int, n)
	for i := 0; i < n; i++ {
		sums[i] = m.RowSum(i)
		order[i] = make([]int, n)
		for j := range order[i] {
			order[i][j] = j
		}
		if l.SortSubgroups != nil {
			row := m.Row(i)
			sort.SliceStable(order[i], func(a, b int) bool {
				return l.SortSubgroups(row[order[i][a]], row[order[i][b]])
			})
		}
	}

	total := floats.Sum(sums)
	k := 0.0
	if total > 0 {
		k = (2*math.Pi - l.Padding*float64(n)) / total
	}

	subgroups := make([][]Subgroup, n)
	x := 0.0
	for i := 0; i < n; i++ {
		x0 := x
		subgroups[i] = make([]Subgroup, n)
		for _, j := range order[i] {
			v := m.At(i, j)
			a0 := x
			x += v * k
			subgroups[i][j] = Subgroup{Index: i, Subindex: j, StartAngle: a0, EndAngle: x, Value: v}
		}
		out.Groups[i] = Group{Index: i, StartAngle: x0, EndAngle: x, Value: sums[i]}
		x += l.Padding
	}

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			src, dst := subgroups[i][j], subgroups[j][i]
			if src.Value == 0 && dst.Value == 0 {
				continue
			}
			if src.Value < dst.Value {
				src, dst = dst, src
			}
			out.Chords = append(out.Chords, Chord{Source: src, Target: dst})
		}
	}

	if l.SortChords != nil {
		sort.SliceStable(out.Chords, func(a, b int) bool {
			ca, cb := out.Chords[a], out.Chords[b]
			return l.SortChords((ca.Source.Value+ca.Target.Value)/2, (cb.Source.Value+cb.Target.Value)/2)
		})
	}
	return out
}
