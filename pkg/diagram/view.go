package diagram

import (
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/highlight"
	"github.com/evnp/graph-of-thrones/pkg/layout"
	"github.com/evnp/graph-of-thrones/pkg/matrix"
	"github.com/evnp/graph-of-thrones/pkg/model"
)

// View is everything a renderer needs to draw one generation.
type View struct {
	Generation uint64          `json:"generation"`
	Names      []string        `json:"names"`
	Matrix     *matrix.Matrix  `json:"matrix"`
	Layout     layout.Layout   `json:"layout"`
	Colors     []string        `json:"colors"`
	Ticks      [][]layout.Tick `json:"ticks"`
	Diff       Diff            `json:"diff"`
	Filter     *filter.Config  `json:"filter,omitempty"`
	Stats      matrix.Stats    `json:"stats"`

	snap *model.Snapshot
}

func emptyView(snap *model.Snapshot) *View {
	return &View{
		Generation: snap.Generation,
		Names:      []string{},
		Matrix:     snap.Matrix(),
		Layout:     layout.Layout{Groups: []layout.Group{}, Chords: []layout.Chord{}},
		Colors:     []string{},
		Ticks:      [][]layout.Tick{},
		Diff:       Compare(nil, nil),
		snap:       snap,
	}
}

// WeightBetween returns the weight of (i, j) in this view's generation.
func (v *View) WeightBetween(i, j int) float64 {
	return v.snap.WeightBetween(i, j)
}

// NeighborsOf lists entities related to i in this view's generation,
// strongest first.
func (v *View) NeighborsOf(i int) []model.Neighbor {
	return v.snap.NeighborsOf(i)
}

// ChordRefs converts layout chords into the references the highlight
// controller tracks.
func ChordRefs(l layout.Layout) []highlight.ChordRef {
	refs := make([]highlight.ChordRef, len(l.Chords))
	for i, c := range l.Chords {
		refs[i] = highlight.NewChordRef(c.Source.Index, c.Target.Index)
	}
	return refs
}

// Associate is one entry of an entity's info panel.
type Associate struct {
	Index  int     `json:"index"`
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Color  string  `json:"color"`
}

// EntityInfo describes an entity of the current generation.
type EntityInfo struct {
	Generation  uint64         `json:"generation"`
	Index       int            `json:"index"`
	Name        string         `json:"name"`
	Color       string         `json:"color"`
	Meta        map[string]any `json:"meta"`
	Chapters    int            `json:"chapters"`
	POVChapters int            `json:"povChapters"`
	Associates  []Associate    `json:"associates"`
	// Others counts associates beyond the listed ones.
	Others int `json:"others"`
}
