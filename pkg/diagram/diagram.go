// Package diagram owns one interactive chord diagram: the current model
// generation, its layout and colors, and the highlight controller driven by
// pointer events.
package diagram

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/highlight"
	"github.com/evnp/graph-of-thrones/pkg/layout"
	"github.com/evnp/graph-of-thrones/pkg/logging"
	"github.com/evnp/graph-of-thrones/pkg/matrix"
	"github.com/evnp/graph-of-thrones/pkg/model"
)

var (
	// ErrUnknownEntity is returned for names outside the current generation.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrNoCorpus is returned by rebuilds before a corpus has been set.
	ErrNoCorpus = errors.New("no corpus loaded")
)

// DefaultAssociateLimit is how many associates an info panel lists.
const DefaultAssociateLimit = 10

// Options configures a Diagram. Zero values fall back to the defaults.
type Options struct {
	Matrix   matrix.Options
	Layouter layout.Layouter
	Colors   *layout.ColorScale
}

// Diagram ties a corpus to a rendered relationship view. Rebuilds are
// serialized; highlight transitions and queries may run concurrently with
// them and always see one consistent generation.
type Diagram struct {
	buildMu sync.Mutex

	mu      sync.Mutex
	corpus  *corpus.Index
	cfg     filter.Config
	hash    string
	view    *View
	hl      *highlight.Controller
	pending []highlight.State
	next    *filter.Config

	onView      []func(*View)
	onHighlight []func(highlight.State)

	model    *model.Model
	layouter layout.Layouter
	colors   *layout.ColorScale
	opts     matrix.Options

	wake chan struct{}
}

// New creates a diagram over idx, which may be nil until SetCorpus.
func New(idx *corpus.Index, opts Options) *Diagram {
	if opts.Layouter == nil {
		opts.Layouter = layout.NewChordLayout()
	}
	if opts.Colors == nil {
		opts.Colors = layout.NewColorScale()
	}
	if opts.Matrix.Weighting == "" {
		opts.Matrix = matrix.DefaultOptions()
	}

	d := &Diagram{
		corpus:   idx,
		cfg:      filter.DefaultConfig(),
		hl:       highlight.NewController(),
		model:    model.New(),
		layouter: opts.Layouter,
		colors:   opts.Colors,
		opts:     opts.Matrix,
		wake:     make(chan struct{}, 1),
	}
	d.view = emptyView(d.model.Current())
	d.hl.OnChange(func(s highlight.State) {
		// Runs with d.mu held; published after unlock.
		d.pending = append(d.pending, s)
	})
	return d
}

// OnRebuild registers fn to receive every new generation.
func (d *Diagram) OnRebuild(fn func(*View)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onView = append(d.onView, fn)
}

// OnHighlight registers fn to receive every highlight transition.
func (d *Diagram) OnHighlight(fn func(highlight.State)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onHighlight = append(d.onHighlight, fn)
}

// SetCorpus swaps the corpus used by later rebuilds. The current generation
// stays on screen until the next rebuild.
func (d *Diagram) SetCorpus(idx *corpus.Index) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corpus = idx
	d.hash = ""
}

// SetMatrixOptions changes how later rebuilds weight shared events. It waits
// for a running rebuild to finish.
func (d *Diagram) SetMatrixOptions(opts matrix.Options) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts = opts
	d.hash = ""
}

// Corpus returns the corpus the next rebuild will use.
func (d *Diagram) Corpus() *corpus.Index {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.corpus
}

// Filter returns the filter of the last successful Apply. Queued rebuilds
// start from it.
func (d *Diagram) Filter() filter.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Rebuild installs a new generation for names over the events accepted by
// pred. On any error the previous generation stays current and the
// highlight state is untouched.
func (d *Diagram) Rebuild(ctx context.Context, names []string, pred filter.Predicate) (*View, error) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()

	idx := d.Corpus()
	if idx == nil {
		return nil, ErrNoCorpus
	}
	view, err := d.rebuild(ctx, idx, names, pred, nil)
	if err != nil {
		return nil, err
	}

	// The applied filter no longer describes what is shown.
	d.mu.Lock()
	d.hash = ""
	d.mu.Unlock()
	return view, nil
}

// Apply selects entities with cfg and rebuilds. It is a no-op when cfg
// matches the last applied filter and the corpus has not changed.
func (d *Diagram) Apply(ctx context.Context, cfg filter.Config) (*View, error) {
	d.buildMu.Lock()
	defer d.buildMu.Unlock()

	hash := cfg.Hash()
	d.mu.Lock()
	idx, current, unchanged := d.corpus, d.view, d.hash != "" && d.hash == hash
	d.mu.Unlock()

	if idx == nil {
		return nil, ErrNoCorpus
	}
	if unchanged {
		logging.Debug("filter unchanged, skipping rebuild", "gen", current.Generation)
		return current, nil
	}

	pred := cfg.Predicate()
	names, err := filter.SelectEntities(idx, pred, cfg.MinAppearances)
	if err != nil {
		logging.Warn("rebuild rejected, keeping current generation", "gen", current.Generation, "error", err)
		return nil, fmt.Errorf("%w: %v", matrix.ErrInvalidFilterResult, err)
	}

	view, err := d.rebuild(ctx, idx, names, pred, &cfg)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cfg = cfg
	d.hash = hash
	d.mu.Unlock()
	return view, nil
}

func (d *Diagram) rebuild(ctx context.Context, idx *corpus.Index, names []string, pred filter.Predicate, cfg *filter.Config) (*View, error) {
	start := time.Now()

	m, stats, err := matrix.Build(ctx, idx, names, pred, d.opts)
	if err != nil {
		logging.Warn("rebuild rejected, keeping current generation", "gen", d.model.Current().Generation, "error", err)
		return nil, err
	}

	prev := d.model.Current()
	snap, err := d.model.Replace(names, m)
	if err != nil {
		return nil, err
	}

	lay := d.layouter.Compute(m)
	view := &View{
		Generation: snap.Generation,
		Names:      snap.Names(),
		Matrix:     m,
		Layout:     lay,
		Colors:     make([]string, snap.Len()),
		Ticks:      make([][]layout.Tick, len(lay.Groups)),
		Stats:      stats,
		Filter:     cfg,
		snap:       snap,
	}
	if prev.Generation == 0 {
		view.Diff = Compare(nil, view.Names)
	} else {
		view.Diff = Compare(prev.Names(), view.Names)
	}
	for i, g := range lay.Groups {
		view.Ticks[i] = layout.Ticks(g, layout.TickStep, layout.TickLabelEvery)
	}

	d.mu.Lock()
	d.colors.SetDomain(snap.Len())
	for i := range view.Colors {
		view.Colors[i] = d.colors.Hex(i)
	}
	d.view = view
	d.hl.Reset(snap.Generation, snap.Len(), ChordRefs(lay))
	viewListeners := slices.Clone(d.onView)
	d.mu.Unlock()

	logging.Info("diagram rebuilt",
		"gen", view.Generation,
		"entities", len(view.Names),
		"chords", len(lay.Chords),
		"entering", len(view.Diff.Entering),
		"exiting", len(view.Diff.Exiting),
		"durationMs", time.Since(start).Milliseconds())

	for _, fn := range viewListeners {
		fn(view)
	}
	d.flushHighlight()
	return view, nil
}

// View returns the current generation's view.
func (d *Diagram) View() *View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// HighlightState returns a copy of the current highlight state.
func (d *Diagram) HighlightState() highlight.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hl.State()
}

func (d *Diagram) withHighlight(fn func(c *highlight.Controller) bool) bool {
	d.mu.Lock()
	ok := fn(d.hl)
	d.mu.Unlock()
	d.flushHighlight()
	return ok
}

func (d *Diagram) flushHighlight() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	listeners := slices.Clone(d.onHighlight)
	d.mu.Unlock()

	for _, s := range pending {
		for _, fn := range listeners {
			fn(s)
		}
	}
}

// HoverArc highlights arc i and everything related to it.
func (d *Diagram) HoverArc(i int) bool {
	return d.withHighlight(func(c *highlight.Controller) bool { return c.HoverArc(i) })
}

// HoverEntity highlights the arc of name, as when hovering it in an info
// panel list.
func (d *Diagram) HoverEntity(name string) bool {
	return d.withHighlight(func(c *highlight.Controller) bool {
		i, ok := d.view.snap.IndexOf(name)
		if !ok {
			return false
		}
		return c.HoverArc(i)
	})
}

// UnhoverAll clears every highlight.
func (d *Diagram) UnhoverAll() {
	d.withHighlight(func(c *highlight.Controller) bool {
		c.UnhoverAll()
		return true
	})
}

// HoverChord highlights one chord and its two arcs.
func (d *Diagram) HoverChord(ref highlight.ChordRef) bool {
	return d.withHighlight(func(c *highlight.Controller) bool { return c.HoverChord(ref) })
}

// UnhoverChord clears a chord highlight if ref is still the hovered chord.
func (d *Diagram) UnhoverChord(ref highlight.ChordRef) bool {
	return d.withHighlight(func(c *highlight.Controller) bool { return c.UnhoverChord(ref) })
}

// WeightBetween returns the weight of the pair (i, j) in the current
// view, 0 when either index is out of range.
func (d *Diagram) WeightBetween(i, j int) float64 {
	return d.View().WeightBetween(i, j)
}

// NeighborsOf lists entities related to i in the current view, strongest
// first.
func (d *Diagram) NeighborsOf(i int) []model.Neighbor {
	return d.View().NeighborsOf(i)
}

// Associates describes name for an info panel: its chapter counts and the
// limit strongest relations of the current generation.
func (d *Diagram) Associates(name string, limit int) (*EntityInfo, error) {
	if limit <= 0 {
		limit = DefaultAssociateLimit
	}

	d.mu.Lock()
	view, idx := d.view, d.corpus
	d.mu.Unlock()

	i, ok := view.snap.IndexOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}

	info := &EntityInfo{
		Generation: view.Generation,
		Index:      i,
		Name:       name,
		Color:      view.Colors[i],
		Meta:       map[string]any{},
		Associates: []Associate{},
	}
	if idx != nil {
		if ent, ok := idx.Entity(name); ok {
			info.Meta = ent.Meta
			info.Chapters = len(ent.EventIDs)
			info.POVChapters = len(ent.PrimaryEventIDs)
		}
	}

	neighbors := view.snap.NeighborsOf(i)
	for k, n := range neighbors {
		if k == limit {
			info.Others = len(neighbors) - limit
			break
		}
		info.Associates = append(info.Associates, Associate{
			Index:  n.Index,
			Name:   n.Name,
			Weight: n.Weight,
			Color:  layout.Darker(d.colors.ColorFor(n.Index)).Hex(),
		})
	}
	return info, nil
}
