package diagram

import (
	"context"
	"errors"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/highlight"
	"github.com/evnp/graph-of-thrones/pkg/layout"
	"github.com/evnp/graph-of-thrones/pkg/matrix"
)

// fakeLayouter records the matrices it lays out and delegates geometry.
type fakeLayouter struct {
	calls  int
	inner  layout.Layouter
	during func()
}

func (f *fakeLayouter) Compute(m *matrix.Matrix) layout.Layout {
	f.calls++
	if f.during != nil {
		f.during()
	}
	return f.inner.Compute(m)
}

func scenarioCorpus(t *testing.T) *corpus.Index {
	t.Helper()
	groups := []corpus.Group{
		{Number: 1, Events: []corpus.EventData{
			{ID: "e1", Presence: []string{"A", "B"}, PrimaryActor: "A", Date: "03/01/98", Module: 1},
			{ID: "e2", Presence: []string{"A", "B", "C"}, Date: "04/01/98", Module: 2},
		}},
		{Number: 2, Events: []corpus.EventData{
			{ID: "e3", Presence: []string{"D"}, Date: "05/01/99", Module: 1},
		}},
	}
	entities := map[string]map[string]any{
		"A": {"url": "/a"}, "B": {}, "C": {}, "D": {},
	}
	idx, diag := corpus.Build(groups, entities, corpus.DefaultOptions())
	if !diag.Clean() {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	return idx
}

func allFilter() filter.Config {
	cfg := filter.DefaultConfig()
	cfg.MinAppearances = 0
	return cfg
}

func TestRebuildScenario(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})
	view, err := d.Rebuild(context.Background(), []string{"A", "B", "C"}, nil)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}

	if view.Generation != 1 {
		t.Errorf("expected generation 1, got %d", view.Generation)
	}
	if !view.Diff.Full {
		t.Error("first generation should be a full diff")
	}
	if math.Abs(d.WeightBetween(0, 1)-1.25) > 1e-9 {
		t.Errorf("WeightBetween(A,B) = %g, want 1.25", d.WeightBetween(0, 1))
	}
	if got := d.NeighborsOf(2); len(got) != 2 || got[0].Name != "A" {
		t.Errorf("NeighborsOf(C) = %+v", got)
	}
	if len(view.Colors) != 3 || view.Colors[0] != "#393b79" {
		t.Errorf("unexpected colors %v", view.Colors)
	}
	if len(view.Ticks) != 3 {
		t.Errorf("expected ticks per group, got %d", len(view.Ticks))
	}
}

func TestHoverArcScenario(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})
	if _, err := d.Rebuild(context.Background(), []string{"A", "B", "C", "D"}, nil); err != nil {
		t.Fatal(err)
	}

	if !d.HoverArc(0) {
		t.Fatal("HoverArc(0) should apply")
	}
	s := d.HighlightState()
	if want := []int{0, 1, 2}; !reflect.DeepEqual(s.Arcs, want) {
		t.Errorf("Arcs = %v, want %v", s.Arcs, want)
	}
	if want := []highlight.ChordID{"0-1", "0-2"}; !reflect.DeepEqual(s.Chords, want) {
		t.Errorf("Chords = %v, want %v", s.Chords, want)
	}

	d.UnhoverAll()
	if !d.HoverEntity("B") {
		t.Fatal("HoverEntity(B) should apply")
	}
	if s := d.HighlightState(); !s.ArcHighlighted(1) || s.ArcHighlighted(3) {
		t.Errorf("unexpected arcs after HoverEntity: %v", s.Arcs)
	}
	if d.HoverEntity("Nobody") {
		t.Error("unknown entity should not highlight")
	}
}

func TestStaleChordGuard(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})
	if _, err := d.Rebuild(context.Background(), []string{"A", "B", "C"}, nil); err != nil {
		t.Fatal(err)
	}
	a, b := highlight.NewChordRef(0, 1), highlight.NewChordRef(1, 2)

	d.HoverChord(a)
	d.HoverChord(b)
	d.UnhoverChord(a)

	s := d.HighlightState()
	if s.CurrentChord == nil || *s.CurrentChord != b.ID {
		t.Errorf("late unhover cleared the newer chord: %+v", s)
	}
}

func TestRebuildFailureKeepsPreviousGeneration(t *testing.T) {
	fl := &fakeLayouter{inner: layout.NewChordLayout()}
	d := New(scenarioCorpus(t), Options{Layouter: fl})
	first, err := d.Rebuild(context.Background(), []string{"A", "B", "C"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	d.HoverArc(1)
	before := d.HighlightState()

	failing := func(*corpus.Event) (bool, error) { return false, errors.New("bad record") }
	if _, err := d.Rebuild(context.Background(), []string{"A"}, failing); !errors.Is(err, matrix.ErrInvalidFilterResult) {
		t.Fatalf("expected ErrInvalidFilterResult, got %v", err)
	}

	if d.View() != first {
		t.Error("failed rebuild must keep the previous view")
	}
	if got := d.HighlightState(); !reflect.DeepEqual(got, before) {
		t.Errorf("failed rebuild touched highlight state: %+v", got)
	}
	if fl.calls != 1 {
		t.Errorf("layout should not run for a failed build, got %d calls", fl.calls)
	}
}

func TestRebuildResetsHighlightAndPublishes(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})

	var views []*View
	var states []highlight.State
	d.OnRebuild(func(v *View) { views = append(views, v) })
	d.OnHighlight(func(s highlight.State) { states = append(states, s) })

	if _, err := d.Rebuild(context.Background(), []string{"A", "B", "C"}, nil); err != nil {
		t.Fatal(err)
	}
	d.HoverArc(0)
	second, err := d.Rebuild(context.Background(), []string{"B", "C", "D"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(views) != 2 {
		t.Fatalf("expected 2 published views, got %d", len(views))
	}
	want := Diff{Entering: []string{"D"}, Exiting: []string{"A"}, Retained: []string{"B", "C"}}
	if !reflect.DeepEqual(second.Diff, want) {
		t.Errorf("Diff = %+v, want %+v", second.Diff, want)
	}

	last := states[len(states)-1]
	if last.Generation != second.Generation || last.FadeArcs || len(last.Arcs) != 0 {
		t.Errorf("rebuild should publish a clean highlight state, got %+v", last)
	}
}

func TestApplySkipsUnchangedFilter(t *testing.T) {
	fl := &fakeLayouter{inner: layout.NewChordLayout()}
	d := New(scenarioCorpus(t), Options{Layouter: fl})
	cfg := allFilter()

	v1, err := d.Apply(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := d.Apply(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != v2 || fl.calls != 1 {
		t.Errorf("unchanged filter should not rebuild: calls=%d", fl.calls)
	}
	if !reflect.DeepEqual(v1.Names, []string{"A", "B", "C", "D"}) {
		t.Errorf("Names = %v", v1.Names)
	}

	cfg.Books = []int{1}
	v3, err := d.Apply(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(v3.Names, []string{"A", "B", "C"}) {
		t.Errorf("book filter should drop D, got %v", v3.Names)
	}
	if d.Filter().Hash() != cfg.Hash() {
		t.Error("applied filter should be recorded")
	}

	// A new corpus forces a rebuild even with the same filter.
	d.SetCorpus(scenarioCorpus(t))
	if _, err := d.Apply(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if fl.calls != 3 {
		t.Errorf("expected rebuild after corpus change, got %d calls", fl.calls)
	}
}

func TestApplyWithoutCorpus(t *testing.T) {
	d := New(nil, Options{})
	if _, err := d.Apply(context.Background(), allFilter()); !errors.Is(err, ErrNoCorpus) {
		t.Errorf("expected ErrNoCorpus, got %v", err)
	}
}

func TestAssociates(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})
	if _, err := d.Apply(context.Background(), allFilter()); err != nil {
		t.Fatal(err)
	}

	info, err := d.Associates("A", 1)
	if err != nil {
		t.Fatalf("Associates() error = %v", err)
	}
	if info.Chapters != 2 || info.POVChapters != 1 {
		t.Errorf("chapter counts = %d/%d, want 2/1", info.Chapters, info.POVChapters)
	}
	if len(info.Associates) != 1 || info.Associates[0].Name != "B" || info.Others != 1 {
		t.Errorf("expected B plus one other, got %+v others=%d", info.Associates, info.Others)
	}
	if info.Meta["url"] != "/a" {
		t.Errorf("Meta = %v", info.Meta)
	}
	if info.Associates[0].Color == info.Color {
		t.Error("associate color should be the darker variant of its own arc color")
	}

	if _, err := d.Associates("Nobody", 0); !errors.Is(err, ErrUnknownEntity) {
		t.Errorf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestRunAppliesLatestSubmission(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})

	var mu sync.Mutex
	var got []*View
	done := make(chan struct{}, 4)
	d.OnRebuild(func(v *View) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
		done <- struct{}{}
	})

	first := allFilter()
	first.Books = []int{2}
	latest := allFilter()
	latest.Books = []int{1}

	// Both land before the worker starts; only the latest is built.
	d.Submit(first)
	d.Submit(latest)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- d.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for rebuild")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one rebuild, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0].Names, []string{"A", "B", "C"}) {
		t.Errorf("worker built the superseded filter: %v", got[0].Names)
	}
}

func TestSetMatrixOptionsForcesRebuild(t *testing.T) {
	d := New(scenarioCorpus(t), Options{})
	cfg := allFilter()
	if _, err := d.Apply(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}

	d.SetMatrixOptions(matrix.Options{Weighting: matrix.WeightCount, CastIncludesPrimary: true})
	view, err := d.Apply(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if view.Generation != 2 {
		t.Errorf("expected a new generation, got %d", view.Generation)
	}
	if got := d.WeightBetween(0, 1); got != 2 {
		t.Errorf("count weighting: WeightBetween(A,B) = %g, want 2", got)
	}
}

func TestApplyAfterExplicitRebuild(t *testing.T) {
	fl := &fakeLayouter{inner: layout.NewChordLayout()}
	d := New(scenarioCorpus(t), Options{Layouter: fl})
	cfg := allFilter()

	if _, err := d.Apply(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Rebuild(context.Background(), []string{"C"}, filter.All); err != nil {
		t.Fatal(err)
	}

	view, err := d.Apply(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(view.Names, []string{"A", "B", "C", "D"}) {
		t.Errorf("Apply returned a view its filter did not build: %v", view.Names)
	}
	if view.Generation != 3 || fl.calls != 3 {
		t.Errorf("expected a fresh rebuild, got generation %d after %d layouts", view.Generation, fl.calls)
	}
	if view.Filter == nil || view.Filter.Hash() != cfg.Hash() {
		t.Errorf("view should carry the applied filter, got %+v", view.Filter)
	}
}

func TestQueriesFollowPublishedView(t *testing.T) {
	fl := &fakeLayouter{inner: layout.NewChordLayout()}
	d := New(scenarioCorpus(t), Options{Layouter: fl})
	if _, err := d.Rebuild(context.Background(), []string{"A", "B", "C"}, nil); err != nil {
		t.Fatal(err)
	}
	want := d.WeightBetween(0, 1)

	// While the next generation is laid out, queries must still answer for
	// the view that is on screen.
	var during float64
	var neighbors int
	fl.during = func() {
		during = d.WeightBetween(0, 1)
		neighbors = len(d.NeighborsOf(0))
	}
	if _, err := d.Rebuild(context.Background(), []string{"C", "D"}, nil); err != nil {
		t.Fatal(err)
	}

	if during != want || neighbors != 2 {
		t.Errorf("mid-rebuild queries saw the new generation: weight=%g neighbors=%d", during, neighbors)
	}
	if got := d.WeightBetween(0, 1); got != 0 {
		t.Errorf("after rebuild, C-D should be unrelated, got %g", got)
	}
}
