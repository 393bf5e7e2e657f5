package matrix

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
)

const eps = 1e-9

func scenarioIndex(t *testing.T) *corpus.Index {
	t.Helper()
	groups := []corpus.Group{{Number: 1, Events: []corpus.EventData{
		{ID: "e1", Presence: []string{"A", "B"}},
		{ID: "e2", Presence: []string{"A", "B", "C"}},
	}}}
	idx, diag := corpus.Build(groups, map[string]map[string]any{"A": {}, "B": {}, "C": {}}, corpus.DefaultOptions())
	if !diag.Clean() {
		t.Fatalf("unexpected diagnostics %+v", diag)
	}
	return idx
}

func assertCell(t *testing.T, m *Matrix, i, j int, want float64) {
	t.Helper()
	if got := m.At(i, j); math.Abs(got-want) > eps {
		t.Errorf("m[%d][%d] = %g, want %g", i, j, got, want)
	}
}

func TestBuildCastWeighting(t *testing.T) {
	m, stats, err := Build(context.Background(), scenarioIndex(t), []string{"A", "B", "C"}, nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// e1 has a cast of two (1.5/2 each way), e2 a cast of three (1.5/3).
	assertCell(t, m, 0, 1, 0.75+0.5)
	assertCell(t, m, 1, 0, 0.75+0.5)
	assertCell(t, m, 0, 2, 0.5)
	assertCell(t, m, 2, 0, 0.5)
	assertCell(t, m, 1, 2, 0.5)
	assertCell(t, m, 2, 1, 0.5)
	for i := 0; i < 3; i++ {
		assertCell(t, m, i, i, 0)
	}

	if stats.EventsEvaluated != 2 || stats.EventsAccepted != 2 {
		t.Errorf("predicate should run once per event, got %+v", stats)
	}
}

func TestBuildCountWeighting(t *testing.T) {
	m, _, err := Build(context.Background(), scenarioIndex(t), []string{"A", "B", "C"}, filter.All, Options{Weighting: WeightCount})
	if err != nil {
		t.Fatal(err)
	}
	assertCell(t, m, 0, 1, 2)
	assertCell(t, m, 0, 2, 1)
	assertCell(t, m, 1, 2, 1)
}

func TestBuildCastSizeIgnoresEntitiesOutsideView(t *testing.T) {
	m, _, err := Build(context.Background(), scenarioIndex(t), []string{"A", "B"}, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	// C is not in the view, so e2 counts as a two-character scene.
	assertCell(t, m, 0, 1, 1.5)
	assertCell(t, m, 1, 0, 1.5)
}

func TestBuildCastIncludesPrimaryOption(t *testing.T) {
	groups := []corpus.Group{{Number: 1, Events: []corpus.EventData{
		{ID: "e1", Presence: []string{"A", "B"}, PrimaryActor: "C"},
	}}}
	idx, _ := corpus.Build(groups, map[string]map[string]any{"A": {}, "B": {}, "C": {}}, corpus.DefaultOptions())
	names := []string{"A", "B", "C"}

	with, _, _ := Build(context.Background(), idx, names, nil, Options{Weighting: WeightCast, CastIncludesPrimary: true})
	without, _, _ := Build(context.Background(), idx, names, nil, Options{Weighting: WeightCast, CastIncludesPrimary: false})

	assertCell(t, with, 0, 1, 0.5)
	assertCell(t, with, 0, 2, 0.5)
	assertCell(t, without, 0, 1, 0.75)
	// Left out of the cast, the point-of-view character gets no weight.
	assertCell(t, without, 2, 0, 0)
	assertCell(t, without, 0, 2, 0)
}

func TestBuildPrimaryOnlySceneNeverOutweighsCast(t *testing.T) {
	groups := []corpus.Group{{Number: 1, Events: []corpus.EventData{
		{ID: "e1", Presence: []string{"A"}, Active: []string{"B", "C"}},
		{ID: "e2", Presence: []string{"B", "C"}},
	}}}
	idx, _ := corpus.Build(groups, map[string]map[string]any{"A": {}, "B": {}, "C": {}}, corpus.DefaultOptions())
	names := []string{"A", "B", "C"}

	with, _, err := Build(context.Background(), idx, names, nil, Options{Weighting: WeightCast, CastIncludesPrimary: true})
	if err != nil {
		t.Fatal(err)
	}
	without, _, err := Build(context.Background(), idx, names, nil, Options{Weighting: WeightCast, CastIncludesPrimary: false})
	if err != nil {
		t.Fatal(err)
	}

	// e1 is a three-character scene, e2 a two-character one.
	assertCell(t, with, 1, 2, 0.5+0.75)
	assertCell(t, with, 0, 1, 0.5)

	// Only A counts in e1, so it adds nothing; e2 is unchanged.
	assertCell(t, without, 1, 2, 0.75)
	assertCell(t, without, 0, 1, 0)
	assertCell(t, without, 0, 2, 0)
	if !without.IsSymmetric(eps) {
		t.Error("matrix should stay symmetric")
	}
}

func TestBuildZeroRowForFilteredOutEntity(t *testing.T) {
	onlyE1 := func(ev *corpus.Event) (bool, error) { return ev.ID == "e1", nil }
	m, _, err := Build(context.Background(), scenarioIndex(t), []string{"A", "B", "C"}, onlyE1, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 3 {
		t.Fatalf("C must stay in the view, got size %d", m.Len())
	}
	for i := 0; i < 3; i++ {
		assertCell(t, m, 2, i, 0)
		assertCell(t, m, i, 2, 0)
	}
	assertCell(t, m, 0, 1, 0.75)
}

func TestBuildEmpty(t *testing.T) {
	m, _, err := Build(context.Background(), scenarioIndex(t), nil, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if m.Len() != 0 || len(m.Rows()) != 0 {
		t.Errorf("expected 0x0 matrix, got %d", m.Len())
	}
	if !m.IsSymmetric(eps) {
		t.Error("empty matrix is trivially symmetric")
	}
}

func TestBuildUnknownNameYieldsZeroRow(t *testing.T) {
	m, stats, err := Build(context.Background(), scenarioIndex(t), []string{"A", "Ghost", "B"}, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if stats.UnknownNames != 1 {
		t.Errorf("expected 1 unknown name, got %d", stats.UnknownNames)
	}
	assertCell(t, m, 1, 0, 0)
	assertCell(t, m, 0, 2, 1.5)
}

func TestBuildPredicateFailure(t *testing.T) {
	boom := errors.New("bad date")
	failing := func(*corpus.Event) (bool, error) { return false, boom }

	m, _, err := Build(context.Background(), scenarioIndex(t), []string{"A", "B"}, failing, DefaultOptions())
	if !errors.Is(err, ErrInvalidFilterResult) {
		t.Errorf("expected ErrInvalidFilterResult, got %v", err)
	}
	if m != nil {
		t.Error("no partial matrix may be returned")
	}
}

func TestBuildDuplicateName(t *testing.T) {
	_, _, err := Build(context.Background(), scenarioIndex(t), []string{"A", "A"}, nil, DefaultOptions())
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Build(ctx, scenarioIndex(t), []string{"A"}, nil, DefaultOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParseWeighting(t *testing.T) {
	if w, err := ParseWeighting(""); err != nil || w != WeightCast {
		t.Errorf("empty weighting should default to cast, got %q %v", w, err)
	}
	if _, err := ParseWeighting("bogus"); err == nil {
		t.Error("expected error for unknown weighting")
	}
}

// randomIndex builds a corpus of n characters across events with random casts.
func randomIndex(rng *rand.Rand, n, events int) (*corpus.Index, []string) {
	names := make([]string, n)
	entities := make(map[string]map[string]any, n)
	for i := range names {
		names[i] = fmt.Sprintf("char-%02d", i)
		entities[names[i]] = map[string]any{}
	}
	data := make([]corpus.EventData, events)
	for e := range data {
		cast := 1 + rng.Intn(6)
		ev := corpus.EventData{ID: fmt.Sprintf("ev-%03d", e), Module: rng.Intn(4)}
		for k := 0; k < cast; k++ {
			ev.Presence = append(ev.Presence, names[rng.Intn(n)])
		}
		if rng.Intn(3) == 0 {
			ev.PrimaryActor = names[rng.Intn(n)]
		}
		data[e] = ev
	}
	idx, _ := corpus.Build([]corpus.Group{{Number: 1, Events: data}}, entities, corpus.DefaultOptions())
	return idx, names
}

func TestBuildProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		idx, names := randomIndex(rng, 12, 80)
		opts := DefaultOptions()
		opts.CastIncludesPrimary = trial%2 == 0

		loose := filter.InModules(0, 1, 2)
		strict := filter.And(loose, filter.InModules(1))

		m, _, err := Build(context.Background(), idx, names, loose, opts)
		if err != nil {
			t.Fatal(err)
		}
		sm, _, err := Build(context.Background(), idx, names, strict, opts)
		if err != nil {
			t.Fatal(err)
		}

		if !m.IsSymmetric(eps) {
			t.Errorf("trial %d: matrix not symmetric", trial)
		}
		for i := 0; i < m.Len(); i++ {
			if m.At(i, i) != 0 {
				t.Errorf("trial %d: diagonal %d = %g", trial, i, m.At(i, i))
			}
			for j := 0; j < m.Len(); j++ {
				if m.At(i, j) < 0 {
					t.Errorf("trial %d: negative weight at (%d, %d)", trial, i, j)
				}
				if sm.At(i, j) > m.At(i, j)+eps {
					t.Errorf("trial %d: stricter filter increased (%d, %d): %g > %g", trial, i, j, sm.At(i, j), m.At(i, j))
				}
			}
		}
	}
}

func TestBuildRowOrderDoesNotChangeWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	idx, names := randomIndex(rng, 10, 60)

	reversed := make([]string, len(names))
	for i, n := range names {
		reversed[len(names)-1-i] = n
	}

	a, _, _ := Build(context.Background(), idx, names, nil, DefaultOptions())
	b, _, _ := Build(context.Background(), idx, reversed, nil, DefaultOptions())

	last := len(names) - 1
	for i := range names {
		for j := range names {
			if math.Abs(a.At(i, j)-b.At(last-i, last-j)) > eps {
				t.Fatalf("weight for (%s, %s) depends on row order", names[i], names[j])
			}
		}
	}
}
