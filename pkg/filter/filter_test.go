package filter

import (
	"errors"
	"reflect"
	"testing"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
)

func testIndex() *corpus.Index {
	groups := []corpus.Group{
		{Number: 1, Events: []corpus.EventData{
			{ID: "c1", Presence: []string{"Arya", "Jon"}, Date: "03/14/14", Module: 13},
			{ID: "c2", Presence: []string{"Arya"}, Date: "04/02/14", Module: 14},
		}},
		{Number: 2, Events: []corpus.EventData{
			{ID: "c3", Presence: []string{"Jon", "Sam"}, Date: "11/30/15", Module: 15},
			{ID: "c4", Presence: []string{"Sam", "Gilly"}},
		}},
	}
	entities := map[string]map[string]any{"Arya": {}, "Jon": {}, "Sam": {}, "Gilly": {}}
	idx, _ := corpus.Build(groups, entities, corpus.DefaultOptions())
	return idx
}

func accepts(t *testing.T, idx *corpus.Index, p Predicate) []string {
	t.Helper()
	var ids []string
	for _, ev := range idx.Events() {
		ok, err := p(ev)
		if err != nil {
			t.Fatalf("predicate error on %s: %v", ev.ID, err)
		}
		if ok {
			ids = append(ids, ev.ID)
		}
	}
	return ids
}

func TestPredicates(t *testing.T) {
	idx := testIndex()

	tests := []struct {
		name string
		pred Predicate
		want []string
	}{
		{"all", All, []string{"c1", "c2", "c3", "c4"}},
		{"books", InGroups(2), []string{"c3", "c4"}},
		{"modules", InModules(13, 15), []string{"c1", "c3"}},
		{"months", InMonths(3, 11), []string{"c1", "c3"}},
		{"years four digit", InYears(2014), []string{"c1", "c2"}},
		{"years two digit", InYears(15), []string{"c3"}},
		{"exclude solo", ExcludeSolo, []string{"c1", "c3", "c4"}},
		{"and", And(InGroups(1), ExcludeSolo), []string{"c1"}},
		{"empty lists keep all", And(InGroups(), InModules(), InMonths(), InYears()), []string{"c1", "c2", "c3", "c4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := accepts(t, idx, tt.pred); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("accepted %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMalformedDateIsAnError(t *testing.T) {
	ev := &corpus.Event{ID: "bad", Date: "xx/01/14"}
	if _, err := InMonths(1)(ev); err == nil {
		t.Error("expected error for malformed month")
	}
	if _, err := InYears(14)(&corpus.Event{ID: "short", Date: "1"}); err == nil {
		t.Error("expected error for short date")
	}
}

func TestConfigPredicate(t *testing.T) {
	idx := testIndex()
	cfg := Config{Books: []int{1, 2}, Years: []int{14, 15}, IncludeSolo: false}

	if got := accepts(t, idx, cfg.Predicate()); !reflect.DeepEqual(got, []string{"c1", "c3"}) {
		t.Errorf("accepted %v", got)
	}
}

func TestConfigHash(t *testing.T) {
	a := DefaultConfig()
	b := DefaultConfig()
	if a.Hash() != b.Hash() || a.Hash() == "" {
		t.Error("equal configs should hash equally")
	}
	b.Books = []int{3}
	if a.Hash() == b.Hash() {
		t.Error("different configs should hash differently")
	}
}

func TestSelectEntities(t *testing.T) {
	idx := testIndex()

	names, err := SelectEntities(idx, All, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"Arya", "Jon", "Sam"}) {
		t.Errorf("min 2 appearances = %v", names)
	}

	names, _ = SelectEntities(idx, InGroups(1), 0)
	if !reflect.DeepEqual(names, []string{"Arya", "Jon"}) {
		t.Errorf("book 1 = %v", names)
	}
}

func TestSelectEntitiesPropagatesPredicateError(t *testing.T) {
	boom := errors.New("boom")
	_, err := SelectEntities(testIndex(), func(*corpus.Event) (bool, error) { return false, boom }, 0)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped predicate error, got %v", err)
	}
}
