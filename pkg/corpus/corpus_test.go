package corpus

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sampleGroups() []Group {
	return []Group{
		{
			Number: 2,
			Name:   "A Clash of Kings",
			Events: []EventData{
				{ID: "acok-1", Presence: []string{"Arya", "Gendry"}, PrimaryActor: "Arya"},
			},
		},
		{
			Number: 1,
			Name:   "A Game of Thrones",
			Events: []EventData{
				{ID: "agot-1", Presence: []string{"Jon", "Arya", "Jon"}, Active: []string{"Jon"}, PrimaryActor: "Jon"},
				{ID: "agot-2", Presence: []string{"Arya"}, Active: []string{"Sansa"}, PrimaryActor: "Sansa"},
			},
		},
	}
}

func sampleEntities() map[string]map[string]any {
	return map[string]map[string]any{
		"Arya":   {"house": "Stark"},
		"Jon":    {"house": "Stark"},
		"Sansa":  {"house": "Stark"},
		"Gendry": {},
	}
}

func TestBuildParticipantsUnion(t *testing.T) {
	idx, diag := Build(sampleGroups(), sampleEntities(), DefaultOptions())
	if !diag.Clean() {
		t.Fatalf("expected clean build, got %+v", diag)
	}

	ev, ok := idx.Event("agot-1")
	if !ok {
		t.Fatal("agot-1 not indexed")
	}
	if !reflect.DeepEqual(ev.Participants, []string{"Jon", "Arya"}) {
		t.Errorf("expected deduplicated participants [Jon Arya], got %v", ev.Participants)
	}
	if ev.PrimaryOnly("Jon") {
		t.Error("Jon is present, should not be primary-only")
	}

	ev, _ = idx.Event("agot-2")
	if !reflect.DeepEqual(ev.Participants, []string{"Arya", "Sansa"}) {
		t.Errorf("expected [Arya Sansa], got %v", ev.Participants)
	}
	if !ev.PrimaryOnly("Sansa") {
		t.Error("Sansa only participates through the active list")
	}
}

func TestBuildInclusionFlags(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"presence only", Options{IncludePresence: true}, []string{"Arya"}},
		{"primary only", Options{IncludePrimaryActor: true}, []string{"Sansa"}},
		{"neither", Options{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, _ := Build(sampleGroups(), sampleEntities(), tt.opts)
			ev, _ := idx.Event("agot-2")
			if !reflect.DeepEqual(ev.Participants, tt.want) {
				t.Errorf("participants = %v, want %v", ev.Participants, tt.want)
			}
		})
	}
}

func TestBuildEntityEventLists(t *testing.T) {
	idx, _ := Build(sampleGroups(), sampleEntities(), DefaultOptions())

	arya, _ := idx.Entity("Arya")
	// Groups are ordered by number, so book 1 chapters come first.
	if !reflect.DeepEqual(arya.EventIDs, []string{"agot-1", "agot-2", "acok-1"}) {
		t.Errorf("Arya events = %v", arya.EventIDs)
	}
	if !reflect.DeepEqual(arya.PrimaryEventIDs, []string{"acok-1"}) {
		t.Errorf("Arya pov events = %v", arya.PrimaryEventIDs)
	}

	sansa, _ := idx.Entity("Sansa")
	if !reflect.DeepEqual(sansa.PrimaryEventIDs, []string{"agot-2"}) {
		t.Errorf("Sansa pov events = %v", sansa.PrimaryEventIDs)
	}

	if got := idx.Groups(); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Errorf("Groups() = %v", got)
	}
	if got := idx.EntityIDs(); !reflect.DeepEqual(got, []string{"Arya", "Gendry", "Jon", "Sansa"}) {
		t.Errorf("EntityIDs() = %v", got)
	}
}

func TestBuildSkipsDanglingReferences(t *testing.T) {
	groups := []Group{{
		Number: 1,
		Events: []EventData{
			{ID: "c1", Presence: []string{"Arya", "Ghost", "Jon"}},
			{ID: "c2", Presence: []string{"Nymeria"}},
			{ID: "c1", Presence: []string{"Arya"}},
		},
	}}

	idx, diag := Build(groups, sampleEntities(), DefaultOptions())

	if diag.SkippedRefs != 2 {
		t.Errorf("expected 2 skipped refs, got %d", diag.SkippedRefs)
	}
	if len(diag.Dangling) != 2 || diag.Dangling[0] != (DanglingRef{EventID: "c1", EntityID: "Ghost"}) {
		t.Errorf("unexpected dangling detail %+v", diag.Dangling)
	}
	if !reflect.DeepEqual(diag.DuplicateEvents, []string{"c1"}) {
		t.Errorf("expected duplicate c1, got %v", diag.DuplicateEvents)
	}

	ev, _ := idx.Event("c1")
	if !reflect.DeepEqual(ev.Participants, []string{"Arya", "Jon"}) {
		t.Errorf("dangling ref should be dropped, got %v", ev.Participants)
	}
	if len(idx.Events()) != 2 {
		t.Errorf("expected 2 events indexed, got %d", len(idx.Events()))
	}
}

func TestDecode(t *testing.T) {
	doc := `{
		"books": [
			{"number": 1, "name": "A Game of Thrones", "chapters": [
				{"url": "agot-prologue", "name": "Prologue", "appearances": ["Will", "Gared"], "active": ["Will"], "pov": "Will", "date": "01/01/98", "module": 1}
			]}
		],
		"characters": {"Will": {"url": "https://example.org/Will"}, "Gared": null}
	}`

	data, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(data.Groups) != 1 || len(data.Groups[0].Events) != 1 {
		t.Fatalf("unexpected groups %+v", data.Groups)
	}
	ch := data.Groups[0].Events[0]
	if ch.ID != "agot-prologue" || ch.PrimaryActor != "Will" || ch.Module != 1 || ch.Date != "01/01/98" {
		t.Errorf("unexpected chapter %+v", ch)
	}
	if data.Entities["Gared"] == nil {
		t.Error("null character metadata should become an empty map")
	}

	idx, diag := data.BuildIndex(DefaultOptions())
	if !diag.Clean() {
		t.Errorf("unexpected diagnostics %+v", diag)
	}
	will, _ := idx.Entity("Will")
	if will.Meta["url"] != "https://example.org/Will" {
		t.Errorf("metadata not carried through: %v", will.Meta)
	}
}

func TestDecodeRejectsMissingCharacters(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"books": []}`)); err == nil {
		t.Error("expected error for missing characters table")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`{"books": [], "characters": {"Arya": {}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	data, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := data.Entities["Arya"]; !ok {
		t.Error("expected Arya in entities")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
