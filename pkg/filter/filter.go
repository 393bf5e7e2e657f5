// Package filter composes chapter predicates and selects the characters that
// make up a diagram view.
package filter

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
)

// Predicate decides whether an event counts toward the current view. An
// error means the predicate could not be evaluated and aborts the rebuild.
type Predicate func(*corpus.Event) (bool, error)

// All accepts every event.
func All(*corpus.Event) (bool, error) { return true, nil }

// And short-circuits on the first rejection or error.
func And(preds ...Predicate) Predicate {
	return func(ev *corpus.Event) (bool, error) {
		for _, p := range preds {
			ok, err := p(ev)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// InGroups keeps events from the listed books. An empty list keeps all.
func InGroups(groups ...int) Predicate {
	if len(groups) == 0 {
		return All
	}
	return func(ev *corpus.Event) (bool, error) {
		return slices.Contains(groups, ev.Group), nil
	}
}

// InModules keeps events from the listed modules. An empty list keeps all.
func InModules(modules ...int) Predicate {
	if len(modules) == 0 {
		return All
	}
	return func(ev *corpus.Event) (bool, error) {
		return slices.Contains(modules, ev.Module), nil
	}
}

// InMonths keeps events dated in the listed months (1-12).
func InMonths(months ...int) Predicate {
	if len(months) == 0 {
		return All
	}
	return func(ev *corpus.Event) (bool, error) {
		month, _, err := parseDate(ev)
		if err != nil || month == 0 {
			return false, err
		}
		return slices.Contains(months, month), nil
	}
}

// InYears keeps events dated in the listed years. Years compare on their
// last two digits, so 2014 and 14 are equivalent.
func InYears(years ...int) Predicate {
	if len(years) == 0 {
		return All
	}
	short := make([]int, len(years))
	for i, y := range years {
		short[i] = y % 100
	}
	return func(ev *corpus.Event) (bool, error) {
		month, year, err := parseDate(ev)
		if err != nil || month == 0 {
			return false, err
		}
		return slices.Contains(short, year), nil
	}
}

// ExcludeSolo drops events with fewer than two participants.
func ExcludeSolo(ev *corpus.Event) (bool, error) {
	return len(ev.Participants) > 1, nil
}

// parseDate reads "MM/DD/YY": the month from the first two characters and
// the year from the last two. Undated events return a zero month.
func parseDate(ev *corpus.Event) (month, year int, err error) {
	d := strings.TrimSpace(ev.Date)
	if d == "" {
		return 0, 0, nil
	}
	if len(d) < 4 {
		return 0, 0, fmt.Errorf("event %s: malformed date %q", ev.ID, ev.Date)
	}
	month, err = strconv.Atoi(strings.TrimSuffix(d[:2], "/"))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("event %s: malformed date %q", ev.ID, ev.Date)
	}
	year, err = strconv.Atoi(d[len(d)-2:])
	if err != nil {
		return 0, 0, fmt.Errorf("event %s: malformed date %q", ev.ID, ev.Date)
	}
	return month, year, nil
}

// Config is the serializable form of a view filter.
type Config struct {
	Books          []int `json:"books,omitempty" koanf:"books"`
	Modules        []int `json:"modules,omitempty" koanf:"modules"`
	Months         []int `json:"months,omitempty" koanf:"months"`
	Years          []int `json:"years,omitempty" koanf:"years"`
	IncludeSolo    bool  `json:"includeSolo" koanf:"include_solo"`
	MinAppearances int   `json:"minAppearances" koanf:"min_appearances"`
}

// DefaultMinAppearances hides minor characters from the default view.
const DefaultMinAppearances = 15

// DefaultConfig keeps every chapter and characters with 15+ appearances.
func DefaultConfig() Config {
	return Config{IncludeSolo: true, MinAppearances: DefaultMinAppearances}
}

// Predicate composes the configured chapter filters.
func (c Config) Predicate() Predicate {
	preds := []Predicate{
		InGroups(c.Books...),
		InModules(c.Modules...),
		InMonths(c.Months...),
		InYears(c.Years...),
	}
	if !c.IncludeSolo {
		preds = append(preds, ExcludeSolo)
	}
	return And(preds...)
}

// Hash identifies the filter for change detection.
func (c Config) Hash() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// SelectEntities returns, in index order, the characters that appear in at
// least one event accepted by pred and in at least minAppearances events
// overall.
func SelectEntities(idx *corpus.Index, pred Predicate, minAppearances int) ([]string, error) {
	accepted := make(map[string]bool)
	var names []string

	for _, id := range idx.EntityIDs() {
		ent, _ := idx.Entity(id)
		if len(ent.EventIDs) < minAppearances || len(ent.EventIDs) == 0 {
			continue
		}
		for _, evID := range ent.EventIDs {
			ok, seen := accepted[evID]
			if !seen {
				ev, _ := idx.Event(evID)
				var err error
				ok, err = pred(ev)
				if err != nil {
					return nil, fmt.Errorf("selecting entities: %w", err)
				}
				accepted[evID] = ok
			}
			if ok {
				names = append(names, id)
				break
			}
		}
	}
	return names, nil
}
