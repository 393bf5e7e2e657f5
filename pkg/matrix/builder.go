package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/logging"
)

var (
	// ErrInvalidFilterResult wraps a predicate failure; the build is abandoned.
	ErrInvalidFilterResult = errors.New("filter predicate failed")
	// ErrDuplicateName means the entity list would not map 1:1 onto indices.
	ErrDuplicateName = errors.New("duplicate entity in view")
)

// Weighting selects how much one shared event adds to a pair.
type Weighting string

const (
	// WeightCast adds 1.5 / castSize, favouring small scenes over ensembles.
	WeightCast Weighting = "cast"
	// WeightCount adds 1 per shared event.
	WeightCount Weighting = "count"
)

const castWeight = 1.5

// ParseWeighting validates a weighting name.
func ParseWeighting(s string) (Weighting, error) {
	switch Weighting(s) {
	case WeightCast, WeightCount:
		return Weighting(s), nil
	case "":
		return WeightCast, nil
	}
	return "", fmt.Errorf("unknown weighting %q: must be cast or count", s)
}

// Options configures a build. CastIncludesPrimary decides whether characters
// who join an event only through the active list or point of view count
// toward its cast size and receive weight from it.
type Options struct {
	Weighting           Weighting
	CastIncludesPrimary bool
}

// DefaultOptions returns cast weighting with primary actors in the cast.
func DefaultOptions() Options {
	return Options{Weighting: WeightCast, CastIncludesPrimary: true}
}

// Stats describes the work done by one build.
type Stats struct {
	EventsEvaluated int `json:"eventsEvaluated"`
	EventsAccepted  int `json:"eventsAccepted"`
	UnknownNames    int `json:"unknownNames"`
}

// Build computes the matrix for names, in that order, over the events
// accepted by pred. Entities outside names neither count toward cast size
// nor receive weight. The predicate and the per-event weight are each
// evaluated once per event, so every row sees the same value.
func Build(ctx context.Context, idx *corpus.Index, names []string, pred filter.Predicate, opts Options) (*Matrix, Stats, error) {
	var stats Stats
	if pred == nil {
		pred = filter.All
	}
	if opts.Weighting == "" {
		opts.Weighting = WeightCast
	}

	index := make(map[string]int, len(names))
	for i, name := range names {
		if _, dup := index[name]; dup {
			return nil, stats, fmt.Errorf("%w: %s", ErrDuplicateName, name)
		}
		index[name] = i
	}

	m := New(len(names))
	accepted := make(map[string]bool)
	weights := make(map[string]float64)

	for r, rowName := range names {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		ent, ok := idx.Entity(rowName)
		if !ok {
			stats.UnknownNames++
			continue
		}

		for _, evID := range ent.EventIDs {
			ev, ok := idx.Event(evID)
			if !ok {
				continue
			}

			keep, seen := accepted[evID]
			if !seen {
				var err error
				keep, err = pred(ev)
				if err != nil {
					return nil, stats, fmt.Errorf("%w: %v", ErrInvalidFilterResult, err)
				}
				accepted[evID] = keep
				stats.EventsEvaluated++
				if keep {
					stats.EventsAccepted++
				}
			}
			if !keep || !counts(ev, rowName, opts) {
				continue
			}

			w, seen := weights[evID]
			if !seen {
				w = eventWeight(ev, index, opts)
				weights[evID] = w
			}

			for _, colName := range ev.Participants {
				if colName == rowName || !counts(ev, colName, opts) {
					continue
				}
				if c, in := index[colName]; in {
					m.add(r, c, w)
				}
			}
		}
	}

	if stats.UnknownNames > 0 {
		logging.Warn("matrix rows without corpus entity", "count", stats.UnknownNames)
	}
	logging.Debug("matrix built", "size", len(names), "eventsAccepted", stats.EventsAccepted, "weighting", string(opts.Weighting))
	return m, stats, nil
}

// counts reports whether name takes part in the weighting of ev. With
// CastIncludesPrimary off, primary-only participants are in neither the
// cast size nor the pairs.
func counts(ev *corpus.Event, name string, opts Options) bool {
	return opts.CastIncludesPrimary || !ev.PrimaryOnly(name)
}

func eventWeight(ev *corpus.Event, index map[string]int, opts Options) float64 {
	if opts.Weighting == WeightCount {
		return 1
	}
	cast := 0
	for _, name := range ev.Participants {
		if _, in := index[name]; !in {
			continue
		}
		if counts(ev, name, opts) {
			cast++
		}
	}
	if cast < 2 {
		// No pair accumulates from this event.
		return 0
	}
	return castWeight / float64(cast)
}
