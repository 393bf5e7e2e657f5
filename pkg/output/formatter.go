// Package output prints console reports for a diagram generation.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/evnp/graph-of-thrones/pkg/corpus"
	"github.com/evnp/graph-of-thrones/pkg/diagram"
	"github.com/evnp/graph-of-thrones/pkg/filter"
	"github.com/evnp/graph-of-thrones/pkg/graph"
)

// Report is everything PrintReport shows.
type Report struct {
	Source      string
	View        *diagram.View
	Diagnostics corpus.Diagnostics
	Top         int
}

// PrintReport writes a colored summary of r.View to w: the filter, the
// strongest relationships, connected groups and isolated characters.
func PrintReport(w io.Writer, r Report) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	v := r.View
	bold.Fprintln(w, "Graph of Thrones - Relationship Report")
	bold.Fprintln(w, "======================================")
	fmt.Fprintf(w, "Data: %s\n", r.Source)
	fmt.Fprintf(w, "Generation: %d\n", v.Generation)
	if v.Filter != nil {
		fmt.Fprintf(w, "Filter: %s\n", describeFilter(*v.Filter))
	}
	fmt.Fprintf(w, "Chapters: %d of %d accepted\n", v.Stats.EventsAccepted, v.Stats.EventsEvaluated)
	fmt.Fprintf(w, "Characters: %d\n", len(v.Names))
	fmt.Fprintln(w)

	if r.Diagnostics.Clean() {
		green.Fprintln(w, "Data: no problems found")
	} else {
		yellow.Fprintf(w, "Data: %d dangling reference(s), %d duplicate chapter(s) skipped\n",
			r.Diagnostics.SkippedRefs, len(r.Diagnostics.DuplicateEvents))
		for _, ref := range r.Diagnostics.Dangling {
			cyan.Fprintf(w, "  %s -> %s\n", ref.EventID, ref.EntityID)
		}
	}
	fmt.Fprintln(w)

	if len(v.Names) == 0 {
		red.Fprintln(w, "No characters match the filter.")
		return
	}

	rg := graph.BuildRelationGraph(v.Names, v.Matrix)

	bold.Fprintln(w, "STRONGEST RELATIONSHIPS:")
	pairs := rg.StrongestPairs(r.Top)
	if len(pairs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, p := range pairs {
		fmt.Fprintf(w, "  %2d. ", i+1)
		cyan.Fprintf(w, "%s - %s", p.A, p.B)
		fmt.Fprintf(w, "  %.3f\n", p.Weight)
	}
	fmt.Fprintln(w)

	components := rg.Components()
	connected := 0
	for _, c := range components {
		if len(c) > 1 {
			connected++
		}
	}
	bold.Fprintf(w, "CONNECTED GROUPS: %d\n", connected)
	for _, c := range components {
		if len(c) < 2 {
			continue
		}
		fmt.Fprintf(w, "  %d: %s\n", len(c), abbreviate(c, 8))
	}
	fmt.Fprintln(w)

	isolated := rg.Isolated()
	if len(isolated) == 0 {
		green.Fprintln(w, "✓ Every character shares a chapter with someone")
	} else {
		yellow.Fprintf(w, "ISOLATED: %d character(s)\n", len(isolated))
		fmt.Fprintf(w, "  %s\n", abbreviate(isolated, 12))
	}
}

func describeFilter(f filter.Config) string {
	var parts []string
	add := func(label string, vals []int) {
		if len(vals) == 0 {
			return
		}
		s := make([]string, len(vals))
		for i, v := range vals {
			s[i] = fmt.Sprint(v)
		}
		parts = append(parts, label+" "+strings.Join(s, ","))
	}
	add("books", f.Books)
	add("modules", f.Modules)
	add("months", f.Months)
	add("years", f.Years)
	if f.IncludeSolo {
		parts = append(parts, "solo chapters")
	}
	parts = append(parts, fmt.Sprintf("min appearances %d", f.MinAppearances))
	return strings.Join(parts, "; ")
}

func abbreviate(names []string, max int) string {
	if len(names) <= max {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:max], ", "), len(names)-max)
}
