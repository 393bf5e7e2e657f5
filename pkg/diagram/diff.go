package diagram

// Diff lists how the entity set changed between two generations, so a
// renderer can animate arcs in and out instead of redrawing everything.
type Diff struct {
	Entering []string `json:"entering"`
	Exiting  []string `json:"exiting"`
	Retained []string `json:"retained"`
	Full     bool     `json:"full"` // no previous generation to compare with
}

// Compare diffs two ordered name lists. Entering and Retained follow next's
// order, Exiting follows prev's.
func Compare(prev, next []string) Diff {
	d := Diff{
		Entering: make([]string, 0),
		Exiting:  make([]string, 0),
		Retained: make([]string, 0),
		Full:     prev == nil,
	}

	before := make(map[string]bool, len(prev))
	for _, name := range prev {
		before[name] = true
	}
	after := make(map[string]bool, len(next))
	for _, name := range next {
		after[name] = true
		if before[name] {
			d.Retained = append(d.Retained, name)
		} else {
			d.Entering = append(d.Entering, name)
		}
	}
	for _, name := range prev {
		if !after[name] {
			d.Exiting = append(d.Exiting, name)
		}
	}
	return d
}

// Empty reports whether the entity set did not change.
func (d Diff) Empty() bool {
	return !d.Full && len(d.Entering) == 0 && len(d.Exiting) == 0
}
