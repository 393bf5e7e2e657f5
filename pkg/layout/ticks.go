package layout

import "strconv"

// Tick is a mark on the outside of an arc. Label is empty for minor ticks.
type Tick struct {
	Angle float64 `json:"angle"`
	Label string  `json:"label,omitempty"`
}

const (
	TickStep       = 5.0
	TickLabelEvery = 5
)

// Ticks places a tick every step units of the group's value and labels
// every labelEvery-th one in thousands.
func Ticks(g Group, step float64, labelEvery int) []Tick {
	if g.Value <= 0 || step <= 0 {
		return nil
	}
	k := (g.EndAngle - g.StartAngle) / g.Value

	var ticks []Tick
	for i := 0; ; i++ {
		v := float64(i) * step
		if v >= g.Value {
			break
		}
		t := Tick{Angle: g.StartAngle + v*k}
		if labelEvery > 0 && i%labelEvery == 0 {
			t.Label = strconv.FormatFloat(v/1000, 'f', -1, 64) + "k"
		}
		ticks = append(ticks, t)
	}
	return ticks
}
