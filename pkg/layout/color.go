package layout

import (
	"github.com/lucasb-eyer/go-colorful"
)

// category20b is the ordinal palette the diagram cycles through.
var category20b = []string{
	"#393b79", "#5254a3", "#6b6ecf", "#9c9ede",
	"#637939", "#8ca252", "#b5cf6b", "#cedb9c",
	"#8c6d31", "#bd9e39", "#e7ba52", "#e7cb94",
	"#843c39", "#ad494a", "#d6616b", "#e7969c",
	"#7b4173", "#a55194", "#ce6dbd", "#de9ed6",
}

// darkerFactor matches the usual one-step "darker" of web color libraries.
const darkerFactor = 0.7

// ColorScale maps entity indices onto a repeating palette.
type ColorScale struct {
	palette []colorful.Color
	domain  int
}

// NewColorScale returns a scale over the category20b palette.
func NewColorScale() *ColorScale {
	s, err := NewColorScaleFromHex(category20b)
	if err != nil {
		panic(err)
	}
	return s
}

// NewColorScaleFromHex builds a scale from "#rrggbb" colors.
func NewColorScaleFromHex(hex []string) (*ColorScale, error) {
	palette := make([]colorful.Color, len(hex))
	for i, h := range hex {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, err
		}
		palette[i] = c
	}
	return &ColorScale{palette: palette}, nil
}

// SetDomain records how many entities the current generation has.
func (s *ColorScale) SetDomain(n int) {
	s.domain = n
}

// Domain is the entity count of the last SetDomain call.
func (s *ColorScale) Domain() int {
	return s.domain
}

// ColorFor returns the color of index i. Palettes repeat once exhausted.
func (s *ColorScale) ColorFor(i int) colorful.Color {
	if len(s.palette) == 0 {
		return colorful.Color{}
	}
	i %= len(s.palette)
	if i < 0 {
		i += len(s.palette)
	}
	return s.palette[i]
}

// Hex is ColorFor formatted as "#rrggbb".
func (s *ColorScale) Hex(i int) string {
	return s.ColorFor(i).Hex()
}

// Darker returns c with every channel scaled toward black, for labels and
// strokes drawn over the fill color.
func Darker(c colorful.Color) colorful.Color {
	return colorful.Color{R: c.R * darkerFactor, G: c.G * darkerFactor, B: c.B * darkerFactor}.Clamped()
}
