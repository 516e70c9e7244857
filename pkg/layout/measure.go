package layout

import (
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/go-drift/lattice/pkg/graphics"
)

// Measurer sizes text content for leaf nodes.
type Measurer interface {
	Measure(text string, fontSize float64, family string, maxWidth float64) graphics.Size
}

// FaceMeasurer measures text with a font face, scaling the face's metrics
// to the requested font size. Text wraps greedily at spaces when maxWidth is
// positive.
type FaceMeasurer struct {
	Face font.Face
}

// NewFaceMeasurer returns a measurer for face. A nil face uses the built-in
// 7x13 bitmap face, which keeps measurement deterministic in headless runs.
func NewFaceMeasurer(face font.Face) *FaceMeasurer {
	if face == nil {
		face = basicfont.Face7x13
	}
	return &FaceMeasurer{Face: face}
}

func (m *FaceMeasurer) scale(fontSize float64) float64 {
	h := float64(m.Face.Metrics().Height) / 64
	if h <= 0 || fontSize <= 0 {
		return 1
	}
	return fontSize / h
}

func (m *FaceMeasurer) width(s string, scale float64) float64 {
	return float64(font.MeasureString(m.Face, s)) / 64 * scale
}

// Measure implements Measurer.
func (m *FaceMeasurer) Measure(text string, fontSize float64, _ string, maxWidth float64) graphics.Size {
	if text == "" {
		return graphics.Size{}
	}
	scale := m.scale(fontSize)
	lineHeight := float64(m.Face.Metrics().Height) / 64 * scale

	var lines []float64
	for _, para := range strings.Split(text, "\n") {
		lines = append(lines, m.wrap(para, scale, maxWidth)...)
	}
	w := 0.0
	for _, l := range lines {
		w = math.Max(w, l)
	}
	return graphics.Size{Width: math.Ceil(w), Height: math.Ceil(lineHeight * float64(len(lines)))}
}

// wrap returns the width of each line a paragraph breaks into.
func (m *FaceMeasurer) wrap(para string, scale, maxWidth float64) []float64 {
	if maxWidth <= 0 {
		return []float64{m.width(para, scale)}
	}
	words := strings.Fields(para)
	if len(words) == 0 {
		return []float64{0}
	}
	space := m.width(" ", scale)
	var lines []float64
	cur := m.width(words[0], scale)
	for _, w := range words[1:] {
		ww := m.width(w, scale)
		if cur+space+ww > maxWidth {
			lines = append(lines, cur)
			cur = ww
			continue
		}
		cur += space + ww
	}
	return append(lines, cur)
}
