package display

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/hammamikhairi/voicestudio/internal/viz"
)

// Gradient endpoints for lit bars, bottom to top.
const (
	litBottom = "#f97316"
	litTop    = "#ea580c"
	litPeak   = "#fdba74"
)

var (
	dimCellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#334155"))
	traceCellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c2d12"))
)

// gradient returns n styles blending from the bottom colour to the peak
// colour; index 0 is the bottom row.
func gradient(n int) []lipgloss.Style {
	if n <= 0 {
		return nil
	}
	bottom, err := colorful.Hex(litBottom)
	if err != nil {
		bottom = colorful.Color{R: 1, G: 0.45, B: 0.09}
	}
	peak, err := colorful.Hex(litPeak)
	if err != nil {
		peak = bottom
	}
	styles := make([]lipgloss.Style, n)
	for i := range styles {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		c := bottom.BlendLab(peak, t).Clamped()
		styles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex()))
	}
	return styles
}

// renderCanvas turns a canvas into styled terminal lines. Lit cells take
// their colour from lit, indexed by distance from the bottom row.
func renderCanvas(rows [][]viz.Cell, lit []lipgloss.Style) string {
	var b strings.Builder
	h := len(rows)
	for y, row := range rows {
		var run strings.Builder
		runStyle := viz.Style(255)
		flush := func() {
			if run.Len() == 0 {
				return
			}
			b.WriteString(styleFor(runStyle, h-1-y, lit).Render(run.String()))
			run.Reset()
		}
		for _, cell := range row {
			if cell.Style != runStyle {
				flush()
				runStyle = cell.Style
			}
			run.WriteRune(cell.Glyph)
		}
		flush()
		if y < h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func styleFor(s viz.Style, fromBottom int, lit []lipgloss.Style) lipgloss.Style {
	switch s {
	case viz.StyleLit:
		if len(lit) == 0 {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(litTop))
		}
		return lit[min(max(fromBottom, 0), len(lit)-1)]
	case viz.StyleDim:
		return dimCellStyle
	case viz.StyleTrace:
		return traceCellStyle
	}
	return lipgloss.NewStyle()
}
