// Package viz draws live audio measurements onto character-cell canvases:
// a frequency-bar spectrum for playback and a scrolling waveform trace for
// the microphone. The display renders the canvases; viz only fills them.
package viz

import (
	"sync"
)

// Style tells the renderer how to colour a cell.
type Style uint8

const (
	StyleEmpty Style = iota
	// StyleDim is the idle spectrum colour.
	StyleDim
	// StyleLit is the active colour; renderers apply a bottom-to-top gradient.
	StyleLit
	// StyleTrace is the fading remainder of the previous waveform frame.
	StyleTrace
)

// Cell is one character position.
type Cell struct {
	Glyph rune
	Style Style
}

var blank = Cell{Glyph: ' ', Style: StyleEmpty}

// eighths are the partial block glyphs, 1/8 to 8/8 of a cell.
var eighths = []rune("▁▂▃▄▅▆▇█")

// Canvas is a fixed grid of cells, safe for one writer and many readers.
type Canvas struct {
	mu    sync.RWMutex
	w, h  int
	cells []Cell
	gen   uint64
}

// NewCanvas creates a blank w x h canvas.
func NewCanvas(w, h int) *Canvas {
	c := &Canvas{}
	c.Resize(w, h)
	return c
}

// Resize discards the content and changes the dimensions.
func (c *Canvas) Resize(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w, c.h = max(w, 0), max(h, 0)
	c.cells = make([]Cell, c.w*c.h)
	c.fillLocked(blank)
	c.gen++
}

// Size returns the dimensions in cells.
func (c *Canvas) Size() (w, h int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w, c.h
}

// Clear blanks every cell.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fillLocked(blank)
	c.gen++
}

// Generation increases on every change.
func (c *Canvas) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// At returns the cell at column x, row y (row 0 is the top).
func (c *Canvas) At(x, y int) Cell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return blank
	}
	return c.cells[y*c.w+x]
}

// Blank reports whether every cell is empty.
func (c *Canvas) Blank() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, cell := range c.cells {
		if cell.Style != StyleEmpty {
			return false
		}
	}
	return true
}

// Rows returns a copy of the grid, top row first.
func (c *Canvas) Rows() [][]Cell {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([][]Cell, c.h)
	for y := range rows {
		rows[y] = append([]Cell(nil), c.cells[y*c.w:(y+1)*c.w]...)
	}
	return rows
}

// DrawBars replaces the content with one bar per column. levels are byte
// magnitudes (0..255); when there are more levels than columns each column
// shows the loudest level it covers.
func (c *Canvas) DrawBars(levels []byte, style Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fillLocked(blank)
	c.gen++
	if c.w == 0 || c.h == 0 || len(levels) == 0 {
		return
	}

	n := len(levels)
	for x := 0; x < c.w; x++ {
		lo := x * n / c.w
		hi := max((x+1)*n/c.w, lo+1)
		var v byte
		for _, l := range levels[lo:min(hi, n)] {
			v = max(v, l)
		}

		// Height in eighths of a cell.
		units := int(float64(v) / 255 * float64(c.h*8))
		for row := 0; row < c.h && units > 0; row++ {
			y := c.h - 1 - row
			step := min(units, 8)
			c.cells[y*c.w+x] = Cell{Glyph: eighths[step-1], Style: style}
			units -= step
		}
	}
}

// DrawWave plots a waveform of byte samples centred on 128. The previous
// trace fades for one frame before it disappears.
func (c *Canvas) DrawWave(samples []byte, style Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for i, cell := range c.cells {
		switch cell.Style {
		case StyleTrace:
			c.cells[i] = blank
		case StyleEmpty:
		default:
			c.cells[i].Style = StyleTrace
		}
	}
	if c.w == 0 || c.h == 0 || len(samples) == 0 {
		return
	}

	n := len(samples)
	prev := -1
	for x := 0; x < c.w; x++ {
		v := float64(samples[x*n/c.w]) / 128
		y := min(int(v*float64(c.h)/2), c.h-1)
		c.cells[y*c.w+x] = Cell{Glyph: '•', Style: style}

		// Join steep segments so the trace reads as a line.
		if prev >= 0 {
			lo, hi := min(prev, y), max(prev, y)
			for r := lo + 1; r < hi; r++ {
				c.cells[r*c.w+x] = Cell{Glyph: '│', Style: style}
			}
		}
		prev = y
	}
}

func (c *Canvas) fillLocked(cell Cell) {
	for i := range c.cells {
		c.cells[i] = cell
	}
}
