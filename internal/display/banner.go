package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// RenderBanner shades the banner art row by row with the spectrum gradient
// and centres it as one block in width columns, so the letters keep their
// alignment. A width <= 0 asks the terminal.
func RenderBanner(width int) string {
	if width <= 0 {
		width = termWidth()
	}
	art := strings.TrimRight(bannerRaw, "\n")
	if art == "" {
		return ""
	}
	rows := strings.Split(art, "\n")

	indent := ""
	if w := lipgloss.Width(art); width > w {
		indent = strings.Repeat(" ", (width-w)/2)
	}

	shades := gradient(len(rows))
	var b strings.Builder
	for i, row := range rows {
		b.WriteString(indent)
		b.WriteString(shades[len(rows)-1-i].Bold(true).Render(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func termWidth() int {
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		return w
	}
	return 80
}
