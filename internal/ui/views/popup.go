package views

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PopupRenderer handles popup/modal rendering
type PopupRenderer struct {
	styles *Styles
}

// NewPopupRenderer creates a new popup renderer
func NewPopupRenderer(styles *Styles) *PopupRenderer {
	return &PopupRenderer{
		styles: styles,
	}
}

// RenderPopupOverlay centers the popup over a greyed copy of the main content
func (pr *PopupRenderer) RenderPopupOverlay(mainContent, popupContent string, height, width int, popupStyle lipgloss.Style) string {
	styledPopup := popupStyle.Render(popupContent)
	popupLines := strings.Split(styledPopup, "\n")

	modalW := lipgloss.Width(styledPopup)
	if height <= 0 {
		height = len(strings.Split(mainContent, "\n"))
	}
	if width <= 0 {
		width = modalW
	}
	x := max(0, (width-modalW)/2)
	y := max(0, (height-len(popupLines))/2)

	base := strings.Split(stripANSI(mainContent), "\n")
	for len(base) < y+len(popupLines) {
		base = append(base, "")
	}

	gray := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	out := make([]string, len(base))
	for i, line := range base {
		row := i - y
		if row < 0 || row >= len(popupLines) {
			out[i] = gray.Render(line)
			continue
		}
		left, right := splitAround([]rune(line), x, modalW)
		out[i] = gray.Render(left) + popupLines[row] + gray.Render(right)
	}
	return strings.Join(out, "\n")
}

// ANSI escape sequence regex to strip styles/colors
var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// splitAround returns the text left of column x, padded to x, and the text
// right of x+w
func splitAround(line []rune, x, w int) (string, string) {
	if len(line) < x {
		return string(line) + strings.Repeat(" ", x-len(line)), ""
	}
	left := string(line[:x])
	if len(line) <= x+w {
		return left, ""
	}
	return left, string(line[x+w:])
}
