package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpEntry struct {
	key  string
	desc string
}

type helpSection struct {
	title   string
	entries []helpEntry
}

var helpSections = []helpSection{
	{"Navigation", []helpEntry{
		{"↑/↓, j/k", "Move up/down"},
		{"←/→, h/l", "Previous/next pane"},
		{"Tab", "Next pane"},
		{"PgUp/PgDn", "Page up/down"},
		{"gg/G", "Go to top/bottom"},
		{"Enter", "Select topic or partition"},
	}},
	{"Topics", []helpEntry{
		{"/", "Filter topics (fuzzy)"},
		{"Esc", "Clear filter"},
		{"S", "Cycle sort (name, messages, partitions)"},
		{"r", "Refresh selected topic"},
		{"R", "Reload all topics"},
		{"f", "Follow/unfollow live updates"},
	}},
	{"Messages", []helpEntry{
		{"o", "Edit offset range (<start>-<end>, empty for newest)"},
		{"p", "Publish a message"},
	}},
	{"Search", []helpEntry{
		{"s", "Search the selected topic"},
		{"x", "Stop the running search"},
	}},
	{"Other", []helpEntry{
		{"?", "Toggle this help"},
		{"q", "Quit"},
	}},
}

// renderHelpContent renders the help information, scrolled to fit height
func (r *Renderer) renderHelpContent(height int, scrollOffset int) string {
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("220")).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252"))

	var help strings.Builder
	help.WriteString(r.styles.Title.Render("kafkaviz Help"))
	help.WriteString("\n")

	for i, section := range helpSections {
		help.WriteString("\n")
		help.WriteString(sectionStyle.Render(section.title))
		help.WriteString("\n")
		for j, e := range section.entries {
			help.WriteString(fmt.Sprintf("  %s %s", keyStyle.Render(e.key), descStyle.Render(e.desc)))
			if i < len(helpSections)-1 || j < len(section.entries)-1 {
				help.WriteString("\n")
			}
		}
	}

	lines := strings.Split(help.String(), "\n")
	totalLines := len(lines)

	// account for popup border and padding
	visibleHeight := max(height-6, 5)
	if totalLines <= visibleHeight {
		return help.String()
	}

	maxOffset := totalLines - visibleHeight
	scrollOffset = min(max(scrollOffset, 0), maxOffset)
	visible := append([]string(nil), lines[scrollOffset:scrollOffset+visibleHeight]...)
	if scrollOffset > 0 {
		visible[0] = r.styles.Scroll.Render("↑ (more above)")
	}
	if scrollOffset < maxOffset {
		visible[len(visible)-1] = r.styles.Scroll.Render("↓ (more below)")
	}
	return strings.Join(visible, "\n")
}
