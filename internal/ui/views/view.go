package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/ui/state"
)

// ViewState contains all the state needed for rendering
type ViewState struct {
	Width  int
	Height int

	Topics         []domain.Topic // after filtering
	TotalTopics    int
	TopicIndex     int
	NoTopics       bool
	Loading        bool
	LastUpdate     time.Time
	Selected       state.Selection
	SelectedTopic  domain.Topic
	HasTopic       bool
	PartitionIndex int

	Messages      []domain.Message
	MessagesRange domain.MessageRange
	MessagesErr   error
	MessageOffset int

	Matches     domain.MatchList
	MatchOffset int
	Searching   bool

	Following        string
	Focus            state.Pane
	FilterQuery      string
	SortMode         string
	StatusMessage    string
	StatusKind       state.StatusKind
	ShowHelp         bool
	ShowHint         bool // "Press ? for help" footer
	HelpScrollOffset int
	ViewportHeight   int

	InputMode   string
	InputPrompt string
	TextInput   string
}

// Renderer handles all view rendering
type Renderer struct {
	styles      *Styles
	popupRender *PopupRenderer
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	styles := NewStyles()
	return &Renderer{
		styles:      styles,
		popupRender: NewPopupRenderer(styles),
	}
}

// Render produces the complete view
func (r *Renderer) Render(vs ViewState) string {
	width := vs.Width
	if width <= 0 {
		width = 80
	}

	content := &strings.Builder{}
	content.WriteString(r.renderTitle(vs, width))
	content.WriteString("\n")

	if vs.InputMode != "" {
		content.WriteString(r.styles.Filter.Render(vs.InputPrompt))
		content.WriteString(vs.TextInput)
		content.WriteString("\n")
	}
	content.WriteString("\n")

	switch {
	case vs.Loading && vs.TotalTopics == 0:
		content.WriteString(r.styles.Dim.Render("Loading topics..."))
	case vs.NoTopics:
		content.WriteString(r.styles.Dim.Render("No topics found. Press R to reload."))
	default:
		content.WriteString(r.renderPanes(vs, width))
	}

	content.WriteString("\n")
	content.WriteString(r.renderStatus(vs))
	if !vs.ShowHelp && vs.ShowHint {
		content.WriteString("\n")
		content.WriteString(r.styles.Help.Render("Press ? for help"))
	}

	main := r.styles.Main.Render(content.String())
	if vs.ShowHelp {
		return r.popupRender.RenderPopupOverlay(main, r.renderHelpContent(vs.Height, vs.HelpScrollOffset), vs.Height, vs.Width, r.styles.InfoBox)
	}
	return main
}

func (r *Renderer) renderTitle(vs ViewState, width int) string {
	logo := r.styles.Title.Render("kafkaviz")

	var right []string
	if vs.Following != "" {
		right = append(right, r.styles.Following.Render("● live "+vs.Following))
	}
	if vs.Searching {
		right = append(right, r.styles.StatusInfo.Render(fmt.Sprintf("⌕ %q", vs.Matches.Keyword)))
	}
	if vs.FilterQuery != "" {
		right = append(right, r.styles.Filter.Render(fmt.Sprintf("[Filter: %s]", vs.FilterQuery)))
	}
	if vs.SortMode != "" {
		right = append(right, r.styles.Dim.Render("sort: "+vs.SortMode))
	}
	if len(right) == 0 {
		return logo
	}

	rightContent := strings.Join(right, "  ")
	padding := width - 4 - lipgloss.Width(logo) - lipgloss.Width(rightContent)
	if padding < 2 {
		padding = 2
	}
	return logo + strings.Repeat(" ", padding) + rightContent
}

func (r *Renderer) renderPanes(vs ViewState, width int) string {
	height := vs.ViewportHeight
	if height <= 0 {
		height = 10
	}
	listHeight := max(height/2, 3)
	dataHeight := max(height-listHeight-2, 3)

	inner := width - 4
	topicsW := max(inner*3/5, 20)
	partsW := max(inner-topicsW-4, 16)

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		r.pane("Topics", vs.Focus == state.PaneTopics, topicsW, r.topicLines(vs, topicsW), vs.TopicIndex, listHeight),
		r.pane(r.partitionsTitle(vs), vs.Focus == state.PanePartitions, partsW, r.partitionLines(vs), vs.PartitionIndex, listHeight),
	)

	var bottom string
	if vs.Focus == state.PaneMatches || (vs.Focus != state.PaneMessages && vs.Matches.Keyword != "" && len(vs.Messages) == 0) {
		bottom = r.pane(r.matchesTitle(vs), vs.Focus == state.PaneMatches, inner-2, r.matchLines(vs, inner-4), vs.MatchOffset, dataHeight)
	} else {
		bottom = r.pane(r.messagesTitle(vs), vs.Focus == state.PaneMessages, inner-2, r.messageLines(vs, inner-4), vs.MessageOffset, dataHeight)
	}
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (r *Renderer) pane(title string, focused bool, width int, lines []string, cursor, height int) string {
	style := r.styles.Pane
	if focused {
		style = r.styles.PaneFocused
	}
	body := r.styles.PaneTitle.Render(title) + "\n" + strings.Join(r.window(lines, cursor, height), "\n")
	return style.Width(width).Render(body)
}

// window keeps cursor on screen with scroll indicators, like a viewport
func (r *Renderer) window(lines []string, cursor, height int) []string {
	if len(lines) <= height {
		return lines
	}
	n := max(height-2, 1) // room for both indicators
	offset := min(max(cursor-n+1, 0), len(lines)-n)
	end := offset + n

	out := make([]string, 0, height)
	if offset > 0 {
		out = append(out, r.styles.Scroll.Render(fmt.Sprintf("↑ %d more above", offset)))
	}
	out = append(out, lines[offset:end]...)
	if below := len(lines) - end; below > 0 {
		out = append(out, r.styles.Scroll.Render(fmt.Sprintf("↓ %d more below", below)))
	}
	return out
}

func (r *Renderer) topicLines(vs ViewState, width int) []string {
	if len(vs.Topics) == 0 {
		return []string{r.styles.Dim.Render("no topics match the filter")}
	}
	lines := make([]string, len(vs.Topics))
	for i, t := range vs.Topics {
		marker := "  "
		if t.Name == vs.Selected.Topic {
			marker = "▶ "
		}
		name := t.Name
		if t.Name == vs.Following {
			name = r.styles.Following.Render("● ") + name
		}
		meta := r.styles.Dim.Render(fmt.Sprintf("%dp r%d %s msgs", t.PartitionCount, t.ReplicationFactor, humanize.Comma(t.TotalMessages())))
		line := marker + name
		if pad := width - 4 - lipgloss.Width(line) - lipgloss.Width(meta); pad > 0 {
			line += strings.Repeat(" ", pad) + meta
		} else {
			line += "  " + meta
		}
		if i == vs.TopicIndex && vs.Focus == state.PaneTopics {
			line = r.styles.SelectionBg.Render(line)
		}
		lines[i] = line
	}
	return lines
}

func (r *Renderer) partitionsTitle(vs ViewState) string {
	if !vs.HasTopic {
		return "Partitions"
	}
	return fmt.Sprintf("Partitions of %s", vs.SelectedTopic.Name)
}

func (r *Renderer) partitionLines(vs ViewState) []string {
	if !vs.HasTopic {
		return []string{r.styles.Dim.Render("select a topic")}
	}
	if len(vs.SelectedTopic.Partitions) == 0 {
		return []string{r.styles.Dim.Render("no partitions")}
	}
	lines := make([]string, len(vs.SelectedTopic.Partitions))
	for i, p := range vs.SelectedTopic.Partitions {
		marker := "  "
		if vs.Selected.HasPartition && p.ID == vs.Selected.PartitionID {
			marker = "▶ "
		}
		line := fmt.Sprintf("%spartition %d  %s", marker, p.ID, r.styles.Dim.Render(humanize.Comma(p.MessageCount)+" msgs"))
		if i == vs.PartitionIndex && vs.Focus == state.PanePartitions {
			line = r.styles.SelectionBg.Render(line)
		}
		lines[i] = line
	}
	return lines
}

func (r *Renderer) messagesTitle(vs ViewState) string {
	if !vs.Selected.HasPartition {
		return "Messages"
	}
	return fmt.Sprintf("Messages %s/%d [%s]", vs.Selected.Topic, vs.Selected.PartitionID, vs.MessagesRange)
}

func (r *Renderer) messageLines(vs ViewState, width int) []string {
	switch {
	case vs.MessagesErr != nil:
		return []string{r.styles.StatusError.Render(vs.MessagesErr.Error())}
	case !vs.Selected.HasPartition:
		return []string{r.styles.Dim.Render("select a partition")}
	case len(vs.Messages) == 0:
		return []string{r.styles.Dim.Render("no messages in range")}
	}
	lines := make([]string, len(vs.Messages))
	for i, m := range vs.Messages {
		line := r.styles.Offset.Render(fmt.Sprintf("%8d", m.Offset)) + "  " + truncate(m.Payload, width-10)
		if i == vs.MessageOffset && vs.Focus == state.PaneMessages {
			line = r.styles.SelectionBg.Render(line)
		}
		lines[i] = line
	}
	return lines
}

func (r *Renderer) matchesTitle(vs ViewState) string {
	if vs.Matches.Keyword == "" {
		return "Matches"
	}
	return fmt.Sprintf("Matches for %q in %s (%s)", vs.Matches.Keyword, vs.Matches.Topic, humanize.Comma(int64(vs.Matches.Len())))
}

func (r *Renderer) matchLines(vs ViewState, width int) []string {
	if vs.Matches.Len() == 0 {
		if vs.Searching {
			return []string{r.styles.Dim.Render("waiting for matches...")}
		}
		return []string{r.styles.Dim.Render("press s to search the selected topic")}
	}
	lines := make([]string, vs.Matches.Len())
	for i, m := range vs.Matches.Matches {
		prefix := r.styles.Offset.Render(fmt.Sprintf("p%d@%d", m.PartitionID, m.Offset))
		line := prefix + "  " + r.highlight(truncate(m.Payload, width-lipgloss.Width(prefix)-2), vs.Matches.Keyword)
		if i == vs.MatchOffset && vs.Focus == state.PaneMatches {
			line = r.styles.SelectionBg.Render(line)
		}
		lines[i] = line
	}
	return lines
}

// highlight marks case-insensitive occurrences of keyword
func (r *Renderer) highlight(text, keyword string) string {
	if keyword == "" {
		return text
	}
	lower, kw := strings.ToLower(text), strings.ToLower(keyword)
	if len(lower) != len(text) {
		return text
	}
	var b strings.Builder
	for {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}
		b.WriteString(text[:idx])
		b.WriteString(r.styles.Highlight.Render(text[idx : idx+len(kw)]))
		text, lower = text[idx+len(kw):], lower[idx+len(kw):]
	}
}

func (r *Renderer) renderStatus(vs ViewState) string {
	msg := vs.StatusMessage
	if !vs.LastUpdate.IsZero() {
		msg = strings.TrimSpace(msg + "  " + r.styles.Dim.Render("updated "+humanize.Time(vs.LastUpdate)))
	}
	switch vs.StatusKind {
	case state.StatusError:
		return r.styles.StatusError.Render(vs.StatusMessage)
	case state.StatusSuccess:
		return r.styles.StatusSuccess.Render(msg)
	case state.StatusLoading:
		return r.styles.StatusLoading.Render(msg)
	default:
		return r.styles.StatusInfo.Render(msg)
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", "⏎")
	if width <= 1 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}
