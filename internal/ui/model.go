package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"kafkaviz/internal/config"
	"kafkaviz/internal/logic"
	"kafkaviz/internal/ui/coordinator"
	"kafkaviz/internal/ui/input"
	inputtypes "kafkaviz/internal/ui/input/types"
	"kafkaviz/internal/ui/state"
	"kafkaviz/internal/ui/views"
)

// Model represents the UI state
type Model struct {
	config *config.Config
	coord  *coordinator.Coordinator
	state  *state.AppState // owned by the coordinator
	log    zerolog.Logger

	// UI-specific state not in AppState
	width      int
	height     int
	helpScroll int
	showHint   bool

	renderer     *views.Renderer
	inputHandler *input.Handler
}

// NewModel creates a new UI model
func NewModel(coord *coordinator.Coordinator, cfg *config.Config, log zerolog.Logger) *Model {
	m := &Model{
		config:       cfg,
		coord:        coord,
		state:        coord.State(),
		log:          log.With().Str("component", "ui").Logger(),
		renderer:     views.NewRenderer(),
		inputHandler: input.New(),
	}
	m.showHint = cfg == nil || cfg.UI.ShowHelp
	if cfg != nil {
		if mode, err := logic.ParseSortMode(cfg.UI.SortMode); err == nil {
			m.state.SortMode = mode
		}
	}
	return m
}

// SortMode is the directory order the user last picked
func (m *Model) SortMode() logic.SortMode { return m.state.SortMode }

// Init requests the topic directory and starts the clock
func (m *Model) Init() tea.Cmd {
	m.coord.LoadTopics()
	return tick()
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		return m, nil

	case tea.KeyMsg:
		if m.state.ShowHelp {
			return m, m.handleHelpKey(msg)
		}

		actions, cmd := m.inputHandler.HandleKey(msg, &modelContext{m: m})
		cmds := []tea.Cmd{}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
		for _, action := range actions {
			if actionCmd := m.processAction(action); actionCmd != nil {
				cmds = append(cmds, actionCmd)
			}
		}
		return m, tea.Batch(cmds...)

	case EventMsg:
		m.coord.Apply(msg.Event)
		m.clampCursors()
		return m, nil

	case tickMsg:
		return m, tick()

	case quitMsg:
		m.coord.Close()
		return m, tea.Quit
	}

	if cmd, ok := m.coord.Update(msg); ok {
		m.clampCursors()
		return m, cmd
	}
	return m, m.inputHandler.Update(msg)
}

// View renders the UI
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sel := m.coord.Selection()
	topic, hasTopic := m.state.Topic(sel.Topic)

	vs := views.ViewState{
		Width:            m.width,
		Height:           m.height,
		Topics:           m.state.VisibleTopics(),
		TotalTopics:      len(m.state.Topics),
		TopicIndex:       m.state.TopicIndex,
		NoTopics:         m.state.NoTopics,
		Loading:          m.state.Loading,
		LastUpdate:       m.state.LastUpdate,
		Selected:         sel,
		SelectedTopic:    topic,
		HasTopic:         hasTopic,
		PartitionIndex:   m.state.PartitionIndex,
		Messages:         m.state.Messages,
		MessagesRange:    m.state.MessagesRange,
		MessagesErr:      m.state.MessagesErr,
		MessageOffset:    m.state.MessageOffset,
		Matches:          m.state.Matches,
		MatchOffset:      m.state.MatchOffset,
		Searching:        m.state.Searching,
		Following:        m.state.Following,
		Focus:            m.state.Focus,
		FilterQuery:      m.state.FilterQuery,
		SortMode:         m.state.SortMode.String(),
		StatusMessage:    m.state.StatusMessage,
		StatusKind:       m.state.StatusKind,
		ShowHelp:         m.state.ShowHelp,
		ShowHint:         m.showHint,
		HelpScrollOffset: m.helpScroll,
		ViewportHeight:   m.state.ViewportHeight,
	}

	if ti := m.inputHandler.TextInput(); ti != nil {
		vs.InputMode = modeName(m.inputHandler.CurrentMode())
		vs.InputPrompt = m.inputHandler.Prompt()
		vs.TextInput = ti.View()
	}

	return m.renderer.Render(vs)
}

// processAction applies one input action
func (m *Model) processAction(action inputtypes.Action) tea.Cmd {
	switch a := action.(type) {
	case inputtypes.NavigateAction:
		m.navigate(a.Direction)

	case inputtypes.FocusAction:
		m.moveFocus(a.Direction)

	case inputtypes.SelectAction:
		return m.selectAtCursor()

	case inputtypes.UpdateTextAction:
		if a.Mode == inputtypes.ModeFilter {
			m.state.FilterQuery = a.Text
			m.state.TopicIndex = 0
		}

	case inputtypes.CancelTextAction:
		if a.Mode == inputtypes.ModeFilter {
			m.state.FilterQuery = ""
		}

	case inputtypes.SubmitTextAction:
		return m.submitText(a)

	case inputtypes.ClearFilterAction:
		m.state.FilterQuery = ""

	case inputtypes.RefreshAction:
		if a.All {
			m.coord.LoadTopics()
		} else {
			m.coord.RefreshSelected()
		}

	case inputtypes.ToggleFollowAction:
		m.coord.ToggleFollow()

	case inputtypes.StopSearchAction:
		m.coord.StopSearch()

	case inputtypes.CycleSortAction:
		m.state.SortMode = m.state.SortMode.Next()
		m.state.Resort()
		m.state.SetStatus(state.StatusInfo, fmt.Sprintf("Sorting by %s", m.state.SortMode))

	case inputtypes.ToggleHelpAction:
		m.state.ShowHelp = !m.state.ShowHelp
		m.helpScroll = 0

	case inputtypes.QuitAction:
		if a.Force {
			m.coord.Close()
			return tea.Quit
		}
		return func() tea.Msg { return quitMsg{} }
	}
	return nil
}

func (m *Model) submitText(a inputtypes.SubmitTextAction) tea.Cmd {
	switch a.Mode {
	case inputtypes.ModeFilter:
		m.state.FilterQuery = a.Text
	case inputtypes.ModeRange:
		if err := m.coord.ApplyRange(a.Text); err != nil {
			m.log.Debug().Err(err).Msg("apply range")
		}
		m.state.Focus = state.PaneMessages
	case inputtypes.ModeSearch:
		cmd := m.coord.StartSearch(a.Text)
		if cmd != nil {
			m.state.Focus = state.PaneMatches
		}
		return cmd
	case inputtypes.ModePublish:
		if err := m.coord.Publish(a.Text); err != nil {
			m.log.Debug().Err(err).Msg("publish")
		}
	}
	return nil
}

func (m *Model) selectAtCursor() tea.Cmd {
	switch m.state.Focus {
	case state.PaneTopics:
		t, ok := m.state.TopicAtCursor()
		if !ok {
			return nil
		}
		m.coord.SelectTopic(t.Name)
		m.state.Focus = state.PanePartitions

	case state.PanePartitions:
		topic, ok := m.state.Topic(m.coord.Selection().Topic)
		if !ok || m.state.PartitionIndex >= len(topic.Partitions) {
			return nil
		}
		// partitions are addressed by id, never by row
		id := topic.Partitions[m.state.PartitionIndex].ID
		if err := m.coord.SelectPartition(id); err != nil {
			m.log.Debug().Err(err).Int("partition", id).Msg("select partition")
			return nil
		}
		m.state.Focus = state.PaneMessages
	}
	return nil
}

func (m *Model) navigate(direction string) {
	cursor := m.cursor()
	if cursor == nil {
		return
	}
	maxIndex := m.state.MaxIndex(m.coord.Selection())
	page := max(m.state.ViewportHeight/2-2, 1)

	switch direction {
	case "up":
		*cursor--
	case "down":
		*cursor++
	case "pageup":
		*cursor -= page
	case "pagedown":
		*cursor += page
	case "home":
		*cursor = 0
	case "end":
		*cursor = maxIndex
	}
	*cursor = min(max(*cursor, 0), max(maxIndex, 0))
}

func (m *Model) cursor() *int {
	return m.cursorFor(m.state.Focus)
}

func (m *Model) cursorFor(pane state.Pane) *int {
	switch pane {
	case state.PaneTopics:
		return &m.state.TopicIndex
	case state.PanePartitions:
		return &m.state.PartitionIndex
	case state.PaneMessages:
		return &m.state.MessageOffset
	case state.PaneMatches:
		return &m.state.MatchOffset
	}
	return nil
}

func (m *Model) moveFocus(direction string) {
	const panes = 4
	step := 1
	if direction == "prev" {
		step = panes - 1
	}
	m.state.Focus = state.Pane((int(m.state.Focus) + step) % panes)
}

func (m *Model) clampCursors() {
	sel := m.coord.Selection()
	for _, p := range []state.Pane{state.PaneTopics, state.PanePartitions, state.PaneMessages, state.PaneMatches} {
		limit := max(m.state.MaxIndexFor(p, sel), 0)
		if c := m.cursorFor(p); *c > limit {
			*c = limit
		}
	}
}

func (m *Model) handleHelpKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "?", "q":
		m.state.ShowHelp = false
		m.helpScroll = 0
	case "ctrl+c":
		m.coord.Close()
		return tea.Quit
	case "j", "down":
		m.helpScroll++
	case "k", "up":
		if m.helpScroll > 0 {
			m.helpScroll--
		}
	}
	return nil
}

func (m *Model) updateViewportHeight() {
	// title, input line, gap, status, help hint, pane borders and titles
	const chrome = 12
	m.state.ViewportHeight = max(m.height-chrome, 6)
}

func modeName(mode inputtypes.Mode) string {
	switch mode {
	case inputtypes.ModeFilter:
		return "filter"
	case inputtypes.ModeRange:
		return "range"
	case inputtypes.ModeSearch:
		return "search"
	case inputtypes.ModePublish:
		return "publish"
	}
	return ""
}

// tick returns a command that sends a tick message after a delay
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// modelContext implements the input Context over the model
type modelContext struct {
	m *Model
}

func (c *modelContext) FocusedPane() string { return c.m.state.Focus.String() }

func (c *modelContext) HasTopic() bool { return c.m.coord.Selection().Topic != "" }

func (c *modelContext) HasPartition() bool { return c.m.coord.Selection().HasPartition }

func (c *modelContext) SearchActive() bool { return c.m.state.Searching }

func (c *modelContext) RangeText() string { return c.m.coord.Selection().RangeText }

func (c *modelContext) FilterQuery() string { return c.m.state.FilterQuery }
