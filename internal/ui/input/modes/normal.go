package modes

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"kafkaviz/internal/ui/input/types"
)

type NormalMode struct {
	lastKeyWasG bool
	lastGTime   time.Time
}

func NewNormalMode() *NormalMode {
	return &NormalMode{}
}

func (m *NormalMode) Name() string {
	return "normal"
}

func (m *NormalMode) Enter(ctx types.Context) []types.Action {
	return nil
}

func (m *NormalMode) Exit(ctx types.Context) []types.Action {
	return nil
}

func (m *NormalMode) HandleKey(msg tea.KeyMsg, ctx types.Context) ([]types.Action, bool) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return []types.Action{types.QuitAction{Force: true}}, true

	case tea.KeyUp:
		return []types.Action{types.NavigateAction{Direction: "up"}}, true

	case tea.KeyDown:
		return []types.Action{types.NavigateAction{Direction: "down"}}, true

	case tea.KeyLeft, tea.KeyShiftTab:
		return []types.Action{types.FocusAction{Direction: "prev"}}, true

	case tea.KeyRight, tea.KeyTab:
		return []types.Action{types.FocusAction{Direction: "next"}}, true

	case tea.KeyPgUp:
		return []types.Action{types.NavigateAction{Direction: "pageup"}}, true

	case tea.KeyPgDown:
		return []types.Action{types.NavigateAction{Direction: "pagedown"}}, true

	case tea.KeyHome:
		return []types.Action{types.NavigateAction{Direction: "home"}}, true

	case tea.KeyEnd:
		return []types.Action{types.NavigateAction{Direction: "end"}}, true

	case tea.KeyEnter:
		switch ctx.FocusedPane() {
		case "topics", "partitions":
			return []types.Action{types.SelectAction{}}, true
		}
		return nil, false
	}

	switch msg.String() {
	case "j":
		return []types.Action{types.NavigateAction{Direction: "down"}}, true

	case "k":
		return []types.Action{types.NavigateAction{Direction: "up"}}, true

	case "h":
		return []types.Action{types.FocusAction{Direction: "prev"}}, true

	case "l":
		return []types.Action{types.FocusAction{Direction: "next"}}, true

	case "/", "ctrl+f":
		return []types.Action{types.ChangeModeAction{Mode: types.ModeFilter, Data: ctx.FilterQuery()}}, true

	case "o":
		// Edit the offset range (only with a partition selected)
		if ctx.HasPartition() {
			return []types.Action{types.ChangeModeAction{Mode: types.ModeRange, Data: ctx.RangeText()}}, true
		}
		return nil, true

	case "s":
		if ctx.HasTopic() {
			return []types.Action{types.ChangeModeAction{Mode: types.ModeSearch}}, true
		}
		return nil, true

	case "x":
		if ctx.SearchActive() {
			return []types.Action{types.StopSearchAction{}}, true
		}
		return nil, true

	case "p":
		if ctx.HasTopic() {
			return []types.Action{types.ChangeModeAction{Mode: types.ModePublish}}, true
		}
		return nil, true

	case "f":
		if ctx.HasTopic() {
			return []types.Action{types.ToggleFollowAction{}}, true
		}
		return nil, true

	case "r":
		// Refresh the selected topic, or everything when none is selected
		return []types.Action{types.RefreshAction{All: !ctx.HasTopic()}}, true

	case "R":
		return []types.Action{types.RefreshAction{All: true}}, true

	case "S":
		return []types.Action{types.CycleSortAction{}}, true

	case "?":
		return []types.Action{types.ToggleHelpAction{}}, true

	case "esc":
		if ctx.FilterQuery() != "" {
			return []types.Action{types.ClearFilterAction{}}, true
		}
		return nil, true

	case "q":
		return []types.Action{types.QuitAction{Force: false}}, true

	case "g":
		if m.lastKeyWasG && time.Since(m.lastGTime) < 500*time.Millisecond {
			// gg - go to top
			m.lastKeyWasG = false
			return []types.Action{types.NavigateAction{Direction: "home"}}, true
		}
		m.lastKeyWasG = true
		m.lastGTime = time.Now()
		return nil, true

	case "G":
		m.lastKeyWasG = false
		return []types.Action{types.NavigateAction{Direction: "end"}}, true

	default:
		// Any other key cancels the 'g' prefix
		m.lastKeyWasG = false
	}

	return nil, false
}
