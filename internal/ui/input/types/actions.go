package types

// Navigation actions
type NavigateAction struct {
	Direction string // "up", "down", "pageup", "pagedown", "home", "end"
}

func (a NavigateAction) Type() string { return "navigate" }

// FocusAction moves focus between panes
type FocusAction struct {
	Direction string // "next" or "prev"
}

func (a FocusAction) Type() string { return "focus" }

// SelectAction picks the highlighted topic or partition
type SelectAction struct{}

func (a SelectAction) Type() string { return "select" }

// Mode transition actions
type ChangeModeAction struct {
	Mode Mode
	Data string // initial text for text modes
}

func (a ChangeModeAction) Type() string { return "change_mode" }

// Text input actions
type UpdateTextAction struct {
	Text string
	Mode Mode
}

func (a UpdateTextAction) Type() string { return "update_text" }

type SubmitTextAction struct {
	Text string
	Mode Mode // Which mode submitted the text
}

func (a SubmitTextAction) Type() string { return "submit_text" }

type CancelTextAction struct {
	Mode Mode
}

func (a CancelTextAction) Type() string { return "cancel_text" }

// Command actions
type RefreshAction struct {
	All bool // true reloads the directory, false refreshes the selected topic
}

func (a RefreshAction) Type() string { return "refresh" }

type StopSearchAction struct{}

func (a StopSearchAction) Type() string { return "stop_search" }

type ToggleFollowAction struct{}

func (a ToggleFollowAction) Type() string { return "toggle_follow" }

type CycleSortAction struct{}

func (a CycleSortAction) Type() string { return "cycle_sort" }

type ClearFilterAction struct{}

func (a ClearFilterAction) Type() string { return "clear_filter" }

type ToggleHelpAction struct{}

func (a ToggleHelpAction) Type() string { return "toggle_help" }

type QuitAction struct {
	Force bool // true for Ctrl+C, false for 'q'
}

func (a QuitAction) Type() string { return "quit" }
