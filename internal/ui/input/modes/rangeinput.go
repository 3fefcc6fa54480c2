package modes

import (
	"github.com/charmbracelet/bubbles/textinput"

	"kafkaviz/internal/ui/input/types"
)

// RangeMode edits the "<start>-<end>" offset range. An empty value selects
// the newest messages.
type RangeMode struct {
	TextInputMode
}

func NewRangeMode(ti *textinput.Model) *RangeMode {
	return &RangeMode{
		TextInputMode: NewTextInputMode(types.ModeRange, "range", "Range: ", ti),
	}
}
