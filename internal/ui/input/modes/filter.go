package modes

import (
	"github.com/charmbracelet/bubbles/textinput"

	"kafkaviz/internal/ui/input/types"
)

// FilterMode narrows the topic list as the user types
type FilterMode struct {
	TextInputMode
}

func NewFilterMode(ti *textinput.Model) *FilterMode {
	return &FilterMode{
		TextInputMode: NewTextInputMode(types.ModeFilter, "filter", "Filter: ", ti),
	}
}
