package modes

import (
	"github.com/charmbracelet/bubbles/textinput"

	"kafkaviz/internal/ui/input/types"
)

// SearchMode reads a keyword for the selected topic
type SearchMode struct {
	TextInputMode
}

func NewSearchMode(ti *textinput.Model) *SearchMode {
	return &SearchMode{
		TextInputMode: NewTextInputMode(types.ModeSearch, "search", "Search: ", ti),
	}
}
