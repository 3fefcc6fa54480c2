package modes

import (
	"github.com/charmbracelet/bubbles/textinput"

	"kafkaviz/internal/ui/input/types"
)

// PublishMode reads one message payload for the selected topic
type PublishMode struct {
	TextInputMode
}

func NewPublishMode(ti *textinput.Model) *PublishMode {
	return &PublishMode{
		TextInputMode: NewTextInputMode(types.ModePublish, "publish", "Publish: ", ti),
	}
}
