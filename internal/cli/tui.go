package cli

import (
	"context"
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"kafkaviz/internal/config"
	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/live"
	"kafkaviz/internal/logic"
	"kafkaviz/internal/topics"
	"kafkaviz/internal/ui"
	"kafkaviz/internal/ui/coordinator"
)

// eventQueueSize bounds events waiting to reach the UI
const eventQueueSize = 100

func runTUI(ctx context.Context, o *options) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("the interactive browser needs a terminal; use a subcommand such as 'kafkaviz topics' instead")
	}

	log := o.log
	bus := eventbus.New(log)
	defer bus.Close()

	dialer := o.dialer()
	svc := topics.NewService(bus, o.client(), dialer, logic.NewMemoryTopicStore(),
		topics.WithLogger(log),
		topics.WithTimeout(o.cfg.Backend.Timeout.Std()),
	)
	defer svc.Close()

	coord := coordinator.New(bus, live.NewSearches(dialer),
		coordinator.WithLogger(log),
		coordinator.WithDefaultWindow(o.cfg.UI.DefaultWindow),
	)
	defer coord.Close()

	model := ui.NewModel(coord, o.cfg, log)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	// The bus dispatcher must never wait on the UI
	eventChan := make(chan eventbus.DomainEvent, eventQueueSize)
	forward := func(e eventbus.DomainEvent) {
		select {
		case eventChan <- e:
		default:
			log.Warn().Str("event", string(e.Type())).Msg("UI event queue full, dropping event")
		}
	}
	for _, t := range coordinator.Events() {
		unsub := bus.Subscribe(t, forward)
		defer unsub()
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case e := <-eventChan:
				p.Send(ui.EventMsg{Event: e})
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	log.Info().Msg("starting UI")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Error().Err(err).Msg("UI exited with error")
		return err
	}
	log.Info().Msg("UI exited normally")
	o.savePreferences(bus, model.SortMode())
	return nil
}

// savePreferences writes choices made in the browser back to the config file
func (o *options) savePreferences(bus eventbus.EventBus, mode logic.SortMode) {
	saved := make(chan string, 1)
	unsub := bus.Subscribe(eventbus.EventConfigSaved, func(e eventbus.DomainEvent) {
		if s, ok := e.(domain.ConfigSavedEvent); ok {
			select {
			case saved <- s.Path:
			default:
			}
		}
	})
	defer unsub()

	svc := config.NewConfigServiceWithBus(o.configPath, bus)
	changed, err := config.Persist(svc, func(cfg *config.Config) { cfg.UI.SortMode = mode.String() })
	if err != nil {
		o.log.Warn().Err(err).Str("path", svc.Path()).Msg("could not save preferences")
		return
	}
	if !changed {
		return
	}
	select {
	case path := <-saved:
		o.log.Info().Str("path", path).Str("sortMode", mode.String()).Msg("preferences saved")
	case <-time.After(time.Second):
	}
}
