// Package cli wires configuration, logging and the backend into cobra commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kafkaviz/internal/backend"
	"kafkaviz/internal/config"
	"kafkaviz/internal/live"
	"kafkaviz/internal/logging"
)

type options struct {
	configPath string
	host       string
	scheme     string
	wsScheme   string
	logFile    string
	logLevel   string
	timeout    time.Duration

	environ []string
	cfg     *config.Config
	log     zerolog.Logger
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(os.Environ())
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree. environ supplies KAFKAVIZ_* overrides.
func NewRootCommand(environ []string) *cobra.Command {
	o := &options{environ: environ}

	root := &cobra.Command{
		Use:   "kafkaviz",
		Short: "Browse, follow and search Kafka topics from the terminal",
		Long: `kafkaviz talks to a Kafka visualization backend over HTTP and WebSocket.

Without a subcommand it starts the interactive browser. The subcommands run a
single operation and print the result, for scripting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), o)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, "config", "c", "", "Config file (default "+config.DefaultPath()+")")
	flags.StringVar(&o.host, "host", "", "Backend host[:port] (env: "+config.EnvHost+")")
	flags.StringVar(&o.scheme, "scheme", "", "Backend scheme, http or https (env: "+config.EnvScheme+")")
	flags.StringVar(&o.wsScheme, "ws-scheme", "", "Push channel scheme, ws or wss (env: "+config.EnvWSScheme+")")
	flags.StringVar(&o.logFile, "log-file", "", "Log file, - for stderr (env: "+config.EnvLogFile+")")
	flags.StringVar(&o.logLevel, "log-level", "", "Log level (env: "+config.EnvLogLevel+")")
	flags.DurationVarP(&o.timeout, "timeout", "t", 0, "Request timeout")

	root.AddCommand(
		topicsCmd(o),
		messagesCmd(o),
		publishCmd(o),
		pollCmd(o),
		searchCmd(o),
	)
	return root
}

// setup layers file, environment and flags, then opens the log
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.NewConfigServiceAt(o.configPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(cfg, o.environ)

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Backend.Host = o.host
	}
	if flags.Changed("scheme") {
		cfg.Backend.Scheme = o.scheme
	}
	if flags.Changed("ws-scheme") {
		cfg.Backend.WSScheme = o.wsScheme
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = o.logFile
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("timeout") {
		cfg.Backend.Timeout = config.Duration(o.timeout)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	log, err := logging.Configure(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	ev := log.Info().Str("command", cmd.Name())
	for k, v := range cfg.Flags() {
		ev = ev.Str(k, v)
	}
	ev.Msg("starting")

	o.cfg = cfg
	o.log = log
	return nil
}

func (o *options) client() *backend.Client {
	return backend.New(o.cfg.Backend.BaseURL(),
		backend.WithTimeout(o.cfg.Backend.Timeout.Std()),
		backend.WithLogger(o.log),
	)
}

func (o *options) dialer() *live.Dialer {
	return live.NewDialer(o.cfg.Backend.SocketURL(), o.cfg.Backend.Origin(),
		live.WithLogger(o.log),
		live.WithBufferSize(o.cfg.Live.PollBuffer),
		live.WithDialTimeout(o.cfg.Backend.Timeout.Std()),
		live.WithReconnectMaxElapsed(o.cfg.Live.ReconnectMaxElapsed.Std()),
	)
}

// requestContext bounds one request/response call
func (o *options) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.Backend.Timeout.Std())
}

// interrupted reports whether err only says the user stopped a stream
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}
