package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/logic"
)

// Environment variables that override file settings
const (
	EnvHost     = "KAFKAVIZ_HOST"
	EnvScheme   = "KAFKAVIZ_SCHEME"
	EnvWSScheme = "KAFKAVIZ_WS_SCHEME"
	EnvLogFile  = "KAFKAVIZ_LOG_FILE"
	EnvLogLevel = "KAFKAVIZ_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Version int     `toml:"version"`
	Backend Backend `toml:"backend"`
	Live    Live    `toml:"live"`
	UI      UI      `toml:"ui"`
	Logging Logging `toml:"logging"`
}

// Backend locates the HTTP/WebSocket backend
type Backend struct {
	Scheme   string   `toml:"scheme"`    // http or https
	Host     string   `toml:"host"`      // host[:port]
	WSScheme string   `toml:"ws_scheme"` // ws or wss
	Timeout  Duration `toml:"timeout"`
}

// Live tunes the push channels
type Live struct {
	PollBuffer          int      `toml:"poll_buffer"`
	ReconnectMaxElapsed Duration `toml:"reconnect_max_elapsed"`
}

// UI represents UI-related configuration
type UI struct {
	DefaultWindow int    `toml:"default_window"`
	ShowHelp      bool   `toml:"show_help"`
	SortMode      string `toml:"sort_mode"` // name, messages or partitions
}

// Logging selects the log destination and level
type Logging struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// Duration is a time.Duration that reads and writes as "1.5s" in TOML
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BaseURL returns the root for request/response calls, e.g. http://localhost:8090
func (b Backend) BaseURL() *url.URL {
	return &url.URL{Scheme: b.Scheme, Host: b.Host}
}

// SocketURL returns the root for push channels, e.g. ws://localhost:8090
func (b Backend) SocketURL() *url.URL {
	return &url.URL{Scheme: b.WSScheme, Host: b.Host}
}

// Origin is the value sent in the WebSocket Origin header
func (b Backend) Origin() string {
	return b.BaseURL().String()
}

// ConfigService handles configuration management
type ConfigService interface {
	Load() (*Config, error)
	Save(config *Config) error
	LoadFromPath(path string) (*Config, error)
	SaveToPath(config *Config, path string) error
	Path() string
}

// configService is the concrete implementation
type configService struct {
	bus      eventbus.EventBus
	filePath string
}

// NewConfigService creates a config service rooted at the user config dir
func NewConfigService() ConfigService {
	return &configService{filePath: DefaultPath()}
}

// NewConfigServiceAt creates a config service for an explicit file
func NewConfigServiceAt(path string) ConfigService {
	if path == "" {
		path = DefaultPath()
	}
	return &configService{filePath: path}
}

// NewConfigServiceWithBus creates a config service with event bus support
func NewConfigServiceWithBus(path string, bus eventbus.EventBus) ConfigService {
	cs := NewConfigServiceAt(path).(*configService)
	cs.bus = bus
	return cs
}

// DefaultPath is $XDG_CONFIG_HOME/kafkaviz/config.toml or its platform equivalent
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fallback to home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			configDir = "."
		}
		configDir = filepath.Join(configDir, ".config")
	}
	return filepath.Join(configDir, "kafkaviz", "config.toml")
}

func (cs *configService) Path() string {
	return cs.filePath
}

// Load loads the configuration from file. A missing file yields defaults.
func (cs *configService) Load() (*Config, error) {
	cfg, err := cs.LoadFromPath(cs.filePath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
	} else if err != nil {
		return nil, err
	}

	if cs.bus != nil {
		cs.bus.Publish(domain.ConfigLoadedEvent{Path: cs.filePath})
	}
	return cfg, nil
}

// Save saves the configuration to file
func (cs *configService) Save(config *Config) error {
	if err := cs.SaveToPath(config, cs.filePath); err != nil {
		return err
	}
	if cs.bus != nil {
		cs.bus.Publish(domain.ConfigSavedEvent{Path: cs.filePath})
	}
	return nil
}

// Persist applies edit to the settings stored in cs's file and saves them.
// Environment and flag overrides are never written back. It reports whether
// anything changed; an unchanged file is left alone.
func Persist(cs ConfigService, edit func(*Config)) (bool, error) {
	cfg, err := cs.Load()
	if err != nil {
		return false, err
	}
	before := *cfg
	edit(cfg)
	if *cfg == before {
		return false, nil
	}
	if err := cs.Save(cfg); err != nil {
		return false, err
	}
	return true, nil
}

// LoadFromPath loads configuration from a specific path. Fields missing from
// the file keep their defaults.
func (cs *configService) LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// SaveToPath saves configuration to a specific path
func (cs *configService) SaveToPath(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Backend: Backend{
			Scheme:   "http",
			Host:     "127.0.0.1:8090",
			WSScheme: "ws",
			Timeout:  Duration(10 * time.Second),
		},
		Live: Live{
			PollBuffer:          16,
			ReconnectMaxElapsed: Duration(30 * time.Second),
		},
		UI: UI{
			DefaultWindow: 5,
			ShowHelp:      true,
			SortMode:      "name",
		},
		Logging: Logging{
			File:  "",
			Level: "info",
		},
	}
}

// ApplyEnv overlays KAFKAVIZ_* variables from environ onto cfg
func ApplyEnv(cfg *Config, environ []string) {
	env := parseEnv(environ)
	if v, ok := env[EnvHost]; ok && v != "" {
		cfg.Backend.Host = v
	}
	if v, ok := env[EnvScheme]; ok && v != "" {
		cfg.Backend.Scheme = v
	}
	if v, ok := env[EnvWSScheme]; ok && v != "" {
		cfg.Backend.WSScheme = v
	}
	if v, ok := env[EnvLogFile]; ok && v != "" {
		cfg.Logging.File = v
	}
	if v, ok := env[EnvLogLevel]; ok && v != "" {
		cfg.Logging.Level = v
	}
}

// Validate ensures required minimum configuration is present
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if strings.TrimSpace(cfg.Backend.Host) == "" {
		return errors.New("backend host must be set")
	}
	switch cfg.Backend.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("backend scheme must be http or https (got %q)", cfg.Backend.Scheme)
	}
	switch cfg.Backend.WSScheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("backend ws_scheme must be ws or wss (got %q)", cfg.Backend.WSScheme)
	}
	if cfg.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be > 0 (got %s)", cfg.Backend.Timeout.Std())
	}
	if cfg.Live.PollBuffer < 1 {
		return fmt.Errorf("live poll_buffer must be >= 1 (got %d)", cfg.Live.PollBuffer)
	}
	if cfg.UI.DefaultWindow < 0 {
		return fmt.Errorf("ui default_window must be >= 0 (got %d)", cfg.UI.DefaultWindow)
	}
	if _, err := logic.ParseSortMode(cfg.UI.SortMode); err != nil {
		return fmt.Errorf("ui sort_mode: %w", err)
	}
	return nil
}

// Flags renders the effective settings for startup logging
func (c *Config) Flags() map[string]string {
	return map[string]string{
		"host":          c.Backend.Host,
		"scheme":        c.Backend.Scheme,
		"wsScheme":      c.Backend.WSScheme,
		"timeout":       c.Backend.Timeout.Std().String(),
		"pollBuffer":    strconv.Itoa(c.Live.PollBuffer),
		"defaultWindow": strconv.Itoa(c.UI.DefaultWindow),
		"sortMode":      c.UI.SortMode,
		"logFile":       c.Logging.File,
		"logLevel":      c.Logging.Level,
	}
}

func parseEnv(environ []string) map[string]string {
	values := make(map[string]string, len(environ))
	for _, entry := range environ {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		values[parts[0]] = parts[1]
	}
	return values
}
