// Package logging sets up the shared zerolog logger. Output goes to a file
// because the terminal belongs to the UI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultLogFile = "kafkaviz.log"

var (
	mu     sync.Mutex
	logger = zerolog.Nop()
	closer io.Closer
)

// Configure opens path for appending and installs a logger writing to it.
// An empty path uses kafkaviz.log in the working directory; "-" or "stderr"
// writes to stderr. Unknown levels fall back to info.
func Configure(path, level string) (zerolog.Logger, error) {
	w, c, err := openWriter(path)
	if err != nil {
		return zerolog.Nop(), err
	}
	l := New(w, level)

	mu.Lock()
	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	logger = l
	mu.Unlock()

	return l, nil
}

// New builds a logger on w without touching the package default
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// L returns the configured logger, or a no-op logger before Configure runs
func L() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Component returns the default logger tagged with a component name
func Component(name string) zerolog.Logger {
	return L().With().Str("component", name).Logger()
}

// Close releases the log file opened by Configure
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	logger = zerolog.Nop()
	return err
}

func openWriter(path string) (io.Writer, io.Closer, error) {
	switch strings.TrimSpace(path) {
	case "-", "stderr":
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}, nil, nil
	case "":
		path = defaultLogFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}
