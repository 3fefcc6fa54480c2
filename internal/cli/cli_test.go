package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kafkaviz/internal/config"
	"kafkaviz/internal/domain"
	"kafkaviz/internal/eventbus"
	"kafkaviz/internal/fakebackend"
	"kafkaviz/internal/logic"
)

func run(t *testing.T, srv *fakebackend.Server, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	base := []string{
		"--config", filepath.Join(dir, "missing.toml"),
		"--log-file", filepath.Join(dir, "kafkaviz.log"),
		"--host", srv.URL().Host,
	}
	cmd := NewRootCommand(nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(base, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func newServer(t *testing.T) *fakebackend.Server {
	t.Helper()
	srv := fakebackend.New()
	t.Cleanup(srv.Close)
	return srv
}

func TestTopicsCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("payments", 3, 0)
	srv.AddTopic("orders", 1, 0, 1)
	for i := 0; i < 1500; i++ {
		srv.Append("orders", i%2, "m")
	}

	out, err := run(t, srv, "topics")
	require.NoError(t, err)
	assert.Contains(t, out, "TOPIC")
	assert.Contains(t, out, "1,500")
	assert.Less(t, bytes.Index([]byte(out), []byte("orders")), bytes.Index([]byte(out), []byte("payments")))

	out, err = run(t, srv, "topics", "orders")
	require.NoError(t, err)
	assert.Contains(t, out, "orders  partitions=2 replication=1 messages=1,500")
}

func TestTopicsCommandEmpty(t *testing.T) {
	srv := newServer(t)

	out, err := run(t, srv, "topics")
	require.NoError(t, err)
	assert.Contains(t, out, "No topics found")
}

func TestTopicsCommandFailure(t *testing.T) {
	srv := newServer(t)
	srv.FailTopics(http.StatusBadGateway)

	_, err := run(t, srv, "topics")
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestMessagesCommandDefaultRange(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("orders", 1, 3)
	for i := 0; i < 12; i++ {
		srv.Append("orders", 3, fmt.Sprintf("msg-%d", i))
	}

	out, err := run(t, srv, "messages", "orders", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "partition 3 [6-11]")
	assert.Contains(t, out, "msg-6")
	assert.Contains(t, out, "msg-11")
	assert.NotContains(t, out, "msg-5")

	out, err = run(t, srv, "messages", "orders", "3", "0-1")
	require.NoError(t, err)
	assert.Contains(t, out, "msg-0")
	assert.NotContains(t, out, "msg-2")
}

func TestMessagesCommandRejectsBadInput(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("orders", 1, 0)
	srv.Append("orders", 0, "x")

	_, err := run(t, srv, "messages", "orders", "0", "5-2")
	assert.ErrorIs(t, err, domain.ErrInvalidRangeFormat)

	_, err = run(t, srv, "messages", "orders", "9")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = run(t, srv, "messages", "orders")
	assert.Error(t, err)
}

func TestMessagesCommandAll(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("orders", 1, 0, 5)
	srv.Append("orders", 0, "zero")
	srv.Append("orders", 5, "five")

	out, err := run(t, srv, "messages", "orders", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "partition 0 [0-0]")
	assert.Contains(t, out, "partition 5 [0-0]")
	assert.Contains(t, out, "zero")
	assert.Contains(t, out, "five")
}

func TestPublishCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("orders", 1, 0)

	out, err := run(t, srv, "publish", "orders", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Published to orders")
	assert.Contains(t, out, "messages=1")

	srv.FailPublish(http.StatusServiceUnavailable)
	_, err = run(t, srv, "publish", "orders", "again")
	assert.ErrorIs(t, err, domain.ErrPublish)
}

func TestPollCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("orders", 1, 0)
	srv.Append("orders", 0, "a")

	out, err := run(t, srv, "poll", "orders", "--count", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "orders  1 msgs  p0=1")
}

func TestSearchCommand(t *testing.T) {
	srv := newServer(t)
	srv.AddTopic("logs", 1, 0)
	srv.Append("logs", 0, "ok")
	srv.Append("logs", 0, "error one")
	srv.Append("logs", 0, "error two")

	out, err := run(t, srv, "search", "logs", "error", "--count", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "p0@1\terror one")
	assert.Contains(t, out, "p0@2\terror two")

	_, err = run(t, srv, "search", "logs", "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidSearchRequest)
}

func TestConfigLayering(t *testing.T) {
	dir := t.TempDir()
	cmd := NewRootCommand([]string{"KAFKAVIZ_HOST=env-host:1", "KAFKAVIZ_LOG_LEVEL=debug"})
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "none.toml"), "--log-file", filepath.Join(dir, "k.log"), "--scheme", "ftp", "topics"})
	cmd.SetOut(&bytes.Buffer{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme")
}

func TestSavePreferencesKeepsFileSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[backend]\nhost = \"file-host:9000\"\n"), 0o644))

	var logs bytes.Buffer
	o := &options{configPath: path, log: zerolog.New(&logs)}
	o.cfg, _ = config.NewConfigServiceAt(path).Load()
	o.cfg.Backend.Host = "flag-host:1"

	bus := eventbus.New(zerolog.Nop())
	defer bus.Close()

	o.savePreferences(bus, logic.SortByPartitions)

	stored, err := config.NewConfigServiceAt(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "partitions", stored.UI.SortMode)
	assert.Equal(t, "file-host:9000", stored.Backend.Host)
	assert.Contains(t, logs.String(), "preferences saved")

	logs.Reset()
	o.savePreferences(bus, logic.SortByPartitions)
	assert.NotContains(t, logs.String(), "preferences saved")
}
