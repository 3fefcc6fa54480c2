package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "kafkaviz.log")

	l, err := Configure(path, "debug")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })

	l.Debug().Str("topic", "orders").Msg("poll frame")
	cl := Component("search")
	cl.Info().Msg("opened")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"topic":"orders"`)
	assert.Contains(t, string(data), `"component":"search"`)
	assert.Contains(t, string(data), `"level":"debug"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "nonsense")

	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLIsNopAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "k.log")
	_, err := Configure(path, "info")
	require.NoError(t, err)
	require.NoError(t, Close())

	ll := L()
	ll.Info().Msg("dropped")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
}
