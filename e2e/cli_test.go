//go:build e2e && unix

package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsAndPublishCommands(t *testing.T) {
	t.Parallel()
	tf := NewTUITest(t)
	defer tf.Cleanup()

	out, err := tf.Run("topics")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No topics found")

	tf.Backend.AddTopic("orders", 2, 0, 1)
	out, err = tf.Run("publish", "orders", "first")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Published to orders")
	assert.Contains(t, out, "messages=1")

	out, err = tf.Run("topics")
	require.NoError(t, err, out)
	assert.Contains(t, out, "orders")
}

func TestInteractiveNeedsTerminal(t *testing.T) {
	t.Parallel()
	tf := NewTUITest(t)
	defer tf.Cleanup()

	out, err := tf.Run()
	require.Error(t, err)
	assert.Contains(t, out, "needs a terminal")
}
