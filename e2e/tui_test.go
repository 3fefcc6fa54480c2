//go:build e2e && unix

package e2e

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowseTopicAndPartition(t *testing.T) {
	t.Parallel()
	tf := NewTUITest(t)
	defer tf.Cleanup()

	tf.Backend.AddTopic("orders", 1, 0, 1)
	for i := 0; i < 12; i++ {
		tf.Backend.Append("orders", 0, "order-event")
	}

	require.NoError(t, tf.StartApp())
	require.True(t, tf.SeePlain("kafkaviz"), "title")
	require.True(t, tf.SeePlain("orders"), "topic listed")

	require.NoError(t, tf.SendKeys(KeyEnter))
	require.True(t, tf.SeePlain("Partitions of orders"))
	require.True(t, tf.SeePlain("● live orders"), "selected topic is followed")

	require.NoError(t, tf.SendKeys(KeyEnter))
	require.True(t, tf.SeePlain("Messages orders/0 [6-11]"), tf.SnapshotPlain())
	assert.True(t, tf.SeePlain("order-event"))

	require.NoError(t, tf.SendKeys(KeyQuit))
	assert.NoError(t, tf.Wait(3*time.Second))
}

func TestEmptyDirectory(t *testing.T) {
	t.Parallel()
	tf := NewTUITest(t)
	defer tf.Cleanup()

	require.NoError(t, tf.StartApp())
	require.True(t, tf.SeePlain("No topics found"), tf.SnapshotPlain())

	require.NoError(t, tf.SendKeys(KeyCtrlC))
	assert.NoError(t, tf.Wait(3*time.Second))
}

func TestPublishFromBrowser(t *testing.T) {
	t.Parallel()
	tf := NewTUITest(t)
	defer tf.Cleanup()

	tf.Backend.AddTopic("orders", 1, 0)

	require.NoError(t, tf.StartApp())
	require.True(t, tf.SeePlain("orders"))
	require.NoError(t, tf.SendKeys(KeyEnter))
	require.NoError(t, tf.SendKeys("p"))
	require.True(t, tf.SeePlain("Publish: "))
	require.NoError(t, tf.SendKeys("hello"+KeyEnter))

	require.True(t, tf.SeePlain("Published to orders"), tf.SnapshotPlain())
	require.Eventually(t, func() bool {
		topic, ok := tf.Backend.Topic("orders")
		return ok && topic.TotalMessages() == 1
	}, 3*time.Second, 25*time.Millisecond)

	require.NoError(t, tf.SendKeys(KeyQuit))
	assert.NoError(t, tf.Wait(3*time.Second))
}
