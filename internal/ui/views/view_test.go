package views

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"kafkaviz/internal/domain"
	"kafkaviz/internal/ui/state"
)

func sampleTopics() []domain.Topic {
	return []domain.Topic{
		{Name: "orders", PartitionCount: 2, ReplicationFactor: 3, Partitions: []domain.Partition{{ID: 0, MessageCount: 1200}, {ID: 4, MessageCount: 34}}},
		{Name: "payments", PartitionCount: 1, ReplicationFactor: 1, Partitions: []domain.Partition{{ID: 0, MessageCount: 5}}},
	}
}

func baseState() ViewState {
	return ViewState{Width: 120, Height: 40, ViewportHeight: 24, Topics: sampleTopics(), TotalTopics: 2}
}

func TestRenderTopicDirectory(t *testing.T) {
	out := NewRenderer().Render(baseState())

	assert.Contains(t, out, "kafkaviz")
	assert.Contains(t, out, "orders")
	assert.Contains(t, out, "payments")
	assert.Contains(t, out, "1,234 msgs")
	assert.Contains(t, out, "select a topic")
}

func TestRenderEmptyAndLoading(t *testing.T) {
	r := NewRenderer()

	vs := ViewState{Width: 80, Height: 20, NoTopics: true}
	assert.Contains(t, r.Render(vs), "No topics found")

	vs = ViewState{Width: 80, Height: 20, Loading: true}
	assert.Contains(t, r.Render(vs), "Loading topics...")
}

func TestRenderPartitionsByID(t *testing.T) {
	vs := baseState()
	topic := sampleTopics()[0]
	vs.Selected = state.Selection{Topic: "orders", PartitionID: 4, HasPartition: true, RangeText: "29-33"}
	vs.SelectedTopic = topic
	vs.HasTopic = true
	vs.MessagesRange = domain.MessageRange{Start: 29, End: 33}
	vs.Messages = []domain.Message{{Offset: 29, Payload: "first"}, {Offset: 30, Payload: "line\nbreak"}}

	out := NewRenderer().Render(vs)
	assert.Contains(t, out, "Partitions of orders")
	assert.Contains(t, out, "partition 4")
	assert.Contains(t, out, "Messages orders/4 [29-33]")
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "line⏎break")
}

func TestRenderMessagesError(t *testing.T) {
	vs := baseState()
	vs.Selected = state.Selection{Topic: "orders", HasPartition: true}
	vs.MessagesErr = errors.New("fetch messages: status 500")

	assert.Contains(t, NewRenderer().Render(vs), "status 500")
}

func TestRenderMatches(t *testing.T) {
	vs := baseState()
	vs.Focus = state.PaneMatches
	vs.Searching = true
	vs.Matches = domain.MatchList{Topic: "orders", Keyword: "err", Matches: []domain.SearchMatch{
		{PartitionID: 1, Offset: 7, Payload: "an error here"},
	}}

	out := NewRenderer().Render(vs)
	assert.Contains(t, out, `Matches for "err" in orders (1)`)
	assert.Contains(t, out, "p1@7")
	assert.Contains(t, out, "ror here")
}

func TestRenderInputLine(t *testing.T) {
	vs := baseState()
	vs.InputMode = "range"
	vs.InputPrompt = "Range: "
	vs.TextInput = "6-11"

	out := NewRenderer().Render(vs)
	assert.Contains(t, out, "Range: ")
	assert.Contains(t, out, "6-11")
}

func TestRenderHelpOverlay(t *testing.T) {
	vs := baseState()
	vs.ShowHelp = true
	out := NewRenderer().Render(vs)
	assert.Contains(t, out, "kafkaviz Help")
	assert.Contains(t, out, "Search the selected topic")
}

func TestWindowKeepsCursorVisible(t *testing.T) {
	r := NewRenderer()
	lines := make([]string, 50)
	for i := range lines {
		lines[i] = strings.Repeat("x", i%3+1) + "-" + string(rune('a'+i%26))
	}

	got := r.window(lines, 0, 10)
	assert.Len(t, got, 9)
	assert.Equal(t, lines[0], got[0])
	assert.Contains(t, got[len(got)-1], "42 more below")

	got = r.window(lines, 49, 10)
	assert.Contains(t, got[0], "42 more above")
	assert.Equal(t, lines[49], got[len(got)-1])

	got = r.window(lines, 20, 10)
	assert.Contains(t, got, lines[20])
	assert.Len(t, got, 10)

	assert.Equal(t, lines[:3], r.window(lines[:3], 2, 10))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a⏎b", truncate("a\nb", 10))
}
