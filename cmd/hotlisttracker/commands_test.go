package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HotlistTracker/internal/domain"
)

func TestPrintTopics(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := printTopics(&buf, []domain.TrackedTopic{{
		Platform:    "weibo",
		Category:    "search",
		Title:       "热搜",
		CurrentRank: 3,
		RankDelta:   2,
		HeatValue:   domain.Heat(12000),
		LastSeenAt:  time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "+2")
	assert.Contains(t, out, "12000")
	assert.Contains(t, out, "热搜")
}

func TestFormatHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "-3", formatDelta(-3))
	assert.Equal(t, "0", formatDelta(0))
	assert.Equal(t, "-", formatHeat(nil))
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	t.Parallel()

	root := newRootCommand()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "once", "migrate", "topics", "changes", "logs"} {
		assert.True(t, names[want], want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}
