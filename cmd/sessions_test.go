package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/client-enricher/internal/model"
)

func TestFormatSessionsList(t *testing.T) {
	started := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := started.Add(42 * time.Second)
	sessions := []model.Session{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			ClientID:    "c1",
			Status:      model.SessionStatusCompleted,
			StartedAt:   started,
			CompletedAt: &done,
		},
		{
			ID:          "def12345-6789-0000-0000-000000000000",
			ClientID:    "c2",
			Status:      model.SessionStatusRunning,
			ForceUpdate: true,
			StartedAt:   started.Add(-time.Hour),
		},
	}

	var buf bytes.Buffer
	formatSessionsList(&buf, sessions)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2025-06-15 10:30")
	assert.Contains(t, out, "42s")
	assert.Contains(t, out, "true")
}

func TestFormatSessionsList_TruncatesErrors(t *testing.T) {
	started := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	sessions := []model.Session{{
		ID:        "s1",
		ClientID:  "c1",
		Status:    model.SessionStatusFailed,
		StartedAt: started,
		Error:     strings.Repeat("x", 100),
	}}

	var buf bytes.Buffer
	formatSessionsList(&buf, sessions)

	assert.Contains(t, buf.String(), strings.Repeat("x", 57)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 58))
}
