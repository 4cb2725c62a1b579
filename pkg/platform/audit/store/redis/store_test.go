package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "citadel/pkg/platform/audit"
)

func TestDecode(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	event := audit.Event{
		ID:        "evt-1",
		Category:  audit.CategoryCompliance,
		Timestamp: ts,
		Action:    string(audit.EventOwnershipTransferred),
		AssetID:   42,
		Actor:     "alice",
		Subject:   "bob",
		Height:    1200,
		Reason:    "sale",
		RequestID: "req-9",
	}

	got, err := decode(encode(event))
	require.NoError(t, err)
	assert.Equal(t, event, got)
}

func TestDecode_RejectsCorruptEntries(t *testing.T) {
	values := encode(audit.Event{AssetID: 1, Timestamp: time.Now()})

	values["height"] = "not-a-number"
	_, err := decode(values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "height")
}
