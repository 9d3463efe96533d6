package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "warden/pkg/errors"
)

func TestWarningLedgerAddAndCount(t *testing.T) {
	ledger := NewWarningLedger()
	now := time.Now()

	w1, count := ledger.AddWarning(1, 10, "links", 99, now)
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, w1.ID)
	assert.True(t, w1.Active)
	assert.Equal(t, int64(99), w1.IssuedBy)

	_, count = ledger.AddWarning(1, 10, "flood", 99, now)
	assert.Equal(t, 2, count)

	// Counts are scoped per (group, user).
	_, count = ledger.AddWarning(1, 11, "links", 99, now)
	assert.Equal(t, 1, count)
	_, count = ledger.AddWarning(2, 10, "links", 99, now)
	assert.Equal(t, 1, count)

	assert.Equal(t, 2, ledger.ActiveCount(1, 10))
}

func TestWarningLedgerRemoveAt(t *testing.T) {
	ledger := NewWarningLedger()
	now := time.Now()

	ledger.AddWarning(1, 10, "first", 0, now)
	ledger.AddWarning(1, 10, "second", 0, now)
	ledger.AddWarning(1, 10, "third", 0, now)

	removed, err := ledger.RemoveWarningAt(1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "second", removed.Reason)
	assert.Equal(t, 2, ledger.ActiveCount(1, 10))

	// Indexes address the active list, so "third" moved to index 1.
	removed, err = ledger.RemoveWarningAt(1, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, "third", removed.Reason)

	active := ledger.ListActive(1, 10)
	require.Len(t, active, 1)
	assert.Equal(t, "first", active[0].Reason)
}

func TestWarningLedgerRemoveAtOutOfRange(t *testing.T) {
	ledger := NewWarningLedger()
	ledger.AddWarning(1, 10, "only", 0, time.Now())

	tests := []struct {
		name  string
		index int
	}{
		{name: "negative", index: -1},
		{name: "past end", index: 1},
		{name: "unknown user", index: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := int64(10)
			if tt.name == "unknown user" {
				userID = 42
			}
			_, err := ledger.RemoveWarningAt(1, userID, tt.index)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsInvalidIndex(err))
		})
	}

	// Failed removals leave state untouched.
	assert.Equal(t, 1, ledger.ActiveCount(1, 10))
}

func TestWarningLedgerClearAll(t *testing.T) {
	ledger := NewWarningLedger()
	now := time.Now()

	ledger.AddWarning(1, 10, "a", 0, now)
	ledger.AddWarning(1, 10, "b", 0, now)
	ledger.AddWarning(1, 11, "c", 0, now)

	assert.Equal(t, 2, ledger.ClearAll(1, 10))
	assert.Equal(t, 0, ledger.ActiveCount(1, 10))
	assert.Empty(t, ledger.ListActive(1, 10))

	// Other users are untouched; clearing again is a no-op.
	assert.Equal(t, 1, ledger.ActiveCount(1, 11))
	assert.Equal(t, 0, ledger.ClearAll(1, 10))
}
