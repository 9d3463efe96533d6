package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/models"
)

func TestMatchKeyword(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rules := []KeywordRule{
		{Keyword: "casino", Action: models.ActionDelete, AddedAt: now},
		{Keyword: "free money", Action: models.ActionWarn, AddedAt: now},
	}

	tests := []struct {
		name        string
		text        string
		wantMatch   bool
		wantKeyword string
	}{
		{name: "exact substring", text: "visit my casino now", wantMatch: true, wantKeyword: "casino"},
		{name: "case insensitive", text: "FREE MONEY here", wantMatch: true, wantKeyword: "free money"},
		{name: "first rule wins", text: "casino with free money", wantMatch: true, wantKeyword: "casino"},
		{name: "no match", text: "hello there", wantMatch: false},
		{name: "empty text", text: "", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := MatchKeyword(tt.text, rules)
			assert.Equal(t, tt.wantMatch, ok)
			if tt.wantMatch {
				assert.Equal(t, tt.wantKeyword, rule.Keyword)
			}
		})
	}
}

func TestKeywordListUpsertIsIdempotent(t *testing.T) {
	list := NewKeywordList()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	list.Upsert("Spam", models.ActionNotify, 1, now)
	updated := list.Upsert("  SPAM ", models.ActionDelete, 2, now.Add(time.Minute))

	rules := list.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "spam", rules[0].Keyword)
	assert.Equal(t, models.ActionDelete, rules[0].Action)
	assert.Equal(t, models.ActionDelete, updated.Action)
	// The original registration is kept, only the action changes.
	assert.Equal(t, int64(1), rules[0].AddedBy)
}

func TestKeywordListPreservesInsertionOrder(t *testing.T) {
	list := NewKeywordList()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	list.Upsert("first", models.ActionNotify, 1, now)
	list.Upsert("second", models.ActionNotify, 1, now)
	list.Upsert("third", models.ActionNotify, 1, now)

	rules := list.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, "first", rules[0].Keyword)
	assert.Equal(t, "third", rules[2].Keyword)
}

func TestKeywordListRemove(t *testing.T) {
	list := NewKeywordList()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	list.Upsert("gone", models.ActionDelete, 1, now)
	assert.True(t, list.Remove("GONE"))
	assert.False(t, list.Remove("gone"))
	assert.Empty(t, list.Rules())
}
