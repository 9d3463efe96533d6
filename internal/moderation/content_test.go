package moderation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHasLink(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "http url", text: "check http://spam.example/offer", want: true},
		{name: "https url", text: "https://spam.example", want: true},
		{name: "www shorthand", text: "go to www.spam.example now", want: true},
		{name: "messaging shorthand", text: "join t.me/dealgroup", want: true},
		{name: "uppercase scheme", text: "HTTPS://SPAM.EXAMPLE", want: true},
		{name: "plain text", text: "no links here", want: false},
		{name: "empty", text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLink(tt.text))
		})
	}
}

func TestHasMassMention(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{name: "at all", text: "hey @all look", want: true},
		{name: "at everyone uppercase", text: "@EVERYONE", want: true},
		{name: "at group", text: "ping @group", want: true},
		{name: "at here", text: "attention @here", want: true},
		{name: "ordinary mention", text: "hi @alice", want: false},
		{name: "empty", text: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasMassMention(tt.text))
		})
	}
}

func TestHasBadWord(t *testing.T) {
	words := []string{"scam", "Fraud"}

	assert.True(t, HasBadWord("this is a SCAM", words))
	assert.True(t, HasBadWord("fraudulent offer", words))
	assert.False(t, HasBadWord("honest offer", words))
	assert.False(t, HasBadWord("anything", nil))
	assert.False(t, HasBadWord("", words))
}

func TestIsNewAccount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		createdAt  time.Time
		minAgeDays int
		want       bool
	}{
		{name: "created yesterday", createdAt: now.Add(-24 * time.Hour), minAgeDays: 7, want: true},
		{name: "exactly at threshold", createdAt: now.Add(-7 * 24 * time.Hour), minAgeDays: 7, want: false},
		{name: "old account", createdAt: now.Add(-365 * 24 * time.Hour), minAgeDays: 7, want: false},
		{name: "check disabled", createdAt: now.Add(-time.Hour), minAgeDays: 0, want: false},
		{name: "zero creation time", createdAt: time.Time{}, minAgeDays: 7, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNewAccount(tt.createdAt, tt.minAgeDays, now))
		})
	}
}
