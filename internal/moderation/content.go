package moderation

import (
	"regexp"
	"strings"
	"time"
)

// Stateless message classifiers. Each detector is independent; the
// coordinator applies them in a fixed priority order (link > mention >
// bad-word) and executes only the first triggered family's action.

var linkPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\bt\.me/\S+)`)

var massMentionTokens = []string{"@all", "@everyone", "@group", "@here"}

func HasLink(text string) bool {
	if text == "" {
		return false
	}
	return linkPattern.MatchString(text)
}

func HasMassMention(text string) bool {
	if text == "" {
		return false
	}

	lowered := strings.ToLower(text)
	for _, token := range massMentionTokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}

func HasBadWord(text string, words []string) bool {
	if text == "" || len(words) == 0 {
		return false
	}

	lowered := strings.ToLower(text)
	for _, word := range words {
		if word == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

// IsNewAccount flags an account younger than minAgeDays at `now`.
func IsNewAccount(createdAt time.Time, minAgeDays int, now time.Time) bool {
	if minAgeDays <= 0 || createdAt.IsZero() {
		return false
	}
	return now.Sub(createdAt) < time.Duration(minAgeDays)*24*time.Hour
}
