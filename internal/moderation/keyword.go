package moderation

import (
	"strings"
	"sync"
	"time"

	"warden/pkg/models"
)

func NormalizeKeyword(keyword string) string {
	return strings.ToLower(strings.TrimSpace(keyword))
}

// MatchKeyword checks text against keyword rules in the order they
// were added and returns the first hit. Matching is case-insensitive
// substring containment. Empty text never matches.
func MatchKeyword(text string, rules []KeywordRule) (KeywordRule, bool) {
	if text == "" || len(rules) == 0 {
		return KeywordRule{}, false
	}

	lowered := strings.ToLower(text)
	for _, rule := range rules {
		if rule.Keyword == "" {
			continue
		}
		if strings.Contains(lowered, rule.Keyword) {
			return rule, true
		}
	}
	return KeywordRule{}, false
}

// KeywordList is an ordered keyword registry with idempotent upsert:
// re-adding an existing normalized keyword replaces its action instead
// of duplicating the entry.
type KeywordList struct {
	mu    sync.RWMutex
	rules []KeywordRule
}

func NewKeywordList() *KeywordList {
	return &KeywordList{}
}

func (l *KeywordList) Upsert(keyword string, action models.ActionKind, addedBy int64, now time.Time) KeywordRule {
	normalized := NormalizeKeyword(keyword)

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.rules {
		if l.rules[i].Keyword == normalized {
			l.rules[i].Action = action
			return l.rules[i]
		}
	}

	rule := KeywordRule{
		Keyword: normalized,
		Action:  action,
		AddedBy: addedBy,
		AddedAt: now,
	}
	l.rules = append(l.rules, rule)
	return rule
}

func (l *KeywordList) Remove(keyword string) bool {
	normalized := NormalizeKeyword(keyword)

	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.rules {
		if l.rules[i].Keyword == normalized {
			l.rules = append(l.rules[:i], l.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns a copy in insertion order.
func (l *KeywordList) Rules() []KeywordRule {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rules := make([]KeywordRule, len(l.rules))
	copy(rules, l.rules)
	return rules
}
