package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "warden/pkg/errors"
)

func TestParseRuleKind(t *testing.T) {
	for _, kind := range []RuleKind{
		RuleLink, RuleMention, RuleBadWord, RuleSpam, RuleFlood,
		RuleNewAccount, RuleKeyword, RuleCustom, RuleEscalation,
	} {
		parsed, err := ParseRuleKind(string(kind))
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	_, err := ParseRuleKind("telepathy")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsUnknownRuleKind(err))
}
