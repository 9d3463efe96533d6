package cel

// RuleExpressionExamples documents custom moderation rule expressions
// accepted by the evaluator.
var RuleExpressionExamples = map[string]string{
	"long_message":       `text.size() > 2000`,
	"shouting":           `text == text.upperAscii() && text.size() > 20`,
	"contains_phrase":    `text.lowerAscii().contains("free crypto")`,
	"young_account":      `account_age_days < 7`,
	"forwarded_spam":     `text.startsWith("Forwarded:") && text.contains("http")`,
	"combined":           `account_age_days < 3 && text.contains("@")`,
	"specific_offender":  `user_id == 423817 && text.size() > 0`,
	"non_privileged_all": `!is_privileged && text.lowerAscii().contains("@all")`,
}
