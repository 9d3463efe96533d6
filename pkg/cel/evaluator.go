package cel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"warden/pkg/models"
)

// Evaluator compiles and runs custom moderation rule expressions
// against inbound message events.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("group_id", cel.IntType),
		cel.Variable("user_id", cel.IntType),
		cel.Variable("text", cel.StringType),
		cel.Variable("is_privileged", cel.BoolType),
		cel.Variable("account_age_days", cel.IntType),
		cel.Variable("timestamp", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// ValidateRuleExpression additionally requires a boolean result, since
// a custom rule either matches a message or does not.
func (e *Evaluator) ValidateRuleExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateRule runs a custom rule expression against a message event.
func (e *Evaluator) EvaluateRule(ctx context.Context, expression string, evt models.ChatEvent) (bool, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return false, fmt.Errorf("rule expression must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return false, fmt.Errorf("failed to create CEL program: %w", err)
	}

	result, _, err := program.ContextEval(ctx, eventVars(evt))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return program, nil
}

func eventVars(evt models.ChatEvent) map[string]interface{} {
	accountAgeDays := int64(0)
	if evt.AccountCreatedAt != nil {
		accountAgeDays = int64(evt.Timestamp.Sub(*evt.AccountCreatedAt) / (24 * time.Hour))
	}

	return map[string]interface{}{
		"group_id":         evt.GroupID,
		"user_id":          evt.UserID,
		"text":             evt.Text,
		"is_privileged":    evt.IsPrivileged,
		"account_age_days": accountAgeDays,
		"timestamp":        evt.Timestamp,
	}
}
