package security

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"stockpost/internal/core/apperror"
)

// ApprovalFacts are the variables visible to an approval rule expression.
type ApprovalFacts struct {
	Direction      string
	StoreID        string
	Reason         string
	LineCount      int
	TotalBase      float64
	ActorIsCreator bool
}

// ApprovalRule is an optional CEL guard evaluated before an adjustment is approved.
//
// Example: `!actor_is_creator || total_base < 1000.0` forbids self-approval of large adjustments.
type ApprovalRule struct {
	expr    string
	program cel.Program
}

// CompileApprovalRule parses expr. An empty expression yields a rule that allows everything.
func CompileApprovalRule(expr string) (*ApprovalRule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &ApprovalRule{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("direction", cel.StringType),
		cel.Variable("store_id", cel.StringType),
		cel.Variable("reason", cel.StringType),
		cel.Variable("line_count", cel.IntType),
		cel.Variable("total_base", cel.DoubleType),
		cel.Variable("actor_is_creator", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("approval rule env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile approval rule: %w", iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("approval rule must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build approval rule: %w", err)
	}
	return &ApprovalRule{expr: expr, program: prg}, nil
}

// Check returns APPROVAL_RULE_DENIED when the expression evaluates to false.
func (r *ApprovalRule) Check(f ApprovalFacts) error {
	if r == nil || r.program == nil {
		return nil
	}

	out, _, err := r.program.Eval(map[string]any{
		"direction":        f.Direction,
		"store_id":         f.StoreID,
		"reason":           f.Reason,
		"line_count":       int64(f.LineCount),
		"total_base":       f.TotalBase,
		"actor_is_creator": f.ActorIsCreator,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate approval rule: %w", err))
	}

	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return apperror.NewBusinessRule(apperror.CodeApprovalDenied, "Approval is not allowed by policy").
			WithDetail("rule", r.expr)
	}
	return nil
}
