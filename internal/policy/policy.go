// Package policy evaluates configurable business rules against a payment
// request. Rules are govaluate expressions; a rule that evaluates to true
// attaches its warning to the validation result. Rules never block a payment.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"

	"github.com/gokhana/payment-service/internal/payment"
)

// RuleConfig declares a single warning rule.
type RuleConfig struct {
	Name       string
	Field      string
	Expression string
	Code       string
	Message    string
}

// DefaultRules returns the stock rule set: flag amounts above the soft
// ceiling. The hard ceiling is enforced by the HTTP contract, not here.
func DefaultRules(warnAmount float64) []RuleConfig {
	return []RuleConfig{
		{
			Name:       "HighAmount",
			Field:      "amount",
			Expression: fmt.Sprintf("amount > %v", warnAmount),
			Code:       "HIGH_AMOUNT_WARNING",
			Message:    "Amount exceeds recommended limit",
		},
	}
}

type compiledRule struct {
	cfg  RuleConfig
	expr *govaluate.EvaluableExpression
}

// Enforcer holds the compiled rule set.
type Enforcer struct {
	rules []compiledRule
}

// NewEnforcer compiles the rule expressions up front so evaluation cannot
// fail on syntax at request time.
func NewEnforcer(rules []RuleConfig) (*Enforcer, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for _, rc := range rules {
		expr, err := govaluate.NewEvaluableExpression(rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q has invalid expression: %w", rc.Name, err)
		}
		compiled = append(compiled, compiledRule{cfg: rc, expr: expr})
	}
	return &Enforcer{rules: compiled}, nil
}

// Evaluate runs every rule against the request and returns a warning for
// each rule that fires.
func (e *Enforcer) Evaluate(req payment.Request) ([]payment.ValidationWarning, error) {
	params := map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"order_id": req.OrderID,
	}

	var warnings []payment.ValidationWarning
	for _, rule := range e.rules {
		result, err := rule.expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("policy: rule %q evaluation failed: %w", rule.cfg.Name, err)
		}
		fired, ok := result.(bool)
		if !ok {
			return nil, fmt.Errorf("policy: rule %q did not evaluate to a boolean", rule.cfg.Name)
		}
		if fired {
			warnings = append(warnings, payment.ValidationWarning{
				Field:   rule.cfg.Field,
				Message: rule.cfg.Message,
				Code:    rule.cfg.Code,
			})
		}
	}
	return warnings, nil
}
