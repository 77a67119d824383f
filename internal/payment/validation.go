package payment

import (
	"fmt"
	"regexp"
)

// Validation error codes.
const (
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeUnsupportedCurrency = "UNSUPPORTED_CURRENCY"
	CodeInvalidEmail        = "INVALID_EMAIL"
	CodeInvalidPhone        = "INVALID_PHONE"
	CodeInvalidOrderID      = "INVALID_ORDER_ID"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Regional mobile format: exactly 10 digits, leading digit 6-9.
	phonePattern    = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	nonDigitPattern = regexp.MustCompile(`[^0-9]`)
)

// ValidationError is a field-scoped hard failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationWarning is informational only and never blocks a payment.
type ValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult reports every failed check; checks are independent and
// are not short-circuited.
type ValidationResult struct {
	IsValid  bool                `json:"isValid"`
	Errors   []ValidationError   `json:"errors"`
	Warnings []ValidationWarning `json:"warnings"`
}

// WarningEvaluator produces informational warnings for a request. The policy
// package provides a rule-expression implementation.
type WarningEvaluator interface {
	Evaluate(req Request) ([]ValidationWarning, error)
}

// Validator runs the pure field checks on a payment request.
type Validator struct {
	supportedCurrency string
	warnings          WarningEvaluator
}

// NewValidator builds a Validator for the single supported currency.
// warnings may be nil.
func NewValidator(supportedCurrency string, warnings WarningEvaluator) *Validator {
	if supportedCurrency == "" {
		panic("supported currency cannot be empty")
	}
	return &Validator{supportedCurrency: supportedCurrency, warnings: warnings}
}

// Validate evaluates every check and collects each failure as its own entry.
// No side effects; deterministic for a given request.
func (v *Validator) Validate(req Request) ValidationResult {
	var errors []ValidationError
	var warnings []ValidationWarning

	if req.Amount <= 0 {
		errors = append(errors, ValidationError{
			Field:   "amount",
			Message: "Amount must be greater than 0",
			Code:    CodeInvalidAmount,
		})
	}

	if req.Currency != v.supportedCurrency {
		errors = append(errors, ValidationError{
			Field:   "currency",
			Message: fmt.Sprintf("Only %s currency is supported", v.supportedCurrency),
			Code:    CodeUnsupportedCurrency,
		})
	}

	if req.CustomerEmail == "" || !emailPattern.MatchString(req.CustomerEmail) {
		errors = append(errors, ValidationError{
			Field:   "customerEmail",
			Message: "Valid email address is required",
			Code:    CodeInvalidEmail,
		})
	}

	if !validPhone(req.CustomerPhone) {
		errors = append(errors, ValidationError{
			Field:   "customerPhone",
			Message: "Valid phone number is required",
			Code:    CodeInvalidPhone,
		})
	}

	if len(req.OrderID) < 3 {
		errors = append(errors, ValidationError{
			Field:   "orderId",
			Message: "Order ID must be at least 3 characters",
			Code:    CodeInvalidOrderID,
		})
	}

	if v.warnings != nil {
		// Warnings are informational only; a rule evaluation failure must
		// not invalidate an otherwise well-formed request.
		if ws, err := v.warnings.Evaluate(req); err == nil {
			warnings = append(warnings, ws...)
		}
	}

	return ValidationResult{
		IsValid:  len(errors) == 0,
		Errors:   errors,
		Warnings: warnings,
	}
}

// SanitizePhone strips everything that is not a digit.
func SanitizePhone(phone string) string {
	return nonDigitPattern.ReplaceAllString(phone, "")
}

func validPhone(phone string) bool {
	if phone == "" {
		return false
	}
	return phonePattern.MatchString(SanitizePhone(phone))
}
