// Package contract validates raw request bodies against a JSON schema
// before they are bound into domain types, so malformed or incomplete
// requests are rejected with a field-level message at the HTTP edge.
package contract

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// createPaymentSchema covers the POST /payments body: required fields, basic
// types, and the hard amount ceiling. %v is the configured maximum amount.
const createPaymentSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["amount", "currency", "orderId", "customerId", "customerEmail", "customerPhone", "description"],
	"properties": {
		"amount": {"type": "number", "exclusiveMinimum": 0, "maximum": %v},
		"currency": {"type": "string", "minLength": 1},
		"orderId": {"type": "string", "minLength": 1},
		"customerId": {"type": "string", "minLength": 1},
		"customerEmail": {"type": "string", "minLength": 1},
		"customerPhone": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"returnUrl": {"type": "string"},
		"webhookUrl": {"type": "string"},
		"metadata": {"type": "object"}
	}
}`

// Monitor validates request bodies against a compiled JSON schema.
type Monitor struct {
	schema *gojsonschema.Schema
}

// NewCreatePaymentMonitor compiles the create-payment schema with the given
// hard amount ceiling.
func NewCreatePaymentMonitor(maxAmount float64) (*Monitor, error) {
	doc := fmt.Sprintf(createPaymentSchema, maxAmount)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("contract: failed to compile schema: %w", err)
	}
	return &Monitor{schema: schema}, nil
}

// Validate checks the raw body. It returns the schema violations when the
// body is well-formed JSON but breaks the contract, and an error when the
// body cannot be evaluated at all.
func (m *Monitor) Validate(body []byte) (bool, []string, error) {
	result, err := m.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return false, nil, fmt.Errorf("contract: validation failed: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return false, violations, nil
}

// FormatErrors joins schema violations into one message.
func FormatErrors(violations []string) string {
	if len(violations) == 0 {
		return ""
	}
	return "Missing or invalid fields: " + strings.Join(violations, "; ")
}
