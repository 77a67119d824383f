// Package gateway defines the capability interface for the external payment
// provider and the error taxonomy for calls that cross it. Provider-specific
// clients live in subpackages and normalize their wire responses into the
// shared payment types.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/gokhana/payment-service/internal/payment"
)

// ErrorKind separates failures to reach the provider from failures the
// provider returned.
type ErrorKind string

const (
	// KindTransport covers network-level failures: timeout, DNS,
	// connection reset. The request may or may not have reached the provider.
	KindTransport ErrorKind = "transport"
	// KindRejected covers HTTP-level non-2xx responses from the provider.
	KindRejected ErrorKind = "rejected"
)

// Error is the single error type returned by gateway clients.
type Error struct {
	Kind        ErrorKind
	Op          string // "create", "verify", "refund"
	StatusCode  int    // HTTP status for rejected errors, 0 for transport
	Code        string // provider error code, if supplied
	Description string
	Err         error // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("gateway %s: transport failure: %s", e.Op, e.Description)
	}
	return fmt.Sprintf("gateway %s: rejected with HTTP %d: %s", e.Op, e.StatusCode, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError unwraps err into a gateway *Error if possible.
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Gateway is implemented once per payment provider. All calls are single
// blocking round trips; retry is the caller's decision.
type Gateway interface {
	// Name returns the provider identifier, e.g. "razorpay".
	Name() string

	// CreatePayment registers a new payment with the provider. The request
	// amount is in major units; conversion to minor units happens inside
	// the client at the wire boundary.
	CreatePayment(ctx context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error)

	// VerifyPayment fetches the provider's current view of a payment.
	VerifyPayment(ctx context.Context, paymentID string) (*payment.GatewayPaymentResponse, error)

	// RefundPayment refunds a payment, partially when amount is non-nil
	// (major units), fully otherwise.
	RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error)

	// GetPaymentStatus returns the provider's raw status string.
	GetPaymentStatus(ctx context.Context, paymentID string) (string, error)
}
