// Package store defines the persistence port for payment records and order
// status updates, plus an in-memory implementation. Persistence in this
// service is advisory: the orchestrator logs store failures and carries on,
// because the gateway remains the source of truth for payment state.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gokhana/payment-service/internal/payment"
)

// ErrNotFound is returned when a payment id has no record.
var ErrNotFound = errors.New("store: payment not found")

// PaymentRecord is the persisted view of a payment.
type PaymentRecord struct {
	ID                   string
	OrderID              string
	CustomerID           string
	Amount               float64
	Currency             string
	Status               payment.PaymentStatus
	GatewayProvider      string
	GatewayTransactionID string
	GatewayResponse      *payment.GatewayPaymentResponse
	Metadata             map[string]interface{}
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PaymentStore is the storage port injected into the orchestrator. Tests
// substitute the in-memory implementation.
type PaymentStore interface {
	SavePayment(ctx context.Context, rec PaymentRecord) error
	UpdatePaymentStatus(ctx context.Context, paymentID string, status payment.PaymentStatus, gatewayResponse *payment.GatewayPaymentResponse) error
	GetPayment(ctx context.Context, paymentID string) (PaymentRecord, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}
