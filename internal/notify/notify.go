// Package notify defines the downstream order-confirmation port. The
// orchestrator fires it when a webhook reports a successful payment.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier announces that an order's payment has been confirmed.
type Notifier interface {
	OrderConfirmed(ctx context.Context, orderID string) error
}

// LogNotifier is the default implementation; it records the confirmation in
// the service log and nothing else.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) OrderConfirmed(_ context.Context, orderID string) error {
	n.logger.Info("order confirmed", zap.String("order_id", orderID))
	return nil
}
