// Package orchestrator composes validation, the gateway client, and status
// mapping into the payment lifecycle, and processes verified webhook events.
// Every operation returns a uniform response value; validation and gateway
// failures never escape this boundary as errors.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/gokhana/payment-service/internal/gateway"
	"github.com/gokhana/payment-service/internal/idempotency"
	"github.com/gokhana/payment-service/internal/metrics"
	"github.com/gokhana/payment-service/internal/notify"
	"github.com/gokhana/payment-service/internal/payment"
	"github.com/gokhana/payment-service/internal/store"
	"github.com/gokhana/payment-service/internal/webhook"
)

// Orchestrator error codes.
const (
	CodeValidationError           = "VALIDATION_ERROR"
	CodeDuplicatePayment          = "DUPLICATE_PAYMENT"
	CodePaymentCreationFailed     = "PAYMENT_CREATION_FAILED"
	CodePaymentVerificationFailed = "PAYMENT_VERIFICATION_FAILED"
	CodeRefundFailed              = "REFUND_FAILED"
)

const (
	// createReservationTTL bounds how long an order id stays claimed when
	// the payment is neither completed nor failed.
	createReservationTTL = 30 * time.Minute
	// confirmReservationTTL covers the webhook redelivery window.
	confirmReservationTTL = 7 * 24 * time.Hour

	orderStatusConfirmed = "confirmed"
)

// Service is the payment orchestrator.
type Service struct {
	gateway   gateway.Gateway
	validator *payment.Validator
	store     store.PaymentStore
	idem      idempotency.Store
	notifier  notify.Notifier
	verifier  *webhook.Verifier
	metrics   *metrics.Metrics
	logger    *zap.Logger
	currency  string
}

// New wires a Service. All dependencies are required.
func New(
	gw gateway.Gateway,
	validator *payment.Validator,
	st store.PaymentStore,
	idem idempotency.Store,
	notifier notify.Notifier,
	verifier *webhook.Verifier,
	m *metrics.Metrics,
	logger *zap.Logger,
	currency string,
) *Service {
	if gw == nil {
		panic("gateway cannot be nil")
	}
	if validator == nil {
		panic("validator cannot be nil")
	}
	if st == nil {
		panic("store cannot be nil")
	}
	if idem == nil {
		panic("idempotency store cannot be nil")
	}
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if verifier == nil {
		panic("webhook verifier cannot be nil")
	}
	if m == nil {
		panic("metrics cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		gateway:   gw,
		validator: validator,
		store:     st,
		idem:      idem,
		notifier:  notifier,
		verifier:  verifier,
		metrics:   m,
		logger:    logger,
		currency:  currency,
	}
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreatePayment validates the request, registers the payment with the
// gateway, and returns the pending payment with its redirect URL.
// Validation failure short-circuits before any network call. Creation is
// keyed on the order id: a second create for an order already in flight is
// rejected before reaching the gateway.
func (s *Service) CreatePayment(ctx context.Context, req payment.Request) payment.Response {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Service.CreatePayment")
	defer span.End()

	failed := func(code, message, details string) payment.Response {
		return payment.Response{
			Success:   false,
			OrderID:   req.OrderID,
			Amount:    req.Amount,
			Currency:  req.Currency,
			Status:    payment.StatusFailed,
			Error:     &payment.Error{Code: code, Message: message, Details: details},
			Timestamp: timestamp(),
		}
	}

	validation := s.validator.Validate(req)
	if !validation.IsValid {
		s.metrics.PaymentsCreated.WithLabelValues("validation_failed").Inc()
		return failed(CodeValidationError, "Payment validation failed", joinErrorMessages(validation.Errors))
	}
	for _, w := range validation.Warnings {
		s.logger.Warn("payment request warning",
			zap.String("order_id", req.OrderID),
			zap.String("code", w.Code),
			zap.String("message", w.Message))
	}

	reserved, err := s.idem.Reserve(ctx, createKey(req.OrderID), createReservationTTL)
	if err != nil {
		// Availability over dedup: a broken reservation store must not
		// take payments down with it.
		s.logger.Error("idempotency reservation failed, proceeding without dedup",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
	} else if !reserved {
		s.metrics.PaymentsCreated.WithLabelValues("duplicate").Inc()
		return failed(CodeDuplicatePayment, "A payment for this order is already in progress", "Duplicate create rejected for order "+req.OrderID)
	}

	notes := map[string]interface{}{
		"customer_id":    req.CustomerID,
		"customer_email": req.CustomerEmail,
		"customer_phone": req.CustomerPhone,
		"description":    req.Description,
	}
	for k, v := range req.Metadata {
		notes[k] = v
	}

	start := time.Now()
	gatewayResp, err := s.gateway.CreatePayment(ctx, payment.GatewayPaymentRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Receipt:     req.OrderID,
		Notes:       notes,
		CallbackURL: req.ReturnURL,
		WebhookURL:  req.WebhookURL,
	})
	s.metrics.ObserveGateway("create", start)
	if err != nil {
		s.metrics.PaymentsCreated.WithLabelValues("gateway_failed").Inc()
		s.logger.Error("payment creation failed",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		// Free the order id so a retry after a gateway rejection can
		// go through.
		if relErr := s.idem.Release(ctx, createKey(req.OrderID)); relErr != nil {
			s.logger.Error("failed to release create reservation",
				zap.String("order_id", req.OrderID),
				zap.Error(relErr))
		}
		return failed(CodePaymentCreationFailed, err.Error(), "Failed to create payment with gateway")
	}

	if err := s.store.SavePayment(ctx, store.PaymentRecord{
		ID:                   gatewayResp.ID,
		OrderID:              req.OrderID,
		CustomerID:           req.CustomerID,
		Amount:               req.Amount,
		Currency:             req.Currency,
		Status:               payment.StatusPending,
		GatewayProvider:      s.gateway.Name(),
		GatewayTransactionID: gatewayResp.ID,
		GatewayResponse:      gatewayResp,
		Metadata:             req.Metadata,
	}); err != nil {
		s.logger.Error("failed to persist payment record",
			zap.String("payment_id", gatewayResp.ID),
			zap.Error(err))
	}

	paymentURL := gatewayResp.ShortURL
	if paymentURL == "" {
		paymentURL = gatewayResp.ID
	}

	s.metrics.PaymentsCreated.WithLabelValues("created").Inc()
	return payment.Response{
		Success:         true,
		PaymentID:       gatewayResp.ID,
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Status:          payment.StatusPending,
		PaymentURL:      paymentURL,
		TransactionID:   gatewayResp.ID,
		GatewayResponse: gatewayResp,
		Timestamp:       timestamp(),
	}
}

// VerifyPayment fetches the gateway's current view of a payment and maps it
// into the internal status vocabulary. Success means the payment has been
// captured, not merely that the call went through.
func (s *Service) VerifyPayment(ctx context.Context, paymentID string) payment.Response {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Service.VerifyPayment")
	defer span.End()

	start := time.Now()
	gatewayResp, err := s.gateway.VerifyPayment(ctx, paymentID)
	s.metrics.ObserveGateway("verify", start)
	if err != nil {
		s.logger.Error("payment verification failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return payment.Response{
			Success:   false,
			PaymentID: paymentID,
			Currency:  s.currency,
			Status:    payment.StatusFailed,
			Error:     &payment.Error{Code: CodePaymentVerificationFailed, Message: err.Error(), Details: "Failed to verify payment with gateway"},
			Timestamp: timestamp(),
		}
	}

	status := payment.MapGatewayStatus(gatewayResp.Status)
	s.metrics.PaymentsVerifed.WithLabelValues(string(status)).Inc()

	if err := s.store.UpdatePaymentStatus(ctx, gatewayResp.ID, status, gatewayResp); err != nil {
		s.logger.Error("failed to persist payment status",
			zap.String("payment_id", gatewayResp.ID),
			zap.Error(err))
	}

	return payment.Response{
		Success:         status == payment.StatusSuccess,
		PaymentID:       gatewayResp.ID,
		OrderID:         gatewayResp.OrderID,
		Amount:          float64(gatewayResp.Amount) / 100,
		Currency:        gatewayResp.Currency,
		Status:          status,
		TransactionID:   gatewayResp.ID,
		GatewayResponse: gatewayResp,
		Timestamp:       timestamp(),
	}
}

// RefundPayment issues a full or partial refund through the gateway.
func (s *Service) RefundPayment(ctx context.Context, req payment.RefundRequest) payment.RefundResponse {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Service.RefundPayment")
	defer span.End()

	start := time.Now()
	refund, err := s.gateway.RefundPayment(ctx, req.PaymentID, req.Amount)
	s.metrics.ObserveGateway("refund", start)
	if err != nil {
		s.logger.Error("refund failed",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
		return payment.RefundResponse{
			Success:   false,
			PaymentID: req.PaymentID,
			Status:    "failed",
			Error:     &payment.Error{Code: CodeRefundFailed, Message: err.Error(), Details: "Failed to process refund with gateway"},
		}
	}

	refundedStatus := payment.StatusRefunded
	if req.Amount != nil {
		refundedStatus = payment.StatusPartiallyRefunded
	}
	if err := s.store.UpdatePaymentStatus(ctx, req.PaymentID, refundedStatus, nil); err != nil {
		s.logger.Error("failed to persist refund status",
			zap.String("payment_id", req.PaymentID),
			zap.Error(err))
	}

	return payment.RefundResponse{
		Success:   true,
		RefundID:  refund.ID,
		PaymentID: req.PaymentID,
		Amount:    float64(refund.Amount) / 100,
		Status:    refund.Status,
		Notes:     req.Notes,
		Receipt:   req.Receipt,
	}
}

// GetPaymentStatus returns the mapped status of a payment.
func (s *Service) GetPaymentStatus(ctx context.Context, paymentID string) (payment.PaymentStatus, error) {
	raw, err := s.gateway.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		return payment.StatusFailed, err
	}
	return payment.MapGatewayStatus(raw), nil
}

// CancelPayment cancels a payment only while it is still pending; any other
// state makes this a no-op returning false.
func (s *Service) CancelPayment(ctx context.Context, paymentID string) (bool, error) {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Service.CancelPayment")
	defer span.End()

	status, err := s.GetPaymentStatus(ctx, paymentID)
	if err != nil {
		s.logger.Warn("cancel skipped, status lookup failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return false, nil
	}
	if status != payment.StatusPending {
		return false, nil
	}

	if err := s.store.UpdatePaymentStatus(ctx, paymentID, payment.StatusCancelled, nil); err != nil {
		s.logger.Error("failed to persist cancellation",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}
	return true, nil
}

// HandleWebhook verifies the signature over the raw body, then applies the
// event: map the embedded payment's status, persist it, and fire the
// order-confirmation notification exactly once per order when the payment
// succeeded. Signature failures reject the webhook with no state change.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	ctx, span := otel.Tracer("orchestrator").Start(ctx, "Service.HandleWebhook")
	defer span.End()

	if err := s.verifier.Verify(body, signature); err != nil {
		s.metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		s.logger.Warn("webhook rejected", zap.Error(err))
		return err
	}

	wh, err := webhook.Parse(body)
	if err != nil {
		s.metrics.WebhookEvents.WithLabelValues("malformed").Inc()
		return err
	}

	entity := wh.Payload.Payment.Entity
	status := payment.MapGatewayStatus(entity.Status)
	s.logger.Info("webhook received",
		zap.String("event", wh.Event),
		zap.String("payment_id", entity.ID),
		zap.String("status", string(status)))

	if err := s.store.UpdatePaymentStatus(ctx, entity.ID, status, &entity); err != nil {
		s.logger.Error("failed to persist webhook status",
			zap.String("payment_id", entity.ID),
			zap.Error(err))
	}

	if status == payment.StatusSuccess && entity.OrderID != "" {
		if err := s.confirmOrder(ctx, entity.OrderID); err != nil {
			s.metrics.WebhookEvents.WithLabelValues("failed").Inc()
			return err
		}
	}

	s.metrics.WebhookEvents.WithLabelValues("processed").Inc()
	return nil
}

// confirmOrder marks the order confirmed and notifies downstream, at most
// once per order id even under webhook redelivery.
func (s *Service) confirmOrder(ctx context.Context, orderID string) error {
	reserved, err := s.idem.Reserve(ctx, confirmKey(orderID), confirmReservationTTL)
	if err != nil {
		s.logger.Error("confirmation reservation failed, notifying anyway",
			zap.String("order_id", orderID),
			zap.Error(err))
	} else if !reserved {
		// Already confirmed by an earlier delivery.
		return nil
	}

	if err := s.store.UpdateOrderStatus(ctx, orderID, orderStatusConfirmed); err != nil {
		s.logger.Error("failed to persist order confirmation",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	if err := s.notifier.OrderConfirmed(ctx, orderID); err != nil {
		// Give a redelivery another chance to notify.
		if relErr := s.idem.Release(ctx, confirmKey(orderID)); relErr != nil {
			s.logger.Error("failed to release confirmation reservation",
				zap.String("order_id", orderID),
				zap.Error(relErr))
		}
		return err
	}
	return nil
}

func createKey(orderID string) string  { return "payment:create:" + orderID }
func confirmKey(orderID string) string { return "order:confirm:" + orderID }

func joinErrorMessages(errs []payment.ValidationError) string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, ", ")
}
