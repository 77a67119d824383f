package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gokhana/payment-service/internal/gateway"
	"github.com/gokhana/payment-service/internal/gateway/mock"
	"github.com/gokhana/payment-service/internal/idempotency"
	"github.com/gokhana/payment-service/internal/metrics"
	"github.com/gokhana/payment-service/internal/orchestrator"
	"github.com/gokhana/payment-service/internal/payment"
	"github.com/gokhana/payment-service/internal/policy"
	"github.com/gokhana/payment-service/internal/store"
	"github.com/gokhana/payment-service/internal/webhook"
)

const testWebhookSecret = "whsec_test"

// recordingNotifier captures confirmed order ids and can be made to fail.
type recordingNotifier struct {
	mu     sync.Mutex
	orders []string
	err    error
}

func (n *recordingNotifier) OrderConfirmed(_ context.Context, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.orders = append(n.orders, orderID)
	return nil
}

func (n *recordingNotifier) confirmed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.orders...)
}

type fixture struct {
	service  *orchestrator.Service
	gateway  *mock.Gateway
	store    *store.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	enforcer, err := policy.NewEnforcer(policy.DefaultRules(100000))
	require.NoError(t, err)

	gw := mock.New("razorpay")
	st := store.NewMemoryStore()
	notifier := &recordingNotifier{}
	svc := orchestrator.New(
		gw,
		payment.NewValidator("INR", enforcer),
		st,
		idempotency.NewMemoryStore(),
		notifier,
		webhook.NewVerifier(testWebhookSecret),
		metrics.New(prometheus.NewRegistry()),
		zap.NewNop(),
		"INR",
	)
	return &fixture{service: svc, gateway: gw, store: st, notifier: notifier}
}

func validRequest() payment.Request {
	return payment.Request{
		Amount:        474,
		Currency:      "INR",
		OrderID:       "GK_123",
		CustomerID:    "cust-1",
		CustomerEmail: "a@b.com",
		CustomerPhone: "9876543210",
		Description:   "weekly plan",
		ReturnURL:     "http://localhost:3001/payment/success",
	}
}

func createdResponse(id string) *payment.GatewayPaymentResponse {
	return &payment.GatewayPaymentResponse{
		ID:       id,
		Amount:   47400,
		Currency: "INR",
		Status:   "created",
		ShortURL: "https://rzp.io/i/abc",
	}
}

func signedWebhook(t *testing.T, event, paymentID, status, orderID string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"amount":   47400,
					"currency": "INR",
					"status":   status,
					"order_id": orderID,
				},
			},
		},
	})
	require.NoError(t, err)
	return body, webhook.Sign(body, testWebhookSecret)
}

func TestCreatePayment_ValidationShortCircuits(t *testing.T) {
	f := newFixture(t)
	gatewayCalled := false
	f.gateway.CreatePaymentFunc = func(context.Context, payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		gatewayCalled = true
		return createdResponse("pay_1"), nil
	}

	req := validRequest()
	req.CustomerPhone = "1234567890"
	resp := f.service.CreatePayment(context.Background(), req)

	assert.False(t, resp.Success)
	assert.Equal(t, payment.StatusFailed, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, orchestrator.CodeValidationError, resp.Error.Code)
	assert.False(t, gatewayCalled, "invalid request must never reach the gateway")
}

func TestCreatePayment_Success(t *testing.T) {
	f := newFixture(t)
	var gotReq payment.GatewayPaymentRequest
	f.gateway.CreatePaymentFunc = func(_ context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		gotReq = req
		return createdResponse("pay_1"), nil
	}

	resp := f.service.CreatePayment(context.Background(), validRequest())

	require.Nil(t, resp.Error)
	assert.True(t, resp.Success)
	assert.Equal(t, "pay_1", resp.PaymentID)
	assert.Equal(t, payment.StatusPending, resp.Status)
	assert.Equal(t, "https://rzp.io/i/abc", resp.PaymentURL)
	assert.NotEmpty(t, resp.Timestamp)

	// Gateway request carries the order id as receipt and customer details
	// in the notes.
	assert.Equal(t, "GK_123", gotReq.Receipt)
	assert.Equal(t, float64(474), gotReq.Amount)
	assert.Equal(t, "cust-1", gotReq.Notes["customer_id"])

	rec, err := f.store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, rec.Status)
	assert.Equal(t, "GK_123", rec.OrderID)
	assert.Equal(t, "razorpay", rec.GatewayProvider)
}

func TestCreatePayment_PaymentURLFallsBackToID(t *testing.T) {
	f := newFixture(t)
	f.gateway.CreatePaymentFunc = func(context.Context, payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		resp := createdResponse("pay_1")
		resp.ShortURL = ""
		return resp, nil
	}

	resp := f.service.CreatePayment(context.Background(), validRequest())

	assert.True(t, resp.Success)
	assert.Equal(t, "pay_1", resp.PaymentURL)
}

func TestCreatePayment_GatewayRejection(t *testing.T) {
	f := newFixture(t)
	f.gateway.CreatePaymentFunc = func(context.Context, payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		return nil, &gateway.Error{
			Kind: gateway.KindRejected, Op: "create",
			StatusCode: http.StatusPaymentRequired,
			Code:       "BAD_REQUEST_ERROR", Description: "insufficient funds",
		}
	}

	resp := f.service.CreatePayment(context.Background(), validRequest())

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, orchestrator.CodePaymentCreationFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "insufficient funds")

	// The failure released the reservation, so a retry can go through.
	f.gateway.CreatePaymentFunc = func(context.Context, payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		return createdResponse("pay_2"), nil
	}
	retry := f.service.CreatePayment(context.Background(), validRequest())
	assert.True(t, retry.Success)
}

func TestCreatePayment_DuplicateOrderRejected(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.gateway.CreatePaymentFunc = func(context.Context, payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
		calls++
		return createdResponse("pay_1"), nil
	}

	first := f.service.CreatePayment(context.Background(), validRequest())
	require.True(t, first.Success)

	second := f.service.CreatePayment(context.Background(), validRequest())

	assert.False(t, second.Success)
	require.NotNil(t, second.Error)
	assert.Equal(t, orchestrator.CodeDuplicatePayment, second.Error.Code)
	assert.Equal(t, 1, calls, "duplicate create must not reach the gateway")
}

func TestVerifyPayment_Captured(t *testing.T) {
	f := newFixture(t)
	f.gateway.VerifyPaymentFunc = func(_ context.Context, paymentID string) (*payment.GatewayPaymentResponse, error) {
		return &payment.GatewayPaymentResponse{
			ID: paymentID, Amount: 47400, Currency: "INR", Status: "captured", OrderID: "GK_123",
		}, nil
	}

	resp := f.service.VerifyPayment(context.Background(), "pay_1")

	assert.True(t, resp.Success)
	assert.Equal(t, payment.StatusSuccess, resp.Status)
	assert.Equal(t, float64(474), resp.Amount, "amount comes back in major units")

	rec, err := f.store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, rec.Status)
}

func TestVerifyPayment_AuthorizedIsNotSuccess(t *testing.T) {
	f := newFixture(t)
	f.gateway.VerifyPaymentFunc = func(_ context.Context, paymentID string) (*payment.GatewayPaymentResponse, error) {
		return &payment.GatewayPaymentResponse{ID: paymentID, Status: "authorized"}, nil
	}

	resp := f.service.VerifyPayment(context.Background(), "pay_1")

	assert.False(t, resp.Success, "authorized funds are not captured yet")
	assert.Equal(t, payment.StatusPending, resp.Status)
}

func TestVerifyPayment_GatewayError(t *testing.T) {
	f := newFixture(t)
	f.gateway.VerifyPaymentFunc = func(context.Context, string) (*payment.GatewayPaymentResponse, error) {
		return nil, errors.New("network unreachable")
	}

	resp := f.service.VerifyPayment(context.Background(), "pay_1")

	assert.False(t, resp.Success)
	assert.Equal(t, payment.StatusFailed, resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, orchestrator.CodePaymentVerificationFailed, resp.Error.Code)
}

func TestRefundPayment(t *testing.T) {
	t.Run("full refund", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.RefundPaymentFunc = func(_ context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error) {
			require.Nil(t, amount)
			return &payment.GatewayRefundResponse{ID: "rfnd_1", PaymentID: paymentID, Amount: 47400, Status: "processed"}, nil
		}

		resp := f.service.RefundPayment(context.Background(), payment.RefundRequest{PaymentID: "pay_1"})

		assert.True(t, resp.Success)
		assert.Equal(t, "rfnd_1", resp.RefundID)
		assert.Equal(t, float64(474), resp.Amount)

		rec, err := f.store.GetPayment(context.Background(), "pay_1")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusRefunded, rec.Status)
	})

	t.Run("partial refund", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.RefundPaymentFunc = func(_ context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error) {
			require.NotNil(t, amount)
			return &payment.GatewayRefundResponse{ID: "rfnd_2", PaymentID: paymentID, Amount: 10000, Status: "processed"}, nil
		}

		amount := 100.0
		resp := f.service.RefundPayment(context.Background(), payment.RefundRequest{PaymentID: "pay_1", Amount: &amount})

		assert.True(t, resp.Success)
		rec, err := f.store.GetPayment(context.Background(), "pay_1")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPartiallyRefunded, rec.Status)
	})

	t.Run("gateway failure", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.RefundPaymentFunc = func(context.Context, string, *float64) (*payment.GatewayRefundResponse, error) {
			return nil, errors.New("refund window closed")
		}

		resp := f.service.RefundPayment(context.Background(), payment.RefundRequest{PaymentID: "pay_1"})

		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error)
		assert.Equal(t, orchestrator.CodeRefundFailed, resp.Error.Code)
	})
}

func TestCancelPayment(t *testing.T) {
	t.Run("pending payment is cancelled", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.StatusFunc = func(context.Context, string) (string, error) {
			return "created", nil
		}

		cancelled, err := f.service.CancelPayment(context.Background(), "pay_1")

		require.NoError(t, err)
		assert.True(t, cancelled)
		rec, err := f.store.GetPayment(context.Background(), "pay_1")
		require.NoError(t, err)
		assert.Equal(t, payment.StatusCancelled, rec.Status)
	})

	t.Run("captured payment is a no-op", func(t *testing.T) {
		f := newFixture(t)
		f.gateway.StatusFunc = func(context.Context, string) (string, error) {
			return "captured", nil
		}

		cancelled, err := f.service.CancelPayment(context.Background(), "pay_1")

		require.NoError(t, err)
		assert.False(t, cancelled)
		_, err = f.store.GetPayment(context.Background(), "pay_1")
		assert.ErrorIs(t, err, store.ErrNotFound, "no-op cancel writes nothing")
	})
}

func TestHandleWebhook_CapturedConfirmsOrder(t *testing.T) {
	f := newFixture(t)
	body, signature := signedWebhook(t, "payment.captured", "pay_1", "captured", "GK_123")

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, signature))

	rec, err := f.store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, rec.Status)

	status, ok := f.store.OrderStatus("GK_123")
	assert.True(t, ok)
	assert.Equal(t, "confirmed", status)
	assert.Equal(t, []string{"GK_123"}, f.notifier.confirmed())
}

func TestHandleWebhook_InvalidSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	body, _ := signedWebhook(t, "payment.captured", "pay_1", "captured", "GK_123")
	badSignature := webhook.Sign(body, "wrong-secret")

	err := f.service.HandleWebhook(context.Background(), body, badSignature)

	assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	_, getErr := f.store.GetPayment(context.Background(), "pay_1")
	assert.ErrorIs(t, getErr, store.ErrNotFound)
	_, ok := f.store.OrderStatus("GK_123")
	assert.False(t, ok)
	assert.Empty(t, f.notifier.confirmed())
}

func TestHandleWebhook_DuplicateDeliveryNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	body, signature := signedWebhook(t, "payment.captured", "pay_1", "captured", "GK_123")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.service.HandleWebhook(context.Background(), body, signature))
	}

	assert.Equal(t, []string{"GK_123"}, f.notifier.confirmed())
}

func TestHandleWebhook_FailedEventDoesNotConfirm(t *testing.T) {
	f := newFixture(t)
	body, signature := signedWebhook(t, "payment.failed", "pay_1", "failed", "GK_123")

	require.NoError(t, f.service.HandleWebhook(context.Background(), body, signature))

	rec, err := f.store.GetPayment(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusFailed, rec.Status)
	_, ok := f.store.OrderStatus("GK_123")
	assert.False(t, ok)
	assert.Empty(t, f.notifier.confirmed())
}

func TestHandleWebhook_NotifierFailureAllowsRedelivery(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")
	body, signature := signedWebhook(t, "payment.captured", "pay_1", "captured", "GK_123")

	err := f.service.HandleWebhook(context.Background(), body, signature)
	require.Error(t, err)

	// Redelivery after the broker recovers still sends the notification.
	f.notifier.err = nil
	require.NoError(t, f.service.HandleWebhook(context.Background(), body, signature))
	assert.Equal(t, []string{"GK_123"}, f.notifier.confirmed())
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	f := newFixture(t)
	body := []byte("{not json")
	signature := webhook.Sign(body, testWebhookSecret)

	assert.Error(t, f.service.HandleWebhook(context.Background(), body, signature))
}
