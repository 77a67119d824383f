// Package mock provides a function-stub Gateway for tests.
package mock

import (
	"context"
	"errors"

	"github.com/gokhana/payment-service/internal/payment"
)

// Gateway lets each test case plug in behavior per operation. Unset
// functions return an error so tests fail loudly on unexpected calls.
type Gateway struct {
	NameValue         string
	CreatePaymentFunc func(ctx context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error)
	VerifyPaymentFunc func(ctx context.Context, paymentID string) (*payment.GatewayPaymentResponse, error)
	RefundPaymentFunc func(ctx context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error)
	StatusFunc        func(ctx context.Context, paymentID string) (string, error)
}

// New returns a mock gateway with the given provider name.
func New(name string) *Gateway {
	if name == "" {
		name = "mock"
	}
	return &Gateway{NameValue: name}
}

func (g *Gateway) Name() string { return g.NameValue }

func (g *Gateway) CreatePayment(ctx context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
	if g.CreatePaymentFunc == nil {
		return nil, errors.New("mock: CreatePaymentFunc not set")
	}
	return g.CreatePaymentFunc(ctx, req)
}

func (g *Gateway) VerifyPayment(ctx context.Context, paymentID string) (*payment.GatewayPaymentResponse, error) {
	if g.VerifyPaymentFunc == nil {
		return nil, errors.New("mock: VerifyPaymentFunc not set")
	}
	return g.VerifyPaymentFunc(ctx, paymentID)
}

func (g *Gateway) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error) {
	if g.RefundPaymentFunc == nil {
		return nil, errors.New("mock: RefundPaymentFunc not set")
	}
	return g.RefundPaymentFunc(ctx, paymentID, amount)
}

func (g *Gateway) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if g.StatusFunc != nil {
		return g.StatusFunc(ctx, paymentID)
	}
	resp, err := g.VerifyPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}
