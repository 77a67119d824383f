// Package razorpay implements the gateway.Gateway interface against the
// Razorpay REST API. It is the only place where amounts cross between major
// units (rupees) and minor units (paise).
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gokhana/payment-service/internal/gateway"
	"github.com/gokhana/payment-service/internal/payment"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// Client is a Razorpay gateway client. Credentials are sent as HTTP basic
// auth on every call.
type Client struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	timeout    time.Duration
	logger     *zap.Logger
}

// Option tweaks client construction.
type Option func(*Client)

// WithBaseURL overrides the API base URL, primarily for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a Razorpay client with an explicit per-call timeout.
func NewClient(keyID, keySecret string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		keyID:      keyID,
		keySecret:  keySecret,
		timeout:    timeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the provider identifier.
func (c *Client) Name() string { return "razorpay" }

// toPaise converts a major-unit amount to minor units.
func toPaise(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// wireCreateRequest is the outbound JSON body for payment creation.
type wireCreateRequest struct {
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency"`
	Receipt     string                 `json:"receipt"`
	Notes       map[string]interface{} `json:"notes,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	WebhookURL  string                 `json:"webhook_url,omitempty"`
}

type wireErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreatePayment posts a new payment to the provider. The amount is converted
// to paise here and nowhere else on the outbound path.
func (c *Client) CreatePayment(ctx context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
	body := wireCreateRequest{
		Amount:      toPaise(req.Amount),
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Notes:       req.Notes,
		CallbackURL: req.CallbackURL,
		WebhookURL:  req.WebhookURL,
	}

	var resp payment.GatewayPaymentResponse
	if err := c.do(ctx, "create", http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyPayment fetches the payment entity by id.
func (c *Client) VerifyPayment(ctx context.Context, paymentID string) (*payment.GatewayPaymentResponse, error) {
	var resp payment.GatewayPaymentResponse
	path := fmt.Sprintf("/payments/%s", paymentID)
	if err := c.do(ctx, "verify", http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefundPayment issues a refund. A nil amount requests a full refund; a
// non-nil amount is converted to paise for a partial refund.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error) {
	body := map[string]interface{}{}
	if amount != nil {
		body["amount"] = toPaise(*amount)
	}

	var resp payment.GatewayRefundResponse
	path := fmt.Sprintf("/payments/%s/refund", paymentID)
	if err := c.do(ctx, "refund", http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetPaymentStatus returns the provider's raw status string for a payment.
func (c *Client) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	resp, err := c.VerifyPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// do runs one authenticated round trip and decodes the response into out.
// Network failures become transport errors; non-2xx responses become
// rejected errors carrying the provider's description.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &gateway.Error{Kind: gateway.KindTransport, Op: op, Description: "failed to encode request body", Err: err}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return &gateway.Error{Kind: gateway.KindTransport, Op: op, Description: "failed to build request", Err: err}
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("razorpay call failed",
			zap.String("op", op),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return &gateway.Error{Kind: gateway.KindTransport, Op: op, Description: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &gateway.Error{Kind: gateway.KindTransport, Op: op, Description: "failed to read response body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ge := &gateway.Error{
			Kind:        gateway.KindRejected,
			Op:          op,
			StatusCode:  resp.StatusCode,
			Description: fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
		var wireErr wireErrorResponse
		if jsonErr := json.Unmarshal(raw, &wireErr); jsonErr == nil && wireErr.Error.Description != "" {
			ge.Code = wireErr.Error.Code
			ge.Description = wireErr.Error.Description
		}
		c.logger.Warn("razorpay rejected request",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", ge.Code))
		return ge
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &gateway.Error{Kind: gateway.KindTransport, Op: op, Description: "failed to decode response body", Err: err}
		}
	}

	c.logger.Debug("razorpay call completed",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
