// Package payment defines the core payment domain: request/response shapes,
// the closed payment status vocabulary, the gateway wire mirror types, and
// the pure validation and status-mapping functions over them.
package payment

// PaymentStatus is the closed set of internal payment states.
// Pending and processing are the only non-terminal values; either may move
// to any other value on the next verification or webhook event.
type PaymentStatus string

const (
	StatusPending           PaymentStatus = "pending"
	StatusProcessing        PaymentStatus = "processing"
	StatusSuccess           PaymentStatus = "success"
	StatusFailed            PaymentStatus = "failed"
	StatusCancelled         PaymentStatus = "cancelled"
	StatusRefunded          PaymentStatus = "refunded"
	StatusPartiallyRefunded PaymentStatus = "partially_refunded"
)

// Request describes a single payment creation attempt. Amounts are in major
// currency units (rupees); the gateway client converts to minor units at the
// wire boundary.
type Request struct {
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	OrderID       string                 `json:"orderId"`
	CustomerID    string                 `json:"customerId"`
	CustomerEmail string                 `json:"customerEmail"`
	CustomerPhone string                 `json:"customerPhone"`
	Description   string                 `json:"description"`
	ReturnURL     string                 `json:"returnUrl"`
	WebhookURL    string                 `json:"webhookUrl,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Error carries a machine code plus a human message for a failed operation.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
}

// Response is the uniform result of a create or verify call. It is produced
// fresh per call and never mutated after return.
//
// Invariant: Success == true implies Status == StatusSuccess (for verify) or
// StatusPending (for create) and a non-empty PaymentID.
type Response struct {
	Success         bool                    `json:"success"`
	PaymentID       string                  `json:"paymentId"`
	OrderID         string                  `json:"orderId"`
	Amount          float64                 `json:"amount"`
	Currency        string                  `json:"currency"`
	Status          PaymentStatus           `json:"status"`
	PaymentURL      string                  `json:"paymentUrl,omitempty"`
	TransactionID   string                  `json:"transactionId,omitempty"`
	GatewayResponse *GatewayPaymentResponse `json:"gatewayResponse,omitempty"`
	Error           *Error                  `json:"error,omitempty"`
	Timestamp       string                  `json:"timestamp"`
}

// GatewayPaymentRequest is handed to the gateway client. Amount remains in
// major units here; the client multiplies by 100 when building the wire call.
type GatewayPaymentRequest struct {
	Amount      float64                `json:"amount"`
	Currency    string                 `json:"currency"`
	Receipt     string                 `json:"receipt"`
	Notes       map[string]interface{} `json:"notes,omitempty"`
	CallbackURL string                 `json:"callback_url"`
	WebhookURL  string                 `json:"webhook_url,omitempty"`
}

// GatewayPaymentResponse mirrors the provider's payment entity. Amounts are
// in minor units (paise), exactly as they appear on the wire.
type GatewayPaymentResponse struct {
	ID               string                 `json:"id"`
	Entity           string                 `json:"entity"`
	Amount           int64                  `json:"amount"`
	Currency         string                 `json:"currency"`
	Status           string                 `json:"status"`
	OrderID          string                 `json:"order_id"`
	InvoiceID        string                 `json:"invoice_id,omitempty"`
	International    bool                   `json:"international"`
	Method           string                 `json:"method"`
	AmountRefunded   int64                  `json:"amount_refunded"`
	RefundStatus     string                 `json:"refund_status,omitempty"`
	Captured         bool                   `json:"captured"`
	Description      string                 `json:"description,omitempty"`
	Email            string                 `json:"email"`
	Contact          string                 `json:"contact"`
	Notes            map[string]interface{} `json:"notes,omitempty"`
	Fee              int64                  `json:"fee,omitempty"`
	Tax              int64                  `json:"tax,omitempty"`
	ErrorCode        string                 `json:"error_code,omitempty"`
	ErrorDescription string                 `json:"error_description,omitempty"`
	ShortURL         string                 `json:"short_url,omitempty"`
	CreatedAt        int64                  `json:"created_at"`
}

// GatewayRefundResponse mirrors the provider's refund entity; amount in
// minor units.
type GatewayRefundResponse struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Receipt   string `json:"receipt,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// Webhook is the provider's event envelope. It is untrusted input until the
// signature over the raw body has been verified.
type Webhook struct {
	Event     string         `json:"event"`
	AccountID string         `json:"account_id"`
	Contains  []string       `json:"contains,omitempty"`
	Payload   WebhookPayload `json:"payload"`
	CreatedAt int64          `json:"created_at"`
}

// WebhookPayload wraps the single payment entity embedded in a webhook.
type WebhookPayload struct {
	Payment WebhookPaymentEnvelope `json:"payment"`
}

type WebhookPaymentEnvelope struct {
	Entity GatewayPaymentResponse `json:"entity"`
}

// RefundRequest asks for a full refund when Amount is nil, partial otherwise.
type RefundRequest struct {
	PaymentID string   `json:"paymentId"`
	Amount    *float64 `json:"amount,omitempty"`
	Notes     string   `json:"notes,omitempty"`
	Receipt   string   `json:"receipt,omitempty"`
}

type RefundResponse struct {
	Success   bool    `json:"success"`
	RefundID  string  `json:"refundId"`
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	Notes     string  `json:"notes,omitempty"`
	Receipt   string  `json:"receipt,omitempty"`
	Error     *Error  `json:"error,omitempty"`
}

// Order and its parts are pass-through context owned by the storefront.
// Payment logic only consumes the order id, amount, and contact fields.
type Order struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	CustomerName    string          `json:"customerName"`
	DeliveryAddress DeliveryAddress `json:"deliveryAddress"`
	Items           []OrderItem     `json:"items"`
	Subtotal        float64         `json:"subtotal"`
	DeliveryFee     float64         `json:"deliveryFee"`
	Discount        float64         `json:"discount"`
	Total           float64         `json:"total"`
	Status          string          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentID       string          `json:"paymentId,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

type OrderItem struct {
	PlanID     string  `json:"planId"`
	PlanName   string  `json:"planName"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
	Duration   string  `json:"duration"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
}

type DeliveryAddress struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Landmark     string `json:"landmark,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Instructions string `json:"deliveryInstructions,omitempty"`
}
