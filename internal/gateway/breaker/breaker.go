// Package breaker wraps a gateway.Gateway with a circuit breaker so a
// provider outage sheds load fast instead of stacking up 30-second timeouts.
// State is tracked per operation: a broken create endpoint does not block
// verification of payments already in flight.
package breaker

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gokhana/payment-service/internal/gateway"
	"github.com/gokhana/payment-service/internal/payment"
)

// State of one operation's circuit.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// Config holds the breaker thresholds. Zero values select the defaults.
type Config struct {
	FailureThreshold         int           // consecutive failures to open
	OpenStateTimeout         time.Duration // cooldown before half-open
	HalfOpenSuccessThreshold int           // successes in half-open to close
}

const (
	defaultFailureThreshold         = 5
	defaultOpenStateTimeout         = 30 * time.Second
	defaultHalfOpenSuccessThreshold = 2
)

type opState struct {
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openUntil            time.Time
}

// Breaker is a Gateway decorator; it satisfies gateway.Gateway itself.
type Breaker struct {
	next gateway.Gateway

	mu     sync.Mutex
	ops    map[string]*opState
	config Config
}

// New wraps next with a circuit breaker.
func New(next gateway.Gateway, cfg Config) *Breaker {
	if next == nil {
		panic("wrapped gateway cannot be nil")
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.OpenStateTimeout <= 0 {
		cfg.OpenStateTimeout = defaultOpenStateTimeout
	}
	if cfg.HalfOpenSuccessThreshold <= 0 {
		cfg.HalfOpenSuccessThreshold = defaultHalfOpenSuccessThreshold
	}
	return &Breaker{next: next, ops: make(map[string]*opState), config: cfg}
}

func (b *Breaker) Name() string { return b.next.Name() }

// CreatePayment forwards to the wrapped gateway when the create circuit
// allows it.
func (b *Breaker) CreatePayment(ctx context.Context, req payment.GatewayPaymentRequest) (*payment.GatewayPaymentResponse, error) {
	if !b.allow("create") {
		return nil, openError("create")
	}
	resp, err := b.next.CreatePayment(ctx, req)
	b.record("create", err)
	return resp, err
}

func (b *Breaker) VerifyPayment(ctx context.Context, paymentID string) (*payment.GatewayPaymentResponse, error) {
	if !b.allow("verify") {
		return nil, openError("verify")
	}
	resp, err := b.next.VerifyPayment(ctx, paymentID)
	b.record("verify", err)
	return resp, err
}

func (b *Breaker) RefundPayment(ctx context.Context, paymentID string, amount *float64) (*payment.GatewayRefundResponse, error) {
	if !b.allow("refund") {
		return nil, openError("refund")
	}
	resp, err := b.next.RefundPayment(ctx, paymentID, amount)
	b.record("refund", err)
	return resp, err
}

func (b *Breaker) GetPaymentStatus(ctx context.Context, paymentID string) (string, error) {
	if !b.allow("verify") {
		return "", openError("verify")
	}
	status, err := b.next.GetPaymentStatus(ctx, paymentID)
	b.record("verify", err)
	return status, err
}

// StateOf reports the circuit state for an operation, for tests and
// monitoring. It does not transition state.
func (b *Breaker) StateOf(op string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	os, ok := b.ops[op]
	if !ok {
		return Closed
	}
	return os.state
}

func openError(op string) error {
	return &gateway.Error{
		Kind:        gateway.KindTransport,
		Op:          op,
		Code:        "CIRCUIT_OPEN",
		Description: "circuit open for gateway operation " + op,
	}
}

func (b *Breaker) get(op string) *opState {
	os, ok := b.ops[op]
	if !ok {
		os = &opState{state: Closed}
		b.ops[op] = os
	}
	return os
}

func (b *Breaker) allow(op string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	os := b.get(op)
	switch os.state {
	case Closed:
		return true
	case Open:
		if time.Now().After(os.openUntil) {
			os.state = HalfOpen
			os.consecutiveSuccesses = 0
			return true
		}
		return false
	case HalfOpen:
		return true
	default:
		os.state = Closed
		return true
	}
}

// record classifies the call outcome. Only provider-health failures count:
// transport errors and 5xx/429 rejections. A 4xx business rejection (card
// declined, bad request) means the provider is up and answering.
func (b *Breaker) record(op string, err error) {
	unhealthy := false
	if err != nil {
		if ge, ok := gateway.AsError(err); ok {
			unhealthy = ge.Kind == gateway.KindTransport ||
				ge.StatusCode >= http.StatusInternalServerError ||
				ge.StatusCode == http.StatusTooManyRequests
		} else {
			unhealthy = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	os := b.get(op)
	if unhealthy {
		switch os.state {
		case Closed:
			os.consecutiveFailures++
			if os.consecutiveFailures >= b.config.FailureThreshold {
				os.state = Open
				os.openUntil = time.Now().Add(b.config.OpenStateTimeout)
			}
		case HalfOpen:
			os.state = Open
			os.openUntil = time.Now().Add(b.config.OpenStateTimeout)
			os.consecutiveFailures = 0
			os.consecutiveSuccesses = 0
		}
		return
	}

	switch os.state {
	case Closed:
		os.consecutiveFailures = 0
	case HalfOpen:
		os.consecutiveSuccesses++
		if os.consecutiveSuccesses >= b.config.HalfOpenSuccessThreshold {
			os.state = Closed
			os.consecutiveFailures = 0
			os.consecutiveSuccesses = 0
		}
	}
}
