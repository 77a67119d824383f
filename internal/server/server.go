// Package server exposes the payment orchestrator over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/gokhana/payment-service/internal/config"
	"github.com/gokhana/payment-service/internal/contract"
	"github.com/gokhana/payment-service/internal/orchestrator"
	"github.com/gokhana/payment-service/internal/payment"
	"github.com/gokhana/payment-service/internal/webhook"
)

// SignatureHeader carries the gateway's webhook signature.
const SignatureHeader = "X-Razorpay-Signature"

// Server holds the handler dependencies.
type Server struct {
	service  *orchestrator.Service
	monitor  *contract.Monitor
	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
}

// New builds a Server.
func New(service *orchestrator.Service, monitor *contract.Monitor, cfg config.Config, logger *zap.Logger, registry *prometheus.Registry) *Server {
	if service == nil {
		panic("orchestrator service cannot be nil")
	}
	if monitor == nil {
		panic("contract monitor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{service: service, monitor: monitor, cfg: cfg, logger: logger, registry: registry}
}

// Router assembles the gin engine with tracing, recovery, and all routes.
func (s *Server) Router() *gin.Engine {
	engine := gin.New()
	engine.Use(otelgin.Middleware("payment-service"))
	engine.Use(gin.Recovery())
	engine.Use(s.requestLogger())

	engine.POST("/payments", s.createPayment)
	engine.POST("/payments/verify", s.verifyPayment)
	engine.POST("/payments/refund", s.refundPayment)
	engine.POST("/payments/cancel", s.cancelPayment)
	engine.GET("/payments/:id/status", s.paymentStatus)
	engine.POST("/webhooks/payment", s.handleWebhook)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.registry != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	return engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) createPayment(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}

	valid, violations, err := s.monitor.Validate(body)
	if err != nil || !valid {
		if len(violations) > 0 {
			s.logger.Info("create payment contract violation",
				zap.Strings("violations", violations))
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required fields"})
		return
	}

	var req payment.Request
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}
	if req.Currency == "" {
		req.Currency = config.Currency
	}
	if req.ReturnURL == "" {
		req.ReturnURL = s.cfg.ReturnURL()
	}
	if req.WebhookURL == "" {
		req.WebhookURL = s.cfg.WebhookURL()
	}

	resp := s.service.CreatePayment(c.Request.Context(), req)
	if !resp.Success {
		message := "Payment creation failed"
		if resp.Error != nil {
			message = resp.Error.Message
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"paymentId":     resp.PaymentID,
			"orderId":       resp.OrderID,
			"amount":        resp.Amount,
			"currency":      resp.Currency,
			"status":        resp.Status,
			"paymentUrl":    resp.PaymentURL,
			"transactionId": resp.TransactionID,
		},
	})
}

func (s *Server) verifyPayment(c *gin.Context) {
	var body struct {
		PaymentID string `json:"paymentId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment ID is required"})
		return
	}

	resp := s.service.VerifyPayment(c.Request.Context(), body.PaymentID)

	// Verification always answers 200; the body carries the outcome.
	c.JSON(http.StatusOK, gin.H{
		"success": resp.Success,
		"data": gin.H{
			"paymentId":     resp.PaymentID,
			"orderId":       resp.OrderID,
			"amount":        resp.Amount,
			"currency":      resp.Currency,
			"status":        resp.Status,
			"transactionId": resp.TransactionID,
			"timestamp":     resp.Timestamp,
		},
		"error": resp.Error,
	})
}

func (s *Server) refundPayment(c *gin.Context) {
	var req payment.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment ID is required"})
		return
	}

	resp := s.service.RefundPayment(c.Request.Context(), req)
	c.JSON(http.StatusOK, gin.H{
		"success": resp.Success,
		"data": gin.H{
			"refundId":  resp.RefundID,
			"paymentId": resp.PaymentID,
			"amount":    resp.Amount,
			"status":    resp.Status,
		},
		"error": resp.Error,
	})
}

func (s *Server) cancelPayment(c *gin.Context) {
	var body struct {
		PaymentID string `json:"paymentId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PaymentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Payment ID is required"})
		return
	}

	cancelled, err := s.service.CancelPayment(c.Request.Context(), body.PaymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"paymentId": body.PaymentID, "cancelled": cancelled},
	})
}

func (s *Server) paymentStatus(c *gin.Context) {
	paymentID := c.Param("id")
	status, err := s.service.GetPaymentStatus(c.Request.Context(), paymentID)
	if err != nil {
		s.logger.Warn("status lookup failed",
			zap.String("payment_id", paymentID),
			zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"paymentId": paymentID, "status": status},
	})
}

func (s *Server) handleWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	signature := c.GetHeader(SignatureHeader)

	err = s.service.HandleWebhook(c.Request.Context(), body, signature)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, webhook.ErrNoSecret):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook secret not configured"})
	case errors.Is(err, webhook.ErrMissingSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing signature"})
	case errors.Is(err, webhook.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
	default:
		// Internal detail stays in the log; the caller gets a generic failure.
		s.logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed"})
	}
}
