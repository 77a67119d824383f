package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/gokhana/payment-service/internal/config"
	"github.com/gokhana/payment-service/internal/contract"
	"github.com/gokhana/payment-service/internal/gateway"
	"github.com/gokhana/payment-service/internal/gateway/breaker"
	"github.com/gokhana/payment-service/internal/gateway/razorpay"
	"github.com/gokhana/payment-service/internal/idempotency"
	"github.com/gokhana/payment-service/internal/metrics"
	"github.com/gokhana/payment-service/internal/notify"
	kafkanotify "github.com/gokhana/payment-service/internal/notify/kafka"
	"github.com/gokhana/payment-service/internal/orchestrator"
	"github.com/gokhana/payment-service/internal/payment"
	"github.com/gokhana/payment-service/internal/policy"
	"github.com/gokhana/payment-service/internal/server"
	"github.com/gokhana/payment-service/internal/store"
	"github.com/gokhana/payment-service/internal/store/postgres"
	"github.com/gokhana/payment-service/internal/webhook"
)

func newLogger(env config.Environment) (*zap.Logger, error) {
	if env == config.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func newTracerProvider() (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	tp, err := newTracerProvider()
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Storage: Postgres when configured, in-memory otherwise.
	var paymentStore store.PaymentStore = store.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pg.Close()
		paymentStore = pg
		logger.Info("using postgres payment store")
	}

	// Idempotency: Redis when configured, process-local otherwise.
	var idem idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		idem = idempotency.NewRedisStore(client, "payment-service")
		logger.Info("using redis idempotency store", zap.String("addr", cfg.RedisAddr))
	}

	// Order confirmations: Kafka when configured, log-only otherwise.
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if len(cfg.KafkaBrokers) > 0 {
		kn, err := kafkanotify.NewNotifier(cfg.KafkaBrokers, "", logger)
		if err != nil {
			logger.Fatal("failed to connect to kafka", zap.Error(err))
		}
		defer kn.Close()
		notifier = kn
		logger.Info("publishing order confirmations to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers))
	}

	var gw gateway.Gateway = razorpay.NewClient(
		cfg.GatewayKeyID,
		cfg.GatewayKeySecret,
		config.GatewayTimeout,
		logger,
	)
	gw = breaker.New(gw, breaker.Config{})

	enforcer, err := policy.NewEnforcer(policy.DefaultRules(config.WarnAmount))
	if err != nil {
		logger.Fatal("failed to compile policy rules", zap.Error(err))
	}
	validator := payment.NewValidator(config.Currency, enforcer)
	verifier := webhook.NewVerifier(cfg.WebhookSecret)

	service := orchestrator.New(gw, validator, paymentStore, idem, notifier, verifier, m, logger, config.Currency)

	monitor, err := contract.NewCreatePaymentMonitor(config.MaxAmount)
	if err != nil {
		logger.Fatal("failed to compile request contract", zap.Error(err))
	}

	srv := server.New(service, monitor, cfg, logger, registry)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("server listening",
			zap.String("port", cfg.Port),
			zap.String("environment", string(cfg.Environment)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
