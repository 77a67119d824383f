// Package config builds the explicit, validated configuration value the
// rest of the service is constructed with. Nothing else reads the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment selects the gateway credential set.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// Fixed payment settings. The storefront sells in exactly one currency.
const (
	Currency       = "INR"
	MinAmount      = 1.0
	MaxAmount      = 1000000.0 // hard ceiling
	WarnAmount     = 100000.0  // soft ceiling, warning only
	GatewayTimeout = 30 * time.Second
)

// Config is the resolved service configuration.
type Config struct {
	Environment Environment

	// Gateway credentials for the selected environment.
	GatewayKeyID     string
	GatewayKeySecret string
	WebhookSecret    string

	// BaseURL is the public origin used to build callback URLs.
	BaseURL string
	Port    string

	// Optional infrastructure. Empty means the in-process default is used.
	RedisAddr    string
	DatabaseURL  string
	KafkaBrokers []string
}

// Load reads the environment and resolves the credential set. APP_ENV
// "production" selects the live keys; anything else selects the sandbox
// keys (RAZORPAY_TEST_*), falling back to the live variables when no
// sandbox set is configured.
func Load() Config {
	env := Sandbox
	if os.Getenv("APP_ENV") == "production" {
		env = Production
	}

	keyID := os.Getenv("RAZORPAY_KEY_ID")
	keySecret := os.Getenv("RAZORPAY_KEY_SECRET")
	if env == Sandbox {
		if testID := os.Getenv("RAZORPAY_TEST_KEY_ID"); testID != "" {
			keyID = testID
			keySecret = os.Getenv("RAZORPAY_TEST_KEY_SECRET")
		}
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3001"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		Environment:      env,
		GatewayKeyID:     keyID,
		GatewayKeySecret: keySecret,
		WebhookSecret:    os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		BaseURL:          baseURL,
		Port:             port,
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		KafkaBrokers:     brokers,
	}
}

// Validate reports every missing required setting, not just the first.
func (c Config) Validate() error {
	var missing []string
	if c.GatewayKeyID == "" {
		missing = append(missing, "RAZORPAY_KEY_ID")
	}
	if c.GatewayKeySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "RAZORPAY_WEBHOOK_SECRET")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ReturnURL is the default post-payment redirect target.
func (c Config) ReturnURL() string {
	return c.BaseURL + "/payment/success"
}

// WebhookURL is the default webhook callback target.
func (c Config) WebhookURL() string {
	return c.BaseURL + "/api/webhooks/payment"
}
