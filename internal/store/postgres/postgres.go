// Package postgres provides a SQL-backed PaymentStore.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/gokhana/payment-service/internal/payment"
	"github.com/gokhana/payment-service/internal/store"
)

// Store persists payment records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle, primarily for tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavePayment upserts a payment record keyed on the gateway payment id.
func (s *Store) SavePayment(ctx context.Context, rec store.PaymentRecord) error {
	var gatewayJSON []byte
	if rec.GatewayResponse != nil {
		var err error
		gatewayJSON, err = json.Marshal(rec.GatewayResponse)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode gateway response: %w", err)
		}
	}
	var metadataJSON []byte
	if rec.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (
			id, order_id, customer_id, amount, currency, status,
			gateway_provider, gateway_transaction_id, gateway_response,
			metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			gateway_response = EXCLUDED.gateway_response,
			updated_at = NOW()`,
		rec.ID, rec.OrderID, rec.CustomerID, rec.Amount, rec.Currency,
		string(rec.Status), rec.GatewayProvider, rec.GatewayTransactionID,
		gatewayJSON, metadataJSON)
	if err != nil {
		return fmt.Errorf("postgres: failed to save payment %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, paymentID string, status payment.PaymentStatus, gatewayResponse *payment.GatewayPaymentResponse) error {
	var gatewayJSON []byte
	if gatewayResponse != nil {
		var err error
		gatewayJSON, err = json.Marshal(gatewayResponse)
		if err != nil {
			return fmt.Errorf("postgres: failed to encode gateway response: %w", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    gateway_response = COALESCE($3, gateway_response),
		    updated_at = NOW()
		WHERE id = $1`,
		paymentID, string(status), gatewayJSON)
	if err != nil {
		return fmt.Errorf("postgres: failed to update payment %s: %w", paymentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, paymentID string) (store.PaymentRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, customer_id, amount, currency, status,
		       gateway_provider, gateway_transaction_id, gateway_response,
		       metadata, created_at, updated_at
		FROM payments WHERE id = $1`, paymentID)

	var rec store.PaymentRecord
	var status string
	var gatewayJSON, metadataJSON []byte
	err := row.Scan(&rec.ID, &rec.OrderID, &rec.CustomerID, &rec.Amount,
		&rec.Currency, &status, &rec.GatewayProvider,
		&rec.GatewayTransactionID, &gatewayJSON, &metadataJSON,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PaymentRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.PaymentRecord{}, fmt.Errorf("postgres: failed to load payment %s: %w", paymentID, err)
	}

	rec.Status = payment.PaymentStatus(status)
	if len(gatewayJSON) > 0 {
		var gr payment.GatewayPaymentResponse
		if err := json.Unmarshal(gatewayJSON, &gr); err == nil {
			rec.GatewayResponse = &gr
		}
	}
	if len(metadataJSON) > 0 {
		_ = json.Unmarshal(metadataJSON, &rec.Metadata)
	}
	return rec, nil
}

func (s *Store) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`,
		orderID, status)
	if err != nil {
		return fmt.Errorf("postgres: failed to update order %s: %w", orderID, err)
	}
	return nil
}
