// Package kafka publishes order-confirmation events to a Kafka topic so the
// kitchen and notification services can react to paid orders.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultTopic = "order.confirmed"

// OrderConfirmedEvent is the published payload. EventID is unique per
// publish; consumers dedup on it across redeliveries.
type OrderConfirmedEvent struct {
	EventID     string `json:"eventId"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	ConfirmedAt string `json:"confirmedAt"`
}

// Notifier publishes confirmations with a synchronous, idempotent producer.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewNotifier connects a sync producer to the given brokers.
func NewNotifier(brokers []string, topic string, logger *zap.Logger) (*Notifier, error) {
	if topic == "" {
		topic = defaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}
	return &Notifier{producer: producer, topic: topic, logger: logger}, nil
}

// OrderConfirmed publishes one confirmation event keyed on the order id, so
// all events for an order land on the same partition.
func (n *Notifier) OrderConfirmed(_ context.Context, orderID string) error {
	event := OrderConfirmedEvent{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		Status:      "confirmed",
		ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal event: %w", err)
	}

	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(orderID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		n.logger.Error("failed to publish order confirmation",
			zap.String("order_id", orderID),
			zap.Error(err))
		return fmt.Errorf("kafka: failed to publish confirmation: %w", err)
	}

	n.logger.Info("order confirmation published",
		zap.String("order_id", orderID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close shuts the producer down.
func (n *Notifier) Close() error {
	return n.producer.Close()
}
