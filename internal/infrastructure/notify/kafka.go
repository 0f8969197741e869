package notify

import (
	"context"
	"fmt"
	"time"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const eventTypeHeader = "event-type"

// KafkaNotifier publishes order status events. Messages are keyed by order id
// so one order's events stay ordered within a partition.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Timeout = 5 * time.Second
	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(prod, topic), nil
}

func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event domain.StatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(event.OrderID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte("order.status_changed")},
		},
		Timestamp: event.OccurredAt,
	}
	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	logger.WithContext(ctx).Debug().
		Str("topic", n.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("order_id", event.OrderID).
		Msg("status event published")
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
