package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() domain.StatusEvent {
	return domain.StatusEvent{
		OrderID:        "order-1",
		PreviousStatus: domain.OrderStatusPending,
		NewStatus:      domain.OrderStatusReadyToShip,
		TrackingCode:   domain.Ptr("PTH123"),
		Courier:        domain.Ptr("pathao"),
		CustomerName:   "Sita",
		OccurredAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestKafkaNotifier_PublishesEvent(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got domain.StatusEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.OrderID != "order-1" || got.NewStatus != domain.OrderStatusReadyToShip {
			return errors.New("unexpected event payload")
		}
		if got.TrackingCode == nil || *got.TrackingCode != "PTH123" {
			return errors.New("tracking code missing")
		}
		return nil
	})

	n := NewKafkaNotifierWithProducer(producer, "order-events")
	require.NoError(t, n.Notify(context.Background(), testEvent()))
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_KeysByOrderID(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-1" {
			return errors.New("message not keyed by order id")
		}
		if msg.Topic != "order-events" {
			return errors.New("wrong topic")
		}
		return nil
	})

	n := NewKafkaNotifierWithProducer(producer, "order-events")
	require.NoError(t, n.Notify(context.Background(), testEvent()))
	require.NoError(t, n.Close())
}

func TestKafkaNotifier_ReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	n := NewKafkaNotifierWithProducer(producer, "order-events")
	err := n.Notify(context.Background(), testEvent())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, n.Close())
}

func TestLogNotifier_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogNotifier().Notify(context.Background(), testEvent()))
}
