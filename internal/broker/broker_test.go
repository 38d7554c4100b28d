package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishOrderPlaced(t *testing.T) {
	w := &recordingWriter{}
	publisher := NewEventPublisher(newProducer(w))

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     7,
		OrderNumber: "A-100",
		UserID:      3,
		TotalPaid:   decimal.RequireFromString("12.50"),
		Items: []models.OrderItemData{
			{ProductID: 1, Quantity: 5, UnitPrice: decimal.RequireFromString("2.50")},
		},
	}

	require.NoError(t, publisher.PublishOrderPlaced(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "order-A-100", string(msg.Key))

	var decoded models.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, models.EventTypeOrderPlaced, decoded.EventType)
	assert.Equal(t, "A-100", decoded.OrderNumber)
	assert.True(t, decoded.TotalPaid.Equal(event.TotalPaid))
	require.Len(t, decoded.Items, 1)
	assert.Equal(t, 5, decoded.Items[0].Quantity)
}

func TestPublishErrorIsReturned(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	publisher := NewEventPublisher(newProducer(w))

	err := publisher.PublishOrderPlaced(context.Background(), &models.OrderPlacedEvent{OrderNumber: "A-1"})
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMessageRoutesPaymentConfirmed(t *testing.T) {
	h := NewEventHandler()

	var got *models.PaymentConfirmedEvent
	h.OnPaymentConfirmed(func(ctx context.Context, e *models.PaymentConfirmedEvent) error {
		got = e
		return nil
	})

	msg := kafka.Message{Value: []byte(`{
		"event_id": "evt-9",
		"event_type": "PAYMENT_CONFIRMED",
		"order_number": "A-100",
		"amount": "12.50",
		"tx_id": "TXN-1"
	}`)}

	require.NoError(t, h.HandleMessage(context.Background(), msg))
	require.NotNil(t, got)
	assert.Equal(t, "evt-9", got.EventID)
	assert.Equal(t, "A-100", got.OrderNumber)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("12.5")))
}

func TestHandleMessageIgnoresOtherTypes(t *testing.T) {
	h := NewEventHandler()
	called := false
	h.OnPaymentConfirmed(func(ctx context.Context, e *models.PaymentConfirmedEvent) error {
		called = true
		return nil
	})

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"ORDER_PLACED"}`)})
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestHandleMessagePoison(t *testing.T) {
	h := NewEventHandler()

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)})
	assert.ErrorIs(t, err, ErrPoisonMessage)
}

func TestHandleMessagePropagatesHandlerError(t *testing.T) {
	h := NewEventHandler()
	boom := errors.New("db down")
	h.OnPaymentConfirmed(func(ctx context.Context, e *models.PaymentConfirmedEvent) error {
		return boom
	})

	err := h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_id":"e","event_type":"PAYMENT_CONFIRMED"}`)})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrPoisonMessage)
}

// scriptedReader serves msgs in order, then blocks until ctx is done
type scriptedReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func (r *scriptedReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func testConsumer(r messageReader) *Consumer {
	c := newConsumer(r, "payments")
	c.retryDelay = time.Millisecond
	c.maxDelay = 5 * time.Millisecond
	return c
}

func TestConsumerRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := &scriptedReader{msgs: []kafka.Message{{Offset: 5}, {Offset: 6}}}
	c := testConsumer(r)

	var mu sync.Mutex
	var seen []int64
	failures := 2
	handler := func(ctx context.Context, msg kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, msg.Offset)
		if msg.Offset == 5 && failures > 0 {
			failures--
			return errors.New("connection reset")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, handler) }()

	require.Eventually(t, func() bool { return len(r.offsets()) == 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []int64{5, 6}, r.offsets())
	mu.Lock()
	assert.Equal(t, []int64{5, 5, 5, 6}, seen)
	mu.Unlock()
}

func TestConsumerCommitsPoisonMessages(t *testing.T) {
	r := &scriptedReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := testConsumer(r)

	handler := func(ctx context.Context, msg kafka.Message) error {
		if msg.Offset == 1 {
			return fmt.Errorf("bad payload: %w", ErrPoisonMessage)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, handler) }()

	require.Eventually(t, func() bool { return len(r.offsets()) == 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, []int64{1, 2}, r.offsets())
}

func TestConsumerStopsRetryingWhenCancelled(t *testing.T) {
	r := &scriptedReader{msgs: []kafka.Message{{Offset: 9}}}
	c := testConsumer(r)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := make(chan struct{}, 100)
	handler := func(ctx context.Context, msg kafka.Message) error {
		select {
		case attempts <- struct{}{}:
		default:
		}
		return errors.New("db down")
	}

	done := make(chan error, 1)
	go func() { done <- c.StartConsuming(ctx, handler) }()

	<-attempts
	<-attempts
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, r.offsets())
}
