package worker

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// PaymentHandler applies payment confirmations
type PaymentHandler interface {
	HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error
}

// PaymentWorker consumes payment events and marks orders billed
type PaymentWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewPaymentWorker creates a new payment worker
func NewPaymentWorker(consumer *broker.Consumer, payments PaymentHandler) *PaymentWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnPaymentConfirmed(confirmHandler(payments))

	return &PaymentWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.Component("payment-worker"),
	}
}

// confirmHandler turns events that can never be applied into poison
// messages so the consumer moves past them.
func confirmHandler(payments PaymentHandler) func(context.Context, *models.PaymentConfirmedEvent) error {
	return func(ctx context.Context, event *models.PaymentConfirmedEvent) error {
		err := payments.HandlePaymentConfirmed(ctx, event)
		if errors.Is(err, service.ErrInvalidInput) {
			return fmt.Errorf("%v: %w", err, broker.ErrPoisonMessage)
		}
		return err
	}
}

// Start consumes until ctx is cancelled
func (w *PaymentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting payment worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *PaymentWorker) Stop() error {
	w.logger.Info("Stopping payment worker")
	return w.consumer.Close()
}
