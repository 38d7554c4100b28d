package service

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PaymentService applies payment confirmations coming from the payment provider
type PaymentService struct {
	repo   store.Repository
	orders *OrderService
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo store.Repository, orders *OrderService) *PaymentService {
	return &PaymentService{
		repo:   repo,
		orders: orders,
		logger: util.Component("payments"),
	}
}

// HandlePaymentConfirmed marks the order billed. Each event id is applied
// at most once; events for unknown orders are recorded and dropped.
func (ps *PaymentService) HandlePaymentConfirmed(ctx context.Context, event *models.PaymentConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "PaymentService.HandlePaymentConfirmed",
		attribute.String("event_id", event.EventID),
		attribute.String("order_number", event.OrderNumber))
	defer span.End()

	if event.EventID == "" {
		util.EventsConsumedTotal.WithLabelValues(event.EventType, "invalid").Inc()
		return fmt.Errorf("event without id: %w", ErrInvalidInput)
	}

	processed, err := ps.repo.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return util.RecordError(span, fmt.Errorf("failed to check event processed: %w", err))
	}
	if processed {
		ps.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		util.EventsConsumedTotal.WithLabelValues(event.EventType, "duplicate").Inc()
		return nil
	}

	ps.logger.Info("Handling payment confirmation",
		zap.String("order_number", event.OrderNumber),
		zap.String("tx_id", event.TxID),
		zap.String("amount", event.Amount.StringFixed(2)))

	result := "applied"
	if err := ps.orders.ConfirmPayment(ctx, event.OrderNumber); err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidInput) {
			util.EventsConsumedTotal.WithLabelValues(event.EventType, "error").Inc()
			return util.RecordError(span, err)
		}
		ps.logger.Warn("Payment confirmation for unknown order",
			zap.String("order_number", event.OrderNumber),
			zap.Error(err))
		result = "dropped"
	}

	if err := ps.repo.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		ps.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	util.EventsConsumedTotal.WithLabelValues(event.EventType, result).Inc()
	return nil
}
