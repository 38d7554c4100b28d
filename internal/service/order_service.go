package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/basket"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EventPublisher publishes order lifecycle events
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// OrderPolicy tunes how a basket is committed
type OrderPolicy struct {
	// AllowPartial skips entries that cannot be covered instead of aborting
	AllowPartial bool
	// BillOnPlace stores orders as billed
	BillOnPlace bool
}

// OrderService handles order business logic
type OrderService struct {
	repo      store.Repository
	reports   *ReportService
	publisher EventPublisher
	policy    OrderPolicy
	logger    *zap.Logger
}

// NewOrderService creates a new order service. publisher may be nil.
func NewOrderService(
	repo store.Repository,
	reports *ReportService,
	publisher EventPublisher,
	policy OrderPolicy,
) *OrderService {
	return &OrderService{
		repo:      repo,
		reports:   reports,
		publisher: publisher,
		policy:    policy,
		logger:    util.Component("orders"),
	}
}

// PlaceOrderRequest represents a request to commit the basket as an order
type PlaceOrderRequest struct {
	OrderNumber string `json:"order_number" binding:"required"`
	UserID      int64  `json:"user_id" binding:"required"`
	FullName    string `json:"full_name"`
	Address1    string `json:"address1"`
	Phone       string `json:"phone"`
}

// PlaceOrderResult describes a committed (or previously committed) order
type PlaceOrderResult struct {
	Order     *models.Order      `json:"order"`
	Items     []models.OrderItem `json:"items"`
	Skipped   []int64            `json:"skipped_product_ids,omitempty"`
	Messages  []string           `json:"messages,omitempty"`
	Duplicate bool               `json:"duplicate"`
}

// PlaceOrder commits the basket as an order. The order, its items, the
// inventory decrements, the movements and the report rows are written in one
// transaction. Entries that cannot be covered are skipped when partial orders
// are allowed, and abort the commit otherwise. The basket is cleared once the
// order exists.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest, b *basket.Basket) (*PlaceOrderResult, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder", attribute.String("order_number", req.OrderNumber))
	defer span.End()

	req.OrderNumber = strings.TrimSpace(req.OrderNumber)
	if req.OrderNumber == "" {
		return nil, fmt.Errorf("order number is required: %w", ErrInvalidInput)
	}
	if req.UserID <= 0 {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}

	if res, err := s.existing(ctx, req.OrderNumber); err != nil || res != nil {
		if res != nil && b != nil {
			b.Clear()
		}
		return res, util.RecordError(span, err)
	}

	if b == nil || b.IsEmpty() {
		util.OrdersFailedTotal.WithLabelValues("empty_basket").Inc()
		return nil, ErrEmptyBasket
	}

	start := time.Now()
	var result *PlaceOrderResult
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		var err error
		result, err = s.commit(ctx, tx, req, b)
		return err
	})
	util.OrderCommitLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		// A concurrent commit of the same order number wins the unique key
		if res, lookupErr := s.existing(ctx, req.OrderNumber); lookupErr == nil && res != nil {
			b.Clear()
			return res, nil
		}

		reason := "db_error"
		if errors.Is(err, ErrInsufficientInventory) {
			reason = "insufficient_inventory"
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		return nil, util.RecordError(span, err)
	}

	b.Clear()
	util.OrdersPlacedTotal.Inc()
	if result.Order.BillingStatus {
		util.OrdersPaidTotal.Inc()
	}
	util.OrderItemsSkippedTotal.Add(float64(len(result.Skipped)))

	s.logger.Info("Order placed",
		zap.String("order_number", result.Order.OrderNumber),
		zap.Int64("order_id", result.Order.ID),
		zap.Int("items", len(result.Items)),
		zap.Int("skipped", len(result.Skipped)),
		zap.String("total_paid", result.Order.TotalPaid.StringFixed(2)))

	s.publishPlaced(ctx, result)
	return result, nil
}

func (s *OrderService) existing(ctx context.Context, orderNumber string) (*PlaceOrderResult, error) {
	order, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check order number: %w", err)
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}

	util.OrdersDuplicateTotal.Inc()
	s.logger.Info("Duplicate order request detected",
		zap.String("order_number", orderNumber),
		zap.Int64("order_id", order.ID))
	return &PlaceOrderResult{Order: order, Items: items, Duplicate: true}, nil
}

func (s *OrderService) commit(ctx context.Context, tx store.Repository, req PlaceOrderRequest, b *basket.Basket) (*PlaceOrderResult, error) {
	order := &models.Order{
		OrderNumber:   req.OrderNumber,
		UserID:        req.UserID,
		FullName:      req.FullName,
		Address1:      req.Address1,
		Phone:         req.Phone,
		TotalPaid:     b.TotalPrice(),
		BillingStatus: s.policy.BillOnPlace,
		Balance:       decimal.Zero,
	}
	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	result := &PlaceOrderResult{Order: order, Items: []models.OrderItem{}}
	balance := decimal.Zero

	// Items are sorted by product id, which is also the row lock order
	for _, entry := range b.Items() {
		product, err := tx.GetProductForUpdate(ctx, entry.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			if !s.policy.AllowPartial {
				return nil, fmt.Errorf("product %d no longer exists: %w", entry.ProductID, ErrInsufficientInventory)
			}
			result.Skipped = append(result.Skipped, entry.ProductID)
			result.Messages = append(result.Messages, fmt.Sprintf("Product %d is no longer available", entry.ProductID))
			balance = balance.Add(entry.Subtotal())
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to lock product %d: %w", entry.ProductID, err)
		}

		if !product.HasInventory(entry.Qty) {
			if !s.policy.AllowPartial {
				return nil, &InsufficientInventoryError{
					ProductID: product.ID,
					Title:     product.Title,
					Available: product.Inventory,
					Requested: entry.Qty,
				}
			}
			result.Skipped = append(result.Skipped, entry.ProductID)
			result.Messages = append(result.Messages, fmt.Sprintf("%s is out of stock", product.Title))
			balance = balance.Add(entry.Subtotal())
			continue
		}

		item, err := s.sell(ctx, tx, order, product, entry)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, *item)
	}

	if !balance.IsZero() {
		order.Balance = balance.Round(2)
		if err := tx.UpdateOrderBalance(ctx, order.ID, order.Balance); err != nil {
			return nil, fmt.Errorf("failed to update order balance: %w", err)
		}
	}
	return result, nil
}

// sell takes one basket entry out of stock and records it against the order
func (s *OrderService) sell(ctx context.Context, tx store.Repository, order *models.Order, product *models.Product, entry basket.Entry) (*models.OrderItem, error) {
	before := product.Inventory
	product.Inventory -= entry.Qty
	if err := tx.SetInventory(ctx, product.ID, product.Inventory); err != nil {
		return nil, fmt.Errorf("failed to decrement inventory of product %d: %w", product.ID, err)
	}

	item := &models.OrderItem{
		OrderID:   order.ID,
		ProductID: product.ID,
		Price:     entry.Price,
		Quantity:  entry.Qty,
		Inventory: product.Inventory,
	}
	if err := tx.CreateOrderItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create order item: %w", err)
	}

	movement := &models.InventoryMovement{
		ProductID:      product.ID,
		MovementType:   models.MovementSale,
		Quantity:       entry.Qty,
		QuantityBefore: before,
		QuantityAfter:  product.Inventory,
		Reference:      order.OrderNumber,
	}
	if err := tx.CreateMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to record sale movement: %w", err)
	}

	if _, err := s.reports.RecomputeInventoryReport(ctx, tx, product, order.CreatedAt); err != nil {
		return nil, err
	}
	if _, err := s.reports.RecomputeSalesReport(ctx, tx, product, order.CreatedAt); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *OrderService) publishPlaced(ctx context.Context, result *PlaceOrderResult) {
	if s.publisher == nil {
		return
	}

	items := make([]models.OrderItemData, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:      result.Order.ID,
		OrderNumber:  result.Order.OrderNumber,
		UserID:       result.Order.UserID,
		TotalPaid:    result.Order.TotalPaid,
		Items:        items,
		SkippedItems: result.Skipped,
	}

	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.String("order_number", event.OrderNumber),
			zap.Error(err))
	}
}

// OrderDetails is an order with its items
type OrderDetails struct {
	Order *models.Order      `json:"order"`
	Items []models.OrderItem `json:"items"`
}

// GetOrder retrieves an order by its number
func (s *OrderService) GetOrder(ctx context.Context, orderNumber string) (*OrderDetails, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.repo.GetOrderByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	return &OrderDetails{Order: order, Items: items}, nil
}

// ConfirmPayment marks an order as billed. Confirming twice is harmless.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderNumber string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.ConfirmPayment", attribute.String("order_number", orderNumber))
	defer span.End()

	if strings.TrimSpace(orderNumber) == "" {
		return fmt.Errorf("order number is required: %w", ErrInvalidInput)
	}
	if err := s.repo.SetBillingStatus(ctx, orderNumber, true); err != nil {
		return util.RecordError(span, err)
	}

	util.OrdersPaidTotal.Inc()
	s.logger.Info("Payment confirmed", zap.String("order_number", orderNumber))
	return nil
}

// ListUserOrders lists the billed orders of a user, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}
	orders, err := s.repo.ListOrders(ctx, store.OrderFilter{UserID: userID, BilledOnly: true})
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// ListOneTimeCustomers lists named customers with a single order, through that order
func (s *OrderService) ListOneTimeCustomers(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.ListOneTimeCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// defaultSalesLimit caps the sales summary when no date range is given
const defaultSalesLimit = 85

// SalesSummary lists billed orders with their combined total
type SalesSummary struct {
	Orders []models.Order  `json:"orders"`
	Total  decimal.Decimal `json:"total"`
}

// SalesSummary sums the billed orders of a user. Without a range it covers
// the latest orders; with one it covers orders created in [from, to].
func (s *OrderService) SalesSummary(ctx context.Context, userID int64, from, to *time.Time) (*SalesSummary, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SalesSummary")
	defer span.End()

	if userID <= 0 {
		return nil, fmt.Errorf("user id is required: %w", ErrInvalidInput)
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, fmt.Errorf("from is after to: %w", ErrInvalidInput)
	}

	filter := store.OrderFilter{UserID: userID, BilledOnly: true, From: from}
	if to != nil {
		end := to.AddDate(0, 0, 1)
		filter.To = &end
	}
	if from == nil && to == nil {
		filter.Limit = defaultSalesLimit
	}

	orders, err := s.repo.ListOrders(ctx, filter)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	summary := &SalesSummary{Orders: orders, Total: decimal.Zero}
	if summary.Orders == nil {
		summary.Orders = []models.Order{}
	}
	for _, o := range orders {
		summary.Total = summary.Total.Add(o.TotalPaid)
	}
	summary.Total = summary.Total.Round(2)
	return summary, nil
}
