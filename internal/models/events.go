package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced      = "ORDER_PLACED"
	EventTypePaymentConfirmed = "PAYMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published once an order commit succeeds
type OrderPlacedEvent struct {
	BaseEvent
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	UserID       int64           `json:"user_id"`
	TotalPaid    decimal.Decimal `json:"total_paid"`
	Items        []OrderItemData `json:"items"`
	SkippedItems []int64         `json:"skipped_items,omitempty"`
}

// PaymentConfirmedEvent is consumed from the payment provider topic
type PaymentConfirmedEvent struct {
	BaseEvent
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	TxID        string          `json:"tx_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
