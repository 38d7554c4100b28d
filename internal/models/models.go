package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products in the catalog
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	CategoryID  *int64          `db:"category_id" json:"category_id,omitempty"`
	Title       string          `db:"title" json:"title"`
	Slug        string          `db:"slug" json:"slug"`
	Code        string          `db:"code" json:"code"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Inventory   int             `db:"inventory" json:"inventory"`
	InStock     bool            `db:"in_stock" json:"in_stock"`
	IsActive    bool            `db:"is_active" json:"is_active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// HasInventory reports whether at least qty units are on hand
func (p *Product) HasInventory(qty int) bool {
	return qty > 0 && p.Inventory >= qty
}

// Order represents a placed customer order
type Order struct {
	ID            int64           `db:"id" json:"id"`
	OrderNumber   string          `db:"order_number" json:"order_number"`
	UserID        int64           `db:"user_id" json:"user_id"`
	FullName      string          `db:"full_name" json:"full_name"`
	Address1      string          `db:"address1" json:"address1"`
	Phone         string          `db:"phone" json:"phone"`
	TotalPaid     decimal.Decimal `db:"total_paid" json:"total_paid"`
	BillingStatus bool            `db:"billing_status" json:"billing_status"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order. Inventory is the product's
// stock level right after this item was taken out of it.
type OrderItem struct {
	ID        int64           `db:"id" json:"id"`
	OrderID   int64           `db:"order_id" json:"order_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Inventory int             `db:"inventory" json:"inventory"`
}

// TotalCost is quantity times unit price
func (i *OrderItem) TotalCost() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// InventoryReport is the per product, per day stock summary
type InventoryReport struct {
	ID              int64     `db:"id" json:"id"`
	ProductID       int64     `db:"product_id" json:"product_id"`
	ProductTitle    string    `db:"product_title" json:"product_title"`
	DaysOnHand      int       `db:"days_on_hand" json:"days_on_hand"`
	InventoryOnHand int       `db:"inventory_on_hand" json:"inventory_on_hand"`
	QuantitySold    int       `db:"quantity_sold" json:"quantity_sold"`
	ReportDate      time.Time `db:"report_date" json:"report_date"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SalesReport is the per product, per day sales summary
type SalesReport struct {
	ID                      int64           `db:"id" json:"id"`
	ProductID               int64           `db:"product_id" json:"product_id"`
	ProductTitle            string          `db:"product_title" json:"product_title"`
	ProductPrice            decimal.Decimal `db:"product_price" json:"product_price"`
	TotalSales              decimal.Decimal `db:"total_sales" json:"total_sales"`
	TotalUnitsSold          int             `db:"total_units_sold" json:"total_units_sold"`
	NumberOfTransactions    int             `db:"number_of_transactions" json:"number_of_transactions"`
	AverageTransactionValue decimal.Decimal `db:"average_transaction_value" json:"average_transaction_value"`
	ReportDate              time.Time       `db:"report_date" json:"report_date"`
	CreatedAt               time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time       `db:"updated_at" json:"updated_at"`
}

// SalesAggregate is the order-item roll-up of one product over one day
type SalesAggregate struct {
	ProductID    int64           `db:"product_id"`
	Day          string          `db:"day"`
	Units        int             `db:"units"`
	Sales        decimal.Decimal `db:"sales"`
	Transactions int             `db:"transactions"`
}

// InventoryMovement is an audit entry for every stock change
type InventoryMovement struct {
	ID             int64     `db:"id" json:"id"`
	ProductID      int64     `db:"product_id" json:"product_id"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	Quantity       int       `db:"quantity" json:"quantity"`
	QuantityBefore int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int       `db:"quantity_after" json:"quantity_after"`
	Reference      string    `db:"reference" json:"reference,omitempty"`
	Note           string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Movement types
const (
	MovementIn   = "IN"
	MovementOut  = "OUT"
	MovementSale = "SALE"
)

// MonthlySales is one bucket of the yearly sales chart
type MonthlySales struct {
	Month   int             `db:"month" json:"month"`
	Total   decimal.Decimal `db:"total" json:"total"`
	Average decimal.Decimal `db:"average" json:"average"`
}

// ProductSales is a product with the units it sold in a period
type ProductSales struct {
	ProductID     int64  `db:"product_id" json:"product_id"`
	ProductTitle  string `db:"product_title" json:"product_title"`
	TotalQuantity int    `db:"total_quantity" json:"total_quantity"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
