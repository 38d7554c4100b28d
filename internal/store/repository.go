package store

import (
	"context"
	"errors"
	"time"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a row looked up by key does not exist
var ErrNotFound = errors.New("not found")

// DateLayout is the wire format of report_date values
const DateLayout = "2006-01-02"

// ProductFilter narrows catalog listings
type ProductFilter struct {
	CategorySlug string
	OnlyInStock  bool
}

// OrderFilter narrows order listings
type OrderFilter struct {
	UserID     int64
	BilledOnly bool
	From       *time.Time
	To         *time.Time
	Limit      int
}

type ProductRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*models.Product, error)
	// GetProductForUpdate locks the row until the surrounding transaction ends
	GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
	ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error)
	SetInventory(ctx context.Context, productID int64, inventory int) error
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateOrderBalance(ctx context.Context, orderID int64, balance decimal.Decimal) error
	SetBillingStatus(ctx context.Context, orderNumber string, billed bool) error
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	// ListOneTimeCustomers returns the orders of named customers who ordered exactly once
	ListOneTimeCustomers(ctx context.Context) ([]models.Order, error)
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)

	// AggregateSales rolls up one product's order items over orders created in [from, to)
	AggregateSales(ctx context.Context, productID int64, from, to time.Time) (models.SalesAggregate, error)
	// AggregateSalesByDay rolls up every product's order items per calendar day in loc
	AggregateSalesByDay(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.SalesAggregate, error)

	OrderYears(ctx context.Context) ([]int, error)
	MonthlySales(ctx context.Context, year int) ([]models.MonthlySales, error)
	ProductRanking(ctx context.Context, year int, ascending bool, limit int) ([]models.ProductSales, error)
}

type ReportRepository interface {
	// GetOrCreateInventoryReport returns the row for (ProductID, ReportDate),
	// inserting defaults when absent. created reports which case occurred.
	GetOrCreateInventoryReport(ctx context.Context, defaults *models.InventoryReport) (report *models.InventoryReport, created bool, err error)
	UpdateInventoryReport(ctx context.Context, report *models.InventoryReport) error
	ListInventoryReports(ctx context.Context, from, to time.Time) ([]models.InventoryReport, error)
	// InsertInventoryReports inserts rows whose key is absent and skips the rest
	InsertInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error)
	UpdateInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error)

	GetOrCreateSalesReport(ctx context.Context, defaults *models.SalesReport) (report *models.SalesReport, created bool, err error)
	UpdateSalesReport(ctx context.Context, report *models.SalesReport) error
	ListSalesReports(ctx context.Context, from, to time.Time) ([]models.SalesReport, error)
	InsertSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error)
	UpdateSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error)
}

type MovementRepository interface {
	CreateMovement(ctx context.Context, m *models.InventoryMovement) error
	ListMovements(ctx context.Context, productID int64, limit int) ([]models.InventoryMovement, error)
}

type EventRepository interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Repository is the full persistence surface used by the services
type Repository interface {
	ProductRepository
	OrderRepository
	ReportRepository
	MovementRepository
	EventRepository

	// WithTx runs fn against a repository bound to one transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
