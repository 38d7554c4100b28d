package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, user_id, full_name, address1, phone, total_paid, billing_status, balance)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	return sqlx.GetContext(ctx, s.ext, order, query,
		order.OrderNumber, order.UserID, order.FullName, order.Address1, order.Phone,
		order.TotalPaid, order.BillingStatus, order.Balance)
}

// GetOrderByNumber retrieves an order by its order number
func (s *Store) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, s.ext, &order, "SELECT * FROM orders WHERE order_number = $1", orderNumber)
	if err != nil {
		return nil, notFound(err, "order", orderNumber)
	}
	return &order, nil
}

// UpdateOrderBalance updates the outstanding balance of an order
func (s *Store) UpdateOrderBalance(ctx context.Context, orderID int64, balance decimal.Decimal) error {
	_, err := s.ext.ExecContext(ctx,
		"UPDATE orders SET balance = $1, updated_at = NOW() WHERE id = $2",
		balance, orderID)
	return err
}

// SetBillingStatus updates the billing status of an order
func (s *Store) SetBillingStatus(ctx context.Context, orderNumber string, billed bool) error {
	res, err := s.ext.ExecContext(ctx,
		"UPDATE orders SET billing_status = $1, updated_at = NOW() WHERE order_number = $2",
		billed, orderNumber)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", orderNumber, ErrNotFound)
	}
	return nil
}

// ListOrders retrieves orders matching the filter, newest first
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}

	if f.UserID != 0 {
		args = append(args, f.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.BilledOnly {
		conditions = append(conditions, "billing_status")
	}
	if f.From != nil {
		args = append(args, *f.From)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if f.To != nil {
		args = append(args, *f.To)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}

	query := "SELECT * FROM orders WHERE " + strings.Join(conditions, " AND ") + " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var orders []models.Order
	err := sqlx.SelectContext(ctx, s.ext, &orders, query, args...)
	return orders, err
}

// WalkInCustomer is the placeholder name the till uses for anonymous sales
const WalkInCustomer = "cust"

// ListOneTimeCustomers lists orders whose customer gave a name and phone
// and has no other order under that name, newest first.
func (s *Store) ListOneTimeCustomers(ctx context.Context) ([]models.Order, error) {
	query := `
		SELECT o.* FROM orders o
		JOIN (
			SELECT full_name FROM orders
			WHERE full_name <> '' AND phone <> '' AND full_name <> $1
			GROUP BY full_name
			HAVING COUNT(*) = 1
		) c ON c.full_name = o.full_name
		WHERE o.phone <> ''
		ORDER BY o.created_at DESC, o.id DESC`

	var orders []models.Order
	err := sqlx.SelectContext(ctx, s.ext, &orders, query, WalkInCustomer)
	return orders, err
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, price, quantity, inventory)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return sqlx.GetContext(ctx, s.ext, &item.ID, query,
		item.OrderID, item.ProductID, item.Price, item.Quantity, item.Inventory)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, s.ext, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// AggregateSales sums one product's sales over orders created in [from, to)
func (s *Store) AggregateSales(ctx context.Context, productID int64, from, to time.Time) (models.SalesAggregate, error) {
	query := `
		SELECT oi.product_id,
		       '' AS day,
		       COALESCE(SUM(oi.quantity), 0) AS units,
		       COALESCE(SUM(oi.price * oi.quantity), 0) AS sales,
		       COUNT(DISTINCT oi.order_id) AS transactions
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE oi.product_id = $1 AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY oi.product_id`

	agg := models.SalesAggregate{ProductID: productID, Sales: decimal.Zero}
	var rows []models.SalesAggregate
	if err := sqlx.SelectContext(ctx, s.ext, &rows, query, productID, from, to); err != nil {
		return agg, err
	}
	if len(rows) > 0 {
		agg = rows[0]
	}
	return agg, nil
}

// AggregateSalesByDay sums sales per product and calendar day for orders created in [from, to)
func (s *Store) AggregateSalesByDay(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.SalesAggregate, error) {
	query := `
		SELECT oi.product_id,
		       to_char(o.created_at AT TIME ZONE $1, 'YYYY-MM-DD') AS day,
		       SUM(oi.quantity) AS units,
		       SUM(oi.price * oi.quantity) AS sales,
		       COUNT(DISTINCT oi.order_id) AS transactions
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.created_at >= $2 AND o.created_at < $3
		GROUP BY 1, 2`

	var rows []models.SalesAggregate
	err := sqlx.SelectContext(ctx, s.ext, &rows, query, loc.String(), from, to)
	return rows, err
}

// OrderYears lists the distinct years with orders, newest first
func (s *Store) OrderYears(ctx context.Context) ([]int, error) {
	var years []int
	err := sqlx.SelectContext(ctx, s.ext, &years,
		"SELECT DISTINCT EXTRACT(YEAR FROM created_at)::int AS year FROM orders ORDER BY year DESC")
	return years, err
}

// MonthlySales sums and averages order totals per month of a year
func (s *Store) MonthlySales(ctx context.Context, year int) ([]models.MonthlySales, error) {
	query := `
		SELECT EXTRACT(MONTH FROM created_at)::int AS month,
		       SUM(total_paid) AS total,
		       ROUND(AVG(total_paid), 2) AS average
		FROM orders
		WHERE EXTRACT(YEAR FROM created_at) = $1
		GROUP BY 1
		ORDER BY 1`

	var rows []models.MonthlySales
	err := sqlx.SelectContext(ctx, s.ext, &rows, query, year)
	return rows, err
}

// ProductRanking orders products by units sold in a year
func (s *Store) ProductRanking(ctx context.Context, year int, ascending bool, limit int) ([]models.ProductSales, error) {
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT p.id AS product_id, p.title AS product_title, SUM(oi.quantity) AS total_quantity
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE EXTRACT(YEAR FROM o.created_at) = $1
		GROUP BY p.id, p.title
		ORDER BY total_quantity %s, p.id
		LIMIT $2`, direction)

	var rows []models.ProductSales
	err := sqlx.SelectContext(ctx, s.ext, &rows, query, year, limit)
	return rows, err
}
