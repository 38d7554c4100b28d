package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundWrapsNoRows(t *testing.T) {
	err := notFound(sql.ErrNoRows, "order", "A-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "order A-1: not found", err.Error())

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other, "order", "A-1"))
}

func TestDateParamUsesReportZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on the 13th is still the 12th in New York
	day := time.Date(2024, 3, 13, 2, 0, 0, 0, time.UTC).In(ny)
	assert.Equal(t, "2024-03-12", dateParam(day))
}

// openTestStore connects to STORE_TEST_DATABASE_URL and applies the schema
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("STORE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database")
	}

	s, err := NewStore(config.DatabaseConfig{URL: url, MaxOpenConns: 5, MaxIdleConns: 1, ConnMaxLifetime: 60})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedProduct(t *testing.T, s *Store, inventory int) *models.Product {
	t.Helper()

	title := "product-" + uuid.New().String()
	var id int64
	err := s.db.QueryRowx(`
		INSERT INTO products (title, slug, price, inventory)
		VALUES ($1, $1, 4.50, $2)
		RETURNING id`, title, inventory).Scan(&id)
	require.NoError(t, err)

	p, err := s.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestOrderLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 10)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("4.5")))

	order := &models.Order{
		OrderNumber: "it-" + uuid.New().String(),
		UserID:      77,
		TotalPaid:   decimal.RequireFromString("9.00"),
		Balance:     decimal.Zero,
	}

	err := s.WithTx(ctx, func(tx Repository) error {
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		locked, err := tx.GetProductForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := tx.SetInventory(ctx, p.ID, locked.Inventory-2); err != nil {
			return err
		}
		return tx.CreateOrderItem(ctx, &models.OrderItem{
			OrderID: order.ID, ProductID: p.ID, Price: p.Price, Quantity: 2, Inventory: locked.Inventory - 2,
		})
	})
	require.NoError(t, err)
	assert.NotZero(t, order.ID)

	got, err := s.GetOrderByNumber(ctx, order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, "9.00", got.TotalPaid.StringFixed(2))

	items, err := s.GetOrderItemsByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	after, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, after.Inventory)

	agg, err := s.AggregateSales(ctx, p.ID, got.CreatedAt.Add(-time.Minute), got.CreatedAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Units)
	assert.Equal(t, 1, agg.Transactions)
	assert.Equal(t, "9.00", agg.Sales.StringFixed(2))

	require.NoError(t, s.SetBillingStatus(ctx, order.OrderNumber, true))
	billed, err := s.ListOrders(ctx, OrderFilter{UserID: 77, BilledOnly: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, billed, 1)

	// duplicate order numbers violate the unique key
	err = s.CreateOrder(ctx, &models.Order{OrderNumber: order.OrderNumber, UserID: 77, TotalPaid: decimal.Zero, Balance: decimal.Zero})
	assert.Error(t, err)
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 3)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx Repository) error {
		if err := tx.SetInventory(ctx, p.ID, 0); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := s.GetProductByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, after.Inventory)

	assert.Error(t, s.SetInventory(ctx, p.ID, -1))

	_, err = s.GetProductByID(ctx, -1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportRowsAreUniquePerDay(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProduct(t, s, 5)
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	first, created, err := s.GetOrCreateSalesReport(ctx, &models.SalesReport{
		ProductID: p.ID, ProductTitle: p.Title, ProductPrice: p.Price, TotalSales: decimal.Zero,
		AverageTransactionValue: decimal.Zero, ReportDate: day,
	})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := s.GetOrCreateSalesReport(ctx, &models.SalesReport{
		ProductID: p.ID, ProductTitle: "other", ProductPrice: p.Price, TotalSales: decimal.Zero,
		AverageTransactionValue: decimal.Zero, ReportDate: day.Add(15 * time.Hour),
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	second.TotalUnitsSold = 4
	second.TotalSales = decimal.RequireFromString("18.00")
	require.NoError(t, s.UpdateSalesReport(ctx, second))

	rows := make([]models.InventoryReport, 0, 3)
	for i := 0; i < 3; i++ {
		rows = append(rows, models.InventoryReport{
			ProductID: p.ID, ProductTitle: p.Title, InventoryOnHand: 5, ReportDate: day.AddDate(0, 0, i),
		})
	}
	n, err := s.InsertInventoryReports(ctx, rows)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.InsertInventoryReports(ctx, rows)
	require.NoError(t, err)
	assert.Zero(t, n)

	listed, err := s.ListInventoryReports(ctx, day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	mine := 0
	for i := range listed {
		if listed[i].ProductID == p.ID {
			listed[i].QuantitySold = 1
			mine++
		}
	}
	assert.Equal(t, 3, mine)

	n, err = s.UpdateInventoryReports(ctx, listed)
	require.NoError(t, err)
	assert.EqualValues(t, len(listed), n)
}

func TestEventsAreProcessedOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	id := fmt.Sprintf("evt-%s", uuid.New().String()[:8])

	done, err := s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, s.MarkEventProcessed(ctx, id, models.EventTypePaymentConfirmed))
	done, err = s.IsEventProcessed(ctx, id)
	require.NoError(t, err)
	assert.True(t, done)
}
