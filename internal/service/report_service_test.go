package service

import (
	"context"
	"testing"
	"time"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocker struct {
	held     map[string]string
	released []string
}

func (l *stubLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = "token-" + key
	return l.held[key], true, nil
}

func (l *stubLocker) ReleaseLock(ctx context.Context, key, token string) error {
	if l.held[key] == token {
		delete(l.held, key)
		l.released = append(l.released, key)
	}
	return nil
}

// seedHistory creates a product five days before now with two orders on
// 2024-03-12 and one on 2024-03-14.
func seedHistory(f *fixture) *models.Product {
	p := f.repo.AddProduct(models.Product{
		Title:     "lamp",
		Slug:      "lamp",
		Price:     decimal.RequireFromString("5.00"),
		Inventory: 20,
		InStock:   true,
		IsActive:  true,
		CreatedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	})
	item := func(qty int) models.OrderItem {
		return models.OrderItem{ProductID: p.ID, Price: p.Price, Quantity: qty}
	}
	f.repo.AddOrder(models.Order{OrderNumber: "H-1", UserID: 1, CreatedAt: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)}, item(2))
	f.repo.AddOrder(models.Order{OrderNumber: "H-2", UserID: 1, CreatedAt: time.Date(2024, 3, 12, 16, 0, 0, 0, time.UTC)}, item(1))
	f.repo.AddOrder(models.Order{OrderNumber: "H-3", UserID: 2, CreatedAt: time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)}, item(4))
	return &p
}

func reportOn(rows []models.SalesReport, day string) *models.SalesReport {
	for i := range rows {
		if rows[i].ReportDate.Format(store.DateLayout) == day {
			return &rows[i]
		}
	}
	return nil
}

func inventoryOn(rows []models.InventoryReport, day string) *models.InventoryReport {
	for i := range rows {
		if rows[i].ReportDate.Format(store.DateLayout) == day {
			return &rows[i]
		}
	}
	return nil
}

func TestNewReportServiceValidatesConfig(t *testing.T) {
	_, err := NewReportService(nil, nil, config.ReportsConfig{Timezone: "Mars/Olympus", InventoryWindowDays: 1, SalesWindowDays: 1})
	assert.Error(t, err)

	_, err = NewReportService(nil, nil, config.ReportsConfig{Timezone: "UTC", InventoryWindowDays: 0, SalesWindowDays: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Postgres cannot resolve the process-local zone by name
	_, err = NewReportService(nil, nil, config.ReportsConfig{Timezone: "Local", InventoryWindowDays: 1, SalesWindowDays: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseBackfillKind(t *testing.T) {
	kind, err := ParseBackfillKind("")
	require.NoError(t, err)
	assert.Equal(t, BackfillAll, kind)

	kind, err = ParseBackfillKind("sales")
	require.NoError(t, err)
	assert.Equal(t, BackfillSales, kind)

	_, err = ParseBackfillKind("weekly")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBackfillCreatesRowsFromProductCreation(t *testing.T) {
	f := newFixture(t, true)
	seedHistory(f)

	results, err := f.reports.Backfill(context.Background(), BackfillAll)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "inventory", results[0].Report)
	assert.EqualValues(t, 6, results[0].Created)
	assert.Equal(t, "2024-03-15", results[0].To)
	assert.Equal(t, "sales", results[1].Report)
	assert.EqualValues(t, 6, results[1].Created)
	assert.Equal(t, "2024-02-15", results[1].From)

	sales := f.repo.SalesReports()
	require.Len(t, sales, 6)
	busy := reportOn(sales, "2024-03-12")
	require.NotNil(t, busy)
	assert.Equal(t, 3, busy.TotalUnitsSold)
	assert.Equal(t, 2, busy.NumberOfTransactions)
	assert.Equal(t, "15.00", busy.TotalSales.StringFixed(2))
	assert.Equal(t, "7.50", busy.AverageTransactionValue.StringFixed(2))

	quiet := reportOn(sales, "2024-03-11")
	require.NotNil(t, quiet)
	assert.Zero(t, quiet.TotalUnitsSold)
	assert.True(t, quiet.AverageTransactionValue.IsZero())

	inventory := f.repo.InventoryReports()
	require.Len(t, inventory, 6)
	row := inventoryOn(inventory, "2024-03-12")
	require.NotNil(t, row)
	assert.Equal(t, 3, row.QuantitySold)
	assert.Equal(t, 2, row.DaysOnHand)
	assert.Equal(t, 20, row.InventoryOnHand)
	assert.Nil(t, inventoryOn(inventory, "2024-03-09"))
}

func TestBackfillIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	p := seedHistory(f)
	ctx := context.Background()

	_, err := f.reports.Backfill(ctx, BackfillAll)
	require.NoError(t, err)

	results, err := f.reports.Backfill(ctx, BackfillAll)
	require.NoError(t, err)
	for _, r := range results {
		assert.Zero(t, r.Created, r.Report)
		assert.Zero(t, r.Updated, r.Report)
	}

	// only today's row follows the live stock level
	require.NoError(t, f.repo.SetInventory(ctx, p.ID, 7))
	results, err = f.reports.Backfill(ctx, BackfillInventory)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 1, results[0].Updated)

	inventory := f.repo.InventoryReports()
	assert.Equal(t, 7, inventoryOn(inventory, "2024-03-15").InventoryOnHand)
	assert.Equal(t, 20, inventoryOn(inventory, "2024-03-14").InventoryOnHand)
}

func TestBackfillRefreshesStaleSales(t *testing.T) {
	f := newFixture(t, true)
	p := seedHistory(f)
	ctx := context.Background()

	_, err := f.reports.Backfill(ctx, BackfillSales)
	require.NoError(t, err)

	f.repo.AddOrder(models.Order{OrderNumber: "H-4", UserID: 3, CreatedAt: time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)},
		models.OrderItem{ProductID: p.ID, Price: p.Price, Quantity: 1})

	results, err := f.reports.Backfill(ctx, BackfillSales)
	require.NoError(t, err)
	assert.Zero(t, results[0].Created)
	assert.EqualValues(t, 1, results[0].Updated)

	row := reportOn(f.repo.SalesReports(), "2024-03-14")
	assert.Equal(t, 5, row.TotalUnitsSold)
	assert.Equal(t, 2, row.NumberOfTransactions)
	assert.Equal(t, "12.50", row.AverageTransactionValue.StringFixed(2))
}

func TestBackfillKeepsHistoricalPrices(t *testing.T) {
	f := newFixture(t, true)
	p := seedHistory(f)
	ctx := context.Background()

	_, err := f.reports.Backfill(ctx, BackfillSales)
	require.NoError(t, err)

	f.repo.SetPrice(p.ID, decimal.RequireFromString("6.50"))
	results, err := f.reports.Backfill(ctx, BackfillSales)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.EqualValues(t, 1, results[0].Updated)

	sales := f.repo.SalesReports()
	assert.Equal(t, "6.50", reportOn(sales, "2024-03-15").ProductPrice.StringFixed(2))
	for _, day := range []string{"2024-03-10", "2024-03-12", "2024-03-14"} {
		assert.Equal(t, "5.00", reportOn(sales, day).ProductPrice.StringFixed(2), day)
	}
}

func TestBackfillHonoursLock(t *testing.T) {
	f := newFixture(t, true)
	locker := &stubLocker{held: map[string]string{"report-backfill:sales": "someone-else"}}
	f.reports.locker = locker
	seedHistory(f)

	results, err := f.reports.Backfill(context.Background(), BackfillAll)
	assert.ErrorIs(t, err, ErrBackfillRunning)
	require.Len(t, results, 1)
	assert.Equal(t, "inventory", results[0].Report)
	assert.Equal(t, []string{"report-backfill:inventory"}, locker.released)
	assert.Empty(t, f.repo.SalesReports())
}

func TestRecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	p := seedHistory(f)
	ctx := context.Background()
	at := time.Date(2024, 3, 12, 23, 59, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := f.reports.RecomputeSalesReport(ctx, f.repo, p, at)
		require.NoError(t, err)
		_, err = f.reports.RecomputeInventoryReport(ctx, f.repo, p, at)
		require.NoError(t, err)
	}

	sales := f.repo.SalesReports()
	require.Len(t, sales, 1)
	assert.Equal(t, 3, sales[0].TotalUnitsSold)
	assert.Equal(t, "2024-03-12", sales[0].ReportDate.Format(store.DateLayout))
	require.Len(t, f.repo.InventoryReports(), 1)
}

func TestReportDaysFollowTimezone(t *testing.T) {
	f := newFixture(t, true)
	reports, err := NewReportService(f.repo, nil, config.ReportsConfig{
		Timezone:            "America/New_York",
		InventoryWindowDays: 10,
		SalesWindowDays:     10,
	})
	require.NoError(t, err)
	reports.SetClock(func() time.Time { return fixedNow })
	p := seedHistory(f)

	// both 10:00 and 16:00 UTC fall on 2024-03-12 in New York
	row, err := reports.RecomputeSalesReport(context.Background(), f.repo, p, time.Date(2024, 3, 12, 16, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, row.TotalUnitsSold)

	// 03:00 UTC on the 14th is still the 13th in New York, and H-3 is not
	row, err = reports.RecomputeSalesReport(context.Background(), f.repo, p, time.Date(2024, 3, 14, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, row.TotalUnitsSold)
}

func TestReportRange(t *testing.T) {
	f := newFixture(t, true)

	from, to, err := f.reports.ReportRange("", "", 30)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-15", from.Format(store.DateLayout))
	assert.Equal(t, "2024-03-15", to.Format(store.DateLayout))

	from, to, err = f.reports.ReportRange("2024-01-01", "2024-01-31", 30)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", from.Format(store.DateLayout))
	assert.Equal(t, "2024-01-31", to.Format(store.DateLayout))

	_, _, err = f.reports.ReportRange("2024-02-01", "2024-01-31", 30)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = f.reports.ReportRange("01/02/2024", "", 30)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListReportsNeverCreates(t *testing.T) {
	f := newFixture(t, true)
	seedHistory(f)

	rows, err := f.reports.ListSalesReports(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.repo.SalesReports())
}

func TestSalesStatistics(t *testing.T) {
	f := newFixture(t, true)
	lamp := seedHistory(f)
	desk := f.repo.AddProduct(models.Product{Title: "desk", Slug: "desk", Price: decimal.RequireFromString("100.00"), IsActive: true, InStock: true})
	f.repo.AddOrder(models.Order{OrderNumber: "S-1", UserID: 1, TotalPaid: decimal.RequireFromString("100.00"), CreatedAt: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		models.OrderItem{ProductID: desk.ID, Price: desk.Price, Quantity: 1})
	f.repo.AddOrder(models.Order{OrderNumber: "S-2", UserID: 1, TotalPaid: decimal.RequireFromString("50.00"), CreatedAt: time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC)})
	f.repo.AddOrder(models.Order{OrderNumber: "S-3", UserID: 1, TotalPaid: decimal.RequireFromString("10.00"), CreatedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)})
	ctx := context.Background()

	years, err := f.reports.SalesYears(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, years)

	months, err := f.reports.MonthlySales(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, "150.00", months[0].Total.StringFixed(2))
	assert.Equal(t, "75.00", months[0].Average.StringFixed(2))
	assert.True(t, months[1].Total.IsZero())

	most, err := f.reports.ProductRanking(ctx, 2024, "")
	require.NoError(t, err)
	require.Len(t, most, 2)
	assert.Equal(t, lamp.ID, most[0].ProductID)
	assert.Equal(t, 7, most[0].TotalQuantity)

	least, err := f.reports.ProductRanking(ctx, 2024, RankingLeast)
	require.NoError(t, err)
	assert.Equal(t, desk.ID, least[0].ProductID)

	_, err = f.reports.ProductRanking(ctx, 2024, "sideways")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
