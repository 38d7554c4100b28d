package service

import (
	"context"
	"fmt"
	"time"

	"storefront/config"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Locker serialises work across processes
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// BackfillKind selects which report family a backfill covers
type BackfillKind string

const (
	BackfillInventory BackfillKind = "inventory"
	BackfillSales     BackfillKind = "sales"
	BackfillAll       BackfillKind = "all"
)

const backfillLockTTL = 10 * time.Minute

// ParseBackfillKind validates a kind name; empty means all
func ParseBackfillKind(s string) (BackfillKind, error) {
	switch BackfillKind(s) {
	case "", BackfillAll:
		return BackfillAll, nil
	case BackfillInventory, BackfillSales:
		return BackfillKind(s), nil
	}
	return "", fmt.Errorf("unknown backfill kind %q: %w", s, ErrInvalidInput)
}

// BackfillResult counts the rows one backfill run touched
type BackfillResult struct {
	Report   string        `json:"report"`
	From     string        `json:"from"`
	To       string        `json:"to"`
	Created  int64         `json:"created"`
	Updated  int64         `json:"updated"`
	Duration time.Duration `json:"duration_ns"`
}

// ReportService maintains the per product, per day inventory and sales
// report rows and serves the statistics built on orders.
type ReportService struct {
	repo            store.Repository
	locker          Locker
	loc             *time.Location
	inventoryWindow int
	salesWindow     int
	now             func() time.Time
	logger          *zap.Logger
}

// NewReportService creates a report service. locker may be nil, in which
// case backfills rely on the unique report key alone.
func NewReportService(repo store.Repository, locker Locker, cfg config.ReportsConfig) (*ReportService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid report timezone %q: %w", cfg.Timezone, err)
	}
	// the zone name is handed to Postgres AT TIME ZONE, which has no "Local"
	if loc == time.Local {
		return nil, fmt.Errorf("report timezone must be an IANA name, got %q: %w", cfg.Timezone, ErrInvalidInput)
	}
	if cfg.InventoryWindowDays <= 0 || cfg.SalesWindowDays <= 0 {
		return nil, fmt.Errorf("report windows must be positive: %w", ErrInvalidInput)
	}

	return &ReportService{
		repo:            repo,
		locker:          locker,
		loc:             loc,
		inventoryWindow: cfg.InventoryWindowDays,
		salesWindow:     cfg.SalesWindowDays,
		now:             time.Now,
		logger:          util.Component("reports"),
	}, nil
}

// SetClock replaces the wall clock
func (s *ReportService) SetClock(now func() time.Time) {
	s.now = now
}

// Location is the zone report days are cut in
func (s *ReportService) Location() *time.Location {
	return s.loc
}

// dayBounds returns [start, end) of the calendar day containing t
func (s *ReportService) dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.In(s.loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// daysOnHand counts whole days the product has existed by the end of the
// report day, capped at now.
func (s *ReportService) daysOnHand(p *models.Product, dayEnd time.Time) int {
	ref := s.now()
	if dayEnd.Before(ref) {
		ref = dayEnd
	}
	d := int(ref.Sub(p.CreatedAt) / (24 * time.Hour))
	if d < 0 {
		return 0
	}
	return d
}

func averageTransaction(total decimal.Decimal, transactions int) decimal.Decimal {
	if transactions == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(transactions))).Round(2)
}

func (s *ReportService) inventoryRow(p *models.Product, dayStart, dayEnd time.Time, unitsSold int) models.InventoryReport {
	return models.InventoryReport{
		ProductID:       p.ID,
		ProductTitle:    p.Title,
		DaysOnHand:      s.daysOnHand(p, dayEnd),
		InventoryOnHand: p.Inventory,
		QuantitySold:    unitsSold,
		ReportDate:      dayStart,
	}
}

func salesRow(p *models.Product, dayStart time.Time, agg models.SalesAggregate) models.SalesReport {
	total := agg.Sales.Round(2)
	return models.SalesReport{
		ProductID:               p.ID,
		ProductTitle:            p.Title,
		ProductPrice:            p.Price,
		TotalSales:              total,
		TotalUnitsSold:          agg.Units,
		NumberOfTransactions:    agg.Transactions,
		AverageTransactionValue: averageTransaction(total, agg.Transactions),
		ReportDate:              dayStart,
	}
}

// mergeInventory copies computed fields into current and reports whether anything changed.
// inventory_on_hand is a point-in-time snapshot, so only today's row follows the product.
func mergeInventory(current *models.InventoryReport, computed models.InventoryReport, today bool) bool {
	changed := false
	if current.ProductTitle != computed.ProductTitle {
		current.ProductTitle = computed.ProductTitle
		changed = true
	}
	if current.DaysOnHand != computed.DaysOnHand {
		current.DaysOnHand = computed.DaysOnHand
		changed = true
	}
	if current.QuantitySold != computed.QuantitySold {
		current.QuantitySold = computed.QuantitySold
		changed = true
	}
	if today && current.InventoryOnHand != computed.InventoryOnHand {
		current.InventoryOnHand = computed.InventoryOnHand
		changed = true
	}
	return changed
}

// mergeSales is mergeInventory for sales rows; product_price is the snapshot
// field there.
func mergeSales(current *models.SalesReport, computed models.SalesReport, today bool) bool {
	changed := false
	if current.ProductTitle != computed.ProductTitle {
		current.ProductTitle = computed.ProductTitle
		changed = true
	}
	if today && !current.ProductPrice.Equal(computed.ProductPrice) {
		current.ProductPrice = computed.ProductPrice
		changed = true
	}
	if !current.TotalSales.Equal(computed.TotalSales) {
		current.TotalSales = computed.TotalSales
		changed = true
	}
	if current.TotalUnitsSold != computed.TotalUnitsSold {
		current.TotalUnitsSold = computed.TotalUnitsSold
		changed = true
	}
	if current.NumberOfTransactions != computed.NumberOfTransactions {
		current.NumberOfTransactions = computed.NumberOfTransactions
		changed = true
	}
	if !current.AverageTransactionValue.Equal(computed.AverageTransactionValue) {
		current.AverageTransactionValue = computed.AverageTransactionValue
		changed = true
	}
	return changed
}

// RecomputeInventoryReport brings the inventory row of (product, day of at)
// up to date after a live stock change, creating it when absent. p is the
// product as it stands now, so the row takes its inventory snapshot whatever
// the app clock says the current day is. repo may be bound to a transaction.
func (s *ReportService) RecomputeInventoryReport(ctx context.Context, repo store.Repository, p *models.Product, at time.Time) (*models.InventoryReport, error) {
	start, end := s.dayBounds(at)

	agg, err := repo.AggregateSales(ctx, p.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	computed := s.inventoryRow(p, start, end, agg.Units)
	report, created, err := repo.GetOrCreateInventoryReport(ctx, &computed)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory report: %w", err)
	}
	if created {
		util.ReportRowsCreatedTotal.WithLabelValues("inventory").Inc()
		return report, nil
	}

	if !mergeInventory(report, computed, true) {
		return report, nil
	}
	if err := repo.UpdateInventoryReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to update inventory report: %w", err)
	}
	util.ReportRowsUpdatedTotal.WithLabelValues("inventory").Inc()
	return report, nil
}

// RecomputeSalesReport brings the sales row of (product, day of at) up to
// date after a sale, creating it when absent. Like RecomputeInventoryReport
// the row takes p's current price. repo may be bound to a transaction.
func (s *ReportService) RecomputeSalesReport(ctx context.Context, repo store.Repository, p *models.Product, at time.Time) (*models.SalesReport, error) {
	start, end := s.dayBounds(at)

	agg, err := repo.AggregateSales(ctx, p.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	computed := salesRow(p, start, agg)
	report, created, err := repo.GetOrCreateSalesReport(ctx, &computed)
	if err != nil {
		return nil, fmt.Errorf("failed to get sales report: %w", err)
	}
	if created {
		util.ReportRowsCreatedTotal.WithLabelValues("sales").Inc()
		return report, nil
	}

	if !mergeSales(report, computed, true) {
		return report, nil
	}
	if err := repo.UpdateSalesReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to update sales report: %w", err)
	}
	util.ReportRowsUpdatedTotal.WithLabelValues("sales").Inc()
	return report, nil
}

// Backfill creates missing report rows and refreshes stale ones across the
// configured windows ending today.
func (s *ReportService) Backfill(ctx context.Context, kind BackfillKind) ([]BackfillResult, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Backfill", attribute.String("kind", string(kind)))
	defer span.End()

	var results []BackfillResult
	if kind == BackfillInventory || kind == BackfillAll {
		res, err := s.withLock(ctx, "report-backfill:inventory", s.backfillInventory)
		if err != nil {
			return results, util.RecordError(span, err)
		}
		results = append(results, res)
	}
	if kind == BackfillSales || kind == BackfillAll {
		res, err := s.withLock(ctx, "report-backfill:sales", s.backfillSales)
		if err != nil {
			return results, util.RecordError(span, err)
		}
		results = append(results, res)
	}
	if results == nil {
		return nil, util.RecordError(span, fmt.Errorf("unknown backfill kind %q: %w", kind, ErrInvalidInput))
	}
	return results, nil
}

func (s *ReportService) withLock(ctx context.Context, key string, run func(context.Context) (BackfillResult, error)) (BackfillResult, error) {
	if s.locker == nil {
		return run(ctx)
	}

	token, ok, err := s.locker.AcquireLock(ctx, key, backfillLockTTL)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return BackfillResult{}, fmt.Errorf("%s: %w", key, ErrBackfillRunning)
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn("Failed to release backfill lock", zap.String("key", key), zap.Error(err))
		}
	}()

	return run(ctx)
}

type dayKey struct {
	productID int64
	day       string
}

// window returns the first day of a window of n days ending today, and
// the end of today.
func (s *ReportService) window(days int) (from, todayStart, to time.Time) {
	todayStart, to = s.dayBounds(s.now())
	from = todayStart.AddDate(0, 0, -(days - 1))
	return from, todayStart, to
}

func (s *ReportService) salesByDay(ctx context.Context, from, to time.Time) (map[dayKey]models.SalesAggregate, error) {
	aggs, err := s.repo.AggregateSalesByDay(ctx, from, to, s.loc)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales by day: %w", err)
	}
	byKey := make(map[dayKey]models.SalesAggregate, len(aggs))
	for _, a := range aggs {
		byKey[dayKey{a.ProductID, a.Day}] = a
	}
	return byKey, nil
}

func (s *ReportService) backfillInventory(ctx context.Context) (BackfillResult, error) {
	started := time.Now()
	from, todayStart, to := s.window(s.inventoryWindow)
	result := BackfillResult{Report: "inventory", From: from.Format(store.DateLayout), To: todayStart.Format(store.DateLayout)}

	products, err := s.repo.GetProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load products: %w", err)
	}
	sold, err := s.salesByDay(ctx, from, to)
	if err != nil {
		return result, err
	}
	rows, err := s.repo.ListInventoryReports(ctx, from, todayStart)
	if err != nil {
		return result, fmt.Errorf("failed to load inventory reports: %w", err)
	}
	existing := make(map[dayKey]models.InventoryReport, len(rows))
	for _, r := range rows {
		existing[dayKey{r.ProductID, r.ReportDate.Format(store.DateLayout)}] = r
	}

	var inserts, updates []models.InventoryReport
	for day := from; !day.After(todayStart); day = day.AddDate(0, 0, 1) {
		dayStart, dayEnd := s.dayBounds(day)
		name := dayStart.Format(store.DateLayout)
		today := dayStart.Equal(todayStart)
		for i := range products {
			p := &products[i]
			if !dayEnd.After(p.CreatedAt) {
				continue
			}
			key := dayKey{p.ID, name}
			computed := s.inventoryRow(p, dayStart, dayEnd, sold[key].Units)
			current, ok := existing[key]
			if !ok {
				inserts = append(inserts, computed)
				continue
			}
			if mergeInventory(&current, computed, today) {
				updates = append(updates, current)
			}
		}
	}

	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		var txErr error
		if result.Created, txErr = tx.InsertInventoryReports(ctx, inserts); txErr != nil {
			return fmt.Errorf("failed to insert inventory reports: %w", txErr)
		}
		if result.Updated, txErr = tx.UpdateInventoryReports(ctx, updates); txErr != nil {
			return fmt.Errorf("failed to update inventory reports: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(started)
	s.observe(result)
	return result, nil
}

func (s *ReportService) backfillSales(ctx context.Context) (BackfillResult, error) {
	started := time.Now()
	from, todayStart, to := s.window(s.salesWindow)
	result := BackfillResult{Report: "sales", From: from.Format(store.DateLayout), To: todayStart.Format(store.DateLayout)}

	products, err := s.repo.GetProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to load products: %w", err)
	}
	sold, err := s.salesByDay(ctx, from, to)
	if err != nil {
		return result, err
	}
	rows, err := s.repo.ListSalesReports(ctx, from, todayStart)
	if err != nil {
		return result, fmt.Errorf("failed to load sales reports: %w", err)
	}
	existing := make(map[dayKey]models.SalesReport, len(rows))
	for _, r := range rows {
		existing[dayKey{r.ProductID, r.ReportDate.Format(store.DateLayout)}] = r
	}

	var inserts, updates []models.SalesReport
	for day := from; !day.After(todayStart); day = day.AddDate(0, 0, 1) {
		dayStart, dayEnd := s.dayBounds(day)
		name := dayStart.Format(store.DateLayout)
		today := dayStart.Equal(todayStart)
		for i := range products {
			p := &products[i]
			if !dayEnd.After(p.CreatedAt) {
				continue
			}
			key := dayKey{p.ID, name}
			agg, ok := sold[key]
			if !ok {
				agg = models.SalesAggregate{ProductID: p.ID, Day: name, Sales: decimal.Zero}
			}
			computed := salesRow(p, dayStart, agg)
			current, ok := existing[key]
			if !ok {
				inserts = append(inserts, computed)
				continue
			}
			if mergeSales(&current, computed, today) {
				updates = append(updates, current)
			}
		}
	}

	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		var txErr error
		if result.Created, txErr = tx.InsertSalesReports(ctx, inserts); txErr != nil {
			return fmt.Errorf("failed to insert sales reports: %w", txErr)
		}
		if result.Updated, txErr = tx.UpdateSalesReports(ctx, updates); txErr != nil {
			return fmt.Errorf("failed to update sales reports: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(started)
	s.observe(result)
	return result, nil
}

func (s *ReportService) observe(r BackfillResult) {
	util.BackfillDuration.WithLabelValues(r.Report).Observe(r.Duration.Seconds())
	util.ReportRowsCreatedTotal.WithLabelValues(r.Report).Add(float64(r.Created))
	util.ReportRowsUpdatedTotal.WithLabelValues(r.Report).Add(float64(r.Updated))

	s.logger.Info("Report backfill finished",
		zap.String("report", r.Report),
		zap.String("from", r.From),
		zap.String("to", r.To),
		zap.Int64("created", r.Created),
		zap.Int64("updated", r.Updated),
		zap.Duration("duration", r.Duration))
}

// ReportRange resolves optional from/to days (YYYY-MM-DD) into a date
// range. Missing bounds default to a window of windowDays ending today.
func (s *ReportService) ReportRange(fromStr, toStr string, windowDays int) (time.Time, time.Time, error) {
	todayStart, _ := s.dayBounds(s.now())
	to := todayStart
	if toStr != "" {
		t, err := time.ParseInLocation(store.DateLayout, toStr, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to date %q: %w", toStr, ErrInvalidInput)
		}
		to = t
	}
	from := to.AddDate(0, 0, -(windowDays - 1))
	if fromStr != "" {
		f, err := time.ParseInLocation(store.DateLayout, fromStr, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from date %q: %w", fromStr, ErrInvalidInput)
		}
		from = f
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s: %w",
			from.Format(store.DateLayout), to.Format(store.DateLayout), ErrInvalidInput)
	}
	return from, to, nil
}

// ListInventoryReports reads stored inventory rows; it never creates or recomputes any
func (s *ReportService) ListInventoryReports(ctx context.Context, fromStr, toStr string) ([]models.InventoryReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.ListInventoryReports")
	defer span.End()

	from, to, err := s.ReportRange(fromStr, toStr, s.inventoryWindow)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.ListInventoryReports(ctx, from, to)
	return reports, util.RecordError(span, err)
}

// ListSalesReports reads stored sales rows; it never creates or recomputes any
func (s *ReportService) ListSalesReports(ctx context.Context, fromStr, toStr string) ([]models.SalesReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.ListSalesReports")
	defer span.End()

	from, to, err := s.ReportRange(fromStr, toStr, s.salesWindow)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.ListSalesReports(ctx, from, to)
	return reports, util.RecordError(span, err)
}

// SalesYears lists the years that have orders, newest first
func (s *ReportService) SalesYears(ctx context.Context) ([]int, error) {
	years, err := s.repo.OrderYears(ctx)
	if err != nil {
		return nil, err
	}
	if years == nil {
		years = []int{}
	}
	return years, nil
}

// MonthlySales returns twelve buckets of order totals and averages for year
func (s *ReportService) MonthlySales(ctx context.Context, year int) ([]models.MonthlySales, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.MonthlySales", attribute.Int("year", year))
	defer span.End()

	rows, err := s.repo.MonthlySales(ctx, year)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	buckets := make([]models.MonthlySales, 12)
	for i := range buckets {
		buckets[i] = models.MonthlySales{Month: i + 1, Total: decimal.Zero, Average: decimal.Zero}
	}
	for _, r := range rows {
		if r.Month >= 1 && r.Month <= 12 {
			buckets[r.Month-1] = models.MonthlySales{Month: r.Month, Total: r.Total.Round(2), Average: r.Average.Round(2)}
		}
	}
	return buckets, nil
}

// Product ranking orders and their default sizes
const (
	RankingMost  = "most"
	RankingLeast = "least"

	mostSoldLimit  = 75
	leastSoldLimit = 10
)

// ProductRanking lists the most or least sold products of a year by units
func (s *ReportService) ProductRanking(ctx context.Context, year int, order string) ([]models.ProductSales, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.ProductRanking", attribute.Int("year", year))
	defer span.End()

	var rows []models.ProductSales
	var err error
	switch order {
	case "", RankingMost:
		rows, err = s.repo.ProductRanking(ctx, year, false, mostSoldLimit)
	case RankingLeast:
		rows, err = s.repo.ProductRanking(ctx, year, true, leastSoldLimit)
	default:
		return nil, fmt.Errorf("unknown ranking order %q: %w", order, ErrInvalidInput)
	}
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	if rows == nil {
		rows = []models.ProductSales{}
	}
	return rows, nil
}
