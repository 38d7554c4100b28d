package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

func dateParam(t time.Time) string {
	return t.Format(DateLayout)
}

// GetOrCreateInventoryReport inserts the defaults unless a row for the same
// product and day exists, then returns the stored row.
func (s *Store) GetOrCreateInventoryReport(ctx context.Context, defaults *models.InventoryReport) (*models.InventoryReport, bool, error) {
	var report models.InventoryReport
	err := sqlx.GetContext(ctx, s.ext, &report, `
		INSERT INTO inventory_reports (product_id, product_title, days_on_hand, inventory_on_hand, quantity_sold, report_date)
		VALUES ($1, $2, $3, $4, $5, $6::date)
		ON CONFLICT (product_id, report_date) DO NOTHING
		RETURNING *`,
		defaults.ProductID, defaults.ProductTitle, defaults.DaysOnHand, defaults.InventoryOnHand,
		defaults.QuantitySold, dateParam(defaults.ReportDate))
	if err == nil {
		return &report, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = sqlx.GetContext(ctx, s.ext, &report,
		"SELECT * FROM inventory_reports WHERE product_id = $1 AND report_date = $2::date",
		defaults.ProductID, dateParam(defaults.ReportDate))
	if err != nil {
		return nil, false, err
	}
	return &report, false, nil
}

// UpdateInventoryReport writes the computed fields of one row
func (s *Store) UpdateInventoryReport(ctx context.Context, r *models.InventoryReport) error {
	return sqlx.GetContext(ctx, s.ext, &r.UpdatedAt, `
		UPDATE inventory_reports
		SET product_title = $1, days_on_hand = $2, inventory_on_hand = $3, quantity_sold = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		r.ProductTitle, r.DaysOnHand, r.InventoryOnHand, r.QuantitySold, r.ID)
}

// ListInventoryReports lists rows with report_date in [from, to], newest first
func (s *Store) ListInventoryReports(ctx context.Context, from, to time.Time) ([]models.InventoryReport, error) {
	var reports []models.InventoryReport
	err := sqlx.SelectContext(ctx, s.ext, &reports, `
		SELECT * FROM inventory_reports
		WHERE report_date BETWEEN $1::date AND $2::date
		ORDER BY report_date DESC, product_title`,
		dateParam(from), dateParam(to))
	return reports, err
}

// InsertInventoryReports bulk inserts rows, skipping keys that already exist
func (s *Store) InsertInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	n := len(reports)
	productIDs := make([]int64, n)
	titles := make([]string, n)
	days := make([]int64, n)
	onHand := make([]int64, n)
	sold := make([]int64, n)
	dates := make([]string, n)
	for i, r := range reports {
		productIDs[i] = r.ProductID
		titles[i] = r.ProductTitle
		days[i] = int64(r.DaysOnHand)
		onHand[i] = int64(r.InventoryOnHand)
		sold[i] = int64(r.QuantitySold)
		dates[i] = dateParam(r.ReportDate)
	}

	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO inventory_reports (product_id, product_title, days_on_hand, inventory_on_hand, quantity_sold, report_date)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::int[], $4::int[], $5::int[], $6::date[])
		ON CONFLICT (product_id, report_date) DO NOTHING`,
		pq.Array(productIDs), pq.Array(titles), pq.Array(days), pq.Array(onHand), pq.Array(sold), pq.Array(dates))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateInventoryReports writes the computed fields of many rows in one statement
func (s *Store) UpdateInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	n := len(reports)
	ids := make([]int64, n)
	titles := make([]string, n)
	days := make([]int64, n)
	onHand := make([]int64, n)
	sold := make([]int64, n)
	for i, r := range reports {
		ids[i] = r.ID
		titles[i] = r.ProductTitle
		days[i] = int64(r.DaysOnHand)
		onHand[i] = int64(r.InventoryOnHand)
		sold[i] = int64(r.QuantitySold)
	}

	res, err := s.ext.ExecContext(ctx, `
		UPDATE inventory_reports r
		SET product_title = u.product_title,
		    days_on_hand = u.days_on_hand,
		    inventory_on_hand = u.inventory_on_hand,
		    quantity_sold = u.quantity_sold,
		    updated_at = NOW()
		FROM unnest($1::bigint[], $2::text[], $3::int[], $4::int[], $5::int[])
		     AS u(id, product_title, days_on_hand, inventory_on_hand, quantity_sold)
		WHERE r.id = u.id`,
		pq.Array(ids), pq.Array(titles), pq.Array(days), pq.Array(onHand), pq.Array(sold))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetOrCreateSalesReport inserts the defaults unless a row for the same
// product and day exists, then returns the stored row.
func (s *Store) GetOrCreateSalesReport(ctx context.Context, defaults *models.SalesReport) (*models.SalesReport, bool, error) {
	var report models.SalesReport
	err := sqlx.GetContext(ctx, s.ext, &report, `
		INSERT INTO sales_reports (product_id, product_title, product_price, total_sales, total_units_sold,
		                           number_of_transactions, average_transaction_value, report_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date)
		ON CONFLICT (product_id, report_date) DO NOTHING
		RETURNING *`,
		defaults.ProductID, defaults.ProductTitle, defaults.ProductPrice, defaults.TotalSales,
		defaults.TotalUnitsSold, defaults.NumberOfTransactions, defaults.AverageTransactionValue,
		dateParam(defaults.ReportDate))
	if err == nil {
		return &report, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	err = sqlx.GetContext(ctx, s.ext, &report,
		"SELECT * FROM sales_reports WHERE product_id = $1 AND report_date = $2::date",
		defaults.ProductID, dateParam(defaults.ReportDate))
	if err != nil {
		return nil, false, err
	}
	return &report, false, nil
}

// UpdateSalesReport writes the computed fields of one row
func (s *Store) UpdateSalesReport(ctx context.Context, r *models.SalesReport) error {
	return sqlx.GetContext(ctx, s.ext, &r.UpdatedAt, `
		UPDATE sales_reports
		SET product_title = $1, product_price = $2, total_sales = $3, total_units_sold = $4,
		    number_of_transactions = $5, average_transaction_value = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`,
		r.ProductTitle, r.ProductPrice, r.TotalSales, r.TotalUnitsSold,
		r.NumberOfTransactions, r.AverageTransactionValue, r.ID)
}

// ListSalesReports lists rows with report_date in [from, to], newest first
func (s *Store) ListSalesReports(ctx context.Context, from, to time.Time) ([]models.SalesReport, error) {
	var reports []models.SalesReport
	err := sqlx.SelectContext(ctx, s.ext, &reports, `
		SELECT * FROM sales_reports
		WHERE report_date BETWEEN $1::date AND $2::date
		ORDER BY report_date DESC, product_title`,
		dateParam(from), dateParam(to))
	return reports, err
}

// InsertSalesReports bulk inserts rows, skipping keys that already exist
func (s *Store) InsertSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	n := len(reports)
	productIDs := make([]int64, n)
	titles := make([]string, n)
	prices := make([]string, n)
	totals := make([]string, n)
	units := make([]int64, n)
	transactions := make([]int64, n)
	averages := make([]string, n)
	dates := make([]string, n)
	for i, r := range reports {
		productIDs[i] = r.ProductID
		titles[i] = r.ProductTitle
		prices[i] = r.ProductPrice.StringFixed(2)
		totals[i] = r.TotalSales.StringFixed(2)
		units[i] = int64(r.TotalUnitsSold)
		transactions[i] = int64(r.NumberOfTransactions)
		averages[i] = r.AverageTransactionValue.StringFixed(2)
		dates[i] = dateParam(r.ReportDate)
	}

	res, err := s.ext.ExecContext(ctx, `
		INSERT INTO sales_reports (product_id, product_title, product_price, total_sales, total_units_sold,
		                           number_of_transactions, average_transaction_value, report_date)
		SELECT * FROM unnest($1::bigint[], $2::text[], $3::numeric[], $4::numeric[], $5::int[],
		                     $6::int[], $7::numeric[], $8::date[])
		ON CONFLICT (product_id, report_date) DO NOTHING`,
		pq.Array(productIDs), pq.Array(titles), pq.Array(prices), pq.Array(totals), pq.Array(units),
		pq.Array(transactions), pq.Array(averages), pq.Array(dates))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateSalesReports writes the computed fields of many rows in one statement
func (s *Store) UpdateSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error) {
	if len(reports) == 0 {
		return 0, nil
	}

	n := len(reports)
	ids := make([]int64, n)
	titles := make([]string, n)
	prices := make([]string, n)
	totals := make([]string, n)
	units := make([]int64, n)
	transactions := make([]int64, n)
	averages := make([]string, n)
	for i, r := range reports {
		ids[i] = r.ID
		titles[i] = r.ProductTitle
		prices[i] = r.ProductPrice.StringFixed(2)
		totals[i] = r.TotalSales.StringFixed(2)
		units[i] = int64(r.TotalUnitsSold)
		transactions[i] = int64(r.NumberOfTransactions)
		averages[i] = r.AverageTransactionValue.StringFixed(2)
	}

	res, err := s.ext.ExecContext(ctx, `
		UPDATE sales_reports r
		SET product_title = u.product_title,
		    product_price = u.product_price,
		    total_sales = u.total_sales,
		    total_units_sold = u.total_units_sold,
		    number_of_transactions = u.number_of_transactions,
		    average_transaction_value = u.average_transaction_value,
		    updated_at = NOW()
		FROM unnest($1::bigint[], $2::text[], $3::numeric[], $4::numeric[], $5::int[], $6::int[], $7::numeric[])
		     AS u(id, product_title, product_price, total_sales, total_units_sold, number_of_transactions, average_transaction_value)
		WHERE r.id = u.id`,
		pq.Array(ids), pq.Array(titles), pq.Array(prices), pq.Array(totals), pq.Array(units),
		pq.Array(transactions), pq.Array(averages))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
