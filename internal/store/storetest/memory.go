// Package storetest provides an in-memory store.Repository for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// ErrConstraint mimics a database constraint violation
var ErrConstraint = errors.New("constraint violation")

type reportKey struct {
	productID int64
	day       string
}

type state struct {
	nextID     int64
	categories []models.Category
	products   map[int64]models.Product
	orders     []models.Order
	items      []models.OrderItem
	inventory  []models.InventoryReport
	sales      []models.SalesReport
	movements  []models.InventoryMovement
	events     map[string]string
}

func (s *state) clone() *state {
	c := &state{
		nextID:     s.nextID,
		categories: append([]models.Category(nil), s.categories...),
		products:   make(map[int64]models.Product, len(s.products)),
		orders:     append([]models.Order(nil), s.orders...),
		items:      append([]models.OrderItem(nil), s.items...),
		inventory:  append([]models.InventoryReport(nil), s.inventory...),
		sales:      append([]models.SalesReport(nil), s.sales...),
		movements:  append([]models.InventoryMovement(nil), s.movements...),
		events:     make(map[string]string, len(s.events)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

func (s *state) id() int64 {
	s.nextID++
	return s.nextID
}

// Memory is a Repository backed by process memory. Transactions run on a
// copy of the state that replaces the original on commit; only one
// transaction runs at a time, which stands in for row locks.
type Memory struct {
	mu   *sync.Mutex
	st   **state
	inTx bool

	// Clock stamps created_at and updated_at columns
	Clock func() time.Time
}

var _ store.Repository = (*Memory)(nil)

// New creates an empty repository using the wall clock
func New() *Memory {
	st := &state{
		products: map[int64]models.Product{},
		events:   map[string]string{},
	}
	return &Memory{mu: &sync.Mutex{}, st: &st, Clock: time.Now}
}

func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) s() *state {
	return *m.st
}

func (m *Memory) now() time.Time {
	return m.Clock()
}

// WithTx runs fn on a private copy of the data and publishes it when fn succeeds
func (m *Memory) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	working := (*m.st).clone()
	tx := &Memory{mu: m.mu, st: &working, inTx: true, Clock: m.Clock}
	if err := fn(tx); err != nil {
		return err
	}
	*m.st = working
	return nil
}

// Seeding and inspection helpers

// AddCategory stores a category and returns it with its id set
func (m *Memory) AddCategory(c models.Category) models.Category {
	defer m.lock()()
	c.ID = m.s().id()
	m.s().categories = append(m.s().categories, c)
	return c
}

// AddProduct stores a product and returns it with its id set.
// Zero timestamps default to the clock.
func (m *Memory) AddProduct(p models.Product) models.Product {
	defer m.lock()()
	p.ID = m.s().id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	m.s().products[p.ID] = p
	return p
}

// SetPrice changes a product's price as an admin edit would
func (m *Memory) SetPrice(id int64, price decimal.Decimal) {
	defer m.lock()()
	p := m.s().products[id]
	p.Price = price
	p.UpdatedAt = m.now()
	m.s().products[id] = p
}

// AddOrder stores an order with its items as they would look after a commit
// at order.CreatedAt. Inventory is not touched.
func (m *Memory) AddOrder(order models.Order, items ...models.OrderItem) models.Order {
	defer m.lock()()
	order.ID = m.s().id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = m.now()
	}
	order.UpdatedAt = order.CreatedAt
	m.s().orders = append(m.s().orders, order)
	for _, item := range items {
		item.ID = m.s().id()
		item.OrderID = order.ID
		m.s().items = append(m.s().items, item)
	}
	return order
}

// Product returns the stored product
func (m *Memory) Product(id int64) models.Product {
	defer m.lock()()
	return m.s().products[id]
}

// Orders returns every stored order
func (m *Memory) Orders() []models.Order {
	defer m.lock()()
	return append([]models.Order(nil), m.s().orders...)
}

// OrderItems returns every stored order item
func (m *Memory) OrderItems() []models.OrderItem {
	defer m.lock()()
	return append([]models.OrderItem(nil), m.s().items...)
}

// InventoryReports returns every stored inventory report row
func (m *Memory) InventoryReports() []models.InventoryReport {
	defer m.lock()()
	return append([]models.InventoryReport(nil), m.s().inventory...)
}

// SalesReports returns every stored sales report row
func (m *Memory) SalesReports() []models.SalesReport {
	defer m.lock()()
	return append([]models.SalesReport(nil), m.s().sales...)
}

// Movements returns every stored inventory movement
func (m *Memory) Movements() []models.InventoryMovement {
	defer m.lock()()
	return append([]models.InventoryMovement(nil), m.s().movements...)
}

// ProductRepository

func (m *Memory) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	defer m.lock()()
	p, ok := m.s().products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	defer m.lock()()
	var found *models.Product
	for _, p := range m.s().products {
		if p.Slug != slug || !p.InStock || !p.IsActive {
			continue
		}
		if found == nil || p.ID < found.ID {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, fmt.Errorf("product %s: %w", slug, store.ErrNotFound)
	}
	return found, nil
}

func (m *Memory) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return m.GetProductByID(ctx, id)
}

func (m *Memory) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	defer m.lock()()
	products := []models.Product{}
	for _, id := range ids {
		if p, ok := m.s().products[id]; ok {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *Memory) GetProducts(ctx context.Context) ([]models.Product, error) {
	defer m.lock()()
	products := make([]models.Product, 0, len(m.s().products))
	for _, p := range m.s().products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *Memory) ListProducts(ctx context.Context, f store.ProductFilter) ([]models.Product, error) {
	defer m.lock()()
	var categoryID *int64
	if f.CategorySlug != "" {
		for _, c := range m.s().categories {
			if c.Slug == f.CategorySlug {
				id := c.ID
				categoryID = &id
			}
		}
		if categoryID == nil {
			return []models.Product{}, nil
		}
	}

	products := []models.Product{}
	for _, p := range m.s().products {
		if !p.IsActive || (f.OnlyInStock && !p.InStock) {
			continue
		}
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		if !products[i].CreatedAt.Equal(products[j].CreatedAt) {
			return products[i].CreatedAt.After(products[j].CreatedAt)
		}
		return products[i].ID > products[j].ID
	})
	return products, nil
}

func (m *Memory) SetInventory(ctx context.Context, productID int64, inventory int) error {
	defer m.lock()()
	p, ok := m.s().products[productID]
	if !ok {
		return fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	if inventory < 0 {
		return fmt.Errorf("products.inventory >= 0: %w", ErrConstraint)
	}
	p.Inventory = inventory
	p.UpdatedAt = m.now()
	m.s().products[productID] = p
	return nil
}

func (m *Memory) ListCategories(ctx context.Context) ([]models.Category, error) {
	defer m.lock()()
	categories := append([]models.Category{}, m.s().categories...)
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// OrderRepository

func (m *Memory) CreateOrder(ctx context.Context, order *models.Order) error {
	defer m.lock()()
	for _, o := range m.s().orders {
		if o.OrderNumber == order.OrderNumber {
			return fmt.Errorf("orders.order_number %q: %w", order.OrderNumber, ErrConstraint)
		}
	}
	order.ID = m.s().id()
	order.CreatedAt = m.now()
	order.UpdatedAt = order.CreatedAt
	m.s().orders = append(m.s().orders, *order)
	return nil
}

func (m *Memory) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	defer m.lock()()
	for _, o := range m.s().orders {
		if o.OrderNumber == orderNumber {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", orderNumber, store.ErrNotFound)
}

func (m *Memory) UpdateOrderBalance(ctx context.Context, orderID int64, balance decimal.Decimal) error {
	defer m.lock()()
	for i := range m.s().orders {
		if m.s().orders[i].ID == orderID {
			m.s().orders[i].Balance = balance
			m.s().orders[i].UpdatedAt = m.now()
		}
	}
	return nil
}

func (m *Memory) SetBillingStatus(ctx context.Context, orderNumber string, billed bool) error {
	defer m.lock()()
	for i := range m.s().orders {
		if m.s().orders[i].OrderNumber == orderNumber {
			m.s().orders[i].BillingStatus = billed
			m.s().orders[i].UpdatedAt = m.now()
			return nil
		}
	}
	return fmt.Errorf("order %s: %w", orderNumber, store.ErrNotFound)
}

func (m *Memory) ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error) {
	defer m.lock()()
	orders := []models.Order{}
	for _, o := range m.s().orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.BilledOnly && !o.BillingStatus {
			continue
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !o.CreatedAt.Before(*f.To) {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	if f.Limit > 0 && len(orders) > f.Limit {
		orders = orders[:f.Limit]
	}
	return orders, nil
}

func (m *Memory) ListOneTimeCustomers(ctx context.Context) ([]models.Order, error) {
	defer m.lock()()
	named := func(o models.Order) bool {
		return o.FullName != "" && o.Phone != "" && o.FullName != store.WalkInCustomer
	}
	counts := map[string]int{}
	for _, o := range m.s().orders {
		if named(o) {
			counts[o.FullName]++
		}
	}
	orders := []models.Order{}
	for _, o := range m.s().orders {
		if named(o) && counts[o.FullName] == 1 {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (m *Memory) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	defer m.lock()()
	if item.Quantity <= 0 {
		return fmt.Errorf("order_items.quantity > 0: %w", ErrConstraint)
	}
	item.ID = m.s().id()
	m.s().items = append(m.s().items, *item)
	return nil
}

func (m *Memory) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	defer m.lock()()
	items := []models.OrderItem{}
	for _, item := range m.s().items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *Memory) orderCreated() map[int64]time.Time {
	created := make(map[int64]time.Time, len(m.s().orders))
	for _, o := range m.s().orders {
		created[o.ID] = o.CreatedAt
	}
	return created
}

func (m *Memory) AggregateSales(ctx context.Context, productID int64, from, to time.Time) (models.SalesAggregate, error) {
	defer m.lock()()
	created := m.orderCreated()
	agg := models.SalesAggregate{ProductID: productID, Sales: decimal.Zero}
	orders := map[int64]bool{}
	for _, item := range m.s().items {
		at := created[item.OrderID]
		if item.ProductID != productID || at.Before(from) || !at.Before(to) {
			continue
		}
		agg.Units += item.Quantity
		agg.Sales = agg.Sales.Add(item.TotalCost())
		orders[item.OrderID] = true
	}
	agg.Transactions = len(orders)
	return agg, nil
}

func (m *Memory) AggregateSalesByDay(ctx context.Context, from, to time.Time, loc *time.Location) ([]models.SalesAggregate, error) {
	defer m.lock()()
	created := m.orderCreated()
	byKey := map[reportKey]*models.SalesAggregate{}
	orders := map[reportKey]map[int64]bool{}
	for _, item := range m.s().items {
		at := created[item.OrderID]
		if at.Before(from) || !at.Before(to) {
			continue
		}
		key := reportKey{item.ProductID, at.In(loc).Format(store.DateLayout)}
		agg, ok := byKey[key]
		if !ok {
			agg = &models.SalesAggregate{ProductID: key.productID, Day: key.day, Sales: decimal.Zero}
			byKey[key] = agg
			orders[key] = map[int64]bool{}
		}
		agg.Units += item.Quantity
		agg.Sales = agg.Sales.Add(item.TotalCost())
		orders[key][item.OrderID] = true
	}

	rows := make([]models.SalesAggregate, 0, len(byKey))
	for key, agg := range byKey {
		agg.Transactions = len(orders[key])
		rows = append(rows, *agg)
	}
	return rows, nil
}

func (m *Memory) OrderYears(ctx context.Context) ([]int, error) {
	defer m.lock()()
	seen := map[int]bool{}
	years := []int{}
	for _, o := range m.s().orders {
		y := o.CreatedAt.Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func (m *Memory) MonthlySales(ctx context.Context, year int) ([]models.MonthlySales, error) {
	defer m.lock()()
	totals := map[int]decimal.Decimal{}
	counts := map[int]int64{}
	for _, o := range m.s().orders {
		if o.CreatedAt.Year() != year {
			continue
		}
		month := int(o.CreatedAt.Month())
		totals[month] = totals[month].Add(o.TotalPaid)
		counts[month]++
	}

	rows := []models.MonthlySales{}
	for month := 1; month <= 12; month++ {
		if counts[month] == 0 {
			continue
		}
		rows = append(rows, models.MonthlySales{
			Month:   month,
			Total:   totals[month],
			Average: totals[month].Div(decimal.NewFromInt(counts[month])).Round(2),
		})
	}
	return rows, nil
}

func (m *Memory) ProductRanking(ctx context.Context, year int, ascending bool, limit int) ([]models.ProductSales, error) {
	defer m.lock()()
	created := m.orderCreated()
	qty := map[int64]int{}
	for _, item := range m.s().items {
		if created[item.OrderID].Year() == year {
			qty[item.ProductID] += item.Quantity
		}
	}

	rows := make([]models.ProductSales, 0, len(qty))
	for id, total := range qty {
		rows = append(rows, models.ProductSales{
			ProductID:     id,
			ProductTitle:  m.s().products[id].Title,
			TotalQuantity: total,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalQuantity != rows[j].TotalQuantity {
			if ascending {
				return rows[i].TotalQuantity < rows[j].TotalQuantity
			}
			return rows[i].TotalQuantity > rows[j].TotalQuantity
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// ReportRepository

func dayOf(t time.Time) (string, time.Time) {
	day := t.Format(store.DateLayout)
	date, _ := time.Parse(store.DateLayout, day)
	return day, date
}

func (m *Memory) GetOrCreateInventoryReport(ctx context.Context, defaults *models.InventoryReport) (*models.InventoryReport, bool, error) {
	defer m.lock()()
	day, date := dayOf(defaults.ReportDate)
	for _, r := range m.s().inventory {
		if r.ProductID == defaults.ProductID && r.ReportDate.Format(store.DateLayout) == day {
			return &r, false, nil
		}
	}
	r := *defaults
	r.ID = m.s().id()
	r.ReportDate = date
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	m.s().inventory = append(m.s().inventory, r)
	return &r, true, nil
}

func (m *Memory) UpdateInventoryReport(ctx context.Context, report *models.InventoryReport) error {
	defer m.lock()()
	for i := range m.s().inventory {
		r := &m.s().inventory[i]
		if r.ID == report.ID {
			r.ProductTitle = report.ProductTitle
			r.DaysOnHand = report.DaysOnHand
			r.InventoryOnHand = report.InventoryOnHand
			r.QuantitySold = report.QuantitySold
			r.UpdatedAt = m.now()
			report.UpdatedAt = r.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("inventory report %d: %w", report.ID, store.ErrNotFound)
}

func (m *Memory) ListInventoryReports(ctx context.Context, from, to time.Time) ([]models.InventoryReport, error) {
	defer m.lock()()
	lo, hi := from.Format(store.DateLayout), to.Format(store.DateLayout)
	reports := []models.InventoryReport{}
	for _, r := range m.s().inventory {
		day := r.ReportDate.Format(store.DateLayout)
		if day >= lo && day <= hi {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].ReportDate.Equal(reports[j].ReportDate) {
			return reports[i].ReportDate.After(reports[j].ReportDate)
		}
		return reports[i].ProductTitle < reports[j].ProductTitle
	})
	return reports, nil
}

func (m *Memory) InsertInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error) {
	defer m.lock()()
	existing := map[reportKey]bool{}
	for _, r := range m.s().inventory {
		existing[reportKey{r.ProductID, r.ReportDate.Format(store.DateLayout)}] = true
	}

	var n int64
	for _, r := range reports {
		day, date := dayOf(r.ReportDate)
		key := reportKey{r.ProductID, day}
		if existing[key] {
			continue
		}
		existing[key] = true
		r.ID = m.s().id()
		r.ReportDate = date
		r.CreatedAt = m.now()
		r.UpdatedAt = r.CreatedAt
		m.s().inventory = append(m.s().inventory, r)
		n++
	}
	return n, nil
}

func (m *Memory) UpdateInventoryReports(ctx context.Context, reports []models.InventoryReport) (int64, error) {
	defer m.lock()()
	byID := make(map[int64]models.InventoryReport, len(reports))
	for _, r := range reports {
		byID[r.ID] = r
	}

	var n int64
	for i := range m.s().inventory {
		r := &m.s().inventory[i]
		u, ok := byID[r.ID]
		if !ok {
			continue
		}
		r.ProductTitle = u.ProductTitle
		r.DaysOnHand = u.DaysOnHand
		r.InventoryOnHand = u.InventoryOnHand
		r.QuantitySold = u.QuantitySold
		r.UpdatedAt = m.now()
		n++
	}
	return n, nil
}

func (m *Memory) GetOrCreateSalesReport(ctx context.Context, defaults *models.SalesReport) (*models.SalesReport, bool, error) {
	defer m.lock()()
	day, date := dayOf(defaults.ReportDate)
	for _, r := range m.s().sales {
		if r.ProductID == defaults.ProductID && r.ReportDate.Format(store.DateLayout) == day {
			return &r, false, nil
		}
	}
	r := *defaults
	r.ID = m.s().id()
	r.ReportDate = date
	r.CreatedAt = m.now()
	r.UpdatedAt = r.CreatedAt
	m.s().sales = append(m.s().sales, r)
	return &r, true, nil
}

func (m *Memory) UpdateSalesReport(ctx context.Context, report *models.SalesReport) error {
	defer m.lock()()
	for i := range m.s().sales {
		r := &m.s().sales[i]
		if r.ID == report.ID {
			copySalesFields(r, report)
			r.UpdatedAt = m.now()
			report.UpdatedAt = r.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("sales report %d: %w", report.ID, store.ErrNotFound)
}

func copySalesFields(dst, src *models.SalesReport) {
	dst.ProductTitle = src.ProductTitle
	dst.ProductPrice = src.ProductPrice
	dst.TotalSales = src.TotalSales
	dst.TotalUnitsSold = src.TotalUnitsSold
	dst.NumberOfTransactions = src.NumberOfTransactions
	dst.AverageTransactionValue = src.AverageTransactionValue
}

func (m *Memory) ListSalesReports(ctx context.Context, from, to time.Time) ([]models.SalesReport, error) {
	defer m.lock()()
	lo, hi := from.Format(store.DateLayout), to.Format(store.DateLayout)
	reports := []models.SalesReport{}
	for _, r := range m.s().sales {
		day := r.ReportDate.Format(store.DateLayout)
		if day >= lo && day <= hi {
			reports = append(reports, r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		if !reports[i].ReportDate.Equal(reports[j].ReportDate) {
			return reports[i].ReportDate.After(reports[j].ReportDate)
		}
		return reports[i].ProductTitle < reports[j].ProductTitle
	})
	return reports, nil
}

func (m *Memory) InsertSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error) {
	defer m.lock()()
	existing := map[reportKey]bool{}
	for _, r := range m.s().sales {
		existing[reportKey{r.ProductID, r.ReportDate.Format(store.DateLayout)}] = true
	}

	var n int64
	for _, r := range reports {
		day, date := dayOf(r.ReportDate)
		key := reportKey{r.ProductID, day}
		if existing[key] {
			continue
		}
		existing[key] = true
		r.ID = m.s().id()
		r.ReportDate = date
		r.CreatedAt = m.now()
		r.UpdatedAt = r.CreatedAt
		m.s().sales = append(m.s().sales, r)
		n++
	}
	return n, nil
}

func (m *Memory) UpdateSalesReports(ctx context.Context, reports []models.SalesReport) (int64, error) {
	defer m.lock()()
	byID := make(map[int64]models.SalesReport, len(reports))
	for _, r := range reports {
		byID[r.ID] = r
	}

	var n int64
	for i := range m.s().sales {
		r := &m.s().sales[i]
		u, ok := byID[r.ID]
		if !ok {
			continue
		}
		copySalesFields(r, &u)
		r.UpdatedAt = m.now()
		n++
	}
	return n, nil
}

// MovementRepository

func (m *Memory) CreateMovement(ctx context.Context, mv *models.InventoryMovement) error {
	defer m.lock()()
	if mv.Quantity <= 0 {
		return fmt.Errorf("inventory_movements.quantity > 0: %w", ErrConstraint)
	}
	mv.ID = m.s().id()
	mv.CreatedAt = m.now()
	m.s().movements = append(m.s().movements, *mv)
	return nil
}

func (m *Memory) ListMovements(ctx context.Context, productID int64, limit int) ([]models.InventoryMovement, error) {
	defer m.lock()()
	if limit <= 0 {
		limit = 100
	}
	movements := []models.InventoryMovement{}
	for i := len(m.s().movements) - 1; i >= 0 && len(movements) < limit; i-- {
		mv := m.s().movements[i]
		if productID == 0 || mv.ProductID == productID {
			movements = append(movements, mv)
		}
	}
	return movements, nil
}

// EventRepository

func (m *Memory) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	defer m.lock()()
	_, ok := m.s().events[eventID]
	return ok, nil
}

func (m *Memory) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	defer m.lock()()
	if _, ok := m.s().events[eventID]; !ok {
		m.s().events[eventID] = eventType
	}
	return nil
}
