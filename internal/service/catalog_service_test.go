package service

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProductsHidesUnavailable(t *testing.T) {
	f := newFixture(t, true)
	kitchen := f.repo.AddCategory(models.Category{Name: "Kitchen", Slug: "kitchen"})
	f.repo.AddProduct(models.Product{Title: "mug", Slug: "mug", CategoryID: &kitchen.ID, Price: decimal.NewFromInt(3), IsActive: true, InStock: true})
	f.repo.AddProduct(models.Product{Title: "pan", Slug: "pan", CategoryID: &kitchen.ID, Price: decimal.NewFromInt(30), IsActive: true})
	f.repo.AddProduct(models.Product{Title: "pen", Slug: "pen", Price: decimal.NewFromInt(1), IsActive: true, InStock: true})

	catalog := NewCatalogService(f.repo)
	ctx := context.Background()

	all, err := catalog.ListProducts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inKitchen, err := catalog.ListProducts(ctx, "kitchen")
	require.NoError(t, err)
	require.Len(t, inKitchen, 1)
	assert.Equal(t, "mug", inKitchen[0].Title)

	none, err := catalog.ListProducts(ctx, "garden")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = catalog.GetProductBySlug(ctx, "pan")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = catalog.GetProduct(ctx, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCheckInventory(t *testing.T) {
	f := newFixture(t, true)
	mug := f.product("mug", "3.00", 4)
	catalog := NewCatalogService(f.repo)
	ctx := context.Background()

	assert.NoError(t, catalog.CheckInventory(ctx, `[{"productid": 1, "productqty": 4}]`))
	assert.NoError(t, catalog.CheckInventory(ctx, `[{"productid": "1", "productqty": "2"}]`))
	assert.NoError(t, catalog.CheckInventory(ctx, ""))

	err := catalog.CheckInventory(ctx, `[{"productid": 1, "productqty": 5}]`)
	var inv *InsufficientInventoryError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, mug.ID, inv.ProductID)
	assert.Equal(t, "Only 4 units of 'mug' available in stock.", err.Error())

	for _, raw := range []string{`{`, `[{"productid": "one"}]`, `[{"productid": 1.5, "productqty": 1}]`, `"[]"`} {
		assert.ErrorIs(t, catalog.CheckInventory(ctx, raw), ErrValidation, raw)
	}

	assert.ErrorIs(t, catalog.CheckInventory(ctx, `[{"productid": 9, "productqty": 1}]`), ErrNotFound)

	byID, err := catalog.ProductsByID(ctx, []int64{mug.ID, 9})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "mug", byID[mug.ID].Title)
}

func TestRecordMovement(t *testing.T) {
	f := newFixture(t, true)
	mug := f.product("mug", "3.00", 4)
	inventory := NewInventoryService(f.repo, f.reports)
	ctx := context.Background()

	mv, err := inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: mug.ID, MovementType: " in ", Quantity: 6, Reference: "PO-7"})
	require.NoError(t, err)
	assert.Equal(t, models.MovementIn, mv.MovementType)
	assert.Equal(t, 4, mv.QuantityBefore)
	assert.Equal(t, 10, mv.QuantityAfter)
	assert.Equal(t, 10, f.repo.Product(mug.ID).Inventory)

	rows := f.repo.InventoryReports()
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0].InventoryOnHand)

	_, err = inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: mug.ID, MovementType: "OUT", Quantity: 11})
	assert.ErrorIs(t, err, ErrInsufficientInventory)
	assert.Equal(t, 10, f.repo.Product(mug.ID).Inventory)

	_, err = inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: mug.ID, MovementType: "OUT", Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, f.repo.Product(mug.ID).Inventory)

	_, err = inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: mug.ID, MovementType: "SALE", Quantity: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: mug.ID, MovementType: "IN", Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = inventory.RecordMovement(ctx, RecordMovementRequest{ProductID: 99, MovementType: "IN", Quantity: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	movements, err := inventory.ListMovements(ctx, mug.ID, 0)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementOut, movements[0].MovementType)

	_, err = inventory.ListMovements(ctx, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHandlePaymentConfirmedIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	f.repo.AddOrder(models.Order{OrderNumber: "P-1", UserID: 5, TotalPaid: decimal.NewFromInt(12)})
	payments := NewPaymentService(f.repo, f.orders)
	ctx := context.Background()

	event := &models.PaymentConfirmedEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-1", EventType: models.EventTypePaymentConfirmed},
		OrderNumber: "P-1",
		Amount:      decimal.NewFromInt(12),
	}
	require.NoError(t, payments.HandlePaymentConfirmed(ctx, event))
	require.NoError(t, payments.HandlePaymentConfirmed(ctx, event))
	assert.True(t, f.repo.Orders()[0].BillingStatus)

	processed, err := f.repo.IsEventProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, processed)

	unknown := &models.PaymentConfirmedEvent{
		BaseEvent:   models.BaseEvent{EventID: "evt-2", EventType: models.EventTypePaymentConfirmed},
		OrderNumber: "P-404",
	}
	assert.NoError(t, payments.HandlePaymentConfirmed(ctx, unknown))

	assert.ErrorIs(t, payments.HandlePaymentConfirmed(ctx, &models.PaymentConfirmedEvent{OrderNumber: "P-1"}), ErrInvalidInput)
}
