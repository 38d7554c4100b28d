package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.ext, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &product, nil
}

// GetProductBySlug retrieves an active, in-stock product by slug
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.ext, &product,
		"SELECT * FROM products WHERE slug = $1 AND in_stock AND is_active ORDER BY id LIMIT 1", slug)
	if err != nil {
		return nil, notFound(err, "product", slug)
	}
	return &product, nil
}

// GetProductForUpdate retrieves a product and locks its row (FOR UPDATE lock)
func (s *Store) GetProductForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.ext, &product, "SELECT * FROM products WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, err
	}
	query = s.ext.Rebind(query)

	var products []models.Product
	err = sqlx.SelectContext(ctx, s.ext, &products, query, args...)
	return products, err
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := sqlx.SelectContext(ctx, s.ext, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// ListProducts retrieves active products for the storefront, newest first
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	query := `
		SELECT p.* FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active
		  AND ($1 = '' OR c.slug = $1)
		  AND (NOT $2 OR p.in_stock)
		ORDER BY p.created_at DESC, p.id DESC`

	var products []models.Product
	err := sqlx.SelectContext(ctx, s.ext, &products, query, f.CategorySlug, f.OnlyInStock)
	return products, err
}

// SetInventory overwrites the stock level of a product
func (s *Store) SetInventory(ctx context.Context, productID int64, inventory int) error {
	res, err := s.ext.ExecContext(ctx,
		"UPDATE products SET inventory = $1, updated_at = NOW() WHERE id = $2",
		inventory, productID)
	if err != nil {
		return fmt.Errorf("failed to update inventory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// ListCategories retrieves all categories by name
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := sqlx.SelectContext(ctx, s.ext, &categories, "SELECT * FROM categories ORDER BY name")
	return categories, err
}
