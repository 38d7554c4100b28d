package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"
)

// CatalogService serves the read side of products and categories
type CatalogService struct {
	repo store.Repository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(repo store.Repository) *CatalogService {
	return &CatalogService{repo: repo}
}

// ListProducts lists active, in-stock products, newest first. An empty
// category slug lists every category.
func (s *CatalogService) ListProducts(ctx context.Context, categorySlug string) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.repo.ListProducts(ctx, store.ProductFilter{
		CategorySlug: strings.TrimSpace(categorySlug),
		OnlyInStock:  true,
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

func (s *CatalogService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("product id %d: %w", id, ErrInvalidInput)
	}
	return s.repo.GetProductByID(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []models.Category{}
	}
	return categories, nil
}

// flexInt accepts a JSON number or a numeric string
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n = json.Number(strings.TrimSpace(s))
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}

// StockCheckItem is one line of a stock pre-check
type StockCheckItem struct {
	ProductID flexInt `json:"productid"`
	Qty       flexInt `json:"productqty"`
}

// CheckInventory verifies that every line of a JSON encoded list of
// {productid, productqty} can be served from stock. Anything that cannot be
// parsed fails the check.
func (s *CatalogService) CheckInventory(ctx context.Context, raw string) error {
	ctx, span := util.StartSpan(ctx, "CatalogService.CheckInventory")
	defer span.End()

	if strings.TrimSpace(raw) == "" {
		raw = "[]"
	}
	var items []StockCheckItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = int64(item.ProductID)
	}
	products, err := s.ProductsByID(ctx, ids)
	if err != nil {
		return util.RecordError(span, err)
	}

	for _, item := range items {
		product, ok := products[int64(item.ProductID)]
		if !ok {
			return fmt.Errorf("product %d: %w", item.ProductID, ErrNotFound)
		}

		if int(item.Qty) > product.Inventory {
			return &InsufficientInventoryError{
				ProductID: product.ID,
				Title:     product.Title,
				Available: product.Inventory,
				Requested: int(item.Qty),
			}
		}
	}
	return nil
}

// ProductsByID loads the given products in one query, keyed by id. Unknown
// ids are absent from the map.
func (s *CatalogService) ProductsByID(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}
