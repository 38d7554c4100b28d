package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// InventoryService applies manual stock adjustments and keeps their audit trail
type InventoryService struct {
	repo    store.Repository
	reports *ReportService
	logger  *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(repo store.Repository, reports *ReportService) *InventoryService {
	return &InventoryService{
		repo:    repo,
		reports: reports,
		logger:  util.Component("inventory"),
	}
}

// RecordMovementRequest is a manual stock adjustment
type RecordMovementRequest struct {
	ProductID    int64  `json:"product_id" binding:"required"`
	MovementType string `json:"movement_type" binding:"required"`
	Quantity     int    `json:"quantity" binding:"required"`
	Reference    string `json:"reference"`
	Note         string `json:"note"`
}

// RecordMovement adds (IN) or removes (OUT) stock. The product row is
// locked, the movement recorded and today's inventory report refreshed in a
// single transaction.
func (s *InventoryService) RecordMovement(ctx context.Context, req RecordMovementRequest) (*models.InventoryMovement, error) {
	ctx, span := util.StartSpan(ctx, "InventoryService.RecordMovement",
		attribute.Int64("product_id", req.ProductID),
		attribute.String("movement_type", req.MovementType))
	defer span.End()

	req.MovementType = strings.ToUpper(strings.TrimSpace(req.MovementType))
	if req.MovementType != models.MovementIn && req.MovementType != models.MovementOut {
		return nil, fmt.Errorf("movement type must be IN or OUT: %w", ErrInvalidInput)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}

	var movement *models.InventoryMovement
	err := s.repo.WithTx(ctx, func(tx store.Repository) error {
		product, err := tx.GetProductForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}

		before := product.Inventory
		after := before + req.Quantity
		if req.MovementType == models.MovementOut {
			after = before - req.Quantity
			if after < 0 {
				return &InsufficientInventoryError{
					ProductID: product.ID,
					Title:     product.Title,
					Available: before,
					Requested: req.Quantity,
				}
			}
		}

		if err := tx.SetInventory(ctx, product.ID, after); err != nil {
			return fmt.Errorf("failed to set inventory: %w", err)
		}
		product.Inventory = after

		movement = &models.InventoryMovement{
			ProductID:      product.ID,
			MovementType:   req.MovementType,
			Quantity:       req.Quantity,
			QuantityBefore: before,
			QuantityAfter:  after,
			Reference:      req.Reference,
			Note:           req.Note,
		}
		if err := tx.CreateMovement(ctx, movement); err != nil {
			return fmt.Errorf("failed to record movement: %w", err)
		}

		_, err = s.reports.RecomputeInventoryReport(ctx, tx, product, s.reports.now())
		return err
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	util.InventoryMovementsTotal.WithLabelValues(movement.MovementType).Inc()
	s.logger.Info("Inventory movement recorded",
		zap.Int64("product_id", movement.ProductID),
		zap.String("type", movement.MovementType),
		zap.Int("quantity", movement.Quantity),
		zap.Int("before", movement.QuantityBefore),
		zap.Int("after", movement.QuantityAfter))
	return movement, nil
}

// ListMovements lists the latest movements; productID 0 lists all products
func (s *InventoryService) ListMovements(ctx context.Context, productID int64, limit int) ([]models.InventoryMovement, error) {
	if productID < 0 {
		return nil, fmt.Errorf("product id %d: %w", productID, ErrInvalidInput)
	}
	movements, err := s.repo.ListMovements(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	if movements == nil {
		movements = []models.InventoryMovement{}
	}
	return movements, nil
}
