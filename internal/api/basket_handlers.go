package api

import (
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/basket"
	"storefront/internal/service"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
)

// basketItemRequest is accepted as JSON or as a form post
type basketItemRequest struct {
	ProductID int64 `json:"productid" form:"productid" binding:"required"`
	Qty       int   `json:"productqty" form:"productqty"`
}

type basketCheckRequest struct {
	Items string `json:"items" form:"items"`
}

type basketLine struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	Qty       int    `json:"qty"`
	Price     string `json:"price"`
	Subtotal  string `json:"subtotal"`
}

// loadBasket fetches the session basket or answers with an error
func (h *Handler) loadBasket(c *gin.Context, op string) (*basket.Basket, bool) {
	b, err := h.baskets.Load(c.Request.Context(), sessionID(c))
	if err != nil {
		util.BasketOperationsTotal.WithLabelValues(op, "error").Inc()
		writeError(c, err)
		return nil, false
	}
	return b, true
}

// saveBasket persists the basket before the response is written
func (h *Handler) saveBasket(c *gin.Context, op string, b *basket.Basket) bool {
	if err := h.baskets.Save(c.Request.Context(), sessionID(c), b); err != nil {
		util.BasketOperationsTotal.WithLabelValues(op, "error").Inc()
		writeError(c, err)
		return false
	}
	util.BasketOperationsTotal.WithLabelValues(op, "ok").Inc()
	return true
}

func (h *Handler) getBasket(c *gin.Context) {
	b, ok := h.loadBasket(c, "view")
	if !ok {
		return
	}

	products, err := h.catalog.ProductsByID(c.Request.Context(), b.ProductIDs())
	if err != nil {
		util.BasketOperationsTotal.WithLabelValues("view", "error").Inc()
		writeError(c, err)
		return
	}

	items := b.Items()
	lines := make([]basketLine, len(items))
	for i, e := range items {
		lines[i] = basketLine{
			ProductID: e.ProductID,
			Title:     products[e.ProductID].Title,
			Qty:       e.Qty,
			Price:     e.Price.StringFixed(2),
			Subtotal:  e.Subtotal().StringFixed(2),
		}
	}
	util.BasketOperationsTotal.WithLabelValues("view", "ok").Inc()

	c.JSON(http.StatusOK, gin.H{
		"items":    lines,
		"qty":      b.Len(),
		"subtotal": b.TotalPrice().StringFixed(2),
	})
}

// addToBasket adds units of a product. The quantity already in the basket
// counts against the product's inventory.
func (h *Handler) addToBasket(c *gin.Context) {
	var req basketItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if req.Qty <= 0 {
		badRequest(c, "Quantity must be positive", nil)
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		util.BasketOperationsTotal.WithLabelValues("add", "rejected").Inc()
		writeError(c, err)
		return
	}

	b, ok := h.loadBasket(c, "add")
	if !ok {
		return
	}

	if !product.HasInventory(b.Quantity(product.ID) + req.Qty) {
		util.BasketOperationsTotal.WithLabelValues("add", "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Insufficient Inventory for %s. Available: %d", product.Title, product.Inventory),
		})
		return
	}

	b.Add(product, req.Qty)
	if !h.saveBasket(c, "add", b) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"qty": b.Len()})
}

// updateBasket sets the quantity of a basket entry; qty <= 0 removes it
func (h *Handler) updateBasket(c *gin.Context) {
	var req basketItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	b, ok := h.loadBasket(c, "update")
	if !ok {
		return
	}

	if req.Qty > 0 && b.Quantity(req.ProductID) > 0 {
		product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			writeError(c, err)
			return
		}
		if product != nil && !product.HasInventory(req.Qty) {
			util.BasketOperationsTotal.WithLabelValues("update", "rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("Insufficient Inventory for %s. Available: %d", product.Title, product.Inventory),
			})
			return
		}
	}

	b.Update(req.ProductID, req.Qty)
	if !h.saveBasket(c, "update", b) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qty":      b.Len(),
		"subtotal": b.TotalPrice().StringFixed(2),
	})
}

func (h *Handler) deleteFromBasket(c *gin.Context) {
	var req basketItemRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	b, ok := h.loadBasket(c, "delete")
	if !ok {
		return
	}

	b.Delete(req.ProductID)
	if !h.saveBasket(c, "delete", b) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"qty":      b.Len(),
		"subtotal": b.TotalPrice().StringFixed(2),
	})
}

// checkBasket validates a client-side list of items against current stock.
// The answer is always 200; status tells the client whether to proceed.
func (h *Handler) checkBasket(c *gin.Context) {
	var req basketCheckRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Invalid data."})
		return
	}

	err := h.catalog.CheckInventory(c.Request.Context(), req.Items)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	var inv *service.InsufficientInventoryError
	var msg string
	switch {
	case errors.As(err, &inv):
		msg = inv.Error()
	case errors.Is(err, service.ErrValidation):
		msg = "Invalid data."
	case errors.Is(err, service.ErrNotFound):
		msg = err.Error()
	default:
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "error", "message": msg})
}
