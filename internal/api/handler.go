package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/basket"
	"storefront/internal/service"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	catalog   *service.CatalogService
	orders    *service.OrderService
	reports   *service.ReportService
	inventory *service.InventoryService
	baskets   *basket.Manager

	sessions   sessions.Store
	cookieName string
	checks     map[string]Pinger
}

// Services bundles what the handlers call into
type Services struct {
	Catalog   *service.CatalogService
	Orders    *service.OrderService
	Reports   *service.ReportService
	Inventory *service.InventoryService
	Baskets   *basket.Manager
}

// NewHandler creates a new HTTP handler. checks are pinged by /ready.
func NewHandler(svc Services, st sessions.Store, cookieName string, checks map[string]Pinger) *Handler {
	return &Handler{
		catalog:    svc.Catalog,
		orders:     svc.Orders,
		reports:    svc.Reports,
		inventory:  svc.Inventory,
		baskets:    svc.Baskets,
		sessions:   st,
		cookieName: cookieName,
		checks:     checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", h.listCategories)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:slug", h.getProduct)

		withSession := v1.Group("", sessionMiddleware(h.sessions, h.cookieName))
		withSession.GET("/basket", h.getBasket)
		withSession.POST("/basket/add", h.addToBasket)
		withSession.POST("/basket/update", h.updateBasket)
		withSession.POST("/basket/delete", h.deleteFromBasket)
		withSession.POST("/basket/check", h.checkBasket)
		withSession.POST("/orders", h.createOrder)

		v1.GET("/orders/:number", h.getOrder)
		v1.POST("/orders/:number/confirm-payment", h.confirmPayment)
		v1.GET("/users/:id/orders", h.listUserOrders)
		v1.GET("/users/:id/sales", h.userSales)
		v1.GET("/customers", h.oneTimeCustomers)

		v1.GET("/reports/inventory", h.inventoryReports)
		v1.GET("/reports/sales", h.salesReports)
		v1.POST("/reports/backfill", h.backfill)

		v1.GET("/stats/years", h.salesYears)
		v1.GET("/stats/sales/:year", h.monthlySales)
		v1.GET("/stats/products/:year", h.productRanking)

		v1.POST("/inventory/movements", h.recordMovement)
		v1.GET("/inventory/movements", h.listMovements)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), c.Query("category"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// createOrder commits the session basket as an order
func (h *Handler) createOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	ctx := c.Request.Context()
	sid := sessionID(c)
	b, err := h.baskets.Load(ctx, sid)
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.orders.PlaceOrder(ctx, req, b)
	if err != nil {
		writeError(c, err)
		return
	}

	// the order exists; a failed save only leaves a stale basket behind
	if err := h.baskets.Save(ctx, sid, b); err != nil {
		_ = c.Error(err)
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// getOrder handles get order by number
func (h *Handler) getOrder(c *gin.Context) {
	details, err := h.orders.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) confirmPayment(c *gin.Context) {
	number := c.Param("number")
	if err := h.orders.ConfirmPayment(c.Request.Context(), number); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_number": number, "billing_status": true})
}

func (h *Handler) listUserOrders(c *gin.Context) {
	userID, ok := pathInt(c, "id")
	if !ok {
		return
	}
	orders, err := h.orders.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// userSales sums billed orders, optionally within ?from=&to= (YYYY-MM-DD)
func (h *Handler) oneTimeCustomers(c *gin.Context) {
	orders, err := h.orders.ListOneTimeCustomers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": orders})
}

func (h *Handler) userSales(c *gin.Context) {
	userID, ok := pathInt(c, "id")
	if !ok {
		return
	}

	var from, to *time.Time
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.ParseInLocation(store.DateLayout, raw, h.reports.Location())
		if err != nil {
			badRequest(c, "Invalid "+q.name+" date", err)
			return
		}
		*q.dst = &t
	}

	summary, err := h.orders.SalesSummary(c.Request.Context(), userID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) recordMovement(c *gin.Context) {
	var req service.RecordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	movement, err := h.inventory.RecordMovement(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func (h *Handler) listMovements(c *gin.Context) {
	var productID int64
	if raw := c.Query("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "Invalid product_id", err)
			return
		}
		productID = id
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		badRequest(c, "Invalid limit", err)
		return
	}

	movements, err := h.inventory.ListMovements(c.Request.Context(), productID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements})
}

func pathInt(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		badRequest(c, "Invalid "+name, err)
		return 0, false
	}
	return v, true
}
