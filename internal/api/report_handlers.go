package api

import (
	"net/http"
	"strconv"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

type backfillRequest struct {
	Kind string `json:"kind"`
}

func (h *Handler) inventoryReports(c *gin.Context) {
	rows, err := h.reports.ListInventoryReports(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []struct{}{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": rows})
}

func (h *Handler) salesReports(c *gin.Context) {
	rows, err := h.reports.ListSalesReports(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		c.JSON(http.StatusOK, gin.H{"reports": []struct{}{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": rows})
}

// backfill runs a report backfill synchronously; an empty body backfills all
func (h *Handler) backfill(c *gin.Context) {
	var req backfillRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body", err)
			return
		}
	}

	kind, err := service.ParseBackfillKind(req.Kind)
	if err != nil {
		writeError(c, err)
		return
	}

	results, err := h.reports.Backfill(c.Request.Context(), kind)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) salesYears(c *gin.Context) {
	years, err := h.reports.SalesYears(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

func (h *Handler) monthlySales(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}
	months, err := h.reports.MonthlySales(c.Request.Context(), year)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "months": months})
}

// productRanking lists the most (default) or least sold products of a year
func (h *Handler) productRanking(c *gin.Context) {
	year, ok := yearParam(c)
	if !ok {
		return
	}
	order := c.DefaultQuery("order", service.RankingMost)
	products, err := h.reports.ProductRanking(c.Request.Context(), year, order)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"year": year, "order": order, "products": products})
}

func yearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid year"})
		return 0, false
	}
	return year, true
}
