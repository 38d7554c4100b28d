package api

import (
	"errors"
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBackfillRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyBasket),
		errors.Is(err, service.ErrInsufficientInventory):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with {error}. Internal failures are logged by the
// request logger and hidden from the client.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	var inv *service.InsufficientInventoryError
	switch {
	case status == http.StatusInternalServerError:
		c.JSON(status, gin.H{"error": "Internal server error"})
	case errors.As(err, &inv):
		c.JSON(status, gin.H{"error": inv.Error()})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}
