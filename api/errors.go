package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/velmostra/stagegate/internal/domain"
)

// respondError maps domain sentinels to HTTP status codes.
func respondError(c *gin.Context, err error) {
	c.JSON(statusFromError(err), gin.H{"error": err.Error()})
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDiscountDisabled),
		errors.Is(err, domain.ErrDiscountNotActive),
		errors.Is(err, domain.ErrDiscountUsed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSoldOut),
		errors.Is(err, domain.ErrEventInactive),
		errors.Is(err, domain.ErrEventPast),
		errors.Is(err, domain.ErrAlreadyTerminal),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrCheckoutInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
