package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"order-ingestion-service/internal/clients"
	"order-ingestion-service/internal/models"
	"order-ingestion-service/internal/repository"
	"order-ingestion-service/internal/services"
	"order-ingestion-service/internal/tabular"
)

// statusFor maps the pipeline error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var (
		cfgErr    *clients.ConfigurationError
		authErr   *clients.AuthorizationError
		rateErr   *clients.RateLimitError
		apiErr    *clients.APIError
		windowErr *services.WindowError
		sizeErr   *http.MaxBytesError
	)

	switch {
	case tabular.IsParseError(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.As(err, &windowErr):
		return http.StatusBadRequest
	case errors.As(err, &sizeErr):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &cfgErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &authErr):
		return http.StatusBadGateway
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrImportBusy):
		return http.StatusConflict
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, repository.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)

	var rateErr *clients.RateLimitError
	if errors.As(err, &rateErr) && rateErr.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
