package httpapi

import (
	"errors"
	"net/http"

	"security-guard/internal/apperr"
	"security-guard/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError is the one place errors become HTTP responses. Bodies never carry
// internal detail; validation and conflict messages are meant for the caller.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrAuthenticationFailed):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case errors.Is(err, apperr.ErrTokenInvalid):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	case errors.Is(err, apperr.ErrAlreadyExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, apperr.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrUnavailable):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		logger.FromGin(c).Error("unhandled error", "error", err)
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
