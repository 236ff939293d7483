package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"swapstyle-service/internal/errs"
)

// writeError maps the core error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var (
		authErr       *errs.AuthError
		validationErr *errs.ValidationError
		notFoundErr   *errs.NotFoundError
		stateErr      *errs.InvalidStateError
		uploadErr     *errs.UploadError
		locationErr   *errs.LocationUnavailableError
	)
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &locationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &uploadErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
