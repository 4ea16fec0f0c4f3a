package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/service/lifecycle"
	"github.com/mamadbah2/meattrace/internal/service/rejection"
)

// actorHeader carries the authenticated actor identity set by the edge
// proxy. Authenticating tokens is out of scope here.
const actorHeader = "X-Actor-ID"

func actorID(c *gin.Context) string {
	return c.GetHeader(actorHeader)
}

// writeError maps a service error onto the HTTP status the API contract
// promises.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrDuplicateAppeal),
		errors.Is(err, models.ErrVersionConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrWeightConservation),
		errors.Is(err, models.ErrPartialReceiptExceedsTransferred):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrProjectionPending):
		status = http.StatusAccepted
	case errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, rejection.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
