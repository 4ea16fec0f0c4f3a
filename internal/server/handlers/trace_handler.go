package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/service/projection"
)

// TraceHandler serves the consumer-facing product trace lookup. The lookup
// is public: anyone holding a product id may read its provenance.
type TraceHandler struct {
	projector *projection.Projector
	logger    *zap.Logger
}

// NewTraceHandler constructs the HTTP handler adapter.
func NewTraceHandler(projector *projection.Projector, logger *zap.Logger) *TraceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraceHandler{projector: projector, logger: logger}
}

// Trace returns the full provenance record for a product. While a rebuild
// is pending the endpoint answers 202 so callers know to retry.
func (h *TraceHandler) Trace(c *gin.Context) {
	record, err := h.projector.Trace(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}
