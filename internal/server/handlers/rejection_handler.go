package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/service/rejection"
)

// RejectionHandler exposes the rejection and appeal workflow over HTTP.
type RejectionHandler struct {
	svc    *rejection.Service
	logger *zap.Logger
}

// NewRejectionHandler constructs the HTTP handler adapter.
func NewRejectionHandler(svc *rejection.Service, logger *zap.Logger) *RejectionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RejectionHandler{svc: svc, logger: logger}
}

type rejectRequest struct {
	UnitKind       string `json:"unit_kind" binding:"required"`
	UnitID         string `json:"unit_id" binding:"required"`
	Category       string `json:"category" binding:"required"`
	SpecificReason string `json:"specific_reason" binding:"required"`
	Notes          string `json:"notes"`
	RejectingScope string `json:"rejecting_scope" binding:"required"`
	RejectingUnit  string `json:"rejecting_unit" binding:"required"`
}

// Reject opens a rejection against a unit.
func (h *RejectionHandler) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	r, err := h.svc.Reject(c.Request.Context(), actorID(c), rejection.RejectInput{
		UnitKind:       models.UnitKind(req.UnitKind),
		UnitID:         req.UnitID,
		Category:       models.RejectionCategory(req.Category),
		SpecificReason: req.SpecificReason,
		Notes:          req.Notes,
		RejectingScope: models.ScopeKind(req.RejectingScope),
		RejectingUnit:  req.RejectingUnit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ConfirmRejection finalizes a pending review into a standing rejection.
func (h *RejectionHandler) ConfirmRejection(c *gin.Context) {
	if err := h.svc.ConfirmRejection(c.Request.Context(), actorID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

type fileAppealRequest struct {
	Notes string `json:"notes"`
}

// FileAppeal opens a farmer appeal against a rejection.
func (h *RejectionHandler) FileAppeal(c *gin.Context) {
	var req fileAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appeal, err := h.svc.FileAppeal(c.Request.Context(), actorID(c), c.Param("id"), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appeal)
}

type resolveAppealRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes"`
}

// ResolveAppeal decides a pending appeal.
func (h *RejectionHandler) ResolveAppeal(c *gin.Context) {
	var req resolveAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	appeal, err := h.svc.ResolveAppeal(c.Request.Context(), actorID(c), c.Param("id"), req.Approve, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appeal)
}

// ListRejections returns a unit's rejection history.
func (h *RejectionHandler) ListRejections(c *gin.Context) {
	rejections, err := h.svc.ListRejections(c.Request.Context(), actorID(c),
		models.UnitKind(c.Param("kind")), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rejections)
}
