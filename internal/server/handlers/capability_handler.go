package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/meattrace/internal/domain/models"
	"github.com/mamadbah2/meattrace/internal/service/authz"
)

// CapabilityHandler provisions the authorization table. Granting requires
// admin on the target scope; the first capability of a scope is seeded
// out-of-band.
type CapabilityHandler struct {
	svc    *authz.Service
	logger *zap.Logger
}

// NewCapabilityHandler constructs the HTTP handler adapter.
func NewCapabilityHandler(svc *authz.Service, logger *zap.Logger) *CapabilityHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CapabilityHandler{svc: svc, logger: logger}
}

type grantRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	ScopeKind  string `json:"scope_kind" binding:"required"`
	ScopeID    string `json:"scope_id" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

// Grant adds a capability row for a user in a scope.
func (h *CapabilityHandler) Grant(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	kind := models.ScopeKind(req.ScopeKind)
	if err := h.svc.Authorize(c.Request.Context(), actorID(c), kind, req.ScopeID, models.PermissionAdmin); err != nil {
		writeError(c, err)
		return
	}

	err := h.svc.Grant(c.Request.Context(), models.Capability{
		UserID:     req.UserID,
		ScopeKind:  kind,
		ScopeID:    req.ScopeID,
		Role:       models.Role(req.Role),
		Permission: models.Permission(req.Permission),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}
