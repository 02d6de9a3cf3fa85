package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
)

// AuditQuerier reads the audit trail
type AuditQuerier interface {
	Query(ctx context.Context, q audit.Query) ([]audit.Entry, error)
}

// AuditListRequest holds the audit query parameters
type AuditListRequest struct {
	UserID string `form:"user_id" binding:"omitempty,max=100"`
	Action string `form:"action" binding:"omitempty,max=100"`
	From   string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To     string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// AuditHandler exposes the audit entries of the caller's tenant
type AuditHandler struct {
	BaseHandler
	trail AuditQuerier
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(trail AuditQuerier) *AuditHandler {
	return &AuditHandler{trail: trail}
}

// List handles GET /audit. The tenant filter always comes from the request
// context, never from the query string.
func (h *AuditHandler) List(c *gin.Context) {
	var req AuditListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	rc, ok := tenancy.FromContext(ctx)
	if !ok {
		h.HandleError(c, shared.ErrNoActiveContext)
		return
	}

	q := audit.Query{
		TenantID: rc.TenantID(),
		UserID:   req.UserID,
		Action:   audit.Action(req.Action),
		Limit:    req.Limit,
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	// validated by the binding above
	if req.From != "" {
		q.From, _ = time.Parse(time.RFC3339, req.From)
	}
	if req.To != "" {
		q.To, _ = time.Parse(time.RFC3339, req.To)
	}

	entries, err := h.trail.Query(ctx, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	h.Success(c, entries)
}
