// Package tenancy admits requests into a tenant and re-verifies the caller
// before sensitive operations.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
	"go.uber.org/zap"
)

// Caller is an authenticated principal as asserted by its credential.
type Caller struct {
	UserID   string
	TenantID string
}

// Gate turns an authenticated caller into a RequestContext.
type Gate struct {
	tenants identity.TenantResolver
	users   identity.UserDirectory
	auditor audit.Recorder
	logger  *zap.Logger
	newID   func() string
}

// GateOption is a functional option for configuring the gate
type GateOption func(*Gate)

// WithUserAssociation cross-checks the credential's tenant against the
// persisted user record on every admission.
func WithUserAssociation(users identity.UserDirectory) GateOption {
	return func(g *Gate) {
		g.users = users
	}
}

// WithRequestIDs replaces the request id generator
func WithRequestIDs(fn func() string) GateOption {
	return func(g *Gate) {
		g.newID = fn
	}
}

// NewGate creates a new Gate
func NewGate(tenants identity.TenantResolver, auditor audit.Recorder, logger *zap.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		tenants: tenants,
		auditor: auditor,
		logger:  logger.Named("gate"),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit validates caller against the tenant directory and the optional
// routing hint (a subdomain), then binds a fresh RequestContext into ctx.
//
// Every failure is terminal. Routing and association mismatches are audited
// before the error is returned.
func (g *Gate) Admit(ctx context.Context, caller Caller, hint string) (context.Context, tenancy.RequestContext, error) {
	requestID := g.newID()
	tenantID := strings.TrimSpace(caller.TenantID)
	userID := strings.TrimSpace(caller.UserID)

	if tenantID == "" {
		return ctx, tenancy.RequestContext{}, g.reject(shared.ErrNoTenantAssociation, "", userID, requestID, "credential carries no tenant")
	}

	if g.users != nil {
		if err := g.checkAssociation(ctx, tenantID, userID, requestID); err != nil {
			return ctx, tenancy.RequestContext{}, err
		}
	}

	tenant, err := g.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return ctx, tenancy.RequestContext{}, g.reject(err, tenantID, userID, requestID, "tenant not resolvable")
	}

	if hint = strings.TrimSpace(hint); hint != "" {
		hinted, err := g.tenants.ResolveSubdomain(ctx, hint)
		switch {
		case errors.Is(err, shared.ErrTenantDirectoryUnavailable):
			return ctx, tenancy.RequestContext{}, g.reject(err, tenantID, userID, requestID, "routing hint not resolvable")
		case err != nil || hinted.ID != tenant.ID:
			reason := fmt.Sprintf("routing hint %q does not belong to the caller's tenant", hint)
			g.audit(ctx, audit.ActionRoutingMismatch, tenantID, userID, requestID, reason)
			return ctx, tenancy.RequestContext{}, g.reject(shared.ErrTenantRoutingMismatch, tenantID, userID, requestID, reason)
		}
	}

	rc, err := tenancy.NewRequestContext(tenant.ID, userID, requestID)
	if err != nil {
		return ctx, tenancy.RequestContext{}, err
	}
	bound, err := tenancy.WithRequestContext(ctx, rc)
	if err != nil {
		return ctx, tenancy.RequestContext{}, err
	}

	g.logger.Debug("Request admitted",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("user_id", rc.UserID()),
		zap.String("request_id", rc.RequestID()),
	)
	return bound, rc, nil
}

func (g *Gate) checkAssociation(ctx context.Context, tenantID, userID, requestID string) error {
	if userID == "" {
		return g.reject(shared.ErrNoTenantAssociation, tenantID, userID, requestID, "credential carries no user")
	}
	user, err := g.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		reason := "user record not found"
		g.audit(ctx, audit.ActionAssociationMismatch, tenantID, userID, requestID, reason)
		return g.reject(shared.ErrNoTenantAssociation, tenantID, userID, requestID, reason)
	case err != nil:
		return g.reject(fmt.Errorf("%w: user lookup: %v", shared.ErrTenantDirectoryUnavailable, err), tenantID, userID, requestID, "user lookup failed")
	case !user.BelongsTo(tenantID):
		reason := "credential tenant disagrees with the user record"
		g.audit(ctx, audit.ActionAssociationMismatch, tenantID, userID, requestID, reason)
		return g.reject(shared.ErrNoTenantAssociation, tenantID, userID, requestID, reason)
	}
	return nil
}

func (g *Gate) audit(ctx context.Context, action audit.Action, tenantID, userID, requestID, reason string) {
	if g.auditor == nil {
		return
	}
	g.auditor.Record(ctx, audit.Denied(action, tenantID, userID, requestID, reason))
}

// reject logs the distinct failure kind for operators and returns err.
func (g *Gate) reject(err error, tenantID, userID, requestID, reason string) error {
	fields := []zap.Field{
		zap.String("code", shared.IsolationCode(err)),
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.String("request_id", requestID),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if errors.Is(err, shared.ErrTenantDirectoryUnavailable) {
		g.logger.Error("Request rejected", fields...)
	} else {
		g.logger.Warn("Request rejected", fields...)
	}
	return err
}
