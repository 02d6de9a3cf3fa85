// Package tenancy holds the request context that identifies which tenant and
// user issued the current unit of work.
//
// A RequestContext is created once per inbound request by the isolation gate
// and travels only inside a context.Context. There is no package-level state:
// two requests running at the same time can never observe each other's tenant.
package tenancy

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidRequestContext is returned when a bundle lacks a tenant or request id.
	ErrInvalidRequestContext = errors.New("tenancy: request context requires tenant and request ids")
	// ErrContextAlreadyBound is returned when a context already carries a different bundle.
	ErrContextAlreadyBound = errors.New("tenancy: context already bound to another request")
)

// RequestContext is the immutable {tenantId, userId, requestId} bundle. Its
// fields are unexported so a value can only be built by NewRequestContext.
type RequestContext struct {
	tenantID  string
	userID    string
	requestID string
}

// NewRequestContext validates and builds a bundle.
func NewRequestContext(tenantID, userID, requestID string) (RequestContext, error) {
	tenantID = strings.TrimSpace(tenantID)
	requestID = strings.TrimSpace(requestID)
	if tenantID == "" || requestID == "" {
		return RequestContext{}, ErrInvalidRequestContext
	}
	return RequestContext{
		tenantID:  tenantID,
		userID:    strings.TrimSpace(userID),
		requestID: requestID,
	}, nil
}

// TenantID returns the tenant of the request
func (rc RequestContext) TenantID() string { return rc.tenantID }

// UserID returns the calling user
func (rc RequestContext) UserID() string { return rc.userID }

// RequestID returns the request identifier
func (rc RequestContext) RequestID() string { return rc.requestID }

// IsZero reports whether rc was never initialized.
func (rc RequestContext) IsZero() bool { return rc.tenantID == "" }

type contextKey struct{}

// WithRequestContext returns a child context carrying rc. Binding the same
// bundle twice is a no-op; binding a different one fails and returns ctx
// unchanged, so a request's tenant cannot be swapped once established.
func WithRequestContext(ctx context.Context, rc RequestContext) (context.Context, error) {
	if rc.IsZero() {
		return ctx, ErrInvalidRequestContext
	}
	if existing, ok := FromContext(ctx); ok {
		if existing == rc {
			return ctx, nil
		}
		return ctx, ErrContextAlreadyBound
	}
	return context.WithValue(ctx, contextKey{}, rc), nil
}

// FromContext returns the bundle bound to ctx, if any.
func FromContext(ctx context.Context) (RequestContext, bool) {
	if ctx == nil {
		return RequestContext{}, false
	}
	rc, ok := ctx.Value(contextKey{}).(RequestContext)
	if !ok || rc.IsZero() {
		return RequestContext{}, false
	}
	return rc, true
}

// TenantID returns the tenant bound to ctx, or "".
func TenantID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.tenantID
}

// RequestID returns the request id bound to ctx, or "".
func RequestID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.requestID
}

// UserID returns the user bound to ctx, or "".
func UserID(ctx context.Context) string {
	rc, _ := FromContext(ctx)
	return rc.userID
}
