package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
	"go.uber.org/zap"
)

// Verification proves that the caller of one request was re-verified
// against the live user record. Only Verifier.Verify can mint one.
type Verification struct {
	tenantID  string
	userID    string
	requestID string
	auditor   audit.Recorder
}

// Check reports whether v was minted for the request bound to ctx. A
// rejected proof is audited against the request that presented it.
func (v Verification) Check(ctx context.Context) error {
	rc, ok := tenancy.FromContext(ctx)
	if !ok {
		return shared.ErrNoActiveContext
	}
	if v.requestID == "" || v.requestID != rc.RequestID() || v.tenantID != rc.TenantID() || v.userID != rc.UserID() {
		const reason = "verification belongs to another request"
		if v.auditor != nil {
			v.auditor.Record(ctx, audit.Denied(audit.ActionReverificationFailed, rc.TenantID(), rc.UserID(), rc.RequestID(), reason))
		}
		return fmt.Errorf("%w: %s", shared.ErrTenantReverificationFailed, reason)
	}
	return nil
}

// TenantID returns the tenant the proof was minted for
func (v Verification) TenantID() string { return v.tenantID }

// Verifier re-reads the caller's user record right before a sensitive
// operation. Failures are never retried.
type Verifier struct {
	users   identity.UserDirectory
	auditor audit.Recorder
	logger  *zap.Logger
}

// NewVerifier creates a new Verifier. users must not be cached.
func NewVerifier(users identity.UserDirectory, auditor audit.Recorder, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{users: users, auditor: auditor, logger: logger.Named("verifier")}
}

// Verify confirms that the user bound to ctx still belongs to the tenant
// of the request.
func (v *Verifier) Verify(ctx context.Context) (Verification, error) {
	rc, ok := tenancy.FromContext(ctx)
	if !ok {
		v.logger.Error("Verification attempted without a request context")
		return Verification{}, shared.ErrNoActiveContext
	}
	if rc.UserID() == "" {
		return Verification{}, v.fail(ctx, rc, "request has no user")
	}

	user, err := v.users.FindByID(ctx, rc.UserID())
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return Verification{}, v.fail(ctx, rc, "user no longer exists")
	case err != nil:
		v.logger.Error("User lookup failed during verification",
			zap.String("tenant_id", rc.TenantID()),
			zap.String("user_id", rc.UserID()),
			zap.String("request_id", rc.RequestID()),
			zap.Error(err),
		)
		return Verification{}, fmt.Errorf("%w: user lookup: %v", shared.ErrTenantDirectoryUnavailable, err)
	case !user.IsActive():
		return Verification{}, v.fail(ctx, rc, "user is no longer active")
	case user.TenantID != rc.TenantID():
		return Verification{}, v.fail(ctx, rc, "user now belongs to another tenant")
	}

	return Verification{
		tenantID:  rc.TenantID(),
		userID:    rc.UserID(),
		requestID: rc.RequestID(),
		auditor:   v.auditor,
	}, nil
}

func (v *Verifier) fail(ctx context.Context, rc tenancy.RequestContext, reason string) error {
	if v.auditor != nil {
		v.auditor.Record(ctx, audit.Denied(audit.ActionReverificationFailed, rc.TenantID(), rc.UserID(), rc.RequestID(), reason))
	}
	v.logger.Warn("Tenant re-verification failed",
		zap.String("tenant_id", rc.TenantID()),
		zap.String("user_id", rc.UserID()),
		zap.String("request_id", rc.RequestID()),
		zap.String("reason", reason),
	)
	return fmt.Errorf("%w: %s", shared.ErrTenantReverificationFailed, reason)
}
