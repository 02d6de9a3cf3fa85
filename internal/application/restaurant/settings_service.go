package restaurant

import (
	"context"

	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	domaintenancy "github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/infrastructure/logger"
	"github.com/mise/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TenantInvalidator drops cached copies of a tenant
type TenantInvalidator interface {
	Invalidate(tenantID string)
}

// SettingsService reads and replaces the settings of the caller's tenant
type SettingsService struct {
	tenants   identity.TenantResolver
	directory identity.TenantDirectory
	cache     TenantInvalidator
	auditor   audit.Recorder
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(tenants identity.TenantResolver, directory identity.TenantDirectory, cache TenantInvalidator, auditor audit.Recorder) *SettingsService {
	return &SettingsService{tenants: tenants, directory: directory, cache: cache, auditor: auditor}
}

// Get returns the settings of the caller's tenant
func (s *SettingsService) Get(ctx context.Context) (*SettingsResponse, error) {
	rc, ok := domaintenancy.FromContext(ctx)
	if !ok {
		return nil, shared.ErrNoActiveContext
	}
	tenant, err := s.tenants.Resolve(ctx, rc.TenantID())
	if err != nil {
		return nil, err
	}
	resp := ToSettingsResponse(tenant)
	return &resp, nil
}

// UpdateSettings replaces the tenant-wide settings. The change affects every
// user of the tenant, so it requires a verification minted for this request.
func (s *SettingsService) UpdateSettings(ctx context.Context, proof tenancy.Verification, settings string) (*SettingsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settings", "update")
	defer span.End()

	if err := proof.Check(ctx); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := identity.ValidateSettings(settings); err != nil {
		return nil, err
	}

	tenantID := proof.TenantID()
	if err := s.directory.UpdateSettings(ctx, tenantID, settings); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(tenantID)
	}

	rc, _ := domaintenancy.FromContext(ctx)
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Allowed(audit.ActionSettingsUpdated, tenantID, rc.UserID(), rc.RequestID(), ""))
	}
	logger.L(ctx).Info("Tenant settings updated", zap.Int("bytes", len(settings)))

	return s.Get(ctx)
}
