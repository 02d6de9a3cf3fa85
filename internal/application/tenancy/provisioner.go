package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// TenantInput describes a tenant to provision
type TenantInput struct {
	ID        string `validate:"required,max=64"`
	Name      string `validate:"required,max=200"`
	Subdomain string `validate:"required,hostname_rfc1123,excludes=.,max=63"`
	Plan      string `validate:"omitempty,oneof=free basic pro enterprise"`
}

// UserInput describes a user to provision
type UserInput struct {
	ID       string `validate:"required,max=64"`
	TenantID string `validate:"required,max=64"`
	Username string `validate:"required,max=100"`
}

// CacheInvalidator drops cached copies of a tenant
type CacheInvalidator interface {
	Invalidate(tenantID string)
}

// Provisioner manages tenants and user associations for operators. It works
// on the directories directly and never runs inside a request context.
type Provisioner struct {
	tenants  identity.TenantDirectory
	users    identity.UserDirectory
	cache    CacheInvalidator
	validate *validator.Validate
	logger   *zap.Logger
}

// NewProvisioner creates a new Provisioner. cache may be nil.
func NewProvisioner(tenants identity.TenantDirectory, users identity.UserDirectory, cache CacheInvalidator, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		tenants:  tenants,
		users:    users,
		cache:    cache,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.Named("provisioner"),
	}
}

// CreateTenant registers a new active tenant
func (p *Provisioner) CreateTenant(ctx context.Context, in TenantInput) (*identity.Tenant, error) {
	in.Subdomain = identity.NormalizeSubdomain(in.Subdomain)
	if err := p.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if _, err := p.tenants.FindBySubdomain(ctx, in.Subdomain); err == nil {
		return nil, shared.NewDomainError("SUBDOMAIN_TAKEN", "Subdomain is already in use")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	tenant, err := identity.NewTenant(in.ID, in.Name, in.Subdomain)
	if err != nil {
		return nil, err
	}
	if in.Plan != "" {
		if err := tenant.SetPlan(identity.TenantPlan(in.Plan)); err != nil {
			return nil, err
		}
	}
	if _, err := p.tenants.FindByID(ctx, tenant.ID); err == nil {
		return nil, shared.ErrAlreadyExists
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	if err := p.tenants.Save(ctx, tenant); err != nil {
		return nil, err
	}
	p.logger.Info("Tenant provisioned",
		zap.String("tenant_id", tenant.ID),
		zap.String("subdomain", tenant.Subdomain),
		zap.String("plan", string(tenant.Plan)),
	)
	return tenant, nil
}

// SetTenantStatus changes a tenant's status. Deactivation takes effect on
// the next request, cached copies are dropped immediately.
func (p *Provisioner) SetTenantStatus(ctx context.Context, tenantID string, status identity.TenantStatus) error {
	if err := p.tenants.SetStatus(ctx, tenantID, status); err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Invalidate(tenantID)
	}
	p.logger.Info("Tenant status changed", zap.String("tenant_id", tenantID), zap.String("status", string(status)))
	return nil
}

// CreateUser associates a new user with an existing tenant
func (p *Provisioner) CreateUser(ctx context.Context, in UserInput) (*identity.User, error) {
	if err := p.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if _, err := p.tenants.FindByID(ctx, in.TenantID); err != nil {
		return nil, err
	}
	user, err := identity.NewUser(in.ID, in.TenantID, in.Username)
	if err != nil {
		return nil, err
	}
	if err := p.users.Save(ctx, user); err != nil {
		return nil, err
	}
	p.logger.Info("User provisioned", zap.String("user_id", user.ID), zap.String("tenant_id", user.TenantID))
	return user, nil
}

// ReassignUser moves a user to another tenant. Requests already in flight
// under the old tenant fail their next verification.
func (p *Provisioner) ReassignUser(ctx context.Context, userID, tenantID string) (*identity.User, error) {
	if _, err := p.tenants.FindByID(ctx, tenantID); err != nil {
		return nil, err
	}
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	from := user.TenantID
	if err := user.Reassign(tenantID); err != nil {
		return nil, err
	}
	if err := p.users.Save(ctx, user); err != nil {
		return nil, err
	}
	p.logger.Info("User reassigned",
		zap.String("user_id", userID),
		zap.String("from_tenant", from),
		zap.String("to_tenant", tenantID),
	)
	return user, nil
}

// DeactivateUser deactivates a user
func (p *Provisioner) DeactivateUser(ctx context.Context, userID string) error {
	user, err := p.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := user.Deactivate(); err != nil {
		return err
	}
	return p.users.Save(ctx, user)
}
