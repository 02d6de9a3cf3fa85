package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DirectoryOptions bounds the retries of directory lookups.
type DirectoryOptions struct {
	// Retries is the number of extra attempts after a system error
	Retries int
	// RetryDelay is the first backoff interval; it doubles per attempt
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// GormTenantDirectory implements identity.TenantDirectory using GORM.
//
// System errors are retried with exponential backoff; a missing tenant is
// permanent. When retries are exhausted the error wraps
// shared.ErrTenantDirectoryUnavailable so callers never mistake an outage for
// a valid or unknown tenant.
type GormTenantDirectory struct {
	db     *gorm.DB
	opts   DirectoryOptions
	logger *zap.Logger
}

// NewGormTenantDirectory creates a new GormTenantDirectory
func NewGormTenantDirectory(db *gorm.DB, opts DirectoryOptions) *GormTenantDirectory {
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &GormTenantDirectory{db: db, opts: opts, logger: log}
}

// FindByID finds a tenant by its ID
func (r *GormTenantDirectory) FindByID(ctx context.Context, id string) (*identity.Tenant, error) {
	var model models.TenantModel
	err := r.retry(ctx, "find tenant by id", func() error {
		return translate(r.db.WithContext(ctx).First(&model, "id = ?", id).Error)
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySubdomain finds a tenant by its subdomain, ignoring case and
// surrounding whitespace.
func (r *GormTenantDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*identity.Tenant, error) {
	sub := identity.NormalizeSubdomain(subdomain)
	if sub == "" {
		return nil, shared.ErrNotFound
	}
	var model models.TenantModel
	err := r.retry(ctx, "find tenant by subdomain", func() error {
		return translate(r.db.WithContext(ctx).Where("subdomain = ?", sub).First(&model).Error)
	})
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or replaces a tenant record
func (r *GormTenantDirectory) Save(ctx context.Context, tenant *identity.Tenant) error {
	var model models.TenantModel
	model.FromDomain(tenant)
	return r.retry(ctx, "save tenant", func() error {
		return translate(r.db.WithContext(ctx).Save(&model).Error)
	})
}

// UpdateSettings replaces the settings blob of a tenant
func (r *GormTenantDirectory) UpdateSettings(ctx context.Context, id, settings string) error {
	return r.update(ctx, "update tenant settings", id, map[string]interface{}{
		"settings":   settings,
		"updated_at": time.Now(),
	})
}

// SetStatus changes the status of a tenant
func (r *GormTenantDirectory) SetStatus(ctx context.Context, id string, status identity.TenantStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Invalid tenant status")
	}
	return r.update(ctx, "set tenant status", id, map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	})
}

func (r *GormTenantDirectory) update(ctx context.Context, op, id string, values map[string]interface{}) error {
	return r.retry(ctx, op, func() error {
		result := r.db.WithContext(ctx).Model(&models.TenantModel{}).Where("id = ?", id).Updates(values)
		if result.Error != nil {
			return translate(result.Error)
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// retry runs fn until it succeeds, fails permanently or the retry budget is
// spent.
func (r *GormTenantDirectory) retry(ctx context.Context, op string, fn func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.RetryDelay
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.Retries)), ctx)

	err := backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		r.logger.Warn("Tenant directory call failed, retrying",
			zap.String("operation", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err == nil || isPermanent(err) {
		return err
	}

	r.logger.Error("Tenant directory unavailable",
		zap.String("operation", op),
		zap.Int("attempts", r.opts.Retries+1),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %s: %v", shared.ErrTenantDirectoryUnavailable, op, err)
}

// isPermanent reports whether err is an answer rather than a failure.
func isPermanent(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr)
}

// translate maps gorm errors onto domain errors.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	}
	return err
}
