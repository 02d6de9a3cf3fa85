package persistence

import (
	"context"

	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
)

// GormUserDirectory implements identity.UserDirectory using GORM.
//
// User records are read before the request context is bound, so lookups go
// through a platform session. Nothing here caches: the strict verifier relies
// on reading the live association.
type GormUserDirectory struct {
	platform *tenant.Platform
}

// NewGormUserDirectory creates a new GormUserDirectory
func NewGormUserDirectory(platform *tenant.Platform) *GormUserDirectory {
	return &GormUserDirectory{platform: platform}
}

// FindByID finds a user by ID
func (r *GormUserDirectory) FindByID(ctx context.Context, id string) (*identity.User, error) {
	var model models.UserModel
	err := r.platform.Session(ctx, "user lookup").First(&model, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// Save creates or replaces a user record
func (r *GormUserDirectory) Save(ctx context.Context, user *identity.User) error {
	var model models.UserModel
	model.FromDomain(user)
	return translate(r.platform.Session(ctx, "user save").Save(&model).Error)
}
