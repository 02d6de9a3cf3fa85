package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// TenantScopedModel is embedded by every tenant-scoped table. TenantID may be
// left empty on create; the isolation callbacks fill it from the request context.
type TenantScopedModel struct {
	BaseModel
	TenantID string `gorm:"type:varchar(64);not null;index"`
}

// FromDomainTenantEntity populates TenantScopedModel from a domain TenantEntity
func (m *TenantScopedModel) FromDomainTenantEntity(e shared.TenantEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	m.TenantID = e.TenantID
}

// ToDomainTenantEntity converts TenantScopedModel to a domain TenantEntity
func (m *TenantScopedModel) ToDomainTenantEntity() shared.TenantEntity {
	return shared.TenantEntity{
		BaseEntity: m.ToDomain(),
		TenantID:   m.TenantID,
	}
}

// TenantTables lists every table that carries a tenant_id column.
func TenantTables() []string {
	return []string{
		UserModel{}.TableName(),
		AuditEntryModel{}.TableName(),
		MenuItemModel{}.TableName(),
		OrderModel{}.TableName(),
	}
}

// All returns every model for auto-migration in tests and local sqlite mode.
func All() []any {
	return []any{
		&TenantModel{},
		&UserModel{},
		&AuditEntryModel{},
		&MenuItemModel{},
		&OrderModel{},
	}
}
