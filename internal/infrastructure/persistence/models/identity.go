package models

import (
	"time"

	"github.com/mise/backend/internal/domain/identity"
)

// TenantModel is the persistence model for the Tenant domain entity.
type TenantModel struct {
	ID        string                `gorm:"type:varchar(64);primaryKey"`
	Name      string                `gorm:"type:varchar(200);not null"`
	Subdomain string                `gorm:"type:varchar(63);not null;uniqueIndex"`
	Status    identity.TenantStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	Plan      identity.TenantPlan   `gorm:"type:varchar(20);not null;default:'free'"`
	Settings  string                `gorm:"type:text;not null;default:'{}'"`
	CreatedAt time.Time             `gorm:"not null"`
	UpdatedAt time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantModel) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant entity.
func (m *TenantModel) ToDomain() *identity.Tenant {
	return &identity.Tenant{
		ID:        m.ID,
		Name:      m.Name,
		Subdomain: m.Subdomain,
		Status:    m.Status,
		Plan:      m.Plan,
		Settings:  m.Settings,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain Tenant entity.
func (m *TenantModel) FromDomain(t *identity.Tenant) {
	m.ID = t.ID
	m.Name = t.Name
	m.Subdomain = identity.NormalizeSubdomain(t.Subdomain)
	m.Status = t.Status
	m.Plan = t.Plan
	m.Settings = t.Settings
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
}

// UserModel is the persistence model for the User domain entity. Its
// tenant_id is the caller's persisted tenant association.
type UserModel struct {
	ID        string              `gorm:"type:varchar(64);primaryKey"`
	TenantID  string              `gorm:"type:varchar(64);not null;index"`
	Username  string              `gorm:"type:varchar(100);not null"`
	Status    identity.UserStatus `gorm:"type:varchar(20);not null;default:'active'"`
	CreatedAt time.Time           `gorm:"not null"`
	UpdatedAt time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Username:  m.Username,
		Status:    m.Status,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain User entity.
func (m *UserModel) FromDomain(u *identity.User) {
	m.ID = u.ID
	m.TenantID = u.TenantID
	m.Username = u.Username
	m.Status = u.Status
	m.CreatedAt = u.CreatedAt
	m.UpdatedAt = u.UpdatedAt
}
