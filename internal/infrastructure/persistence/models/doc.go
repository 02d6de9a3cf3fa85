// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Every tenant-scoped table embeds TenantScopedModel, which contributes the
// indexed, required tenant_id column the isolation callbacks key on.
//
// Structure:
//   - base.go: BaseModel and TenantScopedModel
//   - identity.go: tenants and users
//   - audit.go: append-only audit_entries
//   - restaurant.go: menu_items and orders
package models
