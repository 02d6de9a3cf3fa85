package identity

import "context"

// TenantDirectory is the persistent store of tenant records.
type TenantDirectory interface {
	// FindByID returns shared.ErrNotFound when no tenant has the id
	FindByID(ctx context.Context, id string) (*Tenant, error)

	// FindBySubdomain looks up a tenant by its normalized subdomain
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)

	// Save creates or replaces a tenant record
	Save(ctx context.Context, tenant *Tenant) error

	// UpdateSettings replaces the settings blob of a tenant
	UpdateSettings(ctx context.Context, id, settings string) error

	// SetStatus changes the status of a tenant
	SetStatus(ctx context.Context, id string, status TenantStatus) error
}

// TenantResolver resolves active tenants, usually through a cache in front of
// the TenantDirectory.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (*Tenant, error)
	ResolveSubdomain(ctx context.Context, subdomain string) (*Tenant, error)
}

// UserDirectory reads persisted user records. Implementations must not cache.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	Save(ctx context.Context, user *User) error
}
