package identity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mise/backend/internal/domain/shared"
)

// TenantStatus represents the status of a tenant
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusInactive  TenantStatus = "inactive"
	TenantStatusSuspended TenantStatus = "suspended" // Suspended due to payment/violation issues
	TenantStatusTrial     TenantStatus = "trial"
)

// TenantPlan represents the subscription tier of a tenant
type TenantPlan string

const (
	TenantPlanFree       TenantPlan = "free"
	TenantPlanBasic      TenantPlan = "basic"
	TenantPlanPro        TenantPlan = "pro"
	TenantPlanEnterprise TenantPlan = "enterprise"
)

// Tenant is one restaurant organization sharing the deployment.
//
// ID is an opaque stable identifier. Subdomain is unique and is used as a
// routing hint; among active tenants it maps one-to-one onto ID.
type Tenant struct {
	ID        string
	Name      string
	Subdomain string
	Status    TenantStatus
	Plan      TenantPlan
	Settings  string // JSON object
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTenant creates an active tenant on the free plan.
func NewTenant(id, name, subdomain string) (*Tenant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_ID", "Tenant id cannot be empty")
	}
	if len(id) > 64 {
		return nil, shared.NewDomainError("INVALID_TENANT_ID", "Tenant id cannot exceed 64 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_TENANT_NAME", "Tenant name cannot be empty")
	}
	sub := NormalizeSubdomain(subdomain)
	if sub == "" {
		return nil, shared.NewDomainError("INVALID_SUBDOMAIN", "Subdomain cannot be empty")
	}

	now := time.Now()
	return &Tenant{
		ID:        id,
		Name:      strings.TrimSpace(name),
		Subdomain: sub,
		Status:    TenantStatusActive,
		Plan:      TenantPlanFree,
		Settings:  "{}",
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// NormalizeSubdomain lower-cases and trims a subdomain for lookups and storage.
func NormalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsActive returns true only for the active status. Trial and suspended
// tenants do not resolve.
func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// SetStatus changes the tenant status
func (t *Tenant) SetStatus(status TenantStatus) error {
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Invalid tenant status")
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

// SetPlan sets the subscription tier
func (t *Tenant) SetPlan(plan TenantPlan) error {
	if !plan.IsValid() {
		return shared.NewDomainError("INVALID_PLAN", "Invalid tenant plan")
	}
	t.Plan = plan
	t.UpdatedAt = time.Now()
	return nil
}

// UpdateSettings replaces the settings blob. The blob must be a JSON object.
func (t *Tenant) UpdateSettings(settings string) error {
	if err := ValidateSettings(settings); err != nil {
		return err
	}
	t.Settings = settings
	t.UpdatedAt = time.Now()
	return nil
}

// Clone returns a copy that shares no mutable state with t.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ValidateSettings checks that settings is a JSON object.
func ValidateSettings(settings string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(settings), &obj); err != nil || obj == nil {
		return shared.NewDomainError("INVALID_SETTINGS", "Settings must be a JSON object")
	}
	return nil
}

// IsValid reports whether the status is known
func (s TenantStatus) IsValid() bool {
	switch s {
	case TenantStatusActive, TenantStatusInactive, TenantStatusSuspended, TenantStatusTrial:
		return true
	}
	return false
}

// IsValid reports whether the plan is known
func (p TenantPlan) IsValid() bool {
	switch p {
	case TenantPlanFree, TenantPlanBasic, TenantPlanPro, TenantPlanEnterprise:
		return true
	}
	return false
}
