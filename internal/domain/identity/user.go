package identity

import (
	"strings"
	"time"

	"github.com/mise/backend/internal/domain/shared"
)

// UserStatus represents the status of a user
type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusLocked      UserStatus = "locked"      // Locked due to failed attempts/security
	UserStatusDeactivated UserStatus = "deactivated" // Manually deactivated
)

// User is the persisted identity record of a caller. Credentials live with the
// authentication collaborator; this subsystem only reads the tenant association.
type User struct {
	ID        string
	TenantID  string
	Username  string
	Status    UserStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates an active user bound to tenantID.
func NewUser(id, tenantID, username string) (*User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, shared.NewDomainError("INVALID_USER_ID", "User id cannot be empty")
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, shared.ErrNoTenantAssociation
	}
	if strings.TrimSpace(username) == "" {
		return nil, shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	now := time.Now()
	return &User{
		ID:        strings.TrimSpace(id),
		TenantID:  strings.TrimSpace(tenantID),
		Username:  strings.TrimSpace(username),
		Status:    UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsActive returns true if user is active
func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// BelongsTo reports whether the user is an active member of tenantID.
func (u *User) BelongsTo(tenantID string) bool {
	return u.IsActive() && u.TenantID != "" && u.TenantID == tenantID
}

// Reassign moves the user to another tenant
func (u *User) Reassign(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return shared.ErrNoTenantAssociation
	}
	u.TenantID = tenantID
	u.UpdatedAt = time.Now()
	return nil
}

// Deactivate deactivates the user
func (u *User) Deactivate() error {
	if u.Status == UserStatusDeactivated {
		return shared.NewDomainError("ALREADY_DEACTIVATED", "User is already deactivated")
	}
	u.Status = UserStatusDeactivated
	u.UpdatedAt = time.Now()
	return nil
}
