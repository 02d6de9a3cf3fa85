package tenancy

import (
	"context"
	"sync"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/stretchr/testify/mock"
)

// MockTenantResolver is a mock implementation of identity.TenantResolver
type MockTenantResolver struct {
	mock.Mock
}

func (m *MockTenantResolver) Resolve(ctx context.Context, tenantID string) (*identity.Tenant, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantResolver) ResolveSubdomain(ctx context.Context, subdomain string) (*identity.Tenant, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

// MockUserDirectory is a mock implementation of identity.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindByID(ctx context.Context, id string) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserDirectory) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAuditor) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAuditor) Entries() []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]audit.Entry(nil), r.entries...)
}

func activeTenant(id, sub string) *identity.Tenant {
	return &identity.Tenant{ID: id, Name: id, Subdomain: sub, Status: identity.TenantStatusActive, Settings: "{}"}
}

func activeUser(id, tenantID string) *identity.User {
	return &identity.User{ID: id, TenantID: tenantID, Username: id, Status: identity.UserStatusActive}
}

// MockTenantDirectory is a mock implementation of identity.TenantDirectory
type MockTenantDirectory struct {
	mock.Mock
}

func (m *MockTenantDirectory) FindByID(ctx context.Context, id string) (*identity.Tenant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*identity.Tenant, error) {
	args := m.Called(ctx, subdomain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Tenant), args.Error(1)
}

func (m *MockTenantDirectory) Save(ctx context.Context, tenant *identity.Tenant) error {
	return m.Called(ctx, tenant).Error(0)
}

func (m *MockTenantDirectory) UpdateSettings(ctx context.Context, id, settings string) error {
	return m.Called(ctx, id, settings).Error(0)
}

func (m *MockTenantDirectory) SetStatus(ctx context.Context, id string, status identity.TenantStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

type invalidations struct {
	mu  sync.Mutex
	ids []string
}

func (i *invalidations) Invalidate(tenantID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ids = append(i.ids, tenantID)
}
