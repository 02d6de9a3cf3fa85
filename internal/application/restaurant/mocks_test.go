package restaurant

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/domain/shared"
	domaintenancy "github.com/mise/backend/internal/domain/tenancy"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMenuItemRepository is a mock implementation of restaurant.MenuItemRepository
type MockMenuItemRepository struct {
	mock.Mock
}

func (m *MockMenuItemRepository) Create(ctx context.Context, item *restaurant.MenuItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockMenuItemRepository) Update(ctx context.Context, item *restaurant.MenuItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockMenuItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockMenuItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.MenuItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*restaurant.MenuItem), args.Error(1)
}

func (m *MockMenuItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.MenuItem, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]restaurant.MenuItem), args.Get(1).(int64), args.Error(2)
}

func (m *MockMenuItemRepository) FindAllForTenant(ctx context.Context, tenantID string, filter shared.Filter) ([]restaurant.MenuItem, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]restaurant.MenuItem), args.Error(1)
}

// MockOrderRepository is a mock implementation of restaurant.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *restaurant.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *restaurant.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*restaurant.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.Order, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]restaurant.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOrderRepository) SumTotals(ctx context.Context, status restaurant.OrderStatus) (decimal.Decimal, error) {
	args := m.Called(ctx, status)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type staticUsers map[string]*identity.User

func (s staticUsers) FindByID(_ context.Context, id string) (*identity.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s staticUsers) Save(_ context.Context, u *identity.User) error {
	s[u.ID] = u
	return nil
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

func requestContext(t *testing.T, tenantID, userID, requestID string) context.Context {
	t.Helper()
	rc, err := domaintenancy.NewRequestContext(tenantID, userID, requestID)
	require.NoError(t, err)
	ctx, err := domaintenancy.WithRequestContext(context.Background(), rc)
	require.NoError(t, err)
	return ctx
}

// verified returns a request context and a verification minted for it
func verified(t *testing.T, tenantID, userID, requestID string) (context.Context, tenancy.Verification) {
	t.Helper()
	ctx := requestContext(t, tenantID, userID, requestID)
	users := staticUsers{userID: {ID: userID, TenantID: tenantID, Username: userID, Status: identity.UserStatusActive}}
	proof, err := tenancy.NewVerifier(users, nil, nil).Verify(ctx)
	require.NoError(t, err)
	return ctx, proof
}
