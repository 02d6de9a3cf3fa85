package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGate(opts ...GateOption) (*Gate, *MockTenantResolver, *recordingAuditor) {
	resolver := new(MockTenantResolver)
	auditor := &recordingAuditor{}
	opts = append([]GateOption{WithRequestIDs(func() string { return "req-1" })}, opts...)
	return NewGate(resolver, auditor, zap.NewNop(), opts...), resolver, auditor
}

func TestGate_Admit(t *testing.T) {
	t1 := activeTenant("t1", "acme")
	t2 := activeTenant("t2", "globex")

	t.Run("admits a caller with a matching hint", func(t *testing.T) {
		gate, resolver, auditor := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)
		resolver.On("ResolveSubdomain", mock.Anything, "acme").Return(t1, nil)

		ctx, rc, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "acme")
		require.NoError(t, err)
		assert.Equal(t, "t1", rc.TenantID())
		assert.Equal(t, "u1", rc.UserID())
		assert.Equal(t, "req-1", rc.RequestID())

		bound, ok := tenancy.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, rc, bound)
		assert.Empty(t, auditor.Entries())
		resolver.AssertExpectations(t)
	})

	t.Run("admits without a hint", func(t *testing.T) {
		gate, resolver, _ := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)

		_, rc, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "  ")
		require.NoError(t, err)
		assert.Equal(t, "t1", rc.TenantID())
		resolver.AssertNotCalled(t, "ResolveSubdomain", mock.Anything, mock.Anything)
	})

	t.Run("request ids are fresh per admission", func(t *testing.T) {
		resolver := new(MockTenantResolver)
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)
		gate := NewGate(resolver, nil, nil)

		_, a, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		require.NoError(t, err)
		_, b, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		require.NoError(t, err)
		assert.NotEqual(t, a.RequestID(), b.RequestID())
	})

	t.Run("no tenant association", func(t *testing.T) {
		gate, resolver, _ := newTestGate()

		ctx, _, err := gate.Admit(context.Background(), Caller{UserID: "u1"}, "")
		assert.ErrorIs(t, err, shared.ErrNoTenantAssociation)
		_, ok := tenancy.FromContext(ctx)
		assert.False(t, ok)
		resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("unknown or inactive tenant", func(t *testing.T) {
		gate, resolver, auditor := newTestGate()
		resolver.On("Resolve", mock.Anything, "t9").Return(nil, shared.ErrUnknownOrInactiveTenant)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t9"}, "")
		assert.ErrorIs(t, err, shared.ErrUnknownOrInactiveTenant)
		assert.Empty(t, auditor.Entries())
	})

	t.Run("directory outage is a system error", func(t *testing.T) {
		gate, resolver, _ := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(nil, shared.ErrTenantDirectoryUnavailable)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		assert.ErrorIs(t, err, shared.ErrTenantDirectoryUnavailable)
	})

	t.Run("hint for another tenant is rejected and audited once", func(t *testing.T) {
		gate, resolver, auditor := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)
		resolver.On("ResolveSubdomain", mock.Anything, "globex").Return(t2, nil)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "globex")
		assert.ErrorIs(t, err, shared.ErrTenantRoutingMismatch)

		entries := auditor.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, audit.ActionRoutingMismatch, entries[0].Action)
		assert.Equal(t, audit.OutcomeDenied, entries[0].Outcome)
		assert.Equal(t, "t1", entries[0].TenantID)
		assert.Equal(t, "u1", entries[0].UserID)
		assert.Equal(t, "req-1", entries[0].RequestID)
	})

	t.Run("hint for an unknown subdomain is a routing mismatch", func(t *testing.T) {
		gate, resolver, auditor := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)
		resolver.On("ResolveSubdomain", mock.Anything, "other-tenant").Return(nil, shared.ErrUnknownOrInactiveTenant)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "other-tenant")
		assert.ErrorIs(t, err, shared.ErrTenantRoutingMismatch)
		assert.Len(t, auditor.Entries(), 1)
	})

	t.Run("hint lookup outage is not a mismatch", func(t *testing.T) {
		gate, resolver, auditor := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)
		resolver.On("ResolveSubdomain", mock.Anything, "acme").Return(nil, shared.ErrTenantDirectoryUnavailable)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "acme")
		assert.ErrorIs(t, err, shared.ErrTenantDirectoryUnavailable)
		assert.Empty(t, auditor.Entries())
	})

	t.Run("context already bound to another request", func(t *testing.T) {
		gate, resolver, _ := newTestGate()
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)

		other, err := tenancy.NewRequestContext("t2", "u2", "req-0")
		require.NoError(t, err)
		ctx, err := tenancy.WithRequestContext(context.Background(), other)
		require.NoError(t, err)

		_, _, err = gate.Admit(ctx, Caller{UserID: "u1", TenantID: "t1"}, "")
		assert.ErrorIs(t, err, tenancy.ErrContextAlreadyBound)
	})
}

func TestGate_UserAssociation(t *testing.T) {
	t1 := activeTenant("t1", "acme")

	t.Run("matching user record", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("FindByID", mock.Anything, "u1").Return(activeUser("u1", "t1"), nil)
		gate, resolver, _ := newTestGate(WithUserAssociation(users))
		resolver.On("Resolve", mock.Anything, "t1").Return(t1, nil)

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		assert.NoError(t, err)
	})

	t.Run("credential tenant disagrees with the record", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("FindByID", mock.Anything, "u1").Return(activeUser("u1", "t2"), nil)
		gate, resolver, auditor := newTestGate(WithUserAssociation(users))

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		assert.ErrorIs(t, err, shared.ErrNoTenantAssociation)
		require.Len(t, auditor.Entries(), 1)
		assert.Equal(t, audit.ActionAssociationMismatch, auditor.Entries()[0].Action)
		resolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	t.Run("unknown user", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("FindByID", mock.Anything, "ghost").Return(nil, shared.ErrNotFound)
		gate, _, _ := newTestGate(WithUserAssociation(users))

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "ghost", TenantID: "t1"}, "")
		assert.ErrorIs(t, err, shared.ErrNoTenantAssociation)
	})

	t.Run("user lookup outage", func(t *testing.T) {
		users := new(MockUserDirectory)
		users.On("FindByID", mock.Anything, "u1").Return(nil, errors.New("connection reset"))
		gate, _, _ := newTestGate(WithUserAssociation(users))

		_, _, err := gate.Admit(context.Background(), Caller{UserID: "u1", TenantID: "t1"}, "")
		assert.ErrorIs(t, err, shared.ErrTenantDirectoryUnavailable)
	})
}
