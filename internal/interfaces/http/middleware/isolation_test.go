package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/shared"
	domaintenancy "github.com/mise/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accessDenied = `{"success":false,"error":{"code":"ERR_ACCESS_DENIED","message":"Access denied"}}`

type stubTenants struct {
	tenants map[string]*identity.Tenant
	down    bool
}

func (s *stubTenants) Resolve(_ context.Context, id string) (*identity.Tenant, error) {
	if s.down {
		return nil, shared.ErrTenantDirectoryUnavailable
	}
	t, ok := s.tenants[id]
	if !ok || !t.IsActive() {
		return nil, shared.ErrUnknownOrInactiveTenant
	}
	return t.Clone(), nil
}

func (s *stubTenants) ResolveSubdomain(ctx context.Context, sub string) (*identity.Tenant, error) {
	for id, t := range s.tenants {
		if t.Subdomain == identity.NormalizeSubdomain(sub) {
			return s.Resolve(ctx, id)
		}
	}
	return nil, shared.ErrUnknownOrInactiveTenant
}

type stubUsers map[string]*identity.User

func (s stubUsers) FindByID(_ context.Context, id string) (*identity.User, error) {
	u, ok := s[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s stubUsers) Save(_ context.Context, u *identity.User) error {
	s[u.ID] = u
	return nil
}

func newStubTenants(t *testing.T) *stubTenants {
	t.Helper()
	acme, err := identity.NewTenant("t1", "Acme Bistro", "acme")
	require.NoError(t, err)
	globex, err := identity.NewTenant("t2", "Globex Diner", "globex")
	require.NoError(t, err)
	closed, err := identity.NewTenant("t3", "Closed Cafe", "closed")
	require.NoError(t, err)
	require.NoError(t, closed.SetStatus(identity.TenantStatusInactive))
	return &stubTenants{tenants: map[string]*identity.Tenant{"t1": acme, "t2": globex, "t3": closed}}
}

// claims stands in for the JWT middleware
func claims(tenantID, userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(JWTTenantIDKey, tenantID)
		c.Set(JWTUserIDKey, userID)
		c.Next()
	}
}

func gateRouter(t *testing.T, tenants *stubTenants, tenantID, userID string, mutate ...func(*IsolationConfig)) *gin.Engine {
	t.Helper()
	cfg := DefaultIsolationConfig(tenancy.NewGate(tenants, nil, nil))
	cfg.BaseDomain = "mise.app"
	for _, m := range mutate {
		m(&cfg)
	}
	router := gin.New()
	router.Use(claims(tenantID, userID), IsolationGate(cfg))
	router.GET("/api/v1/orders", func(c *gin.Context) {
		c.String(http.StatusOK, domaintenancy.TenantID(c.Request.Context()))
	})
	router.GET("/health", func(c *gin.Context) {
		_, bound := domaintenancy.FromContext(c.Request.Context())
		assert.False(t, bound)
		c.Status(http.StatusOK)
	})
	return router
}

func TestIsolationGate_Admits(t *testing.T) {
	router := gateRouter(t, newStubTenants(t), "t1", "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Host = "acme.mise.app"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestIsolationGate_GenericDenial(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		host     string
		header   string
		query    string
		down     bool
	}{
		{name: "no tenant in credential", tenantID: ""},
		{name: "unknown tenant", tenantID: "t9"},
		{name: "inactive tenant", tenantID: "t3"},
		{name: "foreign subdomain host", tenantID: "t1", host: "globex.mise.app"},
		{name: "foreign subdomain header", tenantID: "t1", header: "globex"},
		{name: "foreign subdomain query", tenantID: "t1", query: "?tenant=globex"},
		{name: "unknown subdomain", tenantID: "t1", header: "nowhere"},
		{name: "directory outage", tenantID: "t1", down: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tenants := newStubTenants(t)
			tenants.down = tt.down
			router := gateRouter(t, tenants, tt.tenantID, "u1")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/orders"+tt.query, nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			if tt.header != "" {
				req.Header.Set(SubdomainHeader, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.JSONEq(t, accessDenied, w.Body.String())
		})
	}
}

func TestIsolationGate_HintPrecedence(t *testing.T) {
	router := gateRouter(t, newStubTenants(t), "t1", "u1")

	// the header wins over a foreign host
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Host = "globex.mise.app"
	req.Header.Set(SubdomainHeader, "ACME")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIsolationGate_SkipPaths(t *testing.T) {
	router := gateRouter(t, newStubTenants(t), "", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSubdomainFromHost(t *testing.T) {
	tests := []struct {
		host, base, want string
	}{
		{"acme.mise.app", "mise.app", "acme"},
		{"ACME.mise.app:8443", "mise.app", "acme"},
		{"eu.acme.mise.app", "mise.app", "acme"},
		{"mise.app", "mise.app", ""},
		{"www.mise.app", "mise.app", ""},
		{"acme.other.app", "mise.app", ""},
		{"evilmise.app", "mise.app", ""},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, subdomainFromHost(tt.host, tt.base))
		})
	}
}

type failingVerifier struct{ err error }

func (f failingVerifier) Verify(context.Context) (tenancy.Verification, error) {
	return tenancy.Verification{}, f.err
}

func TestStrictTenant(t *testing.T) {
	users := stubUsers{"u1": {ID: "u1", TenantID: "t1", Status: identity.UserStatusActive}}
	verifier := tenancy.NewVerifier(users, nil, nil)

	newRouter := func(v StrictVerifier, tenantID string) *gin.Engine {
		router := gin.New()
		router.Use(claims(tenantID, "u1"), IsolationGate(DefaultIsolationConfig(tenancy.NewGate(newStubTenants(t), nil, nil))))
		router.PUT("/api/v1/settings", StrictTenant(v), func(c *gin.Context) {
			proof, ok := GetVerification(c)
			require.True(t, ok)
			require.NoError(t, proof.Check(c.Request.Context()))
			c.Status(http.StatusNoContent)
		})
		return router
	}

	t.Run("still associated", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(verifier, "t1").ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("reassigned since the token was issued", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(verifier, "t2").ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, accessDenied, w.Body.String())
	})

	t.Run("system error looks the same", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(failingVerifier{err: errors.Join(shared.ErrTenantDirectoryUnavailable, context.DeadlineExceeded)}, "t1").
			ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/settings", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, accessDenied, w.Body.String())
	})
}

func TestGetVerification_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetVerification(c)
	assert.False(t, ok)
}
