package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	audittrail "github.com/mise/backend/internal/application/audit"
	restaurantapp "github.com/mise/backend/internal/application/restaurant"
	"github.com/mise/backend/internal/application/tenancy"
	"github.com/mise/backend/internal/domain/audit"
	"github.com/mise/backend/internal/infrastructure/auth"
	"github.com/mise/backend/internal/infrastructure/cache"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/mise/backend/internal/infrastructure/persistence"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"github.com/mise/backend/internal/interfaces/http/dto"
	"github.com/mise/backend/internal/interfaces/http/handler"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testApp struct {
	engine      *gin.Engine
	tokens      *auth.JWTService
	trail       *audittrail.Trail
	provisioner *tenancy.Provisioner
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(models.All()...))

	platform := tenant.NewPlatform(db, zap.NewNop())
	opts := audittrail.DefaultOptions()
	opts.Logger = zap.NewNop()
	trail := audittrail.New(persistence.NewGormAuditStore(platform), cache.NewInMemoryAuditSpool(0), opts)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trail.Close(ctx)
		_ = sqlDB.Close()
	})

	_, err = tenant.Register(db, tenant.Options{Tables: models.TenantTables(), Recorder: trail})
	require.NoError(t, err)

	directory := persistence.NewGormTenantDirectory(db, persistence.DirectoryOptions{})
	users := persistence.NewGormUserDirectory(platform)
	tenants, err := cache.NewTenantCache(directory)
	require.NoError(t, err)

	provisioner := tenancy.NewProvisioner(directory, users, tenants, nil)
	ctx := context.Background()
	for _, in := range []tenancy.TenantInput{
		{ID: "t1", Name: "Trattoria Uno", Subdomain: "uno"},
		{ID: "t2", Name: "Bistro Due", Subdomain: "due"},
	} {
		_, err := provisioner.CreateTenant(ctx, in)
		require.NoError(t, err)
	}
	for _, in := range []tenancy.UserInput{
		{ID: "u1", TenantID: "t1", Username: "anna"},
		{ID: "u2", TenantID: "t2", Username: "bruno"},
	} {
		_, err := provisioner.CreateUser(ctx, in)
		require.NoError(t, err)
	}

	scope := tenant.NewScope(db)
	menu := restaurantapp.NewMenuService(persistence.NewGormMenuItemRepository(scope))
	orders := restaurantapp.NewOrderService(persistence.NewGormOrderRepository(scope), trail)
	settings := restaurantapp.NewSettingsService(tenants, directory, tenants, trail)

	tokens := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters-long",
		Issuer:                "mise-test",
		AccessTokenExpiration: time.Hour,
	})

	engine := gin.New()
	Setup(engine, Dependencies{
		Handlers: Handlers{
			Health:   handler.NewHealthHandler(&persistence.Database{DB: db}),
			Menu:     handler.NewMenuHandler(menu),
			Orders:   handler.NewOrderHandler(orders),
			Settings: handler.NewSettingsHandler(settings),
			Audit:    handler.NewAuditHandler(trail),
		},
		Tokens:   tokens,
		Gate:     tenancy.NewGate(tenants, trail, zap.NewNop(), tenancy.WithUserAssociation(users)),
		Verifier: tenancy.NewVerifier(users, trail, zap.NewNop()),
	})

	return &testApp{engine: engine, tokens: tokens, trail: trail, provisioner: provisioner}
}

func (a *testApp) token(t *testing.T, tenantID, userID string) string {
	t.Helper()
	token, _, err := a.tokens.GenerateAccessToken(auth.GenerateTokenInput{TenantID: tenantID, UserID: userID})
	require.NoError(t, err)
	return token
}

func (a *testApp) do(t *testing.T, token, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func accessDeniedBody(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(dto.NewAccessDeniedResponse())
	require.NoError(t, err)
	return string(raw)
}

func TestRoutes_HealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, "", http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = app.do(t, "", http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_RequiresAuthentication(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, "", http.MethodGet, "/api/v1/menu-items", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeTokenInvalid, env.Error.Code)
}

func TestRoutes_MenuIsolation(t *testing.T) {
	app := newTestApp(t)
	anna := app.token(t, "t1", "u1")
	bruno := app.token(t, "t2", "u2")

	w, env := app.do(t, anna, http.MethodPost, "/api/v1/menu-items", map[string]any{
		"name": "Margherita", "category": "pizza", "price": "9.50",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var created restaurantapp.MenuItemResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	itemPath := "/api/v1/menu-items/" + created.ID.String()

	t.Run("owner sees the item", func(t *testing.T) {
		w, env := app.do(t, anna, http.MethodGet, "/api/v1/menu-items", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var items []restaurantapp.MenuItemResponse
		require.NoError(t, json.Unmarshal(env.Data, &items))
		require.Len(t, items, 1)
		assert.Equal(t, "Margherita", items[0].Name)
	})

	t.Run("other tenant lists nothing", func(t *testing.T) {
		w, env := app.do(t, bruno, http.MethodGet, "/api/v1/menu-items", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var items []restaurantapp.MenuItemResponse
		require.NoError(t, json.Unmarshal(env.Data, &items))
		assert.Empty(t, items)
	})

	t.Run("other tenant cannot read update or delete by id", func(t *testing.T) {
		w, _ := app.do(t, bruno, http.MethodGet, itemPath, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = app.do(t, bruno, http.MethodPut, itemPath, map[string]any{"name": "Hijacked"})
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, _ = app.do(t, bruno, http.MethodDelete, itemPath, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w, env := app.do(t, anna, http.MethodGet, itemPath, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var item restaurantapp.MenuItemResponse
		require.NoError(t, json.Unmarshal(env.Data, &item))
		assert.Equal(t, "Margherita", item.Name)
	})

	t.Run("explicit predicate for another tenant is denied", func(t *testing.T) {
		w, _ := app.do(t, anna, http.MethodGet, "/api/v1/menu-items?tenant_id=t2", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, accessDeniedBody(t), w.Body.String())

		w, _ = app.do(t, anna, http.MethodGet, "/api/v1/menu-items?tenant_id=t1", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("routing hint for another tenant is denied", func(t *testing.T) {
		w, _ := app.do(t, anna, http.MethodGet, "/api/v1/menu-items", nil, "X-Tenant-Subdomain", "due")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.JSONEq(t, accessDeniedBody(t), w.Body.String())

		w, _ = app.do(t, anna, http.MethodGet, "/api/v1/menu-items", nil, "X-Tenant-Subdomain", "uno")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRoutes_OrderVoid(t *testing.T) {
	app := newTestApp(t)
	anna := app.token(t, "t1", "u1")
	bruno := app.token(t, "t2", "u2")

	w, env := app.do(t, anna, http.MethodPost, "/api/v1/orders", map[string]any{"table_label": "T4", "total": "42.00"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order restaurantapp.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "u1", order.PlacedBy)
	voidPath := "/api/v1/orders/" + order.ID.String() + "/void"

	w, _ = app.do(t, bruno, http.MethodPost, voidPath, map[string]any{"reason": "wrong table"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = app.do(t, anna, http.MethodPost, voidPath, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(t, anna, http.MethodPost, voidPath, map[string]any{"reason": "wrong table"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "voided", order.Status)

	w, _ = app.do(t, anna, http.MethodPost, voidPath, map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = app.do(t, anna, http.MethodGet, "/api/v1/orders/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary restaurantapp.OrderSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, int64(1), summary.Count)
	assert.True(t, summary.VoidedTotal.Equal(decimal.NewFromInt(42)), summary.VoidedTotal.String())

	w, env = app.do(t, bruno, http.MethodGet, "/api/v1/orders/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Zero(t, summary.Count)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.trail.Flush(ctx))

	w, env = app.do(t, anna, http.MethodGet, "/api/v1/audit?action=order.voided", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "t1", entries[0].TenantID)
	assert.Equal(t, "u1", entries[0].UserID)

	w, env = app.do(t, bruno, http.MethodGet, "/api/v1/audit?action=order.voided", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Empty(t, entries)
}

func TestRoutes_ReassignedUserIsDenied(t *testing.T) {
	app := newTestApp(t)
	anna := app.token(t, "t1", "u1")

	w, _ := app.do(t, anna, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := app.provisioner.ReassignUser(context.Background(), "u1", "t2")
	require.NoError(t, err)

	w, _ = app.do(t, anna, http.MethodPut, "/api/v1/settings", map[string]any{"settings": map[string]any{"currency": "EUR"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, accessDeniedBody(t), w.Body.String())
}

func TestRoutes_Settings(t *testing.T) {
	app := newTestApp(t)
	anna := app.token(t, "t1", "u1")
	bruno := app.token(t, "t2", "u2")

	w, env := app.do(t, anna, http.MethodPut, "/api/v1/settings", map[string]any{"settings": map[string]any{"currency": "EUR"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp restaurantapp.SettingsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "t1", resp.TenantID)
	assert.JSONEq(t, `{"currency":"EUR"}`, string(resp.Settings))

	w, env = app.do(t, bruno, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "t2", resp.TenantID)
	assert.JSONEq(t, `{}`, string(resp.Settings))

	w, _ = app.do(t, anna, http.MethodPut, "/api/v1/settings", map[string]any{"settings": []int{1}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
