package persistence

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/tenancy"
	"github.com/mise/backend/internal/infrastructure/config"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testStore bundles an in-memory sqlite database with the tenant enforcer
// registered the way the server wires it.
type testStore struct {
	db       *gorm.DB
	platform *tenant.Platform
	scope    *tenant.Scope
}

func setupTestStore(t *testing.T) testStore {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	}
	database, err := NewDatabase(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, database.AutoMigrate())
	_, err = tenant.Register(database.DB, tenant.Options{Tables: models.TenantTables()})
	require.NoError(t, err)

	return testStore{
		db:       database.DB,
		platform: tenant.NewPlatform(database.DB, zap.NewNop()),
		scope:    tenant.NewScope(database.DB),
	}
}

func requestContext(t *testing.T, tenantID string) context.Context {
	t.Helper()
	rc, err := tenancy.NewRequestContext(tenantID, "user-"+tenantID, "req-"+tenantID)
	require.NoError(t, err)
	ctx, err := tenancy.WithRequestContext(context.Background(), rc)
	require.NoError(t, err)
	return ctx
}
