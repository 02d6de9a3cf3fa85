package tenant

import (
	"context"
	"fmt"

	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/domain/tenancy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope is the entry point repositories use for tenant-scoped access.
type Scope struct {
	db     *gorm.DB
	column string
}

// NewScope wraps db, which is expected to have the enforcer registered.
func NewScope(db *gorm.DB) *Scope {
	return &Scope{db: db, column: DefaultColumn}
}

// WithContext returns a DB bound to ctx. When ctx carries no
// RequestContext every statement on the returned DB fails with
// ErrNoActiveContext and nothing is executed.
func (s *Scope) WithContext(ctx context.Context) *gorm.DB {
	tx := s.db.WithContext(ctx)
	if _, ok := tenancy.FromContext(ctx); !ok {
		_ = tx.AddError(fmt.Errorf("%w: scoped session", shared.ErrNoActiveContext))
	}
	return tx
}

// ForTenant returns a DB bound to ctx with an explicit tenant predicate.
// The enforcer still verifies tenantID against the context tenant.
func (s *Scope) ForTenant(ctx context.Context, tenantID string) *gorm.DB {
	return s.WithContext(ctx).Where(clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: s.column},
		Value:  tenantID,
	})
}

// Transaction runs fn in a transaction bound to ctx.
func (s *Scope) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if _, ok := tenancy.FromContext(ctx); !ok {
		return fmt.Errorf("%w: transaction", shared.ErrNoActiveContext)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}
