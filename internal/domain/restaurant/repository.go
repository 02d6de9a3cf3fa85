package restaurant

import (
	"context"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MenuItemRepository persists menu items of the tenant bound to ctx.
type MenuItemRepository interface {
	Create(ctx context.Context, item *MenuItem) error
	Update(ctx context.Context, item *MenuItem) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*MenuItem, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]MenuItem, int64, error)
	// FindAllForTenant carries an explicit tenant predicate; it must agree with ctx
	FindAllForTenant(ctx context.Context, tenantID string, filter shared.Filter) ([]MenuItem, error)
}

// OrderRepository persists orders of the tenant bound to ctx.
type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, int64, error)
	Count(ctx context.Context) (int64, error)
	SumTotals(ctx context.Context, status OrderStatus) (decimal.Decimal, error)
}
