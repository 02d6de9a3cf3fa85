package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormOrderRepository implements restaurant.OrderRepository using GORM
type GormOrderRepository struct {
	scope *tenant.Scope
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(scope *tenant.Scope) *GormOrderRepository {
	return &GormOrderRepository{scope: scope}
}

// Create persists a new order and copies the assigned tenant back
func (r *GormOrderRepository) Create(ctx context.Context, order *restaurant.Order) error {
	var model models.OrderModel
	model.FromDomain(order)
	if err := r.scope.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	order.TenantID = model.TenantID
	return nil
}

// Update saves status, total and void reason of an existing order
func (r *GormOrderRepository) Update(ctx context.Context, order *restaurant.Order) error {
	var model models.OrderModel
	model.FromDomain(order)
	result := r.scope.WithContext(ctx).Model(&model).
		Select("table_label", "status", "total", "void_reason", "updated_at").
		Updates(&model)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.Order, error) {
	var model models.OrderModel
	if err := r.scope.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of orders and the total match count
func (r *GormOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.Order, int64, error) {
	base := func() *gorm.DB {
		query := r.scope.WithContext(ctx).Model(&models.OrderModel{})
		if status, ok := filter.Filters["status"].(string); ok && status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.OrderDir)

	var rows []models.OrderModel
	err := base().Order(sortField + " " + sortOrder).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translate(err)
	}

	orders := make([]restaurant.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, total, nil
}

// Count returns the number of orders of the current tenant
func (r *GormOrderRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.scope.WithContext(ctx).Model(&models.OrderModel{}).Count(&n).Error; err != nil {
		return 0, translate(err)
	}
	return n, nil
}

// SumTotals adds up order totals of the current tenant. An empty status sums
// every order.
func (r *GormOrderRepository) SumTotals(ctx context.Context, status restaurant.OrderStatus) (decimal.Decimal, error) {
	query := r.scope.WithContext(ctx).Model(&models.OrderModel{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var out struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(total), 0) AS total").Scan(&out).Error; err != nil {
		return decimal.Zero, translate(err)
	}
	return out.Total, nil
}
