package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/domain/shared"
	"github.com/mise/backend/internal/infrastructure/persistence/models"
	"github.com/mise/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
)

// GormMenuItemRepository implements restaurant.MenuItemRepository using GORM.
// Every statement runs through the tenant scope, so no method takes a tenant
// id except FindAllForTenant.
type GormMenuItemRepository struct {
	scope *tenant.Scope
}

// NewGormMenuItemRepository creates a new GormMenuItemRepository
func NewGormMenuItemRepository(scope *tenant.Scope) *GormMenuItemRepository {
	return &GormMenuItemRepository{scope: scope}
}

// Create persists a new menu item and copies the assigned tenant back
func (r *GormMenuItemRepository) Create(ctx context.Context, item *restaurant.MenuItem) error {
	var model models.MenuItemModel
	model.FromDomain(item)
	if err := r.scope.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	item.TenantID = model.TenantID
	return nil
}

// Update saves the mutable fields of an existing item
func (r *GormMenuItemRepository) Update(ctx context.Context, item *restaurant.MenuItem) error {
	var model models.MenuItemModel
	model.FromDomain(item)
	result := r.scope.WithContext(ctx).Model(&model).
		Select("name", "category", "price", "available", "updated_at").
		Updates(&model)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a menu item
func (r *GormMenuItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.scope.WithContext(ctx).Delete(&models.MenuItemModel{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds a menu item by its ID
func (r *GormMenuItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*restaurant.MenuItem, error) {
	var model models.MenuItemModel
	if err := r.scope.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindAll returns one page of menu items and the total match count
func (r *GormMenuItemRepository) FindAll(ctx context.Context, filter shared.Filter) ([]restaurant.MenuItem, int64, error) {
	base := func() *gorm.DB {
		return r.applyFilter(r.scope.WithContext(ctx).Model(&models.MenuItemModel{}), filter)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var rows []models.MenuItemModel
	if err := r.paginate(base(), filter).Find(&rows).Error; err != nil {
		return nil, 0, translate(err)
	}
	return menuItemsToDomain(rows), total, nil
}

// FindAllForTenant lists menu items with an explicit tenant predicate
func (r *GormMenuItemRepository) FindAllForTenant(ctx context.Context, tenantID string, filter shared.Filter) ([]restaurant.MenuItem, error) {
	query := r.applyFilter(r.scope.ForTenant(ctx, tenantID).Model(&models.MenuItemModel{}), filter)

	var rows []models.MenuItemModel
	if err := r.paginate(query, filter).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return menuItemsToDomain(rows), nil
}

func (r *GormMenuItemRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if category, ok := filter.Filters["category"].(string); ok && strings.TrimSpace(category) != "" {
		query = query.Where("category = ?", strings.TrimSpace(category))
	}
	if available, ok := filter.Filters["available"].(bool); ok {
		query = query.Where("available = ?", available)
	}
	return query
}

func (r *GormMenuItemRepository) paginate(query *gorm.DB, filter shared.Filter) *gorm.DB {
	sortField := ValidateSortField(filter.OrderBy, MenuItemSortFields, "name")
	sortOrder := ValidateSortOrder(filter.OrderDir)
	return query.Order(sortField + " " + sortOrder).Offset(filter.Offset()).Limit(filter.Limit())
}

func menuItemsToDomain(rows []models.MenuItemModel) []restaurant.MenuItem {
	items := make([]restaurant.MenuItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items
}
