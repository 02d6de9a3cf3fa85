package models

import (
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/shopspring/decimal"
)

// MenuItemModel is the persistence model for the MenuItem domain entity.
type MenuItemModel struct {
	TenantScopedModel
	Name      string          `gorm:"type:varchar(200);not null"`
	Category  string          `gorm:"type:varchar(100);index"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Available bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (MenuItemModel) TableName() string {
	return "menu_items"
}

// ToDomain converts the persistence model to a domain MenuItem.
func (m *MenuItemModel) ToDomain() *restaurant.MenuItem {
	return &restaurant.MenuItem{
		TenantEntity: m.ToDomainTenantEntity(),
		Name:         m.Name,
		Category:     m.Category,
		Price:        m.Price,
		Available:    m.Available,
	}
}

// FromDomain populates the persistence model from a domain MenuItem.
func (m *MenuItemModel) FromDomain(item *restaurant.MenuItem) {
	m.FromDomainTenantEntity(item.TenantEntity)
	m.Name = item.Name
	m.Category = item.Category
	m.Price = item.Price
	m.Available = item.Available
}

// OrderModel is the persistence model for the Order domain entity.
type OrderModel struct {
	TenantScopedModel
	TableLabel string                 `gorm:"type:varchar(50);not null"`
	Status     restaurant.OrderStatus `gorm:"type:varchar(20);not null;default:'open';index"`
	Total      decimal.Decimal        `gorm:"type:decimal(12,2);not null;default:0"`
	PlacedBy   string                 `gorm:"type:varchar(64)"`
	VoidReason string                 `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *restaurant.Order {
	return &restaurant.Order{
		TenantEntity: m.ToDomainTenantEntity(),
		TableLabel:   m.TableLabel,
		Status:       m.Status,
		Total:        m.Total,
		PlacedBy:     m.PlacedBy,
		VoidReason:   m.VoidReason,
	}
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *restaurant.Order) {
	m.FromDomainTenantEntity(o.TenantEntity)
	m.TableLabel = o.TableLabel
	m.Status = o.Status
	m.Total = o.Total
	m.PlacedBy = o.PlacedBy
	m.VoidReason = o.VoidReason
}
