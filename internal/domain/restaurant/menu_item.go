package restaurant

import (
	"strings"

	"github.com/mise/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// MenuItem is a dish or drink offered by one tenant.
type MenuItem struct {
	shared.TenantEntity
	Name      string
	Category  string
	Price     decimal.Decimal
	Available bool
}

// NewMenuItem creates an available menu item. tenantID may be empty; it is
// filled from the request context when the item is persisted.
func NewMenuItem(tenantID, name, category string, price decimal.Decimal) (*MenuItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Menu item name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_NAME", "Menu item name cannot exceed 200 characters")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	return &MenuItem{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Name:         name,
		Category:     strings.TrimSpace(category),
		Price:        price.Round(2),
		Available:    true,
	}, nil
}

// SetPrice changes the price
func (m *MenuItem) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Price cannot be negative")
	}
	m.Price = price.Round(2)
	m.Touch()
	return nil
}

// SetAvailable toggles availability
func (m *MenuItem) SetAvailable(available bool) {
	m.Available = available
	m.Touch()
}
