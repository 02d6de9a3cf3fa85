package restaurant

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/identity"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/shopspring/decimal"
)

// CreateMenuItemRequest represents a request to add a menu item
type CreateMenuItemRequest struct {
	Name     string           `json:"name" binding:"required,min=1,max=200"`
	Category string           `json:"category" binding:"max=100"`
	Price    *decimal.Decimal `json:"price" binding:"required"`
}

// UpdateMenuItemRequest represents a partial menu item update
type UpdateMenuItemRequest struct {
	Name      *string          `json:"name" binding:"omitempty,min=1,max=200"`
	Category  *string          `json:"category" binding:"omitempty,max=100"`
	Price     *decimal.Decimal `json:"price"`
	Available *bool            `json:"available"`
}

// MenuItemResponse represents a menu item in API responses
type MenuItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToMenuItemResponse converts a domain menu item
func ToMenuItemResponse(m *restaurant.MenuItem) MenuItemResponse {
	return MenuItemResponse{
		ID:        m.ID,
		Name:      m.Name,
		Category:  m.Category,
		Price:     m.Price,
		Available: m.Available,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CreateOrderRequest represents a request to open an order
type CreateOrderRequest struct {
	TableLabel string          `json:"table_label" binding:"required,min=1,max=50"`
	Total      decimal.Decimal `json:"total"`
}

// VoidOrderRequest carries the mandatory void reason
type VoidOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID         uuid.UUID       `json:"id"`
	TableLabel string          `json:"table_label"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	PlacedBy   string          `json:"placed_by"`
	VoidReason string          `json:"void_reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ToOrderResponse converts a domain order
func ToOrderResponse(o *restaurant.Order) OrderResponse {
	return OrderResponse{
		ID:         o.ID,
		TableLabel: o.TableLabel,
		Status:     string(o.Status),
		Total:      o.Total,
		PlacedBy:   o.PlacedBy,
		VoidReason: o.VoidReason,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

// OrderSummary aggregates the orders of the caller's tenant
type OrderSummary struct {
	Count       int64           `json:"count"`
	GrossTotal  decimal.Decimal `json:"gross_total"`
	PaidTotal   decimal.Decimal `json:"paid_total"`
	VoidedTotal decimal.Decimal `json:"voided_total"`
}

// UpdateSettingsRequest replaces the tenant-wide settings object
type UpdateSettingsRequest struct {
	Settings json.RawMessage `json:"settings" binding:"required"`
}

// SettingsResponse represents the settings of the caller's tenant
type SettingsResponse struct {
	TenantID  string          `json:"tenant_id"`
	Name      string          `json:"name"`
	Subdomain string          `json:"subdomain"`
	Plan      string          `json:"plan"`
	Settings  json.RawMessage `json:"settings"`
}

// ToSettingsResponse converts a domain tenant
func ToSettingsResponse(t *identity.Tenant) SettingsResponse {
	settings := t.Settings
	if settings == "" {
		settings = "{}"
	}
	return SettingsResponse{
		TenantID:  t.ID,
		Name:      t.Name,
		Subdomain: t.Subdomain,
		Plan:      string(t.Plan),
		Settings:  json.RawMessage(settings),
	}
}
