package restaurant

import (
	"strings"

	"github.com/mise/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusOpen   OrderStatus = "open"
	OrderStatusPaid   OrderStatus = "paid"
	OrderStatusVoided OrderStatus = "voided"
)

// IsValid reports whether s is a known order status
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusPaid, OrderStatusVoided:
		return true
	}
	return false
}

// Order is a financial record of a table's bill.
type Order struct {
	shared.TenantEntity
	TableLabel string
	Status     OrderStatus
	Total      decimal.Decimal
	PlacedBy   string
	VoidReason string
}

// NewOrder opens an order for a table.
func NewOrder(tenantID, tableLabel, placedBy string, total decimal.Decimal) (*Order, error) {
	tableLabel = strings.TrimSpace(tableLabel)
	if tableLabel == "" {
		return nil, shared.NewDomainError("INVALID_TABLE", "Table label cannot be empty")
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError("INVALID_TOTAL", "Order total cannot be negative")
	}
	return &Order{
		TenantEntity: shared.NewTenantEntity(tenantID),
		TableLabel:   tableLabel,
		Status:       OrderStatusOpen,
		Total:        total.Round(2),
		PlacedBy:     placedBy,
	}, nil
}

// MarkPaid settles an open order
func (o *Order) MarkPaid() error {
	if o.Status != OrderStatusOpen {
		return shared.NewDomainError("INVALID_STATE", "Only open orders can be paid")
	}
	o.Status = OrderStatusPaid
	o.Touch()
	return nil
}

// Void cancels the order. Voided orders keep their total for reporting.
func (o *Order) Void(reason string) error {
	if o.Status == OrderStatusVoided {
		return shared.NewDomainError("ALREADY_VOIDED", "Order is already voided")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Void reason is required")
	}
	o.Status = OrderStatusVoided
	o.VoidReason = reason
	o.Touch()
	return nil
}
