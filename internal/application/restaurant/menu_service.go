package restaurant

import (
	"context"

	"github.com/google/uuid"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/domain/shared"
)

// MenuService handles menu operations of the caller's tenant. It never
// passes a tenant to the repository; the isolation enforcer scopes every
// statement from the request context.
type MenuService struct {
	items restaurant.MenuItemRepository
}

// NewMenuService creates a new MenuService
func NewMenuService(items restaurant.MenuItemRepository) *MenuService {
	return &MenuService{items: items}
}

// Create adds a menu item
func (s *MenuService) Create(ctx context.Context, req CreateMenuItemRequest) (*MenuItemResponse, error) {
	if req.Price == nil {
		return nil, shared.NewDomainError("INVALID_PRICE", "Price is required")
	}
	item, err := restaurant.NewMenuItem("", req.Name, req.Category, *req.Price)
	if err != nil {
		return nil, err
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}
	resp := ToMenuItemResponse(item)
	return &resp, nil
}

// Update applies a partial update
func (s *MenuService) Update(ctx context.Context, id uuid.UUID, req UpdateMenuItemRequest) (*MenuItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Category != nil {
		name, category := item.Name, item.Category
		if req.Name != nil {
			name = *req.Name
		}
		if req.Category != nil {
			category = *req.Category
		}
		// reuse constructor validation
		checked, err := restaurant.NewMenuItem(item.TenantID, name, category, item.Price)
		if err != nil {
			return nil, err
		}
		item.Name, item.Category = checked.Name, checked.Category
		item.Touch()
	}
	if req.Price != nil {
		if err := item.SetPrice(*req.Price); err != nil {
			return nil, err
		}
	}
	if req.Available != nil {
		item.SetAvailable(*req.Available)
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, err
	}
	resp := ToMenuItemResponse(item)
	return &resp, nil
}

// Delete removes a menu item
func (s *MenuService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.items.Delete(ctx, id)
}

// GetByID returns one menu item
func (s *MenuService) GetByID(ctx context.Context, id uuid.UUID) (*MenuItemResponse, error) {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToMenuItemResponse(item)
	return &resp, nil
}

// List returns a page of menu items
func (s *MenuService) List(ctx context.Context, filter shared.Filter) (shared.Paginated[MenuItemResponse], error) {
	items, total, err := s.items.FindAll(ctx, filter)
	if err != nil {
		return shared.Paginated[MenuItemResponse]{}, err
	}
	out := make([]MenuItemResponse, len(items))
	for i := range items {
		out[i] = ToMenuItemResponse(&items[i])
	}
	return shared.NewPaginated(out, total, filter.Page, filter.Limit()), nil
}

// ListForTenant returns menu items with an explicit tenant predicate. The
// predicate must name the caller's own tenant; anything else is rejected
// and audited by the enforcer.
func (s *MenuService) ListForTenant(ctx context.Context, tenantID string, filter shared.Filter) ([]MenuItemResponse, error) {
	items, err := s.items.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	out := make([]MenuItemResponse, len(items))
	for i := range items {
		out[i] = ToMenuItemResponse(&items[i])
	}
	return out, nil
}
