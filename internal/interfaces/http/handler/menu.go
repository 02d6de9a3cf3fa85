package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	restaurantapp "github.com/mise/backend/internal/application/restaurant"
)

// MenuHandler handles menu item HTTP requests
type MenuHandler struct {
	BaseHandler
	menu *restaurantapp.MenuService
}

// NewMenuHandler creates a new MenuHandler
func NewMenuHandler(menu *restaurantapp.MenuService) *MenuHandler {
	return &MenuHandler{menu: menu}
}

// List handles GET /menu-items
//
// Supports the category and available filters. A tenant_id parameter is
// passed to the repository as an explicit predicate; naming any tenant but
// the caller's is denied.
func (h *MenuHandler) List(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	filter.Filters = map[string]interface{}{}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		filter.Filters["category"] = category
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "available must be a boolean")
			return
		}
		filter.Filters["available"] = available
	}

	ctx := c.Request.Context()
	if tenantID, ok := c.GetQuery("tenant_id"); ok {
		items, err := h.menu.ListForTenant(ctx, tenantID, filter)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, items)
		return
	}

	page, err := h.menu.List(ctx, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Create handles POST /menu-items
func (h *MenuHandler) Create(c *gin.Context) {
	var req restaurantapp.CreateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	item, err := h.menu.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, item)
}

// Get handles GET /menu-items/:id
func (h *MenuHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	item, err := h.menu.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// Update handles PUT /menu-items/:id
func (h *MenuHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req restaurantapp.UpdateMenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	item, err := h.menu.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, item)
}

// Delete handles DELETE /menu-items/:id
func (h *MenuHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	if err := h.menu.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
