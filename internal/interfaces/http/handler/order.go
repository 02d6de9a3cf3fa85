package handler

import (
	"github.com/gin-gonic/gin"
	restaurantapp "github.com/mise/backend/internal/application/restaurant"
	"github.com/mise/backend/internal/domain/restaurant"
	"github.com/mise/backend/internal/interfaces/http/middleware"
)

// OrderHandler handles order HTTP requests
type OrderHandler struct {
	BaseHandler
	orders *restaurantapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *restaurantapp.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// List handles GET /orders
func (h *OrderHandler) List(c *gin.Context) {
	filter, ok := h.parseFilter(c)
	if !ok {
		return
	}
	if status := c.Query("status"); status != "" {
		if !restaurant.OrderStatus(status).IsValid() {
			h.BadRequest(c, "Unknown order status")
			return
		}
		filter.Filters = map[string]interface{}{"status": status}
	}

	page, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req restaurantapp.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// MarkPaid handles POST /orders/:id/pay
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	order, err := h.orders.MarkPaid(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Void handles POST /orders/:id/void. The route must run behind
// middleware.StrictTenant; without its proof the service denies the call.
func (h *OrderHandler) Void(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	var req restaurantapp.VoidOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	proof, _ := middleware.GetVerification(c)
	order, err := h.orders.Void(c.Request.Context(), proof, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Summary handles GET /orders/summary
func (h *OrderHandler) Summary(c *gin.Context) {
	summary, err := h.orders.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
