package handler

import (
	"github.com/gin-gonic/gin"
	restaurantapp "github.com/mise/backend/internal/application/restaurant"
	"github.com/mise/backend/internal/interfaces/http/middleware"
)

// SettingsHandler serves the settings of the caller's tenant
type SettingsHandler struct {
	BaseHandler
	settings *restaurantapp.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler
func NewSettingsHandler(settings *restaurantapp.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

// Get handles GET /settings
func (h *SettingsHandler) Get(c *gin.Context) {
	resp, err := h.settings.Get(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update handles PUT /settings behind middleware.StrictTenant
func (h *SettingsHandler) Update(c *gin.Context) {
	var req restaurantapp.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleBindError(c, err)
		return
	}
	proof, _ := middleware.GetVerification(c)
	resp, err := h.settings.UpdateSettings(c.Request.Context(), proof, string(req.Settings))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
