package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/interfaces/http/handler"
	"github.com/mise/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers groups the HTTP handlers served by the API
type Handlers struct {
	Health   *handler.HealthHandler
	Menu     *handler.MenuHandler
	Orders   *handler.OrderHandler
	Settings *handler.SettingsHandler
	Audit    *handler.AuditHandler
}

// Dependencies wires the request pipeline in front of the handlers
type Dependencies struct {
	Handlers Handlers
	Tokens   middleware.TokenValidator
	Gate     middleware.Admitter
	Verifier middleware.StrictVerifier
	// BaseDomain enables Host-based subdomain hints
	BaseDomain string
	HintHeader string
	HintQuery  string
	BodyLimit  int64
	Logger     *zap.Logger
}

// Setup registers the health endpoints and the versioned API on engine.
//
// Every /api route runs JWT authentication and then the isolation gate, so no
// handler is reachable without a bound request context. Routes that change
// tenant-wide or financial state additionally require strict verification.
func Setup(engine *gin.Engine, deps Dependencies) *Router {
	h := deps.Handlers

	engine.GET("/health", h.Health.Health)
	engine.GET("/ready", h.Health.Ready)

	isolation := middleware.DefaultIsolationConfig(deps.Gate)
	isolation.BaseDomain = deps.BaseDomain
	if deps.HintHeader != "" {
		isolation.HintHeader = deps.HintHeader
	}
	if deps.HintQuery != "" {
		isolation.HintQuery = deps.HintQuery
	}

	jwtCfg := middleware.DefaultJWTConfig(deps.Tokens)
	if deps.Logger != nil {
		jwtCfg.Logger = deps.Logger
	}

	bodyLimit := deps.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = middleware.DefaultBodyLimit
	}

	r := NewRouter(engine,
		WithMiddleware(
			middleware.BodyLimit(bodyLimit),
			middleware.JWTAuthMiddlewareWithConfig(jwtCfg),
			middleware.IsolationGate(isolation),
			middleware.TenantSpanAttributes(),
		),
		WithStrictVerification(middleware.StrictTenant(deps.Verifier)),
	)

	menu := NewResource("/menu-items").
		GET("", h.Menu.List).
		POST("", h.Menu.Create).
		GET("/:id", h.Menu.Get).
		PUT("/:id", h.Menu.Update).
		DELETE("/:id", h.Menu.Delete)

	orders := NewResource("/orders").
		GET("", h.Orders.List).
		POST("", h.Orders.Create).
		GET("/summary", h.Orders.Summary).
		GET("/:id", h.Orders.Get).
		POST("/:id/pay", h.Orders.MarkPaid).
		Strict(http.MethodPost, "/:id/void", h.Orders.Void)

	settings := NewResource("/settings").
		GET("", h.Settings.Get).
		Strict(http.MethodPut, "", h.Settings.Update)

	auditLog := NewResource("/audit").
		GET("", h.Audit.List)

	r.Mount(menu, orders, settings, auditLog)
	r.Setup()
	return r
}
