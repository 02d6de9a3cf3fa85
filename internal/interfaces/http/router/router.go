package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mise/backend/internal/interfaces/http/middleware"
)

// Router mounts tenant-scoped resources under /api/<version>.
//
// The pipeline runs in front of every mounted route. Routes declared with
// Strict additionally pass through the strict verifier; when none is
// configured they are denied instead of served unverified.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	pipeline   []gin.HandlerFunc
	strict     gin.HandlerFunc
	resources  []*Resource
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithMiddleware appends handlers to the pipeline of every API route
func WithMiddleware(middleware ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.pipeline = append(r.pipeline, middleware...)
	}
}

// WithStrictVerification sets the handler that guards Strict routes
func WithStrictVerification(strict gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.strict = strict
	}
}

// NewRouter creates a Router serving API version v1 unless overridden
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount queues resources for registration by Setup
func (r *Router) Mount(resources ...*Resource) *Router {
	r.resources = append(r.resources, resources...)
	return r
}

// Setup registers every mounted resource with the engine
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	if len(r.pipeline) > 0 {
		api.Use(r.pipeline...)
	}

	strict := r.strict
	if strict == nil {
		strict = middleware.AbortAccessDenied
	}

	for _, res := range r.resources {
		group := api.Group(res.prefix)
		for _, rt := range res.routes {
			handlers := rt.handlers
			if rt.strict {
				handlers = append([]gin.HandlerFunc{strict}, handlers...)
			}
			group.Handle(rt.method, rt.path, handlers...)
		}
	}
}

// Resource collects the routes of one tenant-scoped resource
type Resource struct {
	prefix string
	routes []route
}

type route struct {
	method   string
	path     string
	strict   bool
	handlers []gin.HandlerFunc
}

// NewResource creates a resource served below prefix
func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

func (res *Resource) add(method, path string, strict bool, handlers []gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, route{
		method:   method,
		path:     path,
		strict:   strict,
		handlers: handlers,
	})
	return res
}

// GET registers a read route
func (res *Resource) GET(path string, handlers ...gin.HandlerFunc) *Resource {
	return res.add(http.MethodGet, path, false, handlers)
}

// POST registers a create or action route
func (res *Resource) POST(path string, handlers ...gin.HandlerFunc) *Resource {
	return res.add(http.MethodPost, path, false, handlers)
}

// PUT registers an update route
func (res *Resource) PUT(path string, handlers ...gin.HandlerFunc) *Resource {
	return res.add(http.MethodPut, path, false, handlers)
}

// DELETE registers a delete route
func (res *Resource) DELETE(path string, handlers ...gin.HandlerFunc) *Resource {
	return res.add(http.MethodDelete, path, false, handlers)
}

// Strict registers a route that changes tenant-wide or financial state. It
// runs only after the tenant binding is re-verified.
func (res *Resource) Strict(method, path string, handlers ...gin.HandlerFunc) *Resource {
	return res.add(method, path, true, handlers)
}
