// Package router wires the HTTP handlers onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/media-rental/internal/handler"
	"github.com/iliyamo/media-rental/internal/middleware"
)

// Handlers groups the resource handlers mounted under /v1.
type Handlers struct {
	Actors     *handler.ActorHandler
	Directors  *handler.DirectorHandler
	Classes    *handler.ClassHandler
	Titles     *handler.TitleHandler
	Items      *handler.ItemHandler
	Members    *handler.MemberHandler
	Dependents *handler.DependentHandler
	Clients    *handler.ClientHandler
	Rentals    *handler.RentalHandler
}

// Auth configures the /v1 guard.  With Enabled false the API is open,
// which is how the dashboard runs on a clerk's machine.
type Auth struct {
	Enabled bool
	Secret  string
}

// Roles allowed to use the API.
var Roles = []string{"ADMIN", "CLERK"}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAPI mounts every resource under /v1.  Extra middlewares (the
// response cache, the rate limiter) run after authentication so limits
// can be keyed by user.
func RegisterAPI(e *echo.Echo, h Handlers, auth Auth, extra ...echo.MiddlewareFunc) *echo.Group {
	var mws []echo.MiddlewareFunc
	if auth.Enabled {
		mws = append(mws, middleware.JWTAuth(auth.Secret), middleware.RequireRole(Roles...))
	}
	mws = append(mws, extra...)
	g := e.Group("/v1", mws...)

	h.Actors.Register(g, "/actors")
	h.Directors.Register(g, "/directors")
	h.Classes.Register(g, "/classes")
	h.Titles.Register(g, "/titles")
	h.Items.Register(g, "/items")
	h.Members.Register(g, "/members")
	h.Dependents.Register(g, "/dependents")
	g.GET("/clients", h.Clients.List)
	h.Rentals.Register(g, "/rentals")
	return g
}
