package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "taskhub/internal/api/context"
	"taskhub/internal/api/handlers"
	"taskhub/internal/api/middleware"
	"taskhub/internal/platform/audit"
	"taskhub/internal/platform/config"
)

type Dependencies struct {
	AuthHandler       *handlers.AuthHandler
	BootstrapHandler  *handlers.BootstrapHandler
	OrgHandler        *handlers.OrgHandler
	InvitationHandler *handlers.InvitationHandler
	TaskHandler       *handlers.TaskHandler
	ProjectHandler    *handlers.ProjectHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	RateLimiter       *middleware.RateLimiter
	CORS              config.CORSConfig
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()

	authMid := deps.AuthMiddleware.Handle
	orgMid := middleware.RequireOrganization
	authLimit := deps.RateLimiter.Limit("auth")
	readLimit := deps.RateLimiter.Limit("api_read")
	writeLimit := deps.RateLimiter.Limit("api_write")

	router.GET("/health", wrap(deps.HealthHandler.Check))

	// Authentication
	router.POST("/api/v1/auth/signup", chain(deps.AuthHandler.Signup, authLimit))
	router.POST("/api/v1/auth/login", chain(deps.AuthHandler.Login, authLimit))
	router.POST("/api/v1/auth/federated", chain(deps.AuthHandler.Federated, authLimit))
	router.POST("/api/v1/auth/refresh", chain(deps.AuthHandler.Refresh, authLimit))
	router.POST("/api/v1/auth/logout", chain(deps.AuthHandler.Logout, authMid))

	router.GET("/api/v1/bootstrap", chain(deps.BootstrapHandler.Get, authMid, readLimit))

	// Organizations
	router.GET("/api/v1/organizations", chain(deps.OrgHandler.List, authMid, readLimit))
	router.POST("/api/v1/organizations", chain(deps.OrgHandler.Create, authMid, writeLimit))
	router.POST("/api/v1/organizations/switch", chain(deps.OrgHandler.Switch, authMid, writeLimit))
	router.GET("/api/v1/organizations/current/members",
		chain(deps.OrgHandler.Members, authMid, readLimit, orgMid))
	router.POST("/api/v1/organizations/current/leave",
		chain(deps.OrgHandler.Leave, authMid, writeLimit, orgMid))
	router.GET("/api/v1/organizations/current/audit",
		chain(deps.OrgHandler.Audit, authMid, readLimit, orgMid))

	// Invitations
	router.POST("/api/v1/invitations", chain(deps.InvitationHandler.Create, authMid, writeLimit, orgMid))
	router.GET("/api/v1/invitations", chain(deps.InvitationHandler.List, authMid, readLimit, orgMid))
	router.DELETE("/api/v1/invitations/:id", chain(deps.InvitationHandler.Revoke, authMid, writeLimit, orgMid))
	router.GET("/api/v1/invitations/:id/qr", chain(deps.InvitationHandler.QRCode, authMid, readLimit, orgMid))
	router.POST("/api/v1/invitations/accept", chain(deps.InvitationHandler.Accept, authMid, writeLimit))

	// Tasks
	router.GET("/api/v1/tasks", chain(deps.TaskHandler.List, authMid, readLimit, orgMid))
	router.POST("/api/v1/tasks", chain(deps.TaskHandler.Create, authMid, writeLimit, orgMid))
	router.GET("/api/v1/tasks/:id", chain(deps.TaskHandler.Get, authMid, readLimit, orgMid))
	router.PATCH("/api/v1/tasks/:id", chain(deps.TaskHandler.Update, authMid, writeLimit, orgMid))
	router.DELETE("/api/v1/tasks/:id", chain(deps.TaskHandler.Delete, authMid, writeLimit, orgMid))

	// Projects
	router.GET("/api/v1/projects", chain(deps.ProjectHandler.List, authMid, readLimit, orgMid))
	router.POST("/api/v1/projects", chain(deps.ProjectHandler.Create, authMid, writeLimit, orgMid))
	router.GET("/api/v1/projects/:id", chain(deps.ProjectHandler.Get, authMid, readLimit, orgMid))
	router.PATCH("/api/v1/projects/:id", chain(deps.ProjectHandler.Update, authMid, writeLimit, orgMid))
	router.DELETE("/api/v1/projects/:id", chain(deps.ProjectHandler.Delete, authMid, writeLimit, orgMid))
	router.GET("/api/v1/projects/:id/tasks", chain(deps.ProjectHandler.Tasks, authMid, readLimit, orgMid))

	return middleware.AccessLog(middleware.CORS(deps.CORS)(router))
}

// chain applies middlewares so the first one listed runs first.
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// wrap converts an http.HandlerFunc to an httprouter.Handle, exposing the
// route params and the client details used by audit entries through the
// request context.
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		ctx = audit.WithRequest(ctx, r)
		handler(w, r.WithContext(ctx))
	}
}
