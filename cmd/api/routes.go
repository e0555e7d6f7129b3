package main

import (
	"time"

	"security-guard/internal/auth"
	"security-guard/internal/httpapi"
	"security-guard/internal/session"
	"security-guard/internal/tokens"

	"github.com/gin-gonic/gin"
)

type deps struct {
	sessions  *session.Service
	validator *tokens.Validator
	probes    map[string]httpapi.Probe
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d deps) {
	// public
	r.GET("/healthz", httpapi.Healthz)
	r.GET("/readyz", httpapi.Readyz(2*time.Second, d.probes))

	// Every other route runs behind the token filter. Requests without a
	// valid token continue anonymously and are stopped by the role checks.
	api := r.Group("/")
	api.Use(httpapi.ClientIP(), auth.Authenticate(d.validator))
	httpapi.Mount(api, httpapi.Handlers{Sessions: d.sessions})
}
