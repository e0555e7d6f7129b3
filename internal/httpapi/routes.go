package httpapi

import (
	"security-guard/internal/auth"
	"security-guard/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Mount wires the token lifecycle and directory routes. The auth.Authenticate
// filter must already run on r.
func Mount(r gin.IRouter, h Handlers) {
	a := r.Group("/auth")
	{
		a.POST("/register", h.Register)
		a.POST("/login", h.Login)
		a.POST("/refresh-token", h.RefreshToken)
		a.POST("/logout", h.Logout)
	}

	users := r.Group("/users")
	users.Use(auth.RequireAuthenticated())
	{
		users.GET("/me", rbac.RequireAnyRole(rbac.RoleUser, rbac.RoleAdmin), h.Me)
		users.POST("/:id/role", rbac.RequireAnyRole(rbac.RoleAdmin), h.GrantRole)
	}

	r.GET("/tokens", rbac.RequireAnyRole(rbac.RoleAdmin), h.ListTokens)
}
