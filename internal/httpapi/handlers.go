package httpapi

import (
	"net/http"
	"strconv"

	"security-guard/internal/audit"
	"security-guard/internal/auth"
	"security-guard/internal/identity"
	"security-guard/internal/rbac"
	"security-guard/internal/session"
	"security-guard/internal/tokens"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Sessions *session.Service
}

// ClientIP makes the resolved client IP available to the audit trail.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// --- Auth ---

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h Handlers) Register(c *gin.Context) {
	var req identity.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Sessions.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username, "email": u.Email})
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Identifier == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "identifier and password required"})
		return
	}
	pair, err := h.Sessions.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// RefreshToken expects the refresh token as the bearer credential.
func (h Handlers) RefreshToken(c *gin.Context) {
	tok, ok := auth.BearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	pair, err := h.Sessions.Refresh(c.Request.Context(), tok)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h Handlers) Logout(c *gin.Context) {
	tok, ok := auth.BearerToken(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	if err := h.Sessions.Logout(c.Request.Context(), tok); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// --- Users ---

func (h Handlers) Me(c *gin.Context) {
	p, ok := auth.PrincipalFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	u, ok := p.(identity.Identity)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"id": p.Subject(), "roles": p.Authorities()})
		return
	}
	c.JSON(http.StatusOK, u)
}

type grantRoleRequest struct {
	Role string `json:"role"`
}

func (h Handlers) GrantRole(c *gin.Context) {
	var req grantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	role, err := rbac.ParseRole(req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}

	var actorID string
	if p, ok := auth.PrincipalFrom(c.Request.Context()); ok {
		actorID = p.Subject()
	}

	u, err := h.Sessions.GrantRole(c.Request.Context(), actorID, c.Param("id"), role)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "role granted", "roles": u.Roles})
}

// --- Tokens ---

func (h Handlers) ListTokens(c *gin.Context) {
	f := tokens.ListFilter{PageSize: session.DefaultPageSize}

	var err error
	if v := c.Query("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil || f.Page < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
			return
		}
	}
	if v := c.Query("page_size"); v != "" {
		if f.PageSize, err = strconv.Atoi(v); err != nil || f.PageSize <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "page_size must be a positive integer"})
			return
		}
	}
	if v := c.Query("revoked"); v != "" {
		if f.Revoked, err = strconv.ParseBool(v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "revoked must be true or false"})
			return
		}
	}

	page, err := h.Sessions.ListTokens(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}
