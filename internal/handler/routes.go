package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-clearance-api/internal/middleware"
)

// Handlers groups the API handlers mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	PasswordReset *PasswordResetHandler
	Requests      *ClearanceRequestHandler
}

// RegisterRoutes mounts the API surface. Paths keep their trailing slash.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, tokens middleware.TokenValidator) {
	requireAuth := middleware.JWT(tokens)
	optionalAuth := middleware.OptionalJWT(tokens)

	api.POST("/token/", h.Auth.Login)
	api.POST("/token/refresh/", h.Auth.Refresh)
	api.POST("/register/", h.Auth.Register)
	api.GET("/me/", requireAuth, h.Auth.Me)

	api.POST("/verify-reset-credentials/", h.PasswordReset.VerifyCredentials)
	api.POST("/reset-password-confirm/", h.PasswordReset.Confirm)

	requests := api.Group("/requests")
	requests.GET("/", requireAuth, h.Requests.List)
	requests.POST("/create/", requireAuth, h.Requests.Create)
	requests.GET("/stats/", requireAuth, middleware.RequireStaff(), middleware.WithResponseMeta(), h.Requests.Stats)
	requests.GET("/export/", requireAuth, middleware.RequireStaff(), h.Requests.Export)
	// Update and delete do not enforce ownership; the caller is only recorded when present.
	requests.PUT("/:pk/", optionalAuth, h.Requests.Replace)
	requests.PATCH("/:pk/", optionalAuth, h.Requests.Patch)
	requests.DELETE("/:pk/", optionalAuth, h.Requests.Delete)
}
