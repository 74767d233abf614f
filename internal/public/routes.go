package public

import (
	"log/slog"

	"intake/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Limits throttles the two submission endpoints.
type Limits struct {
	Limiter            *ratelimit.Limiter
	ContactForm        ratelimit.Policy
	PartnerApplication ratelimit.Policy
}

// SetupRoutes configures the public API routes under /api/v1.
func SetupRoutes(router *gin.Engine, h *Handler, limits Limits, logger *slog.Logger) {
	RegisterValidators()

	api := router.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.GET("/contact/config", h.ContactConfig)
		api.GET("/partner/config", h.PartnerConfig)

		api.POST("/contact",
			ratelimit.Middleware(limits.Limiter, limits.ContactForm,
				"Too many messages sent. Please try again later.", logger),
			h.SubmitContact,
		)

		applications := api.Group("/partner-applications")
		{
			applications.POST("",
				ratelimit.Middleware(limits.Limiter, limits.PartnerApplication,
					"Too many applications submitted. Please try again later.", logger),
				h.SubmitApplication,
			)
			applications.POST("/status", h.ApplicationStatus)
			applications.POST("/documents", h.SubmitDocument)
		}
	}
}
