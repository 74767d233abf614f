package admin

import (
	"time"

	"intake/internal/auth"
	"intake/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// Config holds the token settings for the reviewer API. EmailEnabled is
// reported by the stats endpoint.
type Config struct {
	JWTSecret    string
	TokenTTL     time.Duration
	EmailEnabled bool
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	adminGroup := router.Group("/admin")
	adminGroup.POST("/login", handler.LoginHandler)

	reviewerGroup := adminGroup.Group("")
	reviewerGroup.Use(auth.ReviewerMiddleware(handler.secret, handler.db))
	{
		applicationsGroup := reviewerGroup.Group("/applications")
		{
			applicationsGroup.GET("", handler.ListApplicationsHandler)
			applicationsGroup.POST("/bulk", handler.BulkApplicationsHandler)
			applicationsGroup.GET("/:id", handler.GetApplicationHandler)
			applicationsGroup.GET("/:id/documents", handler.ListDocumentsHandler)
			applicationsGroup.POST("/:id/start-review", handler.TransitionHandler(lifecycle.EventStartReview))
			applicationsGroup.POST("/:id/approve", handler.TransitionHandler(lifecycle.EventApprove))
			applicationsGroup.POST("/:id/reject", handler.TransitionHandler(lifecycle.EventReject))
			applicationsGroup.POST("/:id/hold", handler.TransitionHandler(lifecycle.EventHold))
			applicationsGroup.POST("/:id/request-info", handler.TransitionHandler(lifecycle.EventRequestInfo))
		}

		contactsGroup := reviewerGroup.Group("/contacts")
		{
			contactsGroup.GET("", handler.ListContactsHandler)
			contactsGroup.POST("/bulk", handler.BulkContactsHandler)
			contactsGroup.GET("/:id", handler.GetContactHandler)
			contactsGroup.POST("/:id/responses", handler.AddResponseHandler)
			contactsGroup.POST("/:id/resolve", handler.ResolveContactHandler)
			contactsGroup.POST("/:id/close", handler.CloseContactHandler)
			contactsGroup.POST("/:id/assign", handler.AssignContactHandler)
			contactsGroup.POST("/:id/priority", handler.SetPriorityHandler)
		}

		reviewerGroup.GET("/search", handler.SearchHandler)
		reviewerGroup.GET("/stats", handler.StatsHandler)

		analyticsGroup := reviewerGroup.Group("/analytics")
		{
			analyticsGroup.GET("/contacts", handler.ContactAnalyticsHandler)
			analyticsGroup.GET("/partners", handler.PartnerAnalyticsHandler)
		}
	}
}
