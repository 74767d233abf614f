package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"intake/internal/analytics"
	"intake/internal/auth"
	"intake/internal/contact"
	"intake/internal/db"
	"intake/internal/lifecycle"
	"intake/internal/model"
	"intake/internal/respond"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TransitionRequest carries the reviewer text for a transition. Reason is
// used by reject, Notes by every other event.
type TransitionRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

type BulkApplicationsRequest struct {
	IDs    []string `json:"application_ids" binding:"required,min=1"`
	Event  string   `json:"event" binding:"required"`
	Notes  string   `json:"notes"`
	Reason string   `json:"reason"`
}

type ResponseRequest struct {
	ResponseText string `json:"response_text" binding:"required"`
	IsPublic     bool   `json:"is_public"`
}

type AssignRequest struct {
	ReviewerID uint `json:"assigned_to"`
}

type PriorityRequest struct {
	Priority string `json:"priority" binding:"required"`
}

type Handler struct {
	db           db.Service
	applications *lifecycle.Service
	contacts     *contact.Service
	analytics    *analytics.Service
	secret       string
	tokenTTL     time.Duration
	emailEnabled bool
	logger       *slog.Logger
}

const (
	// minSearchLength is the shortest accepted global search query.
	minSearchLength = 3
	searchLimit     = 10
)

func NewHandler(dbService db.Service, applications *lifecycle.Service, contacts *contact.Service, analyticsService *analytics.Service, cfg Config, logger *slog.Logger) *Handler {
	return &Handler{
		db:           dbService,
		applications: applications,
		contacts:     contacts,
		analytics:    analyticsService,
		secret:       cfg.JWTSecret,
		tokenTTL:     cfg.TokenTTL,
		emailEnabled: cfg.EmailEnabled,
		logger:       logger.With("component", "admin"),
	}
}

func (h *Handler) reviewer(c *gin.Context) (uint, bool) {
	id, ok := auth.IdentityFrom(c)
	if !ok || id.ReviewerID == 0 {
		respond.Fail(c, http.StatusUnauthorized, "Authentication required")
		return 0, false
	}
	return id.ReviewerID, true
}

func page(c *gin.Context) (int, int) {
	p, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	l, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	return p, l
}

func paginated(c *gin.Context, data any, total int64, p, l int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"page":  p,
			"limit": l,
			"total": total,
		},
	})
}

func (h *Handler) LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	reviewer, err := auth.Authenticate(c.Request.Context(), h.db, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			respond.Fail(c, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		respond.Error(c, h.logger, err)
		return
	}

	token, err := auth.IssueToken(h.secret, reviewer.ID, reviewer.Username, h.tokenTTL)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	h.logger.Info("Reviewer logged in", "reviewer_id", reviewer.ID)
	respond.OK(c, http.StatusOK, "", gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_in": int(h.tokenTTL.Seconds()),
	})
}

func (h *Handler) ListApplicationsHandler(c *gin.Context) {
	p, l := page(c)
	apps, total, err := h.db.ListApplications(c.Request.Context(), db.ApplicationFilter{
		Status:      model.ApplicationStatus(c.Query("status")),
		PartnerType: model.PartnerType(c.Query("partner_type")),
		Search:      c.Query("search"),
		Page:        p,
		Limit:       l,
	})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	paginated(c, apps, total, p, l)
}

func (h *Handler) GetApplicationHandler(c *gin.Context) {
	app, err := h.applications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", app)
}

// TransitionHandler returns a handler applying event to the application in the path.
func (h *Handler) TransitionHandler(event lifecycle.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewerID, ok := h.reviewer(c)
		if !ok {
			return
		}
		var req TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.BindError(c, err)
			return
		}
		text := req.Notes
		if event == lifecycle.EventReject {
			text = req.Reason
		}

		result, err := h.applications.Apply(c.Request.Context(), c.Param("id"), event, reviewerID, text)
		if err != nil {
			respond.Error(c, h.logger, err)
			return
		}

		body := gin.H{
			"success": true,
			"message": "Application status updated",
			"data": gin.H{
				"application":     result.Application,
				"previous_status": result.From,
			},
		}
		if result.NotificationError != nil {
			body["warning"] = "status updated but the applicant could not be notified"
		}
		c.JSON(http.StatusOK, body)
	}
}

func (h *Handler) BulkApplicationsHandler(c *gin.Context) {
	reviewerID, ok := h.reviewer(c)
	if !ok {
		return
	}
	var req BulkApplicationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	event, err := lifecycle.ParseEvent(req.Event)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	text := req.Notes
	if event == lifecycle.EventReject {
		text = req.Reason
	}

	result := h.applications.Bulk(c.Request.Context(), req.IDs, event, reviewerID, text)
	respond.OK(c, http.StatusOK, "", result)
}

func (h *Handler) ListContactsHandler(c *gin.Context) {
	p, l := page(c)
	msgs, total, err := h.contacts.List(c.Request.Context(), db.ContactFilter{
		Status:   model.ContactStatus(c.Query("status")),
		Subject:  c.Query("subject"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
		Page:     p,
		Limit:    l,
	})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	paginated(c, msgs, total, p, l)
}

func (h *Handler) GetContactHandler(c *gin.Context) {
	msg, err := h.contacts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", msg)
}

func (h *Handler) AddResponseHandler(c *gin.Context) {
	reviewerID, ok := h.reviewer(c)
	if !ok {
		return
	}
	var req ResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	resp, err := h.contacts.AddResponse(c.Request.Context(), c.Param("id"), reviewerID, req.ResponseText, req.IsPublic)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, "Response added", resp)
}

func (h *Handler) ResolveContactHandler(c *gin.Context) {
	msg, err := h.contacts.MarkResolved(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "Message resolved", msg)
}

func (h *Handler) CloseContactHandler(c *gin.Context) {
	msg, err := h.contacts.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "Message closed", msg)
}

func (h *Handler) AssignContactHandler(c *gin.Context) {
	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	if req.ReviewerID != 0 {
		if _, err := h.db.GetReviewer(c.Request.Context(), req.ReviewerID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				respond.Fail(c, http.StatusBadRequest, "Unknown reviewer")
				return
			}
			respond.Error(c, h.logger, err)
			return
		}
	}
	msg, err := h.contacts.Assign(c.Request.Context(), c.Param("id"), req.ReviewerID)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "Message assigned", msg)
}

func (h *Handler) SetPriorityHandler(c *gin.Context) {
	var req PriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	msg, err := h.contacts.SetPriority(c.Request.Context(), c.Param("id"), req.Priority)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "Priority updated", msg)
}

func (h *Handler) BulkContactsHandler(c *gin.Context) {
	var req contact.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}
	result, err := h.contacts.Bulk(c.Request.Context(), req)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", result)
}

func (h *Handler) ContactAnalyticsHandler(c *gin.Context) {
	dash, err := h.analytics.ContactDashboard(c.Request.Context())
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", dash)
}

func (h *Handler) PartnerAnalyticsHandler(c *gin.Context) {
	dash, err := h.analytics.PartnerDashboard(c.Request.Context())
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", dash)
}

func (h *Handler) ListDocumentsHandler(c *gin.Context) {
	docs, err := h.applications.Documents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", docs)
}

// SearchHandler looks q up in contact messages and applications.
func (h *Handler) SearchHandler(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if utf8.RuneCountInString(q) < minSearchLength {
		respond.Fail(c, http.StatusBadRequest, "Search query must be at least 3 characters")
		return
	}

	ctx := c.Request.Context()
	contacts, _, err := h.contacts.List(ctx, db.ContactFilter{Search: q, Limit: searchLimit})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	partners, _, err := h.db.ListApplications(ctx, db.ApplicationFilter{Search: q, Limit: searchLimit})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", gin.H{
		"contacts":      contacts,
		"partners":      partners,
		"total_results": len(contacts) + len(partners),
	})
}

func (h *Handler) StatsHandler(c *gin.Context) {
	stats, err := h.analytics.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusOK, "", gin.H{
		"contact_stats":   stats.ContactStats,
		"partner_stats":   stats.PartnerStats,
		"recent_activity": stats.RecentActivity,
		"system_health":   h.systemHealth(c.Request.Context()),
	})
}

func (h *Handler) systemHealth(ctx context.Context) gin.H {
	database := "healthy"
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := h.db.Ping(pingCtx); err != nil {
		h.logger.Error("Database ping failed", "error", err)
		database = "unhealthy"
	}
	email := "not_configured"
	if h.emailEnabled {
		email = "healthy"
	}
	return gin.H{
		"database":      database,
		"email_service": email,
		"file_storage":  "not_configured",
	}
}
