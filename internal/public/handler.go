// Package public serves the unauthenticated intake API.
package public

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"intake/internal/contact"
	"intake/internal/lifecycle"
	"intake/internal/model"
	"intake/internal/normalize"
	"intake/internal/respond"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Applications is the part of the lifecycle the public API calls.
type Applications interface {
	Submit(ctx context.Context, in lifecycle.SubmitInput) (*model.PartnerApplication, error)
	Lookup(ctx context.Context, id, email string) (*model.PartnerApplication, error)
	AddDocument(ctx context.Context, in lifecycle.DocumentInput) (*model.PartnerDocument, error)
}

// Contacts accepts contact form submissions.
type Contacts interface {
	Submit(ctx context.Context, in contact.SubmitInput) (*model.ContactMessage, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for the public handlers.
type Handler struct {
	applications Applications
	contacts     Contacts
	database     Pinger
	logger       *slog.Logger
}

// NewHandler creates a new public Handler.
func NewHandler(applications Applications, contacts Contacts, database Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		applications: applications,
		contacts:     contacts,
		database:     database,
		logger:       logger.With("component", "public"),
	}
}

var registerOnce sync.Once

// RegisterValidators adds the cmphone binding rule to gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("cmphone", func(fl validator.FieldLevel) bool {
				_, ok := normalize.Phone(fl.Field().String())
				return ok
			})
		}
	})
}

type contactRequest struct {
	Name                   string `json:"name" binding:"required,max=100"`
	Email                  string `json:"email" binding:"required,max=254"`
	Phone                  string `json:"phone" binding:"omitempty,cmphone"`
	Company                string `json:"company" binding:"max=200"`
	Website                string `json:"website" binding:"max=200"`
	Subject                string `json:"subject"`
	Message                string `json:"message" binding:"required"`
	PreferredContactMethod string `json:"preferred_contact_method"`
	UTMSource              string `json:"utm_source" binding:"max=100"`
	UTMMedium              string `json:"utm_medium" binding:"max=100"`
	UTMCampaign            string `json:"utm_campaign" binding:"max=100"`
}

type statusRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	Email         string `json:"email" binding:"required"`
}

// Health reports database reachability.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{"timestamp": time.Now().UTC()}
	if err := h.database.Ping(ctx); err != nil {
		h.logger.Error("Health check failed", "error", err)
		body["status"] = "unhealthy"
		body["database"] = "unreachable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "healthy"
	body["database"] = "ok"
	c.JSON(http.StatusOK, body)
}

// ContactConfig describes the contact form choices.
func (h *Handler) ContactConfig(c *gin.Context) {
	respond.OK(c, http.StatusOK, "", gin.H{
		"subjects":           model.ContactSubjects,
		"contact_methods":    model.ContactMethods,
		"max_message_length": contact.MaxMessageLength,
		"min_message_length": contact.MinMessageLength,
		"required_fields":    []string{"name", "email", "message"},
	})
}

// PartnerConfig describes the application form choices.
func (h *Handler) PartnerConfig(c *gin.Context) {
	respond.OK(c, http.StatusOK, "", gin.H{
		"partner_types":         model.PartnerTypes,
		"legal_statuses":        model.LegalStatuses,
		"vehicle_types":         model.VehicleTypes,
		"investment_types":      model.InvestmentTypes,
		"service_types":         model.ServiceTypes,
		"document_types":        model.DocumentTypes,
		"min_investment_amount": lifecycle.MinInvestmentAmount,
		"max_file_size":         lifecycle.MaxFileSize,
		"allowed_file_types":    lifecycle.AllowedFileTypes,
		"max_photos":            lifecycle.MaxPhotos,
	})
}

// SubmitContact stores a contact form message.
func (h *Handler) SubmitContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	msg, err := h.contacts.Submit(c.Request.Context(), contact.SubmitInput{
		Name:                   req.Name,
		Email:                  req.Email,
		Phone:                  req.Phone,
		Company:                req.Company,
		Website:                req.Website,
		Subject:                req.Subject,
		Message:                req.Message,
		PreferredContactMethod: req.PreferredContactMethod,
		UTMSource:              req.UTMSource,
		UTMMedium:              req.UTMMedium,
		UTMCampaign:            req.UTMCampaign,
		IPAddress:              c.ClientIP(),
		UserAgent:              c.Request.UserAgent(),
	})
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, "Your message has been sent. We will get back to you shortly.", gin.H{
		"message_id": msg.ID,
		"status":     msg.Status,
	})
}

// SubmitApplication stores a new partner application.
func (h *Handler) SubmitApplication(c *gin.Context) {
	var in lifecycle.SubmitInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BindError(c, err)
		return
	}

	app, err := h.applications.Submit(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, "Your application has been received.", gin.H{
		"application_id": app.ID,
		"status":         app.Status,
		"partner_type":   app.PartnerType,
	})
}

// ApplicationStatus lets an applicant look up an application with its id and email.
func (h *Handler) ApplicationStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	app, err := h.applications.Lookup(c.Request.Context(), req.ApplicationID, req.Email)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}

	data := gin.H{
		"application_id": app.ID,
		"status":         app.Status,
		"partner_type":   app.PartnerType,
		"created_at":     app.CreatedAt,
		"updated_at":     app.UpdatedAt,
	}
	if app.ReviewedAt != nil {
		data["reviewed_at"] = app.ReviewedAt
	}
	if app.Status == model.ApplicationStatusRejected && app.RejectionReason != "" {
		data["rejection_reason"] = app.RejectionReason
	}
	respond.OK(c, http.StatusOK, "", data)
}

// SubmitDocument records the metadata of a file uploaded for an application.
// The caller proves ownership with the application id and email.
func (h *Handler) SubmitDocument(c *gin.Context) {
	var in lifecycle.DocumentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.BindError(c, err)
		return
	}

	doc, err := h.applications.AddDocument(c.Request.Context(), in)
	if err != nil {
		respond.Error(c, h.logger, err)
		return
	}
	respond.OK(c, http.StatusCreated, "Document recorded.", doc)
}
