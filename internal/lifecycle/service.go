package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"intake/internal/db"
	"intake/internal/model"
	"intake/internal/normalize"

	"github.com/go-playground/validator/v10"
)

// MinInvestmentAmount is the smallest accepted investor commitment, in FCFA.
const MinInvestmentAmount = 100000

// Store is the persistence the lifecycle needs. db.Service satisfies it.
type Store interface {
	CreateApplication(ctx context.Context, app *model.PartnerApplication) error
	GetApplication(ctx context.Context, id string) (*model.PartnerApplication, error)
	FindApplicationByIDAndEmail(ctx context.Context, id, email string) (*model.PartnerApplication, error)
	HasOpenApplication(ctx context.Context, email string, partnerType model.PartnerType) (bool, error)
	UpdateApplicationStatus(ctx context.Context, app *model.PartnerApplication, expected model.ApplicationStatus) error
	CreateDocument(ctx context.Context, doc *model.PartnerDocument) error
	ListDocuments(ctx context.Context, applicationID string) ([]model.PartnerDocument, error)
}

// Notifier receives application events after they are persisted.
type Notifier interface {
	ApplicationReceived(ctx context.Context, app *model.PartnerApplication) error
	NotifyStatusChange(ctx context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error
}

// SubmitInput carries the applicant-supplied fields.
type SubmitInput struct {
	PartnerType model.PartnerType `json:"partner_type"`
	ContactName string            `json:"contact_name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`

	BusinessName string `json:"business_name"`
	CuisineType  string `json:"cuisine_type"`
	Capacity     *int   `json:"capacity"`
	OpeningHours string `json:"opening_hours"`

	Address   string   `json:"address"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`

	LegalStatus string `json:"legal_status"`
	TaxID       string `json:"tax_id"`

	VehicleType    string `json:"vehicle_type"`
	DrivingLicense string `json:"driving_license"`

	InvestmentAmount   *float64 `json:"investment_amount"`
	InvestmentType     string   `json:"investment_type"`
	BusinessExperience *int     `json:"business_experience"`

	ServiceType   string `json:"service_type"`
	TermsAccepted bool   `json:"terms_accepted"`
}

// TransitionResult is the outcome of a successful reviewer transition.
type TransitionResult struct {
	Application *model.PartnerApplication
	From        model.ApplicationStatus
	// NotificationError is set when the state change was persisted but the
	// applicant could not be notified.
	NotificationError error
}

// BulkItem is the outcome for one id of a bulk operation.
type BulkItem struct {
	ID     string                  `json:"id"`
	OK     bool                    `json:"ok"`
	Status model.ApplicationStatus `json:"status,omitempty"`
	Error  string                  `json:"error,omitempty"`
	Err    error                   `json:"-"`
}

// BulkResult lists per-item outcomes in input order.
type BulkResult struct {
	Items     []BulkItem `json:"items"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// Service applies lifecycle events to stored applications.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a lifecycle Service.
func NewService(store Store, notifier Notifier, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "lifecycle"),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates in, creates the application in pending and acknowledges
// receipt. A receipt failure is logged and does not fail the submission.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.PartnerApplication, error) {
	app, err := s.buildApplication(in)
	if err != nil {
		return nil, err
	}

	open, err := s.store.HasOpenApplication(ctx, app.Email, app.PartnerType)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, ErrDuplicate
	}

	app.Status = model.ApplicationStatusPending
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	s.logger.Info("Application submitted", "id", app.ID, "partner_type", app.PartnerType)

	if err := s.notifier.ApplicationReceived(ctx, app); err != nil {
		s.logger.Error("Failed to send application receipt", "id", app.ID, "error", err)
	}
	return app, nil
}

func (s *Service) buildApplication(in SubmitInput) (*model.PartnerApplication, error) {
	var errs ValidationErrors
	fail := func(field, msg string) { errs = append(errs, &ValidationError{Field: field, Message: msg}) }

	if !slices.Contains(model.PartnerTypes, in.PartnerType) {
		fail("partner_type", "unknown partner type")
	}

	name := normalize.Text(in.ContactName)
	if len([]rune(name)) < 2 {
		fail("contact_name", "must be at least 2 characters")
	}

	email := normalize.Email(in.Email)
	if email == "" {
		fail("email", "is required")
	} else if err := s.validate.Var(email, "email"); err != nil {
		fail("email", "is not a valid address")
	}

	phone, ok := normalize.Phone(in.Phone)
	if phone == "" {
		fail("phone", "is required")
	} else if !ok {
		fail("phone", "is not a valid Cameroon number")
	}

	if !in.TermsAccepted {
		fail("terms_accepted", "terms must be accepted")
	}

	required := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			fail(field, "is required for this partner type")
		}
	}
	switch in.PartnerType {
	case model.PartnerTypeRestaurant:
		required("business_name", in.BusinessName)
		required("cuisine_type", in.CuisineType)
		required("address", in.Address)
		required("city", in.City)
	case model.PartnerTypeDeliveryAgent:
		required("vehicle_type", in.VehicleType)
		required("address", in.Address)
		required("city", in.City)
	case model.PartnerTypeInvestor:
		if in.InvestmentAmount == nil {
			fail("investment_amount", "is required for this partner type")
		} else if *in.InvestmentAmount < MinInvestmentAmount {
			fail("investment_amount", fmt.Sprintf("minimum investment is %d FCFA", MinInvestmentAmount))
		}
		required("investment_type", in.InvestmentType)
	case model.PartnerTypeOther:
		required("service_type", in.ServiceType)
	}

	if len(errs) > 0 {
		return nil, errs
	}

	return &model.PartnerApplication{
		PartnerType:        in.PartnerType,
		ContactName:        name,
		Email:              email,
		Phone:              phone,
		BusinessName:       normalize.Text(in.BusinessName),
		CuisineType:        strings.TrimSpace(in.CuisineType),
		Capacity:           in.Capacity,
		OpeningHours:       strings.TrimSpace(in.OpeningHours),
		Address:            strings.TrimSpace(in.Address),
		City:               normalize.Text(in.City),
		Latitude:           in.Latitude,
		Longitude:          in.Longitude,
		LegalStatus:        in.LegalStatus,
		TaxID:              strings.TrimSpace(in.TaxID),
		VehicleType:        in.VehicleType,
		DrivingLicense:     strings.TrimSpace(in.DrivingLicense),
		InvestmentAmount:   in.InvestmentAmount,
		InvestmentType:     in.InvestmentType,
		BusinessExperience: in.BusinessExperience,
		ServiceType:        in.ServiceType,
	}, nil
}

// Get loads an application for a reviewer.
func (s *Service) Get(ctx context.Context, id string) (*model.PartnerApplication, error) {
	app, err := s.store.GetApplication(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return app, err
}

// Lookup is the applicant's status check. A wrong id and a wrong email are
// reported the same way.
func (s *Service) Lookup(ctx context.Context, id, email string) (*model.PartnerApplication, error) {
	id = strings.TrimSpace(id)
	email = normalize.Email(email)
	if id == "" || email == "" {
		return nil, ErrNotFound
	}
	app, err := s.store.FindApplicationByIDAndEmail(ctx, id, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return app, err
}

// StartReview moves an application to under_review.
func (s *Service) StartReview(ctx context.Context, id string, reviewerID uint, notes string) (*TransitionResult, error) {
	return s.Apply(ctx, id, EventStartReview, reviewerID, notes)
}

// Approve accepts an application. The applicant is notified.
func (s *Service) Approve(ctx context.Context, id string, reviewerID uint, notes string) (*TransitionResult, error) {
	return s.Apply(ctx, id, EventApprove, reviewerID, notes)
}

// Reject declines an application; reason is required. The applicant is notified.
func (s *Service) Reject(ctx context.Context, id string, reviewerID uint, reason string) (*TransitionResult, error) {
	return s.Apply(ctx, id, EventReject, reviewerID, reason)
}

// Hold parks an application.
func (s *Service) Hold(ctx context.Context, id string, reviewerID uint, notes string) (*TransitionResult, error) {
	return s.Apply(ctx, id, EventHold, reviewerID, notes)
}

// RequestInfo asks the applicant for more information.
func (s *Service) RequestInfo(ctx context.Context, id string, reviewerID uint, notes string) (*TransitionResult, error) {
	return s.Apply(ctx, id, EventRequestInfo, reviewerID, notes)
}

// Apply runs a reviewer event against application id. For reject, text is
// the rejection reason; for every other event it is an optional review note.
func (s *Service) Apply(ctx context.Context, id string, event Event, reviewerID uint, text string) (*TransitionResult, error) {
	t, ok := transitions[event]
	if !ok {
		return nil, &ValidationError{Field: "event", Message: fmt.Sprintf("unknown event %q", event)}
	}
	if reviewerID == 0 {
		return nil, &ValidationError{Field: "reviewer", Message: "reviewer identity is required"}
	}
	text = strings.TrimSpace(text)
	if event == EventReject && text == "" {
		return nil, &ValidationError{Field: "reason", Message: "a rejection reason is required"}
	}

	app, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := app.Status
	if !slices.Contains(t.from, from) {
		return nil, &TransitionError{Event: event, From: from, Allowed: slices.Clone(t.from)}
	}

	now := s.now().UTC()
	app.Status = t.to
	app.ReviewerID = &reviewerID
	if app.ReviewedAt == nil {
		app.ReviewedAt = &now
	}
	switch event {
	case EventApprove:
		app.ApprovedAt = &now
	case EventReject:
		app.RejectionReason = text
		app.RejectedAt = &now
	}
	if text != "" && event != EventReject {
		app.ReviewNotes = appendNote(app.ReviewNotes, text)
	}

	if err := s.store.UpdateApplicationStatus(ctx, app, from); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, s.staleError(ctx, id, event, t)
		}
		return nil, err
	}
	s.logger.Info("Application status changed",
		"id", app.ID, "event", event, "from", from, "to", app.Status, "reviewer_id", reviewerID)

	result := &TransitionResult{Application: app, From: from}
	if app.Status.Terminal() {
		if err := s.notifier.NotifyStatusChange(ctx, app, from, app.Status); err != nil {
			s.logger.Error("Failed to notify applicant", "id", app.ID, "status", app.Status, "error", err)
			result.NotificationError = err
		}
	}
	return result, nil
}

func (s *Service) staleError(ctx context.Context, id string, event Event, t transition) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return &TransitionError{Event: event, From: current.Status, Allowed: slices.Clone(t.from), Concurrent: true}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

// Bulk applies event to each id independently. One item failing never stops
// the others.
func (s *Service) Bulk(ctx context.Context, ids []string, event Event, reviewerID uint, text string) BulkResult {
	result := BulkResult{Items: make([]BulkItem, 0, len(ids))}
	for _, id := range ids {
		item := BulkItem{ID: id}
		res, err := s.Apply(ctx, id, event, reviewerID, text)
		if err != nil {
			item.Err = err
			item.Error = err.Error()
			result.Failed++
		} else {
			item.OK = true
			item.Status = res.Application.Status
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	s.logger.Info("Bulk transition finished",
		"event", event, "succeeded", result.Succeeded, "failed", result.Failed)
	return result
}
