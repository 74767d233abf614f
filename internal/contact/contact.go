// Package contact handles contact form submissions and their support workflow.
package contact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"intake/internal/db"
	"intake/internal/model"
	"intake/internal/normalize"

	"github.com/go-playground/validator/v10"
)

const (
	MinMessageLength = 10
	MaxMessageLength = 5000
)

var (
	ErrNotFound      = errors.New("contact message not found")
	ErrInvalidStatus = errors.New("action not allowed in current status")
	ErrValidation    = errors.New("invalid contact input")
)

// Store is the persistence the workflow needs. db.Service satisfies it.
type Store interface {
	CreateContactMessage(ctx context.Context, msg *model.ContactMessage) error
	GetContactMessage(ctx context.Context, id string) (*model.ContactMessage, error)
	UpdateContactMessage(ctx context.Context, msg *model.ContactMessage, expected model.ContactStatus) error
	ListContactMessages(ctx context.Context, filter db.ContactFilter) ([]model.ContactMessage, int64, error)
	AddContactResponse(ctx context.Context, resp *model.ContactResponse) error
}

// Notifier is told about new contact messages.
type Notifier interface {
	ContactReceived(ctx context.Context, msg *model.ContactMessage) error
}

// SubmitInput is a contact form submission.
type SubmitInput struct {
	Name                   string `json:"name"`
	Email                  string `json:"email"`
	Phone                  string `json:"phone"`
	Company                string `json:"company"`
	Website                string `json:"website"`
	Subject                string `json:"subject"`
	Message                string `json:"message"`
	PreferredContactMethod string `json:"preferred_contact_method"`
	UTMSource              string `json:"utm_source"`
	UTMMedium              string `json:"utm_medium"`
	UTMCampaign            string `json:"utm_campaign"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// BulkAction names a bulk operation.
type BulkAction string

const (
	BulkMarkResolved BulkAction = "mark_resolved"
	BulkAssign       BulkAction = "assign"
	BulkSetPriority  BulkAction = "set_priority"
	BulkClose        BulkAction = "close"
)

// BulkRequest describes a bulk operation; AssignTo and Priority are used by
// the matching actions only.
type BulkRequest struct {
	IDs      []string   `json:"message_ids"`
	Action   BulkAction `json:"action"`
	AssignTo uint       `json:"assigned_to"`
	Priority string     `json:"priority"`
}

// BulkItem is the outcome for one message.
type BulkItem struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// BulkResult lists outcomes in input order.
type BulkResult struct {
	Items     []BulkItem `json:"items"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
}

// Service runs the contact workflow.
type Service struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a contact Service.
func NewService(store Store, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger.With("component", "contact"),
		validate: validator.New(),
		now:      time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Submit validates and stores a contact message, then sends the
// acknowledgement. Acknowledgement failures are only logged.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*model.ContactMessage, error) {
	msg, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateContactMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.logger.Info("Contact message created", "id", msg.ID, "subject", msg.Subject)

	if err := s.notifier.ContactReceived(ctx, msg); err != nil {
		s.logger.Error("Failed to send contact confirmation", "id", msg.ID, "error", err)
	}
	return msg, nil
}

func (s *Service) build(in SubmitInput) (*model.ContactMessage, error) {
	name := normalize.Text(in.Name)
	if utf8.RuneCountInString(name) < 2 {
		return nil, invalid("name must be at least 2 characters")
	}

	email := normalize.Email(in.Email)
	if email == "" || s.validate.Var(email, "email") != nil {
		return nil, invalid("a valid email is required")
	}

	var phone string
	if strings.TrimSpace(in.Phone) != "" {
		p, ok := normalize.Phone(in.Phone)
		if !ok {
			return nil, invalid("phone is not a valid Cameroon number")
		}
		phone = p
	}

	website := strings.TrimSpace(in.Website)
	if website != "" && s.validate.Var(website, "url") != nil {
		return nil, invalid("website is not a valid URL")
	}

	subject := in.Subject
	if subject == "" {
		subject = "general"
	}
	if !slices.Contains(model.ContactSubjects, subject) {
		return nil, invalid("unknown subject %q", subject)
	}

	method := in.PreferredContactMethod
	if method == "" {
		method = "email"
	}
	if !slices.Contains(model.ContactMethods, method) {
		return nil, invalid("unknown contact method %q", method)
	}

	message := strings.TrimSpace(in.Message)
	n := utf8.RuneCountInString(message)
	if n < MinMessageLength {
		return nil, invalid("message must be at least %d characters", MinMessageLength)
	}
	if n > MaxMessageLength {
		return nil, invalid("message must be at most %d characters", MaxMessageLength)
	}

	return &model.ContactMessage{
		Name:                   name,
		Email:                  email,
		Phone:                  phone,
		Company:                normalize.Text(in.Company),
		Website:                website,
		Subject:                subject,
		Message:                message,
		PreferredContactMethod: method,
		Status:                 model.ContactStatusNew,
		Priority:               "medium",
		UTMSource:              in.UTMSource,
		UTMMedium:              in.UTMMedium,
		UTMCampaign:            in.UTMCampaign,
		IPAddress:              in.IPAddress,
		UserAgent:              in.UserAgent,
	}, nil
}

// Get loads a message with its responses.
func (s *Service) Get(ctx context.Context, id string) (*model.ContactMessage, error) {
	msg, err := s.store.GetContactMessage(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	return msg, err
}

// List returns one page of messages.
func (s *Service) List(ctx context.Context, filter db.ContactFilter) ([]model.ContactMessage, int64, error) {
	return s.store.ListContactMessages(ctx, filter)
}

// AddResponse records a reviewer reply. A new message moves to in_progress.
func (s *Service) AddResponse(ctx context.Context, id string, responderID uint, text string, public bool) (*model.ContactResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid("response text is required")
	}
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == model.ContactStatusClosed {
		return nil, fmt.Errorf("%w: message is closed", ErrInvalidStatus)
	}

	resp := &model.ContactResponse{
		ContactMessageID: msg.ID,
		ResponderID:      responderID,
		ResponseText:     text,
		IsPublic:         public,
	}
	if err := s.store.AddContactResponse(ctx, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// MarkResolved resolves an open message and stamps resolved_at.
func (s *Service) MarkResolved(ctx context.Context, id string) (*model.ContactMessage, error) {
	return s.update(ctx, id, func(msg *model.ContactMessage) error {
		if msg.Status != model.ContactStatusNew && msg.Status != model.ContactStatusInProgress {
			return fmt.Errorf("%w: cannot resolve a %s message", ErrInvalidStatus, msg.Status)
		}
		now := s.now().UTC()
		msg.Status = model.ContactStatusResolved
		msg.ResolvedAt = &now
		return nil
	})
}

// Close closes a message in any status but closed.
func (s *Service) Close(ctx context.Context, id string) (*model.ContactMessage, error) {
	return s.update(ctx, id, func(msg *model.ContactMessage) error {
		if msg.Status == model.ContactStatusClosed {
			return fmt.Errorf("%w: message is already closed", ErrInvalidStatus)
		}
		msg.Status = model.ContactStatusClosed
		return nil
	})
}

// Assign gives the message to a reviewer; 0 unassigns it.
func (s *Service) Assign(ctx context.Context, id string, reviewerID uint) (*model.ContactMessage, error) {
	return s.update(ctx, id, func(msg *model.ContactMessage) error {
		if reviewerID == 0 {
			msg.AssignedToID = nil
		} else {
			msg.AssignedToID = &reviewerID
		}
		return nil
	})
}

// SetPriority changes the message priority.
func (s *Service) SetPriority(ctx context.Context, id, priority string) (*model.ContactMessage, error) {
	if !slices.Contains(model.Priorities, priority) {
		return nil, invalid("unknown priority %q", priority)
	}
	return s.update(ctx, id, func(msg *model.ContactMessage) error {
		msg.Priority = priority
		return nil
	})
}

func (s *Service) update(ctx context.Context, id string, mutate func(*model.ContactMessage) error) (*model.ContactMessage, error) {
	msg, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := msg.Status
	if err := mutate(msg); err != nil {
		return nil, err
	}
	if err := s.store.UpdateContactMessage(ctx, msg, expected); err != nil {
		if errors.Is(err, db.ErrStaleStatus) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidStatus)
		}
		return nil, err
	}
	return msg, nil
}

// Bulk applies req to each message independently.
func (s *Service) Bulk(ctx context.Context, req BulkRequest) (BulkResult, error) {
	var op func(id string) error
	switch req.Action {
	case BulkMarkResolved:
		op = func(id string) error { _, err := s.MarkResolved(ctx, id); return err }
	case BulkClose:
		op = func(id string) error { _, err := s.Close(ctx, id); return err }
	case BulkAssign:
		op = func(id string) error { _, err := s.Assign(ctx, id, req.AssignTo); return err }
	case BulkSetPriority:
		if !slices.Contains(model.Priorities, req.Priority) {
			return BulkResult{}, invalid("unknown priority %q", req.Priority)
		}
		op = func(id string) error { _, err := s.SetPriority(ctx, id, req.Priority); return err }
	default:
		return BulkResult{}, invalid("unknown bulk action %q", req.Action)
	}
	if len(req.IDs) == 0 {
		return BulkResult{}, invalid("message_ids must not be empty")
	}

	result := BulkResult{Items: make([]BulkItem, 0, len(req.IDs))}
	for _, id := range req.IDs {
		item := BulkItem{ID: id}
		if err := op(id); err != nil {
			item.Error = err.Error()
			result.Failed++
		} else {
			item.OK = true
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}
	s.logger.Info("Bulk contact update finished", "action", req.Action, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}
