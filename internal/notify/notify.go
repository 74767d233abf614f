// Package notify delivers application and contact events to applicants,
// administrators and downstream consumers.
package notify

import (
	"context"
	"errors"
	"time"

	"intake/internal/model"
)

// Notifier is implemented by every delivery channel.
type Notifier interface {
	ApplicationReceived(ctx context.Context, app *model.PartnerApplication) error
	NotifyStatusChange(ctx context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error
	ContactReceived(ctx context.Context, msg *model.ContactMessage) error
}

// StatusEvent is the payload published for application events.
type StatusEvent struct {
	Type          string                  `json:"type"`
	ApplicationID string                  `json:"application_id"`
	PartnerType   model.PartnerType       `json:"partner_type"`
	From          model.ApplicationStatus `json:"from,omitempty"`
	To            model.ApplicationStatus `json:"to"`
	ReviewerID    *uint                   `json:"reviewer_id,omitempty"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

const (
	EventApplicationReceived = "application.received"
	EventStatusChanged       = "application.status_changed"
	EventContactReceived     = "contact.received"
)

// Noop discards everything.
type Noop struct{}

func (Noop) ApplicationReceived(context.Context, *model.PartnerApplication) error { return nil }
func (Noop) NotifyStatusChange(context.Context, *model.PartnerApplication, model.ApplicationStatus, model.ApplicationStatus) error {
	return nil
}
func (Noop) ContactReceived(context.Context, *model.ContactMessage) error { return nil }

// Multi fans out to several notifiers. Every notifier is tried; the errors
// are joined.
type Multi []Notifier

func (m Multi) ApplicationReceived(ctx context.Context, app *model.PartnerApplication) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ApplicationReceived(ctx, app))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyStatusChange(ctx context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.NotifyStatusChange(ctx, app, from, to))
	}
	return errors.Join(errs...)
}

func (m Multi) ContactReceived(ctx context.Context, msg *model.ContactMessage) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ContactReceived(ctx, msg))
	}
	return errors.Join(errs...)
}
