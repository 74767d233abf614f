// Package lifecycle owns every status change of a partner application.
//
// Status moves only through the named events in the transition table below.
// Each transition re-reads the stored application, checks the table, and
// writes conditionally on the status it read, so two reviewers acting on the
// same application cannot both succeed. Notifications go out after the write
// and never undo it.
package lifecycle

import (
	"fmt"
	"slices"
	"strings"

	"intake/internal/model"
)

// Event names a lifecycle operation.
type Event string

const (
	EventSubmit      Event = "submit"
	EventStartReview Event = "start_review"
	EventApprove     Event = "approve"
	EventReject      Event = "reject"
	EventHold        Event = "hold"
	EventRequestInfo Event = "request_info"
)

type transition struct {
	from []model.ApplicationStatus
	to   model.ApplicationStatus
}

var nonTerminal = []model.ApplicationStatus{
	model.ApplicationStatusPending,
	model.ApplicationStatusUnderReview,
	model.ApplicationStatusOnHold,
	model.ApplicationStatusAdditionalInfoRequired,
}

// submit has no from-state; it is handled by Service.Submit.
var transitions = map[Event]transition{
	EventStartReview: {
		from: []model.ApplicationStatus{
			model.ApplicationStatusPending,
			model.ApplicationStatusOnHold,
			model.ApplicationStatusAdditionalInfoRequired,
		},
		to: model.ApplicationStatusUnderReview,
	},
	EventApprove: {
		from: []model.ApplicationStatus{model.ApplicationStatusPending, model.ApplicationStatusUnderReview},
		to:   model.ApplicationStatusApproved,
	},
	EventReject: {
		from: []model.ApplicationStatus{model.ApplicationStatusPending, model.ApplicationStatusUnderReview},
		to:   model.ApplicationStatusRejected,
	},
	EventHold:        {from: nonTerminal, to: model.ApplicationStatusOnHold},
	EventRequestInfo: {from: nonTerminal, to: model.ApplicationStatusAdditionalInfoRequired},
}

// ReviewerEvents lists the events a reviewer may apply, in table order.
var ReviewerEvents = []Event{EventStartReview, EventApprove, EventReject, EventHold, EventRequestInfo}

// ParseEvent accepts both the underscore and the hyphen form ("start-review").
func ParseEvent(s string) (Event, error) {
	e := Event(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := transitions[e]; !ok {
		return "", &ValidationError{Field: "event", Message: fmt.Sprintf("unknown event %q", s)}
	}
	return e, nil
}

// Target returns the status event leads to.
func Target(e Event) (model.ApplicationStatus, bool) {
	t, ok := transitions[e]
	return t.to, ok
}

// AllowedFrom returns the statuses event may be applied from.
func AllowedFrom(e Event) []model.ApplicationStatus {
	return slices.Clone(transitions[e].from)
}

// CanApply reports whether event is legal from status.
func CanApply(e Event, from model.ApplicationStatus) bool {
	t, ok := transitions[e]
	return ok && slices.Contains(t.from, from)
}
