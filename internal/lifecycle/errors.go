package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"intake/internal/model"
)

var (
	ErrNotFound          = errors.New("application not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicate         = errors.New("an open application already exists for this email")
)

// TransitionError reports an event that is not legal from the current status.
type TransitionError struct {
	Event   Event
	From    model.ApplicationStatus
	Allowed []model.ApplicationStatus
	// Concurrent is set when the status changed between read and write.
	Concurrent bool
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = string(s)
	}
	msg := fmt.Sprintf("cannot %s application in status %s (allowed from: %s)",
		strings.ReplaceAll(string(e.Event), "_", " "), e.From, strings.Join(allowed, ", "))
	if e.Concurrent {
		msg += "; status was changed by another reviewer"
	}
	return msg
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// ValidationError reports a missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors collects every invalid field of one input.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrValidation }

// Fields maps field names to their first message.
func (v ValidationErrors) Fields() map[string]string {
	out := make(map[string]string, len(v))
	for _, e := range v {
		if _, ok := out[e.Field]; !ok {
			out[e.Field] = e.Message
		}
	}
	return out
}
