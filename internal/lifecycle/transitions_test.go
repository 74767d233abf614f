package lifecycle

import (
	"testing"

	"intake/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []model.ApplicationStatus{
	model.ApplicationStatusPending,
	model.ApplicationStatusUnderReview,
	model.ApplicationStatusApproved,
	model.ApplicationStatusRejected,
	model.ApplicationStatusOnHold,
	model.ApplicationStatusAdditionalInfoRequired,
}

func TestTerminalStatesHaveNoExit(t *testing.T) {
	for _, event := range ReviewerEvents {
		for _, s := range []model.ApplicationStatus{model.ApplicationStatusApproved, model.ApplicationStatusRejected} {
			assert.False(t, CanApply(event, s), "%s from %s", event, s)
		}
	}
}

func TestTransitionTable(t *testing.T) {
	want := map[Event][]model.ApplicationStatus{
		EventStartReview: {model.ApplicationStatusPending, model.ApplicationStatusOnHold, model.ApplicationStatusAdditionalInfoRequired},
		EventApprove:     {model.ApplicationStatusPending, model.ApplicationStatusUnderReview},
		EventReject:      {model.ApplicationStatusPending, model.ApplicationStatusUnderReview},
		EventHold:        nonTerminal,
		EventRequestInfo: nonTerminal,
	}
	for event, from := range want {
		for _, s := range allStatuses {
			expected := false
			for _, f := range from {
				if f == s {
					expected = true
				}
			}
			assert.Equal(t, expected, CanApply(event, s), "%s from %s", event, s)
		}
	}

	to, ok := Target(EventRequestInfo)
	require.True(t, ok)
	assert.Equal(t, model.ApplicationStatusAdditionalInfoRequired, to)

	_, ok = Target(EventSubmit)
	assert.False(t, ok)
}

func TestParseEvent(t *testing.T) {
	e, err := ParseEvent("start-review")
	require.NoError(t, err)
	assert.Equal(t, EventStartReview, e)

	e, err = ParseEvent("REQUEST_INFO")
	require.NoError(t, err)
	assert.Equal(t, EventRequestInfo, e)

	_, err = ParseEvent("submit")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseEvent("delete")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAllowedFromIsACopy(t *testing.T) {
	from := AllowedFrom(EventApprove)
	from[0] = model.ApplicationStatusRejected
	assert.False(t, CanApply(EventApprove, model.ApplicationStatusRejected))
}
