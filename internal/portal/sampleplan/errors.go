package sampleplan

import (
	"errors"

	"github.com/qualtrack/qualtrack/internal/common/apperrors"
)

// ErrValidation is the base for local precondition failures. These never
// reach the network and leave all engine state untouched.
var ErrValidation = apperrors.New("validation failed")

// ErrMutationInFlight blocks duplicate concurrent submissions of the same
// mutation.
var ErrMutationInFlight = apperrors.New("a request is already in progress")

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// User-facing messages. Local validation messages are specific per case;
// the failure fallbacks are used when the server provides no message.
const (
	msgSelectCourse     = "Please select a course first."
	msgNoPlans          = "No sample plans are available for this course."
	msgSelectPlan       = "Please select a sample plan."
	msgSelectSampleType = "Please select a sample type before applying samples."
	msgNoUser           = "Unable to resolve the current user."
	msgNoUnitsSelected  = "Please select at least one unit to sample."
	msgApplyFallback    = "Failed to apply sampled learners."
	msgUpdateFallback   = "Failed to update sample detail."
	msgFilterFallback   = "Failed to fetch learners for the selected plan."
	msgApplySuccess     = "Sampled learners added successfully."
	msgUpdateSuccess    = "Sample detail updated successfully."
)
