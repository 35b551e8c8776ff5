package reviewform

import (
	"fmt"

	apperrors "github.com/bestcars/dealer-review/pkg/errors"
)

// ErrorKind classifies the message shown in the form's error area.
type ErrorKind int

const (
	// KindValidation is user-correctable and blocks submission
	KindValidation ErrorKind = iota + 1
	// KindFetch is a loader failure; the page still renders
	KindFetch
	// KindSubmission is a rejected or unreadable submission response
	KindSubmission
	// KindNetwork is a submission that never got a response
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindFetch:
		return "fetch"
	case KindSubmission:
		return "submission"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

const (
	MsgDealerLoadFailed = "Failed to load dealer information"
	MsgCarsLoadFailed   = "Failed to load car models"
	MsgSubmitFailed     = "Failed to post review. Please try again."
	MsgNetworkFailed    = "Network error. Please check your connection and try again."
)

// ErrSubmitInProgress is returned when Submit is called while a submission is in flight.
var ErrSubmitInProgress = fmt.Errorf("review submission already in progress: %w", apperrors.ErrConflict)

// FormError is a message for the form's error area together with its cause.
type FormError struct {
	Kind    ErrorKind
	Field   Field // set for KindValidation only
	Message string
	Err     error
}

func (e *FormError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause; validation errors unwrap to ErrInvalidInput.
func (e *FormError) Unwrap() error {
	if e.Kind == KindValidation {
		return apperrors.ErrInvalidInput
	}
	return e.Err
}
