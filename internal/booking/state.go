package booking

import "errors"

// State enumerates the booking lifecycle. A session is in exactly one state
// at a time; the active-service invariant (at most one of results-pending,
// active ride, active courier, scheduled ride) follows from that.
type State int

const (
	StateIdle State = iota
	StateSearching
	StateResultsReady
	StateConfirmPending
	StateActiveRide
	StateActiveCourier
	StateScheduled
)

var stateNames = [...]string{"idle", "searching", "results_ready", "confirm_pending", "active_ride", "active_courier", "scheduled"}

func (s State) String() string {
	if s < StateIdle || s > StateScheduled {
		return "unknown"
	}
	return stateNames[s]
}

var (
	// ErrAuthRequired signals that selecting an option needs an
	// authenticated session; the caller should route to the auth flow.
	ErrAuthRequired = errors.New("authentication required")

	// ErrInvalidState rejects an operation not permitted in the current
	// lifecycle state.
	ErrInvalidState = errors.New("operation not allowed in current state")

	// ErrNotDelivered rejects completing a courier before the delivery
	// ladder has reached Delivered.
	ErrNotDelivered = errors.New("courier has not been delivered yet")

	// ErrNoSuchOption rejects a selection index outside the result set.
	ErrNoSuchOption = errors.New("no such option in the current results")
)

// ValidationError covers missing booking fields; it is rejected before any
// state transition and the message is meant for the end user.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func invalid(reason string) error { return &ValidationError{Reason: reason} }

// IsValidation reports whether err is a field-validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
