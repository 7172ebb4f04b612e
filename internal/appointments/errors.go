package appointments

import (
	"errors"
	"fmt"
)

var (
	// ErrAppointmentNotFound means the id does not exist in the store.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidWindow means the expansion window is empty, inverted, or
	// ends before the rule's anchor.
	ErrInvalidWindow = errors.New("invalid expansion window")

	// ErrInvalidInstanceDate means the requested instance date is not an
	// occurrence the appointment's schedule produces.
	ErrInvalidInstanceDate = errors.New("instance date not produced by the appointment's schedule")

	// ErrVersionConflict means a concurrent writer won the version check.
	ErrVersionConflict = errors.New("appointment was modified concurrently")

	// ErrStoreUnavailable wraps transient store failures. Deletion commits
	// are idempotent, so callers may retry these with backoff.
	ErrStoreUnavailable = errors.New("appointment store unavailable")

	// ErrNotTeleconsultation means a start was requested for an
	// appointment that has no remote session to start.
	ErrNotTeleconsultation = errors.New("appointment is not a teleconsultation")

	// ErrInvalidTransition means the requested lifecycle or payment
	// transition is not allowed from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// NotStartableError is returned when a consultation start is requested
// before the gate opens. It is recoverable: the caller should wait and
// retry explicitly once the remaining minutes elapse.
type NotStartableError struct {
	MinutesUntilStart int
}

func (e *NotStartableError) Error() string {
	return fmt.Sprintf("consultation cannot start yet: %d minute(s) until the start window opens", e.MinutesUntilStart)
}
