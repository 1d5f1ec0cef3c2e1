package reservation

import (
	"errors"
	"fmt"

	"github.com/bhmc/slot-reservation/internal/repository"
)

// Validation failures raised by the engine.  Handlers map them onto
// client-facing status codes; none of them leave partial state behind.
var (
	ErrSlotsMissing          = errors.New("one or more of the requested slots do not exist")
	ErrSlotsConflict         = errors.New("one or more of the requested slots are no longer available")
	ErrAlreadyRegistered     = errors.New("you are already registered for this event")
	ErrEventFull             = errors.New("this event is full")
	ErrRegistrationFull      = errors.New("there is no room left in this group")
	ErrRegistrationNotOpen   = errors.New("registration is not open for this event")
	ErrPlayerConflict        = errors.New("one or more players are already registered for this event")
	ErrCourseRequired        = errors.New("a course must be selected for this event")
	ErrLayoutInUse           = errors.New("slots are held by registrations")
	ErrRegistrationConfirmed = errors.New("registration is paid and can only be dropped by an administrator")
	ErrWaveNotOpen           = errors.New("wave not open")

	ErrNotFound  = repository.ErrNotFound
	ErrForbidden = repository.ErrForbidden
)

// WaveNotOpenError carries the wave a rejected position belongs to so the
// client can tell the player when it opens.
type WaveNotOpenError struct {
	Wave int
}

func (e *WaveNotOpenError) Error() string {
	return fmt.Sprintf("wave %d times are not yet open for registration", e.Wave)
}

// Is makes errors.Is(err, ErrWaveNotOpen) match any wave.
func (e *WaveNotOpenError) Is(target error) bool { return target == ErrWaveNotOpen }

// Translate maps store failures onto the engine taxonomy: a lock wait
// that gave up means someone else holds the slot, a uniqueness violation
// means a player already holds a slot in the event.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrLockTimeout):
		return fmt.Errorf("%w: %w", ErrSlotsConflict, err)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %w", ErrPlayerConflict, err)
	}
	return err
}
