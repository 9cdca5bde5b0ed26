package visit

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when a visit does not exist.
var ErrNotFound = errors.New("visit not found")

// ValidationError marks locally rejected input. It never reaches the
// generation gateway and blocks the triggering action.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StaleStateError marks an operation that targets a turn index or stage that
// no longer matches the visit's current state. State is left untouched.
type StaleStateError struct {
	Reason string
}

func (e *StaleStateError) Error() string {
	return fmt.Sprintf("stale visit state: %s", e.Reason)
}

// GenerationConflictError marks a duplicate generation attempt observed while
// one is already in flight for the same visit and stage.
type GenerationConflictError struct {
	VisitID uuid.UUID
	Stage   Stage
}

func (e *GenerationConflictError) Error() string {
	return fmt.Sprintf("generation already in progress for visit %s stage %s", e.VisitID, e.Stage)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStaleState reports whether err is (or wraps) a StaleStateError.
func IsStaleState(err error) bool {
	var se *StaleStateError
	return errors.As(err, &se)
}

// IsGenerationConflict reports whether err is (or wraps) a GenerationConflictError.
func IsGenerationConflict(err error) bool {
	var ge *GenerationConflictError
	return errors.As(err, &ge)
}
