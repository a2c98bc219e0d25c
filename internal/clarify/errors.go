package clarify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoActiveEntry is returned when an answer or submission arrives with
	// no clarification prompt active.
	ErrNoActiveEntry = errors.New("no active clarification entry")

	// ErrStaleResponse marks a lookup response that arrived after the active
	// entry changed; the response is dropped, nothing was mutated.
	ErrStaleResponse = errors.New("stale resolution response dropped")

	// ErrClarificationsPending blocks submission while the queue is non-empty.
	ErrClarificationsPending = errors.New("clarifications still pending")

	// ErrNoItems blocks submission of an empty item list.
	ErrNoItems = errors.New("no items to submit")
)

// MissingAnswersError reports required questions left unanswered, by
// localized label. It never escapes the active prompt.
type MissingAnswersError struct {
	Labels []string
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("missing required answers: %s", strings.Join(e.Labels, ", "))
}

// CustomItemValidationError reports custom-item fields that block creation.
type CustomItemValidationError struct {
	Fields []string
}

func (e *CustomItemValidationError) Error() string {
	return fmt.Sprintf("custom item missing required fields: %s", strings.Join(e.Fields, ", "))
}
