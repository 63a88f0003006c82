package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrHostNotFound reports that a host id did not resolve within the
	// caller's account.
	ErrHostNotFound = errors.New("host not found")

	// ErrConflict reports that an insert raced another writer on a unique
	// canonical-fact constraint. The coordinator retries it as an update.
	ErrConflict = errors.New("canonical fact conflict")

	// ErrTransient reports a store-level failure (lost connection,
	// serialization conflict) that is safe to retry.
	ErrTransient = errors.New("transient store failure")

	// ErrPageOutOfRange reports a page number past the last non-empty page.
	ErrPageOutOfRange = errors.New("page out of range")
)

// ValidationError describes client input that cannot be processed. It is
// never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// AmbiguousMatchError reports that one canonical fact value matched more
// than one stored host, a violation of the per-account uniqueness
// invariant. It is surfaced, never silently resolved.
type AmbiguousMatchError struct {
	Account string
	Field   string
	Value   string
	Matches int
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous match: %d hosts in account %s share %s=%s",
		e.Matches, e.Account, e.Field, e.Value)
}

// IsRetryable reports whether the coordinator may retry the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrTransient)
}
