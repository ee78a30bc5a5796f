package sync

import (
	"errors"
	"fmt"
)

// Error taxonomy for per-book failures. All of these are caught and isolated
// per book; a single book's failure never aborts the run.
var (
	// ErrNoMatch: no catalog match was found for the item.
	ErrNoMatch = errors.New("no catalog match found")
	// ErrAmbiguousMatch: a title/author search produced only low-confidence
	// candidates; the book is skipped rather than silently guessed.
	ErrAmbiguousMatch = errors.New("ambiguous match")
	// ErrInvalidInput: the item carries no usable progress value.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStaleCache: the cached edition is no longer resolvable against the
	// current library snapshot.
	ErrStaleCache = errors.New("stale cache reference")
	// ErrExternalWrite: the catalog API rejected a write.
	ErrExternalWrite = errors.New("catalog write failed")
	// ErrCacheCommit: the cache commit after a successful external write
	// failed; a rollback was attempted.
	ErrCacheCommit = errors.New("cache commit failed")
	// ErrAlreadyProcessing: a concurrent sync for the same item is in flight.
	ErrAlreadyProcessing = errors.New("already being processed")
)

// ReasonAlreadyProcessing is the fixed, distinguishable reason string for
// duplicate in-flight requests.
const ReasonAlreadyProcessing = "already being processed"

// BookError wraps a per-book failure with the item it belongs to.
type BookError struct {
	ItemID string
	Title  string
	Err    error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("book %q (%s): %v", e.Title, e.ItemID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}
