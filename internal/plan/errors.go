package plan

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownItem marks a booking that references an item id absent
	// from the catalog. Not retryable; the caller must correct input.
	ErrUnknownItem = errors.New("unknown item reference")

	// ErrNegativeLoad marks a dropoff that would remove items not in the
	// vehicle. Structurally impossible under precedence; asserted anyway
	// and surfaced as a planning failure, never silently corrected.
	ErrNegativeLoad = errors.New("negative load invariant violation")
)

func unknownItem(bookingID, itemID string) error {
	return fmt.Errorf("booking %s: item %q: %w", bookingID, itemID, ErrUnknownItem)
}

func negativeLoad(bookingID string, stopIndex int) error {
	return fmt.Errorf("stop %d: dropoff for booking %s not onboard: %w", stopIndex, bookingID, ErrNegativeLoad)
}
