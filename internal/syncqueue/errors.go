package syncqueue

import (
	"errors"
	"fmt"
)

// ErrItemNotFound is returned when a queued or failed item id is unknown.
var ErrItemNotFound = errors.New("sync item not found")

// ErrClosed is returned by stores after Close.
var ErrClosed = errors.New("sync queue store closed")

// ExhaustedRetryError is surfaced when a SyncItem is moved to the failed bucket, either
// because it exceeded MaxRetries or because the store refused it permanently.
type ExhaustedRetryError struct {
	Item  SyncItem
	Cause error
}

func (e *ExhaustedRetryError) Error() string {
	return fmt.Sprintf("sync item %s (%s) abandoned after %d attempts: %v",
		e.Item.ID, e.Item.Operation, e.Item.RetryCount, e.Cause)
}

func (e *ExhaustedRetryError) Unwrap() error { return e.Cause }

// IsExhausted reports whether err carries an ExhaustedRetryError.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedRetryError
	return errors.As(err, &exhausted)
}
