package checkin

import (
	"errors"
	"fmt"
	"time"
)

// Verification failures. All are rejected scans, not server faults.
var (
	ErrInvalidPayload = errors.New("token payload malformed")
	ErrTamperedToken  = errors.New("token failed authenticity check")
	ErrNoActiveToken  = errors.New("no active token for class session")
	ErrStaleToken     = errors.New("token superseded by refresh")
	ErrUnknownStudent = errors.New("student not found in roster")
	ErrUnknownClass   = errors.New("class not found in roster")
	ErrAdapterTimeout = errors.New("adapter call timed out")
)

// AlreadyCheckedInError reports a duplicate scan. It carries the time of
// the original check-in so the caller can render "already recorded".
type AlreadyCheckedInError struct {
	At time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("already checked in at %s", e.At.Format(time.RFC3339))
}
