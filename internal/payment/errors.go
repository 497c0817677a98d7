package payment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// PayoutError classifies provider call failures as transient/permanent.
type PayoutError struct {
	Code      string
	Message   string
	Transient bool
	Cause     error
}

func (e *PayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "payout error")

	if code := strings.TrimSpace(e.Code); code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *PayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failed payout is worth retrying. A timed out
// call is transient: the item is FAILED either way, but a later retry pass
// may still succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var payoutErr *PayoutError
	if errors.As(err, &payoutErr) {
		return payoutErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
