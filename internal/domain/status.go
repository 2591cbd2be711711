package domain

import (
	"fmt"
	"strings"
)

// DeliveryStatus is the normalized post-send lifecycle state of a message,
// shared across all vendors.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusRead      DeliveryStatus = "READ"
	StatusFailed    DeliveryStatus = "FAILED"
)

func (s DeliveryStatus) String() string { return string(s) }

func (s DeliveryStatus) IsValid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is expected.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusRead || s == StatusFailed
}

// rank orders the success path SENT < DELIVERED < READ. FAILED sits outside
// the success path and is handled separately in CanTransitionTo.
func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// CanTransitionTo enforces the tracker state machine: the success path only
// moves forward, FAILED is reachable from any non-terminal state, and
// terminal states never regress.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	if s == StatusFailed {
		return false
	}
	return next.rank() > s.rank()
}

func ParseDeliveryStatusFromString(s string) (DeliveryStatus, error) {
	st := DeliveryStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid delivery status %q", ErrValidation, s)
	}
	return st, nil
}
