package models

import (
	dErrors "sproutmarket/pkg/domain-errors"
)

// Status is an order's position in its lifecycle.
//
// The machine moves strictly forward:
//
//	pending → confirmed → preparing → shipped → delivered
//
// with cancellation allowed from pending, confirmed, and preparing. Delivered
// and cancelled are terminal; no transition leaves them.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {},
	StatusCancelled: {},
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether s → next is an allowed edge.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition checks s → next, distinguishing a terminal source from
// a merely disallowed edge.
func (s Status) ValidateTransition(next Status) error {
	if !next.IsValid() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "unknown order status %q", next)
	}
	if s.IsTerminal() {
		return dErrors.Newf(dErrors.CodeTerminalState, "order is %s; no further transitions allowed", s)
	}
	if !s.CanTransitionTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot move order from %s to %s", s, next)
	}
	return nil
}

// AllowsTracking reports whether delivery tracking events may be appended
// while the order is in s. Tracking only makes sense for orders in motion.
func (s Status) AllowsTracking() bool {
	switch s {
	case StatusConfirmed, StatusPreparing, StatusShipped:
		return true
	default:
		return false
	}
}
