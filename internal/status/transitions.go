// Package status defines the tender lifecycle state machine.
//
// Valid status graph:
//
//	open ──► closing_soon ──► closed
//	  │                         ▲
//	  └─────────────────────────┘  (lazy catch-up when the deadline
//	                                already passed between passes)
//
// closed is terminal. The machine is driven purely by the current time
// versus the tender's offer deadline; it is evaluated on each sync pass,
// not by a background timer, so an un-synced tender carries a stale status
// until next touched.
package status

import (
	"fmt"
	"time"
)

// Status values mirror the tenders.status column.
type Status string

const (
	StatusOpen        Status = "open"
	StatusClosingSoon Status = "closing_soon"
	StatusClosed      Status = "closed"
)

// ClosingSoonHorizon is how far before the deadline a tender is flagged
// as closing_soon.
const ClosingSoonHorizon = 7 * 24 * time.Hour

// validTransitions lists every allowed (from → to) pair. open → closed is
// allowed so that an infrequently evaluated tender still catches up.
var validTransitions = map[Status][]Status{
	StatusOpen:        {StatusClosingSoon, StatusClosed},
	StatusClosingSoon: {StatusClosed},
	// closed is terminal — no outgoing transitions
}

// Parse converts a raw string to a Status, returning an error for unknown
// values.
func Parse(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusOpen, StatusClosingSoon, StatusClosed:
		return st, nil
	}
	return "", fmt.Errorf("unknown tender status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the state machine.
func IsTransitionAllowed(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false // terminal state
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ForDeadline derives the status a tender should have at instant now,
// given its current status and offer deadline. Statuses only ever move
// forward: a closed tender stays closed even if the deadline is cleared
// or pushed out, and a closing_soon tender never reverts to open.
//
// A nil deadline leaves the current status untouched — many SIMAP search
// results carry no deadline until details are fetched.
func ForDeadline(current Status, deadline *time.Time, now time.Time) Status {
	if current == StatusClosed || deadline == nil {
		return current
	}
	switch {
	case !deadline.After(now):
		return StatusClosed
	case deadline.Sub(now) <= ClosingSoonHorizon:
		return StatusClosingSoon
	default:
		return current
	}
}
