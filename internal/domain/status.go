package domain

import "time"

// ResolveStatus computes the effective lifecycle state of an event from
// its manual status and its voting window. It is the only place allowed
// to derive status; callers must never branch on ManualStatus or the
// timestamps directly.
//
// Precedence:
//  1. a manual close is terminal and wins over the clock,
//  2. a fully-set window that has passed closes the event,
//  3. an open window makes it active,
//  4. an operator can force-open before the scheduled window,
//  5. everything else is upcoming.
func ResolveStatus(e ElectionEvent, now time.Time) EventStatus {
	if e.ManualStatus == StatusClosed {
		return StatusClosed
	}
	if e.StartAt != nil && e.EndAt != nil && now.After(*e.EndAt) {
		return StatusClosed
	}
	if e.StartAt != nil && !now.Before(*e.StartAt) {
		return StatusActive
	}
	if e.ManualStatus == StatusActive {
		return StatusActive
	}
	return StatusUpcoming
}
