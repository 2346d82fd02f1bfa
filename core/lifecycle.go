package core

import "time"

// transitions lists the statuses reachable from each status.
// Terminal statuses never lead back to active.
var transitions = map[Status][]Status{
	StatusCreated: {StatusActive, StatusCancelled},
	StatusActive:  {StatusEnding, StatusEnded, StatusCancelled},
	StatusEnding:  {StatusEnded},
	StatusEnded:   {StatusSettled, StatusDisputed},
	StatusSettled: {StatusDisputed},
}

// CanTransition reports whether from -> to is permitted.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves a to status or fails with a state error.
func Transition(a *Auction, to Status) error {
	if !CanTransition(a.Status, to) {
		return StateError(CodeInvalidTransition, "cannot move auction %s from %s to %s", a.ID, a.Status, to)
	}
	a.Status = to
	return nil
}

// DueStatus is the status time alone would put a in at now.
// It only ever moves forward: created -> active -> ending -> ended.
// Bids are admitted through EndsAt inclusive, so ended is due only after it.
func DueStatus(a Auction, now time.Time, endingWindow time.Duration) Status {
	switch a.Status {
	case StatusCreated:
		if now.Before(a.Config.StartTime) {
			return StatusCreated
		}
		if now.After(a.EndsAt) {
			return StatusEnded
		}
		if endingWindow > 0 && !now.Before(a.EndsAt.Add(-endingWindow)) {
			return StatusEnding
		}
		return StatusActive
	case StatusActive:
		if now.After(a.EndsAt) {
			return StatusEnded
		}
		if endingWindow > 0 && !now.Before(a.EndsAt.Add(-endingWindow)) {
			return StatusEnding
		}
	case StatusEnding:
		if now.After(a.EndsAt) {
			return StatusEnded
		}
	}
	return a.Status
}

// MaybeExtend pushes EndsAt by ExtensionTime when a bid lands within
// ExtensionTrigger of the end. It reports whether the auction was extended.
func MaybeExtend(a *Auction, bidTime time.Time) bool {
	cfg := a.Config
	if cfg.ExtensionTrigger <= 0 || cfg.ExtensionTime <= 0 {
		return false
	}
	if cfg.MaxExtensions > 0 && a.Extensions >= cfg.MaxExtensions {
		return false
	}
	if a.EndsAt.Sub(bidTime) >= cfg.ExtensionTrigger {
		return false
	}
	a.EndsAt = a.EndsAt.Add(cfg.ExtensionTime)
	a.Extensions++
	return true
}
