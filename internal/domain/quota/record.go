// Package quota holds the per-user quota record and its spend rules.
package quota

import (
	"time"

	"github.com/kailas-cloud/quotad/internal/domain"
)

// Record is one user's quota state. It is a value object: mutating methods
// return an updated copy and never touch the receiver, so a rejected spend
// leaves the loaded record exactly as it was.
type Record struct {
	dailyUsed  int
	lastAccess time.Time
	bonusUnits int
	feedback   map[string]bool
}

// New creates a zeroed record for a user seen for the first time.
func New(now time.Time) Record {
	return Record{lastAccess: now, feedback: map[string]bool{}}
}

// Reconstruct hydrates a record from storage.
func Reconstruct(dailyUsed int, lastAccess time.Time, bonusUnits int, feedback map[string]bool) Record {
	fb := make(map[string]bool, len(feedback))
	for id, done := range feedback {
		if done {
			fb[id] = true
		}
	}
	return Record{
		dailyUsed:  dailyUsed,
		lastAccess: lastAccess,
		bonusUnits: bonusUnits,
		feedback:   fb,
	}
}

// DailyUsed returns the units consumed from the daily pool in the current window.
func (r Record) DailyUsed() int { return r.dailyUsed }

// LastAccess returns the timestamp the reset window is measured from.
func (r Record) LastAccess() time.Time { return r.lastAccess }

// BonusUnits returns the earned bonus allowance.
func (r Record) BonusUnits() int { return r.bonusUnits }

// DailyRemaining returns the unconsumed part of the daily allowance.
func (r Record) DailyRemaining(limit int) int { return limit - r.dailyUsed }

// FeedbackSubmitted returns a copy of the completed feedback-form set.
func (r Record) FeedbackSubmitted() map[string]bool {
	fb := make(map[string]bool, len(r.feedback))
	for id := range r.feedback {
		fb[id] = true
	}
	return fb
}

// ResetIfStale starts a fresh daily window when more than window has passed
// since the last access. Within the window the record is returned unchanged.
func (r Record) ResetIfStale(now time.Time, window time.Duration) Record {
	if now.Sub(r.lastAccess) > window {
		r.dailyUsed = 0
		r.lastAccess = now
	}
	return r
}

// Spend consumes amount units, draining the daily pool before the bonus pool.
// A single call spans both pools when the daily remainder alone is not enough.
// If the combined pools cannot cover amount, the receiver is returned
// unchanged with domain.ErrQuotaExceeded.
func (r Record) Spend(amount, limit int) (Record, error) {
	remaining := limit - r.dailyUsed
	if remaining >= amount {
		r.dailyUsed += amount
		return r, nil
	}
	if remaining+r.bonusUnits >= amount {
		r.dailyUsed += remaining
		r.bonusUnits -= amount - remaining
		return r, nil
	}
	return r, domain.ErrQuotaExceeded
}

// AddBonus grants extra bonus units. The bonus pool never resets.
func (r Record) AddBonus(amount int) Record {
	r.bonusUnits += amount
	return r
}

// MarkFeedback records a completed feedback form. A form id already present
// is rejected with domain.ErrFeedbackAlreadySubmitted and the receiver is
// returned unchanged.
func (r Record) MarkFeedback(formID string) (Record, error) {
	if r.feedback[formID] {
		return r, domain.ErrFeedbackAlreadySubmitted
	}
	fb := make(map[string]bool, len(r.feedback)+1)
	for id := range r.feedback {
		fb[id] = true
	}
	fb[formID] = true
	r.feedback = fb
	return r, nil
}

// Snapshot builds the caller-facing view of the record.
func (r Record) Snapshot(limit int) Snapshot {
	return Snapshot{
		DailyRemaining:    r.DailyRemaining(limit),
		BonusRemaining:    r.bonusUnits,
		FeedbackSubmitted: r.FeedbackSubmitted(),
	}
}
