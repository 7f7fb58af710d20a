// Package quota implements the quota accounting operations: read, spend,
// grant, and feedback marking, serialized per user id.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/quotad/internal/domain"
	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
)

// Operation label values for metrics.
const (
	opGet          = "get"
	opDecrease     = "decrease"
	opIncrease     = "increase"
	opMarkFeedback = "mark_feedback"
)

// Limits holds the allowance parameters applied to every user.
type Limits struct {
	DailyLimit  int
	ResetWindow time.Duration
}

// Service is the quota store. All four operations on the same user id run
// under one stripe lock, so a load-compute-save never interleaves with
// another operation for that user.
type Service struct {
	repo     Repository
	limits   Limits
	locks    keyedLocks
	recorder ConsumptionRecorder
	ops      *prometheus.CounterVec
	units    *prometheus.CounterVec
	now      func() time.Time
}

// New creates a quota service.
func New(repo Repository, limits Limits) *Service {
	return &Service{
		repo:   repo,
		limits: limits,
		now:    time.Now,
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithConsumptionRecorder attaches an aggregate consumption recorder.
func (s *Service) WithConsumptionRecorder(r ConsumptionRecorder) *Service {
	s.recorder = r
	return s
}

// WithMetrics attaches operation and consumed-units counters.
// ops is labeled by (op, outcome), units by (pool).
func (s *Service) WithMetrics(ops, units *prometheus.CounterVec) *Service {
	s.ops = ops
	s.units = units
	return s
}

// GetQuota returns the current quota view for userID, creating a zeroed
// record view for unknown users. The reported daily remainder reflects a
// fresh window when the reset window has elapsed; the reset itself is only
// persisted by mutating operations.
func (s *Service) GetQuota(ctx context.Context, userID string) (domquota.Snapshot, error) {
	mu := s.locks.forKey(userID)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	rec, err := s.repo.Load(ctx, userID, now)
	if err != nil {
		s.observe(opGet, "error")
		return domquota.Snapshot{}, fmt.Errorf("load quota for user: %w", err)
	}

	s.observe(opGet, "ok")
	return rec.ResetIfStale(now, s.limits.ResetWindow).Snapshot(s.limits.DailyLimit), nil
}

// DecreaseQuota consumes amount units, daily pool first, then bonus.
// amount must be positive; callers validate it at the boundary.
//
// On rejection nothing is persisted and the returned snapshot reports the
// daily remainder as 0 regardless of the actual value; existing callers
// depend on this response shape.
func (s *Service) DecreaseQuota(ctx context.Context, userID string, amount int) (domquota.Snapshot, error) {
	mu := s.locks.forKey(userID)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	rec, err := s.repo.Load(ctx, userID, now)
	if err != nil {
		s.observe(opDecrease, "error")
		return domquota.Snapshot{}, fmt.Errorf("load quota for user: %w", err)
	}

	rec = rec.ResetIfStale(now, s.limits.ResetWindow)
	dailyBefore := rec.DailyRemaining(s.limits.DailyLimit)

	spent, err := rec.Spend(amount, s.limits.DailyLimit)
	if err != nil {
		if errors.Is(err, domain.ErrQuotaExceeded) {
			s.observe(opDecrease, "exceeded")
			return domquota.Snapshot{
				DailyRemaining:    0,
				BonusRemaining:    rec.BonusUnits(),
				FeedbackSubmitted: rec.FeedbackSubmitted(),
			}, err
		}
		s.observe(opDecrease, "error")
		return domquota.Snapshot{}, err
	}

	if err := s.repo.Save(ctx, userID, spent); err != nil {
		s.observe(opDecrease, "error")
		return domquota.Snapshot{}, fmt.Errorf("save quota for user: %w", err)
	}

	fromDaily := min(amount, dailyBefore)
	s.consumed(fromDaily, amount-fromDaily)
	if s.recorder != nil {
		s.recorder.Record(int64(amount))
	}
	s.observe(opDecrease, "ok")
	return spent.Snapshot(s.limits.DailyLimit), nil
}

// IncreaseQuota grants amount bonus units.
// amount must be positive; callers validate it at the boundary.
func (s *Service) IncreaseQuota(ctx context.Context, userID string, amount int) (domquota.Snapshot, error) {
	mu := s.locks.forKey(userID)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	rec, err := s.repo.Load(ctx, userID, now)
	if err != nil {
		s.observe(opIncrease, "error")
		return domquota.Snapshot{}, fmt.Errorf("load quota for user: %w", err)
	}

	rec = rec.ResetIfStale(now, s.limits.ResetWindow).AddBonus(amount)
	if err := s.repo.Save(ctx, userID, rec); err != nil {
		s.observe(opIncrease, "error")
		return domquota.Snapshot{}, fmt.Errorf("save quota for user: %w", err)
	}

	s.observe(opIncrease, "ok")
	return rec.Snapshot(s.limits.DailyLimit), nil
}

// MarkFeedbackComplete records a completed feedback form exactly once per
// user. The bonus for a completed form is a separate IncreaseQuota call made
// by the caller, not an internal side effect.
func (s *Service) MarkFeedbackComplete(ctx context.Context, userID, formID string) (domquota.Snapshot, error) {
	mu := s.locks.forKey(userID)
	mu.Lock()
	defer mu.Unlock()

	now := s.now()
	rec, err := s.repo.Load(ctx, userID, now)
	if err != nil {
		s.observe(opMarkFeedback, "error")
		return domquota.Snapshot{}, fmt.Errorf("load quota for user: %w", err)
	}

	rec = rec.ResetIfStale(now, s.limits.ResetWindow)
	marked, err := rec.MarkFeedback(formID)
	if err != nil {
		s.observe(opMarkFeedback, "already_submitted")
		return domquota.Snapshot{}, err
	}

	if err := s.repo.Save(ctx, userID, marked); err != nil {
		s.observe(opMarkFeedback, "error")
		return domquota.Snapshot{}, fmt.Errorf("save quota for user: %w", err)
	}

	s.observe(opMarkFeedback, "ok")
	return marked.Snapshot(s.limits.DailyLimit), nil
}

func (s *Service) observe(op, outcome string) {
	if s.ops != nil {
		s.ops.WithLabelValues(op, outcome).Inc()
	}
}

func (s *Service) consumed(daily, bonus int) {
	if s.units == nil {
		return
	}
	if daily > 0 {
		s.units.WithLabelValues("daily").Add(float64(daily))
	}
	if bonus > 0 {
		s.units.WithLabelValues("bonus").Add(float64(bonus))
	}
}
