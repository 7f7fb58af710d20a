// Package stats tracks aggregate quota consumption across all users.
package stats

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CounterStore is the persistence interface for consumption counters.
// Implementations must be idempotent (IncrBy can be called repeatedly).
type CounterStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// Consumption is the consumed-units total for one aggregation window.
type Consumption struct {
	Units       int64
	WindowStart int64 // unix millis
	WindowEnd   int64 // unix millis
}

// Report aggregates consumption for the current UTC day and month.
type Report struct {
	Day   Consumption
	Month Consumption
}

// Tracker counts consumed quota units with an in-memory hot path and
// write-behind persistence. Counters roll over at UTC day/month boundaries;
// persisted keys carry the window in their name, so rollover needs no
// coordination with the store.
type Tracker struct {
	mu             sync.Mutex
	dayUsed        int64
	monthUsed      int64
	lastDayReset   time.Time
	lastMonthReset time.Time
	keyPrefix      string
	store          CounterStore
	logger         *zap.Logger
}

// NewTracker creates a consumption tracker.
func NewTracker(keyPrefix string, logger *zap.Logger) *Tracker {
	now := time.Now().UTC()
	return &Tracker{
		lastDayReset:   truncateToDay(now),
		lastMonthReset: truncateToMonth(now),
		keyPrefix:      keyPrefix,
		logger:         logger,
	}
}

// WithStore attaches a persistence store and loads current counters.
func (t *Tracker) WithStore(ctx context.Context, store CounterStore) *Tracker {
	t.store = store
	t.loadFromStore(ctx)
	return t
}

func (t *Tracker) loadFromStore(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().UTC()

	if val, err := t.store.Get(ctx, t.dailyKey(now)); err == nil {
		t.dayUsed = val
	} else {
		t.logger.Warn("Failed to load daily consumption from store", zap.Error(err))
	}

	if val, err := t.store.Get(ctx, t.monthlyKey(now)); err == nil {
		t.monthUsed = val
	} else {
		t.logger.Warn("Failed to load monthly consumption from store", zap.Error(err))
	}

	t.logger.Info("Consumption counters loaded from store",
		zap.Int64("day_used", t.dayUsed),
		zap.Int64("month_used", t.monthUsed),
	)
}

// Record registers consumed units after a successful spend.
// Updates in-memory counters, then write-behind to store (if attached).
func (t *Tracker) Record(units int64) {
	t.mu.Lock()
	t.resetIfNeeded()
	t.dayUsed += units
	t.monthUsed += units
	store := t.store
	now := time.Now().UTC()
	dailyKey := t.dailyKey(now)
	monthlyKey := t.monthlyKey(now)
	t.mu.Unlock()

	if store == nil {
		return
	}

	// Write-behind: INCRBY on a background context so store writes do not
	// block the spend path.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := store.IncrBy(ctx, dailyKey, units); err != nil {
		t.logger.Warn("Failed to persist daily consumption", zap.String("key", dailyKey), zap.Error(err))
	}
	if err := store.IncrBy(ctx, monthlyKey, units); err != nil {
		t.logger.Warn("Failed to persist monthly consumption", zap.String("key", monthlyKey), zap.Error(err))
	}
}

// Report returns the consumption totals for the current UTC day and month.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetIfNeeded()

	dayStart := t.lastDayReset
	monthStart := t.lastMonthReset
	return Report{
		Day: Consumption{
			Units:       t.dayUsed,
			WindowStart: dayStart.UnixMilli(),
			WindowEnd:   dayStart.Add(24 * time.Hour).UnixMilli(),
		},
		Month: Consumption{
			Units:       t.monthUsed,
			WindowStart: monthStart.UnixMilli(),
			WindowEnd:   monthStart.AddDate(0, 1, 0).UnixMilli(),
		},
	}
}

// resetIfNeeded zeroes counters on UTC day/month rollover.
// Callers must hold t.mu.
func (t *Tracker) resetIfNeeded() {
	now := time.Now().UTC()

	if day := truncateToDay(now); day.After(t.lastDayReset) {
		t.dayUsed = 0
		t.lastDayReset = day
	}
	if month := truncateToMonth(now); month.After(t.lastMonthReset) {
		t.monthUsed = 0
		t.lastMonthReset = month
	}
}

func (t *Tracker) dailyKey(now time.Time) string {
	return t.keyPrefix + "stats:consumed:daily:" + now.Format("2006-01-02")
}

func (t *Tracker) monthlyKey(now time.Time) string {
	return t.keyPrefix + "stats:consumed:monthly:" + now.Format("2006-01")
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
