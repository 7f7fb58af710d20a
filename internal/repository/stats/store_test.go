package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/quotad/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn    func(ctx context.Context, key string) ([]byte, error)
	incrFn   func(ctx context.Context, key string, val int64) error
	expireFn func(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) IncrBy(ctx context.Context, key string, val int64) error {
	if m.incrFn != nil {
		return m.incrFn(ctx, key, val)
	}
	return nil
}

func (m *mockStore) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	if m.expireFn != nil {
		return m.expireFn(ctx, key, ttl, nx)
	}
	return nil
}

func TestIncrBy_SetsTTLByKeyKind(t *testing.T) {
	var gotTTL time.Duration
	var gotNX bool
	ms := &mockStore{expireFn: func(_ context.Context, _ string, ttl time.Duration, nx bool) error {
		gotTTL = ttl
		gotNX = nx
		return nil
	}}
	store := New(ms, 48*time.Hour, 62*24*time.Hour)

	if err := store.IncrBy(context.Background(), "quotad:stats:consumed:daily:2025-06-01", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 48*time.Hour {
		t.Errorf("daily TTL: got %v, want 48h", gotTTL)
	}
	if !gotNX {
		t.Error("expected EXPIRE NX for daily key")
	}

	if err := store.IncrBy(context.Background(), "quotad:stats:consumed:monthly:2025-06", 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTTL != 62*24*time.Hour {
		t.Errorf("monthly TTL: got %v, want 62d", gotTTL)
	}
}

func TestGet_MissingKey_Zero(t *testing.T) {
	store := New(&mockStore{}, 48*time.Hour, 62*24*time.Hour)

	val, err := store.Get(context.Background(), "quotad:stats:consumed:daily:2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("missing key: got %d, want 0", val)
	}
}

func TestGet_ParsesValue(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return []byte("42"), nil
	}}
	store := New(ms, 48*time.Hour, 62*24*time.Hour)

	val, err := store.Get(context.Background(), "quotad:stats:consumed:daily:2025-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("got %d, want 42", val)
	}
}

func TestGet_GarbageValue_Error(t *testing.T) {
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return []byte("not-a-number"), nil
	}}
	store := New(ms, 48*time.Hour, 62*24*time.Hour)

	if _, err := store.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestIncrBy_StoreError_Propagates(t *testing.T) {
	storeErr := errors.New("redis: connection refused")
	ms := &mockStore{incrFn: func(_ context.Context, _ string, _ int64) error {
		return storeErr
	}}
	store := New(ms, 48*time.Hour, 62*24*time.Hour)

	err := store.IncrBy(context.Background(), "k", 1)
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error wrapped, got %v", err)
	}
}
