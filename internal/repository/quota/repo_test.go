package quota

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/quotad/internal/db"
	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte) error
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func TestLoad_Missing_SynthesizesZeroed(t *testing.T) {
	repo := New(&mockStore{}, "quotad:")

	rec, err := repo.Load(context.Background(), "user-1", baseTime)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.DailyUsed() != 0 || rec.BonusUnits() != 0 {
		t.Errorf("expected zeroed record, got dailyUsed=%d bonus=%d", rec.DailyUsed(), rec.BonusUnits())
	}
	if !rec.LastAccess().Equal(baseTime) {
		t.Errorf("lastAccess: got %v, want %v", rec.LastAccess(), baseTime)
	}
}

func TestLoad_Malformed_SynthesizesZeroed(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "garbage{"},
		{"missing lastAccess", `{"dailyQuota":3,"bonusQuota":5}`},
		{"negative dailyUsed", `{"dailyQuota":-1,"lastAccess":1748779200000,"bonusQuota":0}`},
		{"negative bonus", `{"dailyQuota":0,"lastAccess":1748779200000,"bonusQuota":-5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
				return []byte(tc.data), nil
			}}
			repo := New(ms, "quotad:")

			rec, err := repo.Load(context.Background(), "user-1", baseTime)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.DailyUsed() != 0 || rec.BonusUnits() != 0 {
				t.Errorf("expected zeroed record, got dailyUsed=%d bonus=%d", rec.DailyUsed(), rec.BonusUnits())
			}
		})
	}
}

func TestLoad_StorageFault_Propagates(t *testing.T) {
	storeErr := errors.New("redis: connection refused")
	ms := &mockStore{getFn: func(_ context.Context, _ string) ([]byte, error) {
		return nil, storeErr
	}}
	repo := New(ms, "quotad:")

	_, err := repo.Load(context.Background(), "user-1", baseTime)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error wrapped, got %v", err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	stored := map[string][]byte{}
	ms := &mockStore{
		getFn: func(_ context.Context, key string) ([]byte, error) {
			if data, ok := stored[key]; ok {
				return data, nil
			}
			return nil, db.ErrKeyNotFound
		},
		setFn: func(_ context.Context, key string, value []byte) error {
			stored[key] = value
			return nil
		},
	}
	repo := New(ms, "quotad:")

	rec := domquota.Reconstruct(4, baseTime, 7, map[string]bool{"alpha-feedback": true})
	if err := repo.Save(context.Background(), "user-1", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := repo.Load(context.Background(), "user-1", baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.DailyUsed() != 4 || loaded.BonusUnits() != 7 {
		t.Errorf("round trip: dailyUsed=%d bonus=%d, want 4/7", loaded.DailyUsed(), loaded.BonusUnits())
	}
	if !loaded.LastAccess().Equal(baseTime) {
		t.Errorf("lastAccess: got %v, want %v", loaded.LastAccess(), baseTime)
	}
	if !loaded.FeedbackSubmitted()["alpha-feedback"] {
		t.Errorf("feedback lost in round trip: %v", loaded.FeedbackSubmitted())
	}
}

func TestSave_KeyAndDocumentShape(t *testing.T) {
	var gotKey string
	var gotData []byte
	ms := &mockStore{setFn: func(_ context.Context, key string, value []byte) error {
		gotKey = key
		gotData = value
		return nil
	}}
	repo := New(ms, "quotad:")

	rec := domquota.Reconstruct(2, baseTime, 0, nil)
	if err := repo.Save(context.Background(), "user-1", rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotKey != "quotad:quota:user:user-1" {
		t.Errorf("key: got %q", gotKey)
	}

	var row map[string]any
	if err := json.Unmarshal(gotData, &row); err != nil {
		t.Fatalf("stored document is not JSON: %v", err)
	}
	for _, field := range []string{"dailyQuota", "lastAccess", "bonusQuota", "feedbackSubmitted"} {
		if _, ok := row[field]; !ok {
			t.Errorf("stored document missing field %q: %s", field, gotData)
		}
	}
}

func TestSave_StorageFault_Propagates(t *testing.T) {
	storeErr := errors.New("redis: connection refused")
	ms := &mockStore{setFn: func(_ context.Context, _ string, _ []byte) error {
		return storeErr
	}}
	repo := New(ms, "quotad:")

	err := repo.Save(context.Background(), "user-1", domquota.New(baseTime))
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error wrapped, got %v", err)
	}
}
