// Package quota persists per-user quota records as JSON documents in the
// key-value store.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/quotad/internal/db"
	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
)

// store is the consumer interface for quota records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo implements usecase/quota.Repository.
type Repo struct {
	store     store
	keyPrefix string
}

// New creates a quota repository.
func New(s store, keyPrefix string) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix}
}

// Load retrieves the record for userID. A missing or malformed document
// yields a zeroed record with lastAccess = now; storage faults propagate.
func (r *Repo) Load(ctx context.Context, userID string, now time.Time) (domquota.Record, error) {
	data, err := r.store.Get(ctx, r.key(userID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domquota.New(now), nil
		}
		return domquota.Record{}, fmt.Errorf("get quota record %s: %w", userID, err)
	}

	rec, ok := recordFromJSON(data)
	if !ok {
		return domquota.New(now), nil
	}
	return rec, nil
}

// Save writes the record back as a single unit.
func (r *Repo) Save(ctx context.Context, userID string, rec domquota.Record) error {
	data, err := recordToJSON(rec)
	if err != nil {
		return fmt.Errorf("marshal quota record %s: %w", userID, err)
	}
	if err := r.store.Set(ctx, r.key(userID), data); err != nil {
		return fmt.Errorf("set quota record %s: %w", userID, err)
	}
	return nil
}

func (r *Repo) key(userID string) string {
	return r.keyPrefix + "quota:user:" + userID
}
