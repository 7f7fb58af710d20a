package quota

import (
	"context"
	"time"

	domquota "github.com/kailas-cloud/quotad/internal/domain/quota"
)

// Repository loads and saves per-user quota records. Load must synthesize a
// zeroed record (lastAccess = now) for missing or malformed documents and
// only fail on storage faults.
type Repository interface {
	Load(ctx context.Context, userID string, now time.Time) (domquota.Record, error)
	Save(ctx context.Context, userID string, rec domquota.Record) error
}

// ConsumptionRecorder receives the units of every successful spend for
// aggregate accounting. Implementations must not block the caller.
type ConsumptionRecorder interface {
	Record(units int64)
}
