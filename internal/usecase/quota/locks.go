package quota

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 256

// keyedLocks serializes operations per user id: every operation for a given
// id hashes to the same stripe, so its load-compute-save runs as a unit,
// while ids on different stripes proceed in parallel. A fixed stripe array
// keeps memory bounded regardless of how many user ids pass through.
type keyedLocks struct {
	stripes [lockStripes]sync.Mutex
}

// forKey returns the mutex owning the given key.
func (l *keyedLocks) forKey(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.stripes[h.Sum32()%lockStripes]
}
