// internal/ledger/lock.go
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PairLock is a short-lived, per-(device, hash) lease that stops two
// overlapping passes from both deciding the same pair is new and calling
// the provider twice. It is an optimization only: the ledger's primary
// key remains the final arbiter, so a failed acquire never blocks the
// pipeline.
type PairLock struct {
	rdb   *redis.Client
	lease time.Duration
}

func NewPairLock(rdb *redis.Client, lease time.Duration) *PairLock {
	if lease <= 0 {
		lease = 10 * time.Second
	}
	return &PairLock{rdb: rdb, lease: lease}
}

// Acquire tries to take the lease for the pair. On success it returns a
// release func and true; on contention or Redis failure it returns a
// no-op release and false, and the caller proceeds relying on the
// ledger's uniqueness constraint. The lease expires on its own, so a
// crashed holder cannot wedge the pair.
func (p *PairLock) Acquire(ctx context.Context, deviceID, hash string) (func(), bool) {
	key := lockKey(deviceID, hash)
	ok, err := p.rdb.SetNX(ctx, key, "1", p.lease).Result()
	if err != nil || !ok {
		return func() {}, false
	}
	return func() {
		_ = p.rdb.Del(context.Background(), key).Err()
	}, true
}

func lockKey(deviceID, hash string) string {
	return fmt.Sprintf("dedup:lock:%s:%s", deviceID, hash)
}
