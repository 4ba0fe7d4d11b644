package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	syncLockKey = "tendersync:lock:sync"

	// Generous upper bound on a run; the lock self-expires if the process
	// dies without releasing it.
	syncLockTTL = 2 * time.Hour
)

// ErrAlreadyRunning is returned when another sync run holds the Redis lock.
var ErrAlreadyRunning = errors.New("another sync run is already in progress")

// runLock is a Redis SetNX mutex keyed on the run id, so a scheduled tick
// never overlaps a run that is still going.
type runLock struct {
	rdb   *redis.Client
	runID string
}

func (l *runLock) acquire(ctx context.Context) error {
	ok, err := l.rdb.SetNX(ctx, syncLockKey, l.runID, syncLockTTL).Result()
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// release deletes the lock only when this run still owns it.
func (l *runLock) release(ctx context.Context) {
	owner, err := l.rdb.Get(ctx, syncLockKey).Result()
	if err != nil || owner != l.runID {
		return
	}
	l.rdb.Del(ctx, syncLockKey)
}
