// Package governor bounds the number of simultaneous outbound webhook
// calls. Acquisition is a bounded poll rather than an unbounded queue:
// when every slot is busy the caller backs off briefly and tries again
// until its context expires.
package governor

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/plantpulse/plant_hook/internal/metrics"
)

// ErrSaturated is returned when no slot frees up before the context expires.
var ErrSaturated = errors.New("delivery governor saturated")

const defaultPollInterval = 50 * time.Millisecond

type Governor struct {
	sem  *semaphore.Weighted
	poll time.Duration
}

func New(maxConcurrent int64) *Governor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Governor{
		sem:  semaphore.NewWeighted(maxConcurrent),
		poll: defaultPollInterval,
	}
}

// Acquire claims one delivery slot, polling until the context is done.
// The returned release function is safe to call more than once and must be
// called on every exit path, typically via defer.
func (g *Governor) Acquire(ctx context.Context) (func(), error) {
	for {
		if g.sem.TryAcquire(1) {
			metrics.InFlightDeliveries.Inc()
			var once sync.Once
			release := func() {
				once.Do(func() {
					g.sem.Release(1)
					metrics.InFlightDeliveries.Dec()
				})
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrSaturated, ctx.Err())
		case <-time.After(g.poll):
		}
	}
}
