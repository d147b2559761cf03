// Package sweep periodically re-drives due pending ledger entries. One tick
// queries the ledger for entries whose retry time has arrived and redelivers
// them sequentially; a tick that would overlap a still-running one is skipped.
package sweep

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/plantpulse/plant_hook/internal/dispatch"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/metrics"
	"github.com/plantpulse/plant_hook/internal/tracing"
)

// LedgerSource is the slice of the ledger store the sweeper reads.
type LedgerSource interface {
	Due(ctx context.Context, now time.Time, limit int) ([]ledger.Entry, error)
}

// Redeliverer re-drives a single pending entry.
type Redeliverer interface {
	Redeliver(ctx context.Context, entry ledger.Entry) dispatch.Outcome
}

// Result summarizes one sweep tick.
type Result struct {
	Skipped   bool `json:"skipped"`
	Processed int  `json:"processed"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

type Sweeper struct {
	source    LedgerSource
	exec      Redeliverer
	interval  time.Duration
	batchSize int
	log       *logging.Logger

	busy atomic.Bool
}

func New(source LedgerSource, exec Redeliverer, interval time.Duration, batchSize int, log *logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Sweeper{
		source:    source,
		exec:      exec,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Run ticks until the context is canceled. The first tick fires after one
// full interval so a restart does not hammer endpoints that just failed.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Plain().WithFields(map[string]any{
		"interval_s": s.interval.Seconds(),
		"batch_size": s.batchSize,
	}).Info("sweep loop started")

	for {
		select {
		case <-ctx.Done():
			s.log.Plain().Info("sweep loop stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep pass. Safe to call concurrently with the loop (the
// admin API triggers it on demand); overlapping calls return Skipped.
func (s *Sweeper) Tick(ctx context.Context) Result {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordSweep("skipped", 0, 0)
		s.log.WithContext(ctx).Warn("sweep tick skipped, previous tick still running")
		return Result{Skipped: true}
	}
	defer s.busy.Store(false)

	ctx, span := tracing.StartSpan(ctx, "sweep.tick")
	defer span.End()

	start := time.Now()
	due, err := s.source.Due(ctx, start.UTC(), s.batchSize)
	if err != nil {
		metrics.RecordSweep("error", 0, 0)
		tracing.SetSpanError(ctx, err)
		s.log.WithContext(ctx).WithError(err).Error("sweep query failed")
		return Result{}
	}

	var res Result
	for _, entry := range due {
		// Sequential on purpose: the governor bounds endpoint concurrency
		// for live deliveries, the sweep should not compete with them.
		out := s.exec.Redeliver(ctx, entry)
		res.Processed++
		if out.Success {
			res.Succeeded++
		} else {
			res.Failed++
		}
		if ctx.Err() != nil {
			break
		}
	}

	duration := time.Since(start)
	metrics.RecordSweep("completed", duration, res.Processed)
	if res.Processed > 0 {
		s.log.WithContext(ctx).WithFields(map[string]any{
			"processed":   res.Processed,
			"succeeded":   res.Succeeded,
			"failed":      res.Failed,
			"duration_ms": duration.Milliseconds(),
		}).Info("sweep tick finished")
	}
	return res
}
