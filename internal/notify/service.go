// Package notify is the application service behind both the NSQ consumer and
// the admin API. It fans events out to matching subscriptions and fronts the
// ledger's manual-retry and stats operations.
package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/plantpulse/plant_hook/internal/dispatch"
	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/subscription"
	"github.com/plantpulse/plant_hook/internal/sweep"
	"github.com/plantpulse/plant_hook/internal/tracing"
)

// Registry is the subscription lookup surface the service needs.
type Registry interface {
	Get(ctx context.Context, id string) (subscription.Subscription, error)
	ListActiveForEvent(ctx context.Context, eventType string) ([]subscription.Subscription, error)
}

// Ledger exposes the manual-retry and stats operations.
type Ledger interface {
	ResetForRetry(ctx context.Context, id string) (ledger.Entry, error)
	RetryStats(ctx context.Context) (ledger.Stats, error)
}

// Dispatcher performs first-attempt deliveries.
type Dispatcher interface {
	Deliver(ctx context.Context, sub subscription.Subscription, evt event.Event) dispatch.Outcome
}

// SweepTicker runs one on-demand sweep pass.
type SweepTicker interface {
	Tick(ctx context.Context) sweep.Result
}

// Summary aggregates the fan-out of one event.
type Summary struct {
	EventType string             `json:"event_type"`
	Matched   int                `json:"matched"`
	Sent      int                `json:"sent"`
	Failed    int                `json:"failed"`
	Outcomes  []dispatch.Outcome `json:"outcomes,omitempty"`
}

type Service struct {
	registry Registry
	ledger   Ledger
	disp     Dispatcher
	sweeper  SweepTicker
	log      *logging.Logger
}

func NewService(registry Registry, led Ledger, disp Dispatcher, sweeper SweepTicker, log *logging.Logger) *Service {
	return &Service{
		registry: registry,
		ledger:   led,
		disp:     disp,
		sweeper:  sweeper,
		log:      log,
	}
}

// Trigger delivers the event to every active subscription whose event type
// filter matches. Individual delivery failures do not abort the fan-out.
func (s *Service) Trigger(ctx context.Context, evt event.Event) (Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "notify.trigger",
		attribute.String("event_type", evt.Type),
	)
	defer span.End()

	subs, err := s.registry.ListActiveForEvent(ctx, evt.Type)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return Summary{EventType: evt.Type}, fmt.Errorf("listing subscriptions: %w", err)
	}

	sum := Summary{EventType: evt.Type, Matched: len(subs)}
	for _, sub := range subs {
		out := s.disp.Deliver(ctx, sub, evt)
		sum.Outcomes = append(sum.Outcomes, out)
		if out.Success {
			sum.Sent++
		} else {
			sum.Failed++
		}
	}

	s.log.WithContext(ctx).WithEventType(evt.Type).WithFields(map[string]any{
		"matched": sum.Matched,
		"sent":    sum.Sent,
		"failed":  sum.Failed,
	}).Info("event fan-out finished")
	return sum, nil
}

// Test sends a synthetic test notification to one subscription, active or
// not. The attempt is ledgered like any other delivery.
func (s *Service) Test(ctx context.Context, subscriptionID string) (dispatch.Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "notify.test",
		attribute.String("subscription_id", subscriptionID),
	)
	defer span.End()

	sub, err := s.registry.Get(ctx, subscriptionID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return dispatch.Outcome{}, err
	}
	return s.disp.Deliver(ctx, sub, event.NewTest()), nil
}

// ManualRetry resets a failed entry so the next sweep redelivers it
// immediately. Entries already delivered are rejected with ErrAlreadySent.
func (s *Service) ManualRetry(ctx context.Context, entryID string) (ledger.Entry, error) {
	ctx, span := tracing.StartSpan(ctx, "notify.manual_retry",
		attribute.String("entry_id", entryID),
	)
	defer span.End()

	entry, err := s.ledger.ResetForRetry(ctx, entryID)
	if err != nil {
		tracing.SetSpanError(ctx, err)
		return ledger.Entry{}, err
	}
	s.log.WithContext(ctx).WithEntry(entryID).Info("entry reset for manual retry")
	return entry, nil
}

// RetryStats reports pending/exhausted counts and total retries performed.
func (s *Service) RetryStats(ctx context.Context) (ledger.Stats, error) {
	return s.ledger.RetryStats(ctx)
}

// Sweep runs one on-demand sweep pass.
func (s *Service) Sweep(ctx context.Context) sweep.Result {
	return s.sweeper.Tick(ctx)
}
