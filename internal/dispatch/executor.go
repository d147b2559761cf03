// Package dispatch performs bounded outbound webhook attempts and owns the
// ledger/stats bookkeeping around each one.
package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/plantpulse/plant_hook/internal/event"
	"github.com/plantpulse/plant_hook/internal/governor"
	"github.com/plantpulse/plant_hook/internal/ledger"
	"github.com/plantpulse/plant_hook/internal/logging"
	"github.com/plantpulse/plant_hook/internal/metrics"
	"github.com/plantpulse/plant_hook/internal/payload"
	"github.com/plantpulse/plant_hook/internal/retry"
	"github.com/plantpulse/plant_hook/internal/subscription"
	"github.com/plantpulse/plant_hook/internal/tracing"
)

// DisabledReason is recorded when a retry is short-circuited because the
// owning subscription is gone or switched off.
const DisabledReason = "Webhook disabled"

// SubscriptionStore is the slice of the registry the executor needs.
type SubscriptionStore interface {
	Get(ctx context.Context, id string) (subscription.Subscription, error)
	RecordResult(ctx context.Context, id string, lastError string) error
}

// LedgerStore persists the per-attempt audit record.
type LedgerStore interface {
	Upsert(ctx context.Context, e ledger.Entry) error
}

// Config carries the delivery bounds.
type Config struct {
	Timeout         time.Duration
	MaxPayloadBytes int
	SignatureHeader string
	TimestampHeader string
}

// Outcome is the structured result of one delivery attempt. The executor
// never propagates errors past its boundary; callers aggregate these.
type Outcome struct {
	Success    bool   `json:"success"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Error      string `json:"error,omitempty"`
	EntryID    string `json:"entry_id,omitempty"`
}

type Executor struct {
	client *http.Client
	subs   SubscriptionStore
	ledger LedgerStore
	gov    *governor.Governor
	sched  retry.Scheduler
	cfg    Config
	log    *logging.Logger
}

func NewExecutor(subs SubscriptionStore, ledgerStore LedgerStore, gov *governor.Governor, sched retry.Scheduler, cfg Config, log *logging.Logger) *Executor {
	// The per-attempt context enforces the timeout; the client itself has
	// none so governor wait time is not double-counted.
	return &Executor{
		client: &http.Client{},
		subs:   subs,
		ledger: ledgerStore,
		gov:    gov,
		sched:  sched,
		cfg:    cfg,
		log:    log,
	}
}

// Deliver performs the first attempt of a logical dispatch: format, size
// check, one bounded HTTP call, exactly one ledger write, stats update.
func (x *Executor) Deliver(ctx context.Context, sub subscription.Subscription, evt event.Event) Outcome {
	ctx, span := tracing.StartSpan(ctx, "dispatch.deliver",
		attribute.String("subscription_id", sub.ID),
		attribute.String("event_type", evt.Type),
	)
	defer span.End()

	body, err := payload.Format(evt, sub.Kind)
	entry := ledger.New(uuid.NewString(), sub.ID, evt.Type, body, x.sched.MaxRetries)

	if err != nil {
		// Unserializable event data; permanent, no network call.
		return x.finishRejected(ctx, &entry, sub, err.Error())
	}
	if len(body) > x.cfg.MaxPayloadBytes {
		msg := fmt.Sprintf("payload size %d exceeds limit %d", len(body), x.cfg.MaxPayloadBytes)
		metrics.RecordPayloadRejected()
		return x.finishRejected(ctx, &entry, sub, msg)
	}

	res := x.attempt(ctx, sub, body)
	return x.finishAttempt(ctx, &entry, sub, 0, res)
}

// Redeliver re-drives an existing pending ledger entry, resending the
// payload snapshot taken at the first attempt. Called by the sweep loop.
func (x *Executor) Redeliver(ctx context.Context, entry ledger.Entry) Outcome {
	ctx, span := tracing.StartSpan(ctx, "dispatch.redeliver",
		attribute.String("entry_id", entry.ID),
		attribute.Int("attempt", entry.Attempt+1),
	)
	defer span.End()

	sub, err := x.subs.Get(ctx, entry.SubscriptionID)
	if err != nil && !errors.Is(err, subscription.ErrNotFound) {
		// Registry unavailable; leave the entry due for the next sweep.
		tracing.SetSpanError(ctx, err)
		x.log.WithContext(ctx).WithEntry(entry.ID).WithError(err).Error("subscription lookup failed")
		return Outcome{Error: err.Error(), EntryID: entry.ID}
	}
	if errors.Is(err, subscription.ErrNotFound) || !sub.IsActive {
		// Owner gone or switched off: terminal, skip the network entirely.
		if markErr := entry.MarkExhausted(entry.Attempt, nil, DisabledReason); markErr != nil {
			return Outcome{Error: markErr.Error(), EntryID: entry.ID}
		}
		metrics.RecordRetry("webhook_disabled")
		metrics.RecordExhausted()
		metrics.RecordDelivery("exhausted", 0)
		if upErr := x.ledger.Upsert(ctx, entry); upErr != nil {
			x.log.WithContext(ctx).WithEntry(entry.ID).WithError(upErr).Error("ledger write failed")
		}
		return Outcome{Error: DisabledReason, EntryID: entry.ID}
	}

	res := x.attempt(ctx, sub, entry.Payload)
	return x.finishAttempt(ctx, &entry, sub, entry.Attempt+1, res)
}

// attemptResult captures the raw transport outcome of one HTTP call.
type attemptResult struct {
	ok       bool
	status   int
	respBody string
	errMsg   string
	reason   string
	latency  time.Duration
}

// attempt issues one signed POST under a governor slot and the hard
// per-call timeout. The slot is released on every exit path.
func (x *Executor) attempt(ctx context.Context, sub subscription.Subscription, body []byte) attemptResult {
	callCtx, cancel := context.WithTimeout(ctx, x.cfg.Timeout)
	defer cancel()

	release, err := x.gov.Acquire(callCtx)
	if err != nil {
		return attemptResult{errMsg: err.Error(), reason: "governor_saturated"}
	}
	defer release()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return attemptResult{errMsg: err.Error(), reason: "bad_request"}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range sub.Headers {
		if strings.EqualFold(k, "Content-Type") {
			continue
		}
		req.Header.Set(k, v)
	}
	if sub.Secret != "" {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		req.Header.Set(x.cfg.TimestampHeader, ts)
		req.Header.Set(x.cfg.SignatureHeader, "sha256="+sign(sub.Secret, body, ts))
	}
	if traceID := tracing.GetTraceID(ctx); traceID != "" {
		req.Header.Set("X-Trace-Id", traceID)
	}

	tracing.AddSpanEvent(ctx, "http.send_webhook")
	start := time.Now()
	resp, doErr := x.client.Do(req)
	latency := time.Since(start)

	res := attemptResult{latency: latency}
	if doErr != nil {
		res.errMsg = doErr.Error()
		res.reason = classifyReason(doErr, 0)
		return res
	}
	defer resp.Body.Close()

	res.status = resp.StatusCode
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	res.respBody = string(b)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		res.ok = true
		return res
	}
	res.errMsg = fmt.Sprintf("endpoint returned HTTP %d", resp.StatusCode)
	res.reason = classifyReason(nil, resp.StatusCode)
	return res
}

// finishAttempt applies the attempt result to the entry, writes the ledger
// record, then bumps subscription stats. If the ledger write fails the
// stats update is skipped so no stats change exists without a record.
func (x *Executor) finishAttempt(ctx context.Context, entry *ledger.Entry, sub subscription.Subscription, attemptNum int, res attemptResult) Outcome {
	var httpStatus *int
	if res.status > 0 {
		httpStatus = &res.status
	}

	var markErr error
	if res.ok {
		markErr = entry.MarkSent(res.status, res.respBody, res.latency)
		metrics.RecordDelivery("sent", res.latency)
	} else {
		decision := x.sched.Decide(attemptNum, time.Now().UTC())
		if decision.Exhausted {
			markErr = entry.MarkExhausted(attemptNum, httpStatus, res.errMsg)
			metrics.RecordDelivery("exhausted", res.latency)
			metrics.RecordExhausted()
		} else {
			markErr = entry.MarkRetryScheduled(attemptNum, decision.NextRetryAt, httpStatus, res.errMsg, res.respBody, res.latency)
			metrics.RecordDelivery("failed", res.latency)
		}
		metrics.RecordRetry(res.reason)
	}
	if markErr != nil {
		tracing.SetSpanError(ctx, markErr)
		x.log.WithContext(ctx).WithEntry(entry.ID).WithError(markErr).Error("ledger state transition rejected")
		return Outcome{Error: markErr.Error(), EntryID: entry.ID}
	}

	if err := x.ledger.Upsert(ctx, *entry); err != nil {
		tracing.SetSpanError(ctx, err)
		x.log.WithContext(ctx).WithEntry(entry.ID).WithSubscription(sub.ID).WithError(err).Error("ledger write failed")
		return Outcome{Success: res.ok, HTTPStatus: res.status, Error: err.Error(), EntryID: entry.ID}
	}

	if err := x.subs.RecordResult(ctx, sub.ID, res.errMsg); err != nil {
		x.log.WithContext(ctx).WithSubscription(sub.ID).WithError(err).Error("subscription stats update failed")
	}

	x.log.WithContext(ctx).
		WithSubscription(sub.ID).
		WithEntry(entry.ID).
		WithEventType(entry.EventType).
		WithFields(map[string]any{
			"attempt":     attemptNum,
			"status":      entry.Status,
			"http_status": res.status,
			"latency_ms":  res.latency.Milliseconds(),
		}).Info("delivery attempt finished")

	return Outcome{Success: res.ok, HTTPStatus: res.status, Error: res.errMsg, EntryID: entry.ID}
}

// finishRejected records a permanent pre-network failure (oversized or
// unserializable payload) as an immediately exhausted entry.
func (x *Executor) finishRejected(ctx context.Context, entry *ledger.Entry, sub subscription.Subscription, msg string) Outcome {
	if err := entry.MarkExhausted(0, nil, msg); err != nil {
		return Outcome{Error: err.Error(), EntryID: entry.ID}
	}
	metrics.RecordDelivery("exhausted", 0)
	metrics.RecordExhausted()

	if err := x.ledger.Upsert(ctx, *entry); err != nil {
		tracing.SetSpanError(ctx, err)
		x.log.WithContext(ctx).WithEntry(entry.ID).WithError(err).Error("ledger write failed")
		return Outcome{Error: err.Error(), EntryID: entry.ID}
	}
	if err := x.subs.RecordResult(ctx, sub.ID, msg); err != nil {
		x.log.WithContext(ctx).WithSubscription(sub.ID).WithError(err).Error("subscription stats update failed")
	}

	x.log.WithContext(ctx).WithSubscription(sub.ID).WithEntry(entry.ID).Warn(msg)
	return Outcome{Error: msg, EntryID: entry.ID}
}

func sign(secret string, body []byte, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}

// classifyReason buckets a failure for metrics.
func classifyReason(doErr error, status int) string {
	if doErr != nil {
		errLower := strings.ToLower(doErr.Error())
		if strings.Contains(errLower, "context deadline exceeded") || strings.Contains(errLower, "timeout") {
			return "timeout"
		}
		if strings.Contains(errLower, "connection refused") {
			return "connection_refused"
		}
		if strings.Contains(errLower, "no such host") || strings.Contains(errLower, "dns") {
			return "dns_error"
		}
		return "network"
	}
	if status >= 500 {
		return "http_5xx"
	}
	if status == 429 {
		return "http_429"
	}
	if status >= 400 {
		return "http_4xx"
	}
	return "other"
}
