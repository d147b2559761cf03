// Package ledger is the durable audit trail of webhook deliveries. One
// entry is created per logical event→subscription dispatch and mutated in
// place across retries; it is the single source of truth for retry state.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entry status values. Status only moves forward:
// pending → (pending | sent | exhausted); sent and exhausted are terminal.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusExhausted = "exhausted"
)

// responseBodyLimit caps how much of the receiver's response is kept.
const responseBodyLimit = 500

var (
	// ErrNotFound is returned when no ledger entry matches the given id.
	ErrNotFound = errors.New("ledger entry not found")
	// ErrAlreadySent rejects manual retries of successful deliveries.
	ErrAlreadySent = errors.New("entry already sent")
	// errTerminal guards against transitions out of a terminal state.
	errTerminal = errors.New("entry is in a terminal state")
)

// Entry records one logical delivery's attempt history and outcome.
type Entry struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	Attempt        int             `json:"attempt_number"`
	MaxAttempts    int             `json:"max_attempts"`
	Status         string          `json:"status"`
	HTTPStatus     *int            `json:"http_status,omitempty"`
	ResponseBody   string          `json:"response_body,omitempty"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	LatencyMS      int             `json:"latency_ms,omitempty"`
	NextRetryAt    *time.Time      `json:"next_retry_at,omitempty"`
	LastRetryAt    *time.Time      `json:"last_retry_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// New creates a pending entry for a first dispatch attempt. The payload is
// snapshotted so retries resend exactly the bytes of the original attempt.
func New(id, subscriptionID, eventType string, payload []byte, maxAttempts int) Entry {
	return Entry{
		ID:             id,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		Payload:        payload,
		Attempt:        0,
		MaxAttempts:    maxAttempts,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

// Terminal reports whether the entry can change state again.
func (e *Entry) Terminal() bool {
	return e.Status == StatusSent || e.Status == StatusExhausted
}

// MarkSent transitions the entry to its successful terminal state.
func (e *Entry) MarkSent(httpStatus int, responseBody string, latency time.Duration) error {
	if e.Terminal() {
		return fmt.Errorf("mark sent %s: %w", e.ID, errTerminal)
	}
	now := time.Now().UTC()
	e.Status = StatusSent
	e.HTTPStatus = &httpStatus
	e.ResponseBody = Truncate(responseBody)
	e.ErrorMessage = ""
	e.LatencyMS = int(latency.Milliseconds())
	e.NextRetryAt = nil
	e.LastRetryAt = &now
	return nil
}

// MarkRetryScheduled records a failed attempt and the time the sweep should
// try again. The entry stays pending; nextRetryAt is non-null exactly while
// it does.
func (e *Entry) MarkRetryScheduled(attempt int, nextRetryAt time.Time, httpStatus *int, errMsg, responseBody string, latency time.Duration) error {
	if e.Terminal() {
		return fmt.Errorf("schedule retry %s: %w", e.ID, errTerminal)
	}
	if attempt > e.MaxAttempts {
		return fmt.Errorf("schedule retry %s: attempt %d exceeds max %d", e.ID, attempt, e.MaxAttempts)
	}
	now := time.Now().UTC()
	e.Status = StatusPending
	e.Attempt = attempt
	e.HTTPStatus = httpStatus
	e.ErrorMessage = errMsg
	e.ResponseBody = Truncate(responseBody)
	e.LatencyMS = int(latency.Milliseconds())
	e.NextRetryAt = &nextRetryAt
	e.LastRetryAt = &now
	return nil
}

// MarkExhausted transitions the entry to its failed terminal state.
func (e *Entry) MarkExhausted(attempt int, httpStatus *int, errMsg string) error {
	if e.Terminal() {
		return fmt.Errorf("mark exhausted %s: %w", e.ID, errTerminal)
	}
	now := time.Now().UTC()
	e.Status = StatusExhausted
	e.Attempt = attempt
	e.HTTPStatus = httpStatus
	e.ErrorMessage = errMsg
	e.NextRetryAt = nil
	e.LastRetryAt = &now
	return nil
}

// ResetForManualRetry rewinds a not-yet-sent entry so the next sweep picks
// it up immediately, bypassing backoff once.
func (e *Entry) ResetForManualRetry() error {
	if e.Status == StatusSent {
		return fmt.Errorf("manual retry %s: %w", e.ID, ErrAlreadySent)
	}
	now := time.Now().UTC()
	e.Status = StatusPending
	e.Attempt = 0
	e.ErrorMessage = ""
	e.NextRetryAt = &now
	return nil
}

// Truncate caps a response body for storage.
func Truncate(s string) string {
	if len(s) <= responseBodyLimit {
		return s
	}
	return s[:responseBodyLimit]
}
