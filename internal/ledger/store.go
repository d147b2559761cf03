package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stats aggregates retry state over the whole ledger.
type Stats struct {
	Pending      int64 `json:"pending"`
	Exhausted    int64 `json:"exhausted"`
	TotalRetries int64 `json:"total_retries"`
}

// Store persists ledger entries in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert writes the entry keyed by id: insert on first attempt, update of
// the mutable columns on every retry of the same logical dispatch.
func (s *Store) Upsert(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO planthook.delivery_ledger(
			id, subscription_id, event_type, payload, attempt_number, max_attempts,
			status, http_status, response_body, error_message, latency_ms,
			next_retry_at, last_retry_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			attempt_number = EXCLUDED.attempt_number,
			status         = EXCLUDED.status,
			http_status    = EXCLUDED.http_status,
			response_body  = EXCLUDED.response_body,
			error_message  = EXCLUDED.error_message,
			latency_ms     = EXCLUDED.latency_ms,
			next_retry_at  = EXCLUDED.next_retry_at,
			last_retry_at  = EXCLUDED.last_retry_at,
			updated_at     = now()`,
		e.ID, e.SubscriptionID, e.EventType, []byte(e.Payload), e.Attempt, e.MaxAttempts,
		e.Status, e.HTTPStatus, nullIfEmpty(e.ResponseBody), nullIfEmpty(e.ErrorMessage), e.LatencyMS,
		e.NextRetryAt, e.LastRetryAt, e.CreatedAt,
	)
	return err
}

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, subscription_id, event_type, payload, attempt_number, max_attempts,
		       status, http_status, COALESCE(response_body, ''), COALESCE(error_message, ''),
		       COALESCE(latency_ms, 0), next_retry_at, last_retry_at, created_at
		FROM planthook.delivery_ledger
		WHERE id = $1`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Due returns pending entries whose retry time has arrived, oldest due
// first, bounded to limit. The sweep loop is the only caller; there is no
// claim step because a single sweeping instance is assumed.
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, event_type, payload, attempt_number, max_attempts,
		       status, http_status, COALESCE(response_body, ''), COALESCE(error_message, ''),
		       COALESCE(latency_ms, 0), next_retry_at, last_retry_at, created_at
		FROM planthook.delivery_ledger
		WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= $1
		ORDER BY next_retry_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ResetForRetry applies the manual-retry transition in one conditional
// update. Entries already sent are left untouched and reported as
// ErrAlreadySent.
func (s *Store) ResetForRetry(ctx context.Context, id string) (Entry, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE planthook.delivery_ledger
		SET status = 'pending', attempt_number = 0, error_message = NULL,
		    next_retry_at = now(), updated_at = now()
		WHERE id = $1 AND status <> 'sent'
		RETURNING id, subscription_id, event_type, payload, attempt_number, max_attempts,
		          status, http_status, COALESCE(response_body, ''), COALESCE(error_message, ''),
		          COALESCE(latency_ms, 0), next_retry_at, last_retry_at, created_at`, id)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or already sent; look once more to tell them apart.
		existing, getErr := s.Get(ctx, id)
		if getErr != nil {
			return Entry{}, getErr
		}
		if existing.Status == StatusSent {
			return Entry{}, ErrAlreadySent
		}
		return Entry{}, ErrNotFound
	}
	return e, err
}

// RetryStats aggregates pending/exhausted counts and the total number of
// retries performed across all entries.
func (s *Store) RetryStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'exhausted'),
		       COALESCE(SUM(attempt_number), 0)
		FROM planthook.delivery_ledger`).Scan(&st.Pending, &st.Exhausted, &st.TotalRetries)
	return st, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var payload []byte
	if err := row.Scan(
		&e.ID, &e.SubscriptionID, &e.EventType, &payload, &e.Attempt, &e.MaxAttempts,
		&e.Status, &e.HTTPStatus, &e.ResponseBody, &e.ErrorMessage,
		&e.LatencyMS, &e.NextRetryAt, &e.LastRetryAt, &e.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	e.Payload = payload
	return e, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
