package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no subscription matches the given id.
var ErrNotFound = errors.New("subscription not found")

// Store reads subscriptions and updates their aggregate dispatch stats.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectColumns = `
	id, url, COALESCE(secret, ''), COALESCE(headers, '{}'::jsonb),
	event_types, destination_kind, is_active,
	trigger_count, last_triggered_at, COALESCE(last_error, '')`

// Get returns one subscription by id.
func (s *Store) Get(ctx context.Context, id string) (Subscription, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM planthook.subscriptions WHERE id = $1`, selectColumns), id)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	return sub, err
}

// ListActiveForEvent returns every active subscription whose event-type set
// contains the given event type.
func (s *Store) ListActiveForEvent(ctx context.Context, eventType string) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM planthook.subscriptions
		WHERE is_active AND $1 = ANY(event_types)
		ORDER BY id`, selectColumns), eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// RecordResult bumps the subscription's trigger stats after a dispatch.
// An empty lastError clears any previous error.
func (s *Store) RecordResult(ctx context.Context, id string, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE planthook.subscriptions
		SET trigger_count = trigger_count + 1,
		    last_triggered_at = now(),
		    last_error = NULLIF($2, ''),
		    updated_at = now()
		WHERE id = $1`, id, lastError)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (Subscription, error) {
	var sub Subscription
	var headersJSON []byte
	if err := row.Scan(
		&sub.ID, &sub.URL, &sub.Secret, &headersJSON,
		&sub.EventTypes, &sub.Kind, &sub.IsActive,
		&sub.TriggerCount, &sub.LastTriggeredAt, &sub.LastError,
	); err != nil {
		return Subscription{}, err
	}
	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &sub.Headers); err != nil {
			return Subscription{}, fmt.Errorf("decode headers for %s: %w", sub.ID, err)
		}
	}
	return sub, nil
}
