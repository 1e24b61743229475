package store

import (
	"context"
	"fmt"
	"time"
)

// HasNotified tests membership of a (subscription, flight) pair in the
// durable notification log.
func (s *PostgresStore) HasNotified(ctx context.Context, subscriptionID int64, flightKey string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM notification_log
			WHERE subscription_id = $1 AND flight_id = $2
		)
	`, subscriptionID, flightKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking notification log: %w", err)
	}
	return exists, nil
}

// RecordNotified appends a log entry after confirmed delivery.
// Idempotent: a duplicate pair is a no-op.
func (s *PostgresStore) RecordNotified(ctx context.Context, subscriptionID int64, flightKey string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notification_log (subscription_id, flight_id, notified_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (subscription_id, flight_id) DO NOTHING
	`, subscriptionID, flightKey, at)
	if err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// PruneNotificationsBefore deletes log rows older than the cutoff and
// returns the number removed. Driven by the retention job.
func (s *PostgresStore) PruneNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notification_log WHERE notified_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning notification log: %w", err)
	}
	return tag.RowsAffected(), nil
}
