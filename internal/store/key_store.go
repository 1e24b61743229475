package store

import (
	"context"
	"fmt"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// LoadKeyStates returns the persisted park state for every known key
// suffix. Secrets are never stored, so runtime state is re-keyed by
// masked suffix at startup.
func (s *PostgresStore) LoadKeyStates(ctx context.Context) ([]domain.APIKeyState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key_suffix, parked_until, COALESCE(parked_reason, '')
		FROM api_key_state
	`)
	if err != nil {
		return nil, fmt.Errorf("querying key states: %w", err)
	}
	defer rows.Close()

	var states []domain.APIKeyState
	for rows.Next() {
		var st domain.APIKeyState
		err := rows.Scan(&st.MaskedSuffix, &st.ParkedUntil, &st.ParkedReason)
		if err != nil {
			return nil, fmt.Errorf("scanning key state: %w", err)
		}
		states = append(states, st)
	}
	return states, nil
}

// SaveKeyState upserts a key's park state.
func (s *PostgresStore) SaveKeyState(ctx context.Context, state domain.APIKeyState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO api_key_state (key_suffix, parked_until, parked_reason, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (key_suffix)
		DO UPDATE SET parked_until = EXCLUDED.parked_until,
		              parked_reason = EXCLUDED.parked_reason,
		              updated_at = NOW()
	`, state.MaskedSuffix, state.ParkedUntil, nullIfEmpty(state.ParkedReason))
	if err != nil {
		return fmt.Errorf("saving key state: %w", err)
	}
	return nil
}

// SaveCreditsSnapshot records the usage metadata from the latest
// response on a key. Last write wins; display only.
func (s *PostgresStore) SaveCreditsSnapshot(ctx context.Context, snap domain.CreditsSnapshot) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credits_snapshots (key_suffix, key_id, consumed, remaining, observed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key_suffix)
		DO UPDATE SET key_id = EXCLUDED.key_id,
		              consumed = EXCLUDED.consumed,
		              remaining = EXCLUDED.remaining,
		              observed_at = EXCLUDED.observed_at
	`, snap.MaskedSuffix, snap.KeyID, snap.Consumed, snap.Remaining, snap.ObservedAt)
	if err != nil {
		return fmt.Errorf("saving credits snapshot: %w", err)
	}
	return nil
}

// LatestCreditsSnapshots returns the last observed usage per key.
func (s *PostgresStore) LatestCreditsSnapshots(ctx context.Context) ([]domain.CreditsSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key_suffix, key_id, consumed, remaining, observed_at
		FROM credits_snapshots
		ORDER BY key_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying credits snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.CreditsSnapshot
	for rows.Next() {
		var snap domain.CreditsSnapshot
		err := rows.Scan(&snap.MaskedSuffix, &snap.KeyID, &snap.Consumed, &snap.Remaining, &snap.ObservedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning credits snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if snaps == nil {
		snaps = []domain.CreditsSnapshot{}
	}
	return snaps, nil
}
