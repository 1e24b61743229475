package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// CreateSubscription inserts a subscription, returning (nil, false, nil)
// when an identical (guild, user, kind, code) row already exists.
func (s *PostgresStore) CreateSubscription(ctx context.Context, req domain.CreateSubscriptionRequest) (*domain.Subscription, bool, error) {
	var sub domain.Subscription
	err := s.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (guild_id, user_id, kind, code)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id, kind, code) DO NOTHING
		RETURNING id, guild_id, user_id, kind, code, created_at
	`, req.GuildID, req.UserID, req.Kind, req.Code).Scan(
		&sub.ID, &sub.GuildID, &sub.UserID, &sub.Kind, &sub.Code, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("inserting subscription: %w", err)
	}
	return &sub, true, nil
}

// DeleteSubscription removes a subscription by ID, returning whether a
// row was deleted.
func (s *PostgresStore) DeleteSubscription(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListActiveSubscriptions returns the full subscription snapshot the
// poll cycle operates on.
func (s *PostgresStore) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	return s.querySubscriptions(ctx, `
		SELECT id, guild_id, user_id, kind, code, created_at
		FROM subscriptions
		ORDER BY id
	`)
}

// ListSubscriptions filters by guild and/or user; empty values match
// everything.
func (s *PostgresStore) ListSubscriptions(ctx context.Context, guildID, userID string) ([]domain.Subscription, error) {
	query := `SELECT id, guild_id, user_id, kind, code, created_at FROM subscriptions`
	args := []any{}
	argIdx := 1

	if guildID != "" {
		query += fmt.Sprintf(" WHERE guild_id = $%d", argIdx)
		args = append(args, guildID)
		argIdx++
	}
	if userID != "" {
		if argIdx == 1 {
			query += fmt.Sprintf(" WHERE user_id = $%d", argIdx)
		} else {
			query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		}
		args = append(args, userID)
	}
	query += " ORDER BY id"

	return s.querySubscriptions(ctx, query, args...)
}

func (s *PostgresStore) querySubscriptions(ctx context.Context, query string, args ...any) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		err := rows.Scan(&sub.ID, &sub.GuildID, &sub.UserID, &sub.Kind, &sub.Code, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}
	return subs, nil
}
