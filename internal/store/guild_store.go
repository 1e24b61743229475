package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// UpsertGuildSettings sets or replaces a guild's notification target.
func (s *PostgresStore) UpsertGuildSettings(ctx context.Context, gs domain.GuildSettings) (*domain.GuildSettings, error) {
	var out domain.GuildSettings
	err := s.pool.QueryRow(ctx, `
		INSERT INTO guild_settings (guild_id, webhook_url, webhook_secret, owner_id, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (guild_id)
		DO UPDATE SET webhook_url = EXCLUDED.webhook_url,
		              webhook_secret = EXCLUDED.webhook_secret,
		              owner_id = EXCLUDED.owner_id,
		              updated_at = NOW()
		RETURNING guild_id, webhook_url, COALESCE(webhook_secret, ''), owner_id, updated_at
	`, gs.GuildID, gs.WebhookURL, nullIfEmpty(gs.WebhookSecret), gs.OwnerID).Scan(
		&out.GuildID, &out.WebhookURL, &out.WebhookSecret, &out.OwnerID, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting guild settings: %w", err)
	}
	return &out, nil
}

// GetGuildSettings returns nil when the guild has no notify channel
// configured.
func (s *PostgresStore) GetGuildSettings(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	var gs domain.GuildSettings
	err := s.pool.QueryRow(ctx, `
		SELECT guild_id, webhook_url, COALESCE(webhook_secret, ''), owner_id, updated_at
		FROM guild_settings WHERE guild_id = $1
	`, guildID).Scan(&gs.GuildID, &gs.WebhookURL, &gs.WebhookSecret, &gs.OwnerID, &gs.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying guild settings: %w", err)
	}
	return &gs, nil
}

// GuildChannels returns the notification target for every configured
// guild, keyed by guild ID.
func (s *PostgresStore) GuildChannels(ctx context.Context) (map[string]domain.GuildSettings, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT guild_id, webhook_url, COALESCE(webhook_secret, ''), owner_id, updated_at
		FROM guild_settings
	`)
	if err != nil {
		return nil, fmt.Errorf("querying guild channels: %w", err)
	}
	defer rows.Close()

	channels := make(map[string]domain.GuildSettings)
	for rows.Next() {
		var gs domain.GuildSettings
		err := rows.Scan(&gs.GuildID, &gs.WebhookURL, &gs.WebhookSecret, &gs.OwnerID, &gs.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning guild settings: %w", err)
		}
		channels[gs.GuildID] = gs
	}
	return channels, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}
