package domain

import "time"

// GuildSettings holds the per-guild notification target: a webhook URL
// plus the owner tagged on cycle-level warnings.
type GuildSettings struct {
	GuildID       string    `json:"guild_id"`
	WebhookURL    string    `json:"webhook_url"`
	WebhookSecret string    `json:"webhook_secret,omitempty"`
	OwnerID       string    `json:"owner_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}
