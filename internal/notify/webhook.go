package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// DeliveryError marks a transport-level failure. The caller must not
// log the notification as sent, so it is re-attempted next cycle if
// the flight still matches.
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return "delivery failed: " + e.Err.Error()
	}
	return fmt.Sprintf("delivery failed: endpoint returned %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// WebhookNotifier delivers coalesced notification groups to per-guild
// webhook endpoints via HTTP POST, signing the payload when the guild
// has a secret configured.
type WebhookNotifier struct {
	httpClient *http.Client
	limiter    *ChannelRateLimiter
	baseURL    string
	logger     *slog.Logger
}

func NewWebhookNotifier(limiter *ChannelRateLimiter, flightBaseURL string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		baseURL:    flightBaseURL,
		logger:     logger,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send posts one notification group to the guild's channel.
func (n *WebhookNotifier) Send(ctx context.Context, settings domain.GuildSettings, group domain.NotificationGroup) error {
	content := RenderGroup(group, n.baseURL)
	if err := n.post(ctx, settings, content); err != nil {
		return err
	}

	n.logger.Info("notification delivered",
		"guild_id", group.GuildID,
		"kind", group.Kind,
		"code", group.Code,
		"flights", len(group.Flights),
		"subscribers", len(group.MentionUserIDs)+group.OverflowMentions,
	)
	return nil
}

// SendAlert posts a cycle-level warning to the guild's channel,
// tagging the owner.
func (n *WebhookNotifier) SendAlert(ctx context.Context, settings domain.GuildSettings, text string) error {
	return n.post(ctx, settings, RenderAlert(settings.OwnerID, text))
}

func (n *WebhookNotifier) post(ctx context.Context, settings domain.GuildSettings, content string) error {
	if settings.WebhookURL == "" {
		return &DeliveryError{Err: fmt.Errorf("guild %s has no webhook configured", settings.GuildID)}
	}

	n.waitForSlot(ctx, settings.GuildID)

	body, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("marshaling payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, settings.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if settings.WebhookSecret != "" {
		req.Header.Set("X-Webhook-Signature", computeHMAC(body, settings.WebhookSecret))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}

// waitForSlot applies best-effort pacing against the channel limiter.
// After a few denied attempts the post proceeds anyway; pacing never
// turns into a delivery failure.
func (n *WebhookNotifier) waitForSlot(ctx context.Context, guildID string) {
	if n.limiter == nil {
		return
	}
	for attempt := 0; attempt < 3; attempt++ {
		if n.limiter.Allow(ctx, guildID) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func computeHMAC(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
