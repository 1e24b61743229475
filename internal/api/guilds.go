package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flightwatch/flightwatch/internal/domain"
	"github.com/flightwatch/flightwatch/internal/store"
)

type GuildHandler struct {
	store *store.PostgresStore
}

func NewGuildHandler(s *store.PostgresStore) *GuildHandler {
	return &GuildHandler{store: s}
}

type setChannelRequest struct {
	WebhookURL    string `json:"webhook_url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
	OwnerID       string `json:"owner_id,omitempty"`
}

// SetChannel sets or replaces the notify channel for a guild.
func (h *GuildHandler) SetChannel(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var req setChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !strings.HasPrefix(req.WebhookURL, "http://") && !strings.HasPrefix(req.WebhookURL, "https://") {
		respondError(w, http.StatusBadRequest, "webhook_url must be an http(s) URL")
		return
	}

	settings, err := h.store.UpsertGuildSettings(r.Context(), domain.GuildSettings{
		GuildID:       guildID,
		WebhookURL:    req.WebhookURL,
		WebhookSecret: req.WebhookSecret,
		OwnerID:       req.OwnerID,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save guild settings")
		return
	}

	// Never echo the secret back.
	settings.WebhookSecret = ""
	respondJSON(w, http.StatusOK, settings)
}

// GetChannel returns the guild's notify channel settings.
func (h *GuildHandler) GetChannel(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	settings, err := h.store.GetGuildSettings(r.Context(), guildID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get guild settings")
		return
	}
	if settings == nil {
		respondError(w, http.StatusNotFound, "guild has no notify channel configured")
		return
	}

	settings.WebhookSecret = ""
	respondJSON(w, http.StatusOK, settings)
}
