package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flightwatch/flightwatch/internal/engine"
	"github.com/flightwatch/flightwatch/internal/store"
)

type KeyHandler struct {
	pool  *engine.KeyPool
	store *store.PostgresStore
}

func NewKeyHandler(pool *engine.KeyPool, s *store.PostgresStore) *KeyHandler {
	return &KeyHandler{pool: pool, store: s}
}

// List returns every key's masked state: window usage and park status.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.pool.Snapshot())
}

type parkRequest struct {
	Hours  int    `json:"hours,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Park takes a key out of rotation for the requested duration, or the
// default cool-down when hours is omitted.
func (h *KeyHandler) Park(w http.ResponseWriter, r *http.Request) {
	keyID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	var req parkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	state, err := h.pool.Park(r.Context(), keyID, time.Duration(req.Hours)*time.Hour, reason)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	state.Secret = ""
	respondJSON(w, http.StatusOK, state)
}

// Unpark returns a key to rotation immediately.
func (h *KeyHandler) Unpark(w http.ResponseWriter, r *http.Request) {
	keyID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid key id")
		return
	}

	state, err := h.pool.Unpark(r.Context(), keyID)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	state.Secret = ""
	respondJSON(w, http.StatusOK, state)
}

// Credits returns the latest observed usage snapshot per key.
func (h *KeyHandler) Credits(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.LatestCreditsSnapshots(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load credits snapshots")
		return
	}
	respondJSON(w, http.StatusOK, snaps)
}
