package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flightwatch/flightwatch/internal/poller"
)

type PollerHandler struct {
	poller *poller.Poller
}

func NewPollerHandler(p *poller.Poller) *PollerHandler {
	return &PollerHandler{poller: p}
}

func (h *PollerHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.poller.Status())
}

// Run triggers an immediate cycle, outside the interval schedule.
func (h *PollerHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.poller.RunOnce(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "poll cycle failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *PollerHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.poller.Pause()
	respondJSON(w, http.StatusOK, h.poller.Status())
}

func (h *PollerHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.poller.Resume()
	respondJSON(w, http.StatusOK, h.poller.Status())
}

type setIntervalRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

func (h *PollerHandler) SetInterval(w http.ResponseWriter, r *http.Request) {
	var req setIntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.poller.SetInterval(time.Duration(req.IntervalSeconds) * time.Second); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.poller.Status())
}
