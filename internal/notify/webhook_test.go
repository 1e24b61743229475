package notify

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/flightwatch/flightwatch/internal/domain"
)

func newTestNotifier() *WebhookNotifier {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewWebhookNotifier(nil, "", 5*time.Second, logger)
}

func testGroup() domain.NotificationGroup {
	return domain.NotificationGroup{
		GuildID:        "g1",
		Kind:           domain.KindAircraft,
		Code:           "A388",
		Flights:        []domain.FlightRecord{{FR24ID: "f1", Callsign: "UAE21", Typecode: "A388"}},
		MentionUserIDs: []string{"111"},
	}
}

func TestSend_PostsRenderedContent(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := newTestNotifier()
	settings := domain.GuildSettings{GuildID: "g1", WebhookURL: srv.URL}

	if err := n.Send(context.Background(), settings, testGroup()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if payload.Content == "" || payload.Content != RenderGroup(testGroup(), "") {
		t.Errorf("payload content does not match rendered group: %q", payload.Content)
	}
}

func TestSend_SignsWhenSecretConfigured(t *testing.T) {
	var gotSig string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := newTestNotifier()
	settings := domain.GuildSettings{GuildID: "g1", WebhookURL: srv.URL, WebhookSecret: "topsecret"}

	if err := n.Send(context.Background(), settings, testGroup()); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	want := computeHMAC(gotBody, "topsecret")
	if !hmac.Equal([]byte(gotSig), []byte(want)) {
		t.Errorf("signature mismatch: got %q want %q", gotSig, want)
	}
}

func TestSend_NoSignatureWithoutSecret(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
	}))
	defer srv.Close()

	n := newTestNotifier()
	settings := domain.GuildSettings{GuildID: "g1", WebhookURL: srv.URL}

	if err := n.Send(context.Background(), settings, testGroup()); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if gotSig != "" {
		t.Errorf("unexpected signature header %q", gotSig)
	}
}

func TestSend_Non2xxIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	n := newTestNotifier()
	settings := domain.GuildSettings{GuildID: "g1", WebhookURL: srv.URL}

	err := n.Send(context.Background(), settings, testGroup())

	var delErr *DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if delErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status %d", delErr.StatusCode)
	}
}

func TestSend_MissingWebhookIsDeliveryError(t *testing.T) {
	n := newTestNotifier()

	err := n.Send(context.Background(), domain.GuildSettings{GuildID: "g1"}, testGroup())

	var delErr *DeliveryError
	if !errors.As(err, &delErr) {
		t.Fatalf("expected DeliveryError for missing webhook, got %v", err)
	}
}

func TestSendAlert_TagsOwner(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := newTestNotifier()
	settings := domain.GuildSettings{GuildID: "g1", WebhookURL: srv.URL, OwnerID: "777"}

	if err := n.SendAlert(context.Background(), settings, "all keys parked"); err != nil {
		t.Fatalf("send alert failed: %v", err)
	}

	var payload struct {
		Content string `json:"content"`
	}
	json.Unmarshal(gotBody, &payload)
	if payload.Content != "<@777> all keys parked" {
		t.Errorf("unexpected alert content %q", payload.Content)
	}
}
