package fr24

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flightwatch/flightwatch/internal/domain"
)

const (
	// DefaultBaseURL is the production live-positions API host.
	DefaultBaseURL = "https://fr24api.flightradar24.com"

	positionsPath = "/api/live/flight-positions/full"

	creditsConsumedHeader  = "x-fr24-credits-consumed"
	creditsRemainingHeader = "x-fr24-credits-remaining"
)

// QueryResult carries the flight records and the usage metadata one
// upstream call returned.
type QueryResult struct {
	Flights []domain.FlightRecord
	Credits domain.CreditsMeta
}

// Client queries the live flight-positions endpoint. One call covers a
// whole batch of codes for a single kind.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// QueryByCodes issues one positions request for up to a batch's worth
// of codes. Errors are classified: 429 is a rate-limit signal (the
// caller parks the key), anything network-shaped or 5xx is transient.
func (c *Client) QueryByCodes(ctx context.Context, apiKey string, kind domain.SubscriptionKind, codes []string) (*QueryResult, error) {
	params, err := queryParams(kind, codes)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + positionsPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building positions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Err: err}
	}
	defer resp.Body.Close()

	credits := extractCredits(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var payload struct {
		Data []domain.FlightRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &RequestError{Err: fmt.Errorf("decoding positions response: %w", err)}
	}

	c.logger.Debug("positions query complete",
		"kind", kind,
		"codes", len(codes),
		"flights", len(payload.Data),
	)

	return &QueryResult{Flights: payload.Data, Credits: credits}, nil
}

func queryParams(kind domain.SubscriptionKind, codes []string) (url.Values, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("empty code batch for kind %q", kind)
	}
	params := url.Values{}
	switch kind {
	case domain.KindAircraft:
		params.Set("aircraft", strings.Join(codes, ","))
	case domain.KindRegistration:
		params.Set("registrations", strings.Join(codes, ","))
	case domain.KindAirport:
		// Inbound-only filter; outbound traffic must not match.
		inbound := make([]string, len(codes))
		for i, code := range codes {
			inbound[i] = "inbound:" + code
		}
		params.Set("airports", strings.Join(inbound, ","))
	default:
		return nil, fmt.Errorf("unknown subscription kind %q", kind)
	}
	return params, nil
}

func extractCredits(h http.Header) domain.CreditsMeta {
	return domain.CreditsMeta{
		Consumed:  parseIntHeader(h.Get(creditsConsumedHeader)),
		Remaining: parseIntHeader(h.Get(creditsRemainingHeader)),
	}
}

func parseIntHeader(v string) *int {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
