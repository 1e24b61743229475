package engine

import (
	"strings"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// BatchResult is one executed batch plus the flight records its
// upstream call returned.
type BatchResult struct {
	Batch   Batch
	Flights []domain.FlightRecord
	Credits domain.CreditsMeta
}

// MatchFlights maps batch results back to the subscriptions that
// requested each code. A single flight can match many subscriptions
// (same code across guilds and users), and a single subscription can
// match many flights in one cycle.
//
// Matching rule by kind:
//   - aircraft: exact type code equality
//   - registration: exact registration equality
//   - airport: destination equals the code (inbound only)
func MatchFlights(results []BatchResult, g Grouping) []domain.MatchedFlight {
	var matches []domain.MatchedFlight
	for _, result := range results {
		for _, flight := range result.Flights {
			for _, code := range result.Batch.Codes {
				if !flightMatches(result.Batch.Kind, code, flight) {
					continue
				}
				target := domain.QueryTarget{Kind: result.Batch.Kind, Code: code}
				for _, sub := range g.Subscribers[target] {
					matches = append(matches, domain.MatchedFlight{
						SubscriptionID: sub.ID,
						GuildID:        sub.GuildID,
						UserID:         sub.UserID,
						Kind:           sub.Kind,
						Code:           code,
						Flight:         flight,
					})
				}
			}
		}
	}
	return matches
}

func flightMatches(kind domain.SubscriptionKind, code string, f domain.FlightRecord) bool {
	switch kind {
	case domain.KindAircraft:
		return equalsCode(f.Typecode, code)
	case domain.KindRegistration:
		return equalsCode(f.Registration, code)
	case domain.KindAirport:
		// Inbound only: the origin field never qualifies.
		return equalsCode(f.DestIATA, code) || equalsCode(f.DestICAO, code)
	}
	return false
}

func equalsCode(field, code string) bool {
	return field != "" && strings.EqualFold(strings.TrimSpace(field), code)
}
