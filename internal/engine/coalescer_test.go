package engine

import (
	"fmt"
	"testing"

	"github.com/flightwatch/flightwatch/internal/domain"
)

func TestCoalesce_OneGroupPerGuildAndCode(t *testing.T) {
	flight := domain.FlightRecord{FR24ID: "f1", Typecode: "A388"}
	matches := []domain.MatchedFlight{
		{SubscriptionID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAircraft, Code: "A388", Flight: flight},
		{SubscriptionID: 2, GuildID: "g1", UserID: "u2", Kind: domain.KindAircraft, Code: "A388", Flight: flight},
		{SubscriptionID: 3, GuildID: "g2", UserID: "u3", Kind: domain.KindAircraft, Code: "A388", Flight: flight},
	}

	groups := Coalesce(matches, 25)

	if len(groups) != 2 {
		t.Fatalf("expected one group per guild, got %d", len(groups))
	}
	if len(groups[0].MentionUserIDs) != 2 {
		t.Errorf("g1 group should mention both subscribers, got %v", groups[0].MentionUserIDs)
	}
	if len(groups[0].Flights) != 1 {
		t.Errorf("same flight should appear once, got %d", len(groups[0].Flights))
	}
}

func TestCoalesce_DistinctFlightsByKey(t *testing.T) {
	matches := []domain.MatchedFlight{
		{SubscriptionID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAirport, Code: "WAW",
			Flight: domain.FlightRecord{FR24ID: "f1", DestIATA: "WAW"}},
		{SubscriptionID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAirport, Code: "WAW",
			Flight: domain.FlightRecord{FR24ID: "f2", DestIATA: "WAW"}},
		{SubscriptionID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAirport, Code: "WAW",
			Flight: domain.FlightRecord{FR24ID: "f1", DestIATA: "WAW"}},
	}

	groups := Coalesce(matches, 25)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Flights) != 2 {
		t.Errorf("expected 2 distinct flights, got %d", len(groups[0].Flights))
	}
	// Every (subscription, flight) pair is kept for the log, duplicates
	// included; the store is idempotent on conflict.
	if len(groups[0].Pairs) != 3 {
		t.Errorf("expected 3 pairs, got %d", len(groups[0].Pairs))
	}
}

func TestCoalesce_MentionTruncation(t *testing.T) {
	flight := domain.FlightRecord{FR24ID: "f1", Typecode: "A388"}
	var matches []domain.MatchedFlight
	for i := 0; i < 30; i++ {
		matches = append(matches, domain.MatchedFlight{
			SubscriptionID: int64(i + 1),
			GuildID:        "g1",
			UserID:         fmt.Sprintf("u%02d", i+1),
			Kind:           domain.KindAircraft,
			Code:           "A388",
			Flight:         flight,
		})
	}

	groups := Coalesce(matches, 25)

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	g := groups[0]
	if len(g.MentionUserIDs) != 25 {
		t.Errorf("expected 25 mentions, got %d", len(g.MentionUserIDs))
	}
	if g.OverflowMentions != 5 {
		t.Errorf("expected overflow of 5, got %d", g.OverflowMentions)
	}
	// Truncation keeps the lowest subscription IDs.
	if g.MentionUserIDs[0] != "u01" || g.MentionUserIDs[24] != "u25" {
		t.Errorf("unexpected mention ordering: first=%q last=%q", g.MentionUserIDs[0], g.MentionUserIDs[24])
	}
	// All 30 pairs still recorded despite mention truncation.
	if len(g.Pairs) != 30 {
		t.Errorf("expected 30 pairs, got %d", len(g.Pairs))
	}
}

func TestCoalesce_DedupesUserMentions(t *testing.T) {
	flight := domain.FlightRecord{FR24ID: "f1", Registration: "A6-EVN"}
	// Same user subscribed twice (different codes collapsed to one here).
	matches := []domain.MatchedFlight{
		{SubscriptionID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindRegistration, Code: "A6-EVN", Flight: flight},
		{SubscriptionID: 2, GuildID: "g1", UserID: "u1", Kind: domain.KindRegistration, Code: "A6-EVN", Flight: flight},
	}

	groups := Coalesce(matches, 25)

	if len(groups[0].MentionUserIDs) != 1 {
		t.Errorf("same user should be mentioned once, got %v", groups[0].MentionUserIDs)
	}
}

func TestCoalesce_Empty(t *testing.T) {
	if got := Coalesce(nil, 25); len(got) != 0 {
		t.Fatalf("expected no groups for no matches, got %d", len(got))
	}
}
