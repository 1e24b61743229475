package notify

import (
	"strings"
	"testing"

	"github.com/flightwatch/flightwatch/internal/domain"
)

func TestFlightLink_PrefersIDAndCallsign(t *testing.T) {
	f := domain.FlightRecord{FR24ID: "3a2b1c", Callsign: "UAE21"}

	link := FlightLink(f, "")

	if link != "https://www.flightradar24.com/UAE21/3a2b1c" {
		t.Errorf("unexpected link %q", link)
	}
}

func TestFlightLink_FallsBackToFlightNumber(t *testing.T) {
	f := domain.FlightRecord{FR24ID: "3a2b1c", Flight: "EK21"}

	link := FlightLink(f, "https://example.test/")

	if link != "https://example.test/EK21/3a2b1c" {
		t.Errorf("unexpected link %q", link)
	}
}

func TestFlightLink_NoIdentifiers(t *testing.T) {
	link := FlightLink(domain.FlightRecord{}, "")
	if link != DefaultFlightBaseURL {
		t.Errorf("expected bare base URL, got %q", link)
	}
}

func TestRenderGroup_AirportTitleAndMentions(t *testing.T) {
	group := domain.NotificationGroup{
		GuildID: "g1",
		Kind:    domain.KindAirport,
		Code:    "WAW",
		Flights: []domain.FlightRecord{
			{FR24ID: "f1", Flight: "LO456", Registration: "SP-LRA", OrigIATA: "JFK", DestIATA: "WAW", ETA: "14:32"},
		},
		MentionUserIDs: []string{"111", "222"},
	}

	msg := RenderGroup(group, "")

	if !strings.Contains(msg, "Inbound to WAW (1 flight)") {
		t.Errorf("missing title in %q", msg)
	}
	if !strings.Contains(msg, "<@111> <@222>") {
		t.Errorf("missing mentions in %q", msg)
	}
	if !strings.Contains(msg, "LO456 [SP-LRA] JFK -> WAW ETA 14:32") {
		t.Errorf("missing flight line in %q", msg)
	}
}

func TestRenderGroup_OverflowSuffix(t *testing.T) {
	group := domain.NotificationGroup{
		GuildID:          "g1",
		Kind:             domain.KindAircraft,
		Code:             "A388",
		Flights:          []domain.FlightRecord{{FR24ID: "f1", Callsign: "UAE21"}},
		MentionUserIDs:   []string{"111"},
		OverflowMentions: 7,
	}

	msg := RenderGroup(group, "")

	if !strings.Contains(msg, "<@111> (+7 more)") {
		t.Errorf("missing overflow suffix in %q", msg)
	}
}

func TestRenderGroup_CapsFlightLines(t *testing.T) {
	group := domain.NotificationGroup{
		GuildID: "g1",
		Kind:    domain.KindRegistration,
		Code:    "A6-EVN",
	}
	for i := 0; i < 14; i++ {
		group.Flights = append(group.Flights, domain.FlightRecord{
			FR24ID: string(rune('a' + i)),
			Flight: "EK21",
		})
	}

	msg := RenderGroup(group, "")

	if !strings.Contains(msg, "Registration match: A6-EVN (14 flights)") {
		t.Errorf("header should report the full count: %q", msg)
	}
	if !strings.Contains(msg, "... and 4 more") {
		t.Errorf("missing line cap marker in %q", msg)
	}
	if got := strings.Count(msg, "- EK21"); got != 10 {
		t.Errorf("expected 10 flight lines, got %d", got)
	}
}

func TestRenderAlert_TagsOwner(t *testing.T) {
	msg := RenderAlert("999", "keys exhausted")
	if msg != "<@999> keys exhausted" {
		t.Errorf("unexpected alert %q", msg)
	}
}

func TestRenderAlert_NoOwner(t *testing.T) {
	msg := RenderAlert("", "keys exhausted")
	if msg != "keys exhausted" {
		t.Errorf("unexpected alert %q", msg)
	}
}

func TestRenderAlert_Truncates(t *testing.T) {
	msg := RenderAlert("1", strings.Repeat("x", 2000))
	if len(msg) > 910 {
		t.Errorf("alert not truncated, length %d", len(msg))
	}
	if !strings.HasSuffix(msg, "...") {
		t.Error("truncated alert should end with ellipsis")
	}
}
