package notify

import (
	"fmt"
	"strings"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// DefaultFlightBaseURL is the public tracker used for deep links in
// notification messages.
const DefaultFlightBaseURL = "https://www.flightradar24.com"

// maxFlightLines caps the per-message flight list; the group header
// still reports the full count.
const maxFlightLines = 10

// FlightLink builds a tracker deep link for one flight, degrading
// gracefully when identifiers are missing.
func FlightLink(f domain.FlightRecord, baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultFlightBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	callsign := f.Callsign
	if callsign == "" {
		callsign = f.Flight
	}
	switch {
	case f.FR24ID != "" && callsign != "":
		return fmt.Sprintf("%s/%s/%s", baseURL, callsign, f.FR24ID)
	case f.FR24ID != "":
		return fmt.Sprintf("%s/%s", baseURL, f.FR24ID)
	case callsign != "":
		return fmt.Sprintf("%s/%s", baseURL, callsign)
	}
	return baseURL
}

func groupTitle(group domain.NotificationGroup) string {
	switch group.Kind {
	case domain.KindAirport:
		return fmt.Sprintf("Inbound to %s", group.Code)
	case domain.KindRegistration:
		return fmt.Sprintf("Registration match: %s", group.Code)
	default:
		return fmt.Sprintf("Aircraft match: %s", group.Code)
	}
}

// RenderGroup produces the message content for one notification group:
// a title line, the subscriber mentions, and one line per distinct
// flight with route, registration, and a tracker link.
func RenderGroup(group domain.NotificationGroup, baseURL string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%d flight", groupTitle(group), len(group.Flights))
	if len(group.Flights) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")\n")

	if len(group.MentionUserIDs) > 0 {
		mentions := make([]string, len(group.MentionUserIDs))
		for i, id := range group.MentionUserIDs {
			mentions[i] = "<@" + id + ">"
		}
		b.WriteString(strings.Join(mentions, " "))
		if group.OverflowMentions > 0 {
			fmt.Fprintf(&b, " (+%d more)", group.OverflowMentions)
		}
		b.WriteString("\n")
	}

	for i, f := range group.Flights {
		if i == maxFlightLines {
			fmt.Fprintf(&b, "... and %d more\n", len(group.Flights)-maxFlightLines)
			break
		}
		line := f.Summary()
		if f.Registration != "" {
			line += " [" + f.Registration + "]"
		}
		if route := f.Route(); route != "" {
			line += " " + route
		}
		if f.ETA != "" {
			line += " ETA " + f.ETA
		}
		fmt.Fprintf(&b, "- %s <%s>\n", line, FlightLink(f, baseURL))
	}

	return strings.TrimRight(b.String(), "\n")
}

// RenderAlert produces a cycle-level warning message tagging the guild
// owner, distinct from the silent per-batch skips that are log-only.
func RenderAlert(ownerID, text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 900 {
		text = text[:897] + "..."
	}
	if ownerID == "" {
		return text
	}
	return fmt.Sprintf("<@%s> %s", ownerID, text)
}
