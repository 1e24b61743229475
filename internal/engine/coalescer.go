package engine

import (
	"sort"

	"github.com/flightwatch/flightwatch/internal/domain"
)

type groupKey struct {
	guildID string
	kind    domain.SubscriptionKind
	code    string
}

// Coalesce merges surviving matches into one NotificationGroup per
// (guild, kind, code): the deduplicated flights for that code and the
// deduplicated subscriber list to tag. When the tag list exceeds
// mentionLimit it is truncated to the first N by subscription ID with
// an overflow count, never split into extra messages — exactly one
// message per (guild, code) per cycle.
func Coalesce(matches []domain.MatchedFlight, mentionLimit int) []domain.NotificationGroup {
	type accumulator struct {
		group       *domain.NotificationGroup
		flightSeen  map[string]bool
		subscribers map[int64]string // subscription ID -> user ID
	}

	var order []groupKey
	acc := make(map[groupKey]*accumulator)

	for _, m := range matches {
		key := groupKey{guildID: m.GuildID, kind: m.Kind, code: m.Code}
		a, ok := acc[key]
		if !ok {
			a = &accumulator{
				group: &domain.NotificationGroup{
					GuildID: m.GuildID,
					Kind:    m.Kind,
					Code:    m.Code,
				},
				flightSeen:  make(map[string]bool),
				subscribers: make(map[int64]string),
			}
			acc[key] = a
			order = append(order, key)
		}

		flightKey := m.Flight.FlightKey()
		if !a.flightSeen[flightKey] {
			a.flightSeen[flightKey] = true
			a.group.Flights = append(a.group.Flights, m.Flight)
		}
		a.subscribers[m.SubscriptionID] = m.UserID
		a.group.Pairs = append(a.group.Pairs, domain.NotificationPair{
			SubscriptionID: m.SubscriptionID,
			FlightKey:      flightKey,
		})
	}

	groups := make([]domain.NotificationGroup, 0, len(order))
	for _, key := range order {
		a := acc[key]

		subIDs := make([]int64, 0, len(a.subscribers))
		for id := range a.subscribers {
			subIDs = append(subIDs, id)
		}
		sort.Slice(subIDs, func(i, j int) bool { return subIDs[i] < subIDs[j] })

		mentions := make([]string, 0, len(subIDs))
		seenUser := make(map[string]bool, len(subIDs))
		for _, id := range subIDs {
			user := a.subscribers[id]
			if seenUser[user] {
				continue
			}
			seenUser[user] = true
			mentions = append(mentions, user)
		}

		if mentionLimit > 0 && len(mentions) > mentionLimit {
			a.group.OverflowMentions = len(mentions) - mentionLimit
			mentions = mentions[:mentionLimit]
		}
		a.group.MentionUserIDs = mentions

		groups = append(groups, *a.group)
	}
	return groups
}
