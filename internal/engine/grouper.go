package engine

import (
	"strings"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// Grouping collapses the active subscription snapshot into unique
// query targets. Two subscriptions for the same (kind, code) in
// different guilds share one target — this is what bounds upstream
// call volume independent of subscriber count.
type Grouping struct {
	// Targets in first-seen order, so batch composition is stable
	// across cycles while the subscription set is unchanged.
	Targets []domain.QueryTarget

	// Subscribers maps each target to the subscriptions that
	// requested it, in snapshot order.
	Subscribers map[domain.QueryTarget][]domain.Subscription
}

// GroupSubscriptions builds a Grouping from a subscription snapshot.
// Pure transformation: no storage or network access. Codes are
// normalized to upper case so "a388" and "A388" share a target.
func GroupSubscriptions(subs []domain.Subscription) Grouping {
	g := Grouping{
		Subscribers: make(map[domain.QueryTarget][]domain.Subscription, len(subs)),
	}
	for _, sub := range subs {
		if !sub.Kind.Valid() {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(sub.Code))
		if code == "" {
			continue
		}
		sub.Code = code
		target := domain.QueryTarget{Kind: sub.Kind, Code: code}
		if _, seen := g.Subscribers[target]; !seen {
			g.Targets = append(g.Targets, target)
		}
		g.Subscribers[target] = append(g.Subscribers[target], sub)
	}
	return g
}

// GuildsForTargets returns the distinct guild IDs subscribed to any of
// the given targets, used to decide who hears about a skipped batch.
func (g Grouping) GuildsForTargets(targets []domain.QueryTarget) []string {
	seen := make(map[string]bool)
	var guilds []string
	for _, target := range targets {
		for _, sub := range g.Subscribers[target] {
			if !seen[sub.GuildID] {
				seen[sub.GuildID] = true
				guilds = append(guilds, sub.GuildID)
			}
		}
	}
	return guilds
}
