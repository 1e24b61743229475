package engine

import (
	"testing"

	"github.com/flightwatch/flightwatch/internal/domain"
)

func TestGroupSubscriptions_CollapsesAcrossGuilds(t *testing.T) {
	subs := []domain.Subscription{
		{ID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAircraft, Code: "A388"},
		{ID: 2, GuildID: "g2", UserID: "u2", Kind: domain.KindAircraft, Code: "A388"},
		{ID: 3, GuildID: "g1", UserID: "u3", Kind: domain.KindAirport, Code: "WAW"},
	}

	g := GroupSubscriptions(subs)

	if len(g.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %d", len(g.Targets))
	}

	target := domain.QueryTarget{Kind: domain.KindAircraft, Code: "A388"}
	if got := len(g.Subscribers[target]); got != 2 {
		t.Errorf("expected 2 subscribers for A388, got %d", got)
	}
}

func TestGroupSubscriptions_NormalizesCase(t *testing.T) {
	subs := []domain.Subscription{
		{ID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAircraft, Code: "a388"},
		{ID: 2, GuildID: "g1", UserID: "u2", Kind: domain.KindAircraft, Code: " A388 "},
	}

	g := GroupSubscriptions(subs)

	if len(g.Targets) != 1 {
		t.Fatalf("expected lowercase and padded codes to share one target, got %d", len(g.Targets))
	}
	if g.Targets[0].Code != "A388" {
		t.Errorf("expected normalized code A388, got %q", g.Targets[0].Code)
	}
}

func TestGroupSubscriptions_SkipsInvalidEntries(t *testing.T) {
	subs := []domain.Subscription{
		{ID: 1, GuildID: "g1", UserID: "u1", Kind: "bogus", Code: "A388"},
		{ID: 2, GuildID: "g1", UserID: "u2", Kind: domain.KindAircraft, Code: "  "},
		{ID: 3, GuildID: "g1", UserID: "u3", Kind: domain.KindRegistration, Code: "A6-EVN"},
	}

	g := GroupSubscriptions(subs)

	if len(g.Targets) != 1 {
		t.Fatalf("expected 1 valid target, got %d", len(g.Targets))
	}
	if g.Targets[0].Code != "A6-EVN" {
		t.Errorf("unexpected surviving target %+v", g.Targets[0])
	}
}

func TestGroupSubscriptions_FirstSeenOrderIsStable(t *testing.T) {
	subs := []domain.Subscription{
		{ID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAirport, Code: "WAW"},
		{ID: 2, GuildID: "g1", UserID: "u2", Kind: domain.KindAircraft, Code: "A388"},
		{ID: 3, GuildID: "g2", UserID: "u3", Kind: domain.KindAirport, Code: "WAW"},
		{ID: 4, GuildID: "g1", UserID: "u4", Kind: domain.KindAircraft, Code: "B748"},
	}

	g := GroupSubscriptions(subs)

	want := []string{"WAW", "A388", "B748"}
	if len(g.Targets) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(g.Targets))
	}
	for i, code := range want {
		if g.Targets[i].Code != code {
			t.Errorf("target %d: expected %q, got %q", i, code, g.Targets[i].Code)
		}
	}
}

func TestGuildsForTargets_Distinct(t *testing.T) {
	subs := []domain.Subscription{
		{ID: 1, GuildID: "g1", UserID: "u1", Kind: domain.KindAircraft, Code: "A388"},
		{ID: 2, GuildID: "g1", UserID: "u2", Kind: domain.KindAirport, Code: "WAW"},
		{ID: 3, GuildID: "g2", UserID: "u3", Kind: domain.KindAirport, Code: "WAW"},
	}
	g := GroupSubscriptions(subs)

	guilds := g.GuildsForTargets([]domain.QueryTarget{
		{Kind: domain.KindAircraft, Code: "A388"},
		{Kind: domain.KindAirport, Code: "WAW"},
	})

	if len(guilds) != 2 {
		t.Fatalf("expected 2 distinct guilds, got %d: %v", len(guilds), guilds)
	}
}
