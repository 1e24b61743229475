package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/flightwatch/flightwatch/internal/domain"
)

type fakeNotificationLog struct {
	sent map[string]bool
	err  error
}

func (f *fakeNotificationLog) HasNotified(ctx context.Context, subscriptionID int64, flightKey string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.sent[dedupeKey(subscriptionID, flightKey)], nil
}

func setupTestDeduper(t *testing.T, log NotificationLog) (*Deduper, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	d := NewDeduper(client, log, time.Hour, testLogger())
	return d, mr, client
}

func match(subID int64, flightID string) domain.MatchedFlight {
	return domain.MatchedFlight{
		SubscriptionID: subID,
		GuildID:        "g1",
		UserID:         "u1",
		Kind:           domain.KindAircraft,
		Code:           "A388",
		Flight:         domain.FlightRecord{FR24ID: flightID, Typecode: "A388"},
	}
}

func TestDeduper_FreshMatchPasses(t *testing.T) {
	d, _, _ := setupTestDeduper(t, &fakeNotificationLog{sent: map[string]bool{}})

	fresh := d.Filter(context.Background(), []domain.MatchedFlight{match(1, "f1")})

	if len(fresh) != 1 {
		t.Fatalf("expected fresh match to pass, got %d", len(fresh))
	}
}

func TestDeduper_CacheHitDrops(t *testing.T) {
	d, mr, _ := setupTestDeduper(t, &fakeNotificationLog{sent: map[string]bool{}})
	mr.Set(dedupeKey(1, "f1"), "1")

	fresh := d.Filter(context.Background(), []domain.MatchedFlight{match(1, "f1")})

	if len(fresh) != 0 {
		t.Fatalf("cached pair should be dropped, got %d matches", len(fresh))
	}
}

func TestDeduper_LogHitDropsAndBackfillsCache(t *testing.T) {
	log := &fakeNotificationLog{sent: map[string]bool{dedupeKey(1, "f1"): true}}
	d, mr, _ := setupTestDeduper(t, log)

	fresh := d.Filter(context.Background(), []domain.MatchedFlight{match(1, "f1")})

	if len(fresh) != 0 {
		t.Fatalf("logged pair should be dropped, got %d matches", len(fresh))
	}
	if !mr.Exists(dedupeKey(1, "f1")) {
		t.Error("log hit should backfill the cache")
	}
}

func TestDeduper_LogErrorDropsMatchThisCycle(t *testing.T) {
	log := &fakeNotificationLog{err: errors.New("connection reset")}
	d, _, _ := setupTestDeduper(t, log)

	fresh := d.Filter(context.Background(), []domain.MatchedFlight{match(1, "f1")})

	// Erring towards suppression: better a late alert than a duplicate.
	if len(fresh) != 0 {
		t.Fatalf("match should be dropped when the log check fails, got %d", len(fresh))
	}
}

func TestDeduper_PerSubscriptionIsolation(t *testing.T) {
	log := &fakeNotificationLog{sent: map[string]bool{dedupeKey(1, "f1"): true}}
	d, _, _ := setupTestDeduper(t, log)

	fresh := d.Filter(context.Background(), []domain.MatchedFlight{
		match(1, "f1"),
		match(2, "f1"),
	})

	if len(fresh) != 1 {
		t.Fatalf("only subscription 1 was notified before; got %d fresh matches", len(fresh))
	}
	if fresh[0].SubscriptionID != 2 {
		t.Errorf("expected subscription 2 to pass, got %d", fresh[0].SubscriptionID)
	}
}

func TestDeduper_MarkNotifiedCaches(t *testing.T) {
	d, mr, _ := setupTestDeduper(t, &fakeNotificationLog{sent: map[string]bool{}})

	d.MarkNotified(context.Background(), 1, "f1")

	if !mr.Exists(dedupeKey(1, "f1")) {
		t.Fatal("MarkNotified should write the cache entry")
	}
	ttl := mr.TTL(dedupeKey(1, "f1"))
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("unexpected cache TTL %s", ttl)
	}
}
