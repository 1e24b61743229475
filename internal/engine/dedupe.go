package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// NotificationLog is the durable record of what was already sent.
// Membership here is what suppresses repeat alerts.
type NotificationLog interface {
	HasNotified(ctx context.Context, subscriptionID int64, flightKey string) (bool, error)
}

// Deduper filters matched (subscription, flight) pairs that were
// already notified. A Redis membership cache with the retention TTL
// fronts the Postgres log; cache misses fall through to the log, and
// Redis errors fall open to the log as well.
type Deduper struct {
	redisClient *redis.Client
	log         NotificationLog
	ttl         time.Duration
	logger      *slog.Logger
}

func NewDeduper(redisClient *redis.Client, log NotificationLog, ttl time.Duration, logger *slog.Logger) *Deduper {
	return &Deduper{
		redisClient: redisClient,
		log:         log,
		ttl:         ttl,
		logger:      logger,
	}
}

func dedupeKey(subscriptionID int64, flightKey string) string {
	return fmt.Sprintf("notified:%d:%s", subscriptionID, flightKey)
}

// Filter returns the matches not yet notified. Pairs already present
// are dropped silently. A membership check that errors drops the match
// for this cycle only; the pair is re-offered next cycle if the flight
// still matches.
func (d *Deduper) Filter(ctx context.Context, matches []domain.MatchedFlight) []domain.MatchedFlight {
	fresh := make([]domain.MatchedFlight, 0, len(matches))
	for _, m := range matches {
		flightKey := m.Flight.FlightKey()

		if d.redisClient != nil {
			n, err := d.redisClient.Exists(ctx, dedupeKey(m.SubscriptionID, flightKey)).Result()
			if err == nil && n > 0 {
				continue
			}
			if err != nil {
				d.logger.Warn("dedupe cache check failed, falling back to log",
					"error", err,
					"subscription_id", m.SubscriptionID,
				)
			}
		}

		sent, err := d.log.HasNotified(ctx, m.SubscriptionID, flightKey)
		if err != nil {
			d.logger.Error("notification log check failed, skipping match this cycle",
				"error", err,
				"subscription_id", m.SubscriptionID,
				"flight_key", flightKey,
			)
			continue
		}
		if sent {
			// Backfill the cache so the next cycle avoids the log hit.
			d.cache(ctx, m.SubscriptionID, flightKey)
			continue
		}
		fresh = append(fresh, m)
	}
	return fresh
}

// MarkNotified records a delivered pair in the cache. The durable log
// write is the store's job; this only keeps the hot path warm.
func (d *Deduper) MarkNotified(ctx context.Context, subscriptionID int64, flightKey string) {
	d.cache(ctx, subscriptionID, flightKey)
}

func (d *Deduper) cache(ctx context.Context, subscriptionID int64, flightKey string) {
	if d.redisClient == nil {
		return
	}
	if err := d.redisClient.Set(ctx, dedupeKey(subscriptionID, flightKey), 1, d.ttl).Err(); err != nil {
		d.logger.Warn("failed to cache dedupe entry", "error", err)
	}
}
