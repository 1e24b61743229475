package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// Store is the storage surface the scheduled jobs need.
type Store interface {
	PruneNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	LatestCreditsSnapshots(ctx context.Context) ([]domain.CreditsSnapshot, error)
	GuildChannels(ctx context.Context) (map[string]domain.GuildSettings, error)
}

// Alerter posts an informational message to a guild's channel.
type Alerter interface {
	SendAlert(ctx context.Context, settings domain.GuildSettings, text string) error
}

// Scheduler runs the background housekeeping jobs: nightly pruning of
// the notification log past the retention horizon, and a morning
// credits usage report to every configured guild channel.
type Scheduler struct {
	store     Store
	alerter   Alerter
	retention time.Duration
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewScheduler(store Store, alerter Alerter, retention time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		alerter:   alerter,
		retention: retention,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("30 3 * * *", s.pruneNotifications); err != nil {
		return fmt.Errorf("scheduling retention prune: %w", err)
	}
	if _, err := s.cron.AddFunc("0 8 * * *", s.reportCredits); err != nil {
		return fmt.Errorf("scheduling credits report: %w", err)
	}
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", "retention", s.retention)
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("maintenance scheduler stopped")
}

func (s *Scheduler) pruneNotifications() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.store.PruneNotificationsBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("notification log prune failed", "error", err)
		return
	}
	s.logger.Info("notification log pruned", "removed", removed, "cutoff", cutoff)
}

func (s *Scheduler) reportCredits() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snaps, err := s.store.LatestCreditsSnapshots(ctx)
	if err != nil {
		s.logger.Error("credits report failed: loading snapshots", "error", err)
		return
	}
	if len(snaps) == 0 {
		return
	}

	channels, err := s.store.GuildChannels(ctx)
	if err != nil {
		s.logger.Error("credits report failed: loading channels", "error", err)
		return
	}

	text := renderCreditsReport(snaps)
	for guildID, settings := range channels {
		if err := s.alerter.SendAlert(ctx, settings, text); err != nil {
			s.logger.Warn("credits report delivery failed",
				"error", err,
				"guild_id", guildID,
			)
		}
	}
	s.logger.Info("credits report sent", "keys", len(snaps), "guilds", len(channels))
}

func renderCreditsReport(snaps []domain.CreditsSnapshot) string {
	var b strings.Builder
	b.WriteString("Daily API credits report\n")
	for _, snap := range snaps {
		fmt.Fprintf(&b, "- key ...%s:", snap.MaskedSuffix)
		if snap.Consumed != nil {
			fmt.Fprintf(&b, " consumed %d", *snap.Consumed)
		}
		if snap.Remaining != nil {
			fmt.Fprintf(&b, " remaining %d", *snap.Remaining)
		}
		if snap.Consumed == nil && snap.Remaining == nil {
			b.WriteString(" no usage data")
		}
		fmt.Fprintf(&b, " (as of %s)\n", snap.ObservedAt.Format("15:04 MST"))
	}
	return strings.TrimRight(b.String(), "\n")
}
