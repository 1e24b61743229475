package poller

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/flightwatch/flightwatch/internal/domain"
	"github.com/flightwatch/flightwatch/internal/engine"
)

// Store is the storage collaborator surface the cycle needs.
type Store interface {
	ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)
	GuildChannels(ctx context.Context) (map[string]domain.GuildSettings, error)
	RecordNotified(ctx context.Context, subscriptionID int64, flightKey string, at time.Time) error
}

// Deduper filters matches already notified and warms the cache after
// delivery.
type Deduper interface {
	Filter(ctx context.Context, matches []domain.MatchedFlight) []domain.MatchedFlight
	MarkNotified(ctx context.Context, subscriptionID int64, flightKey string)
}

// Notifier is the transport collaborator: it accepts a rendered group
// and a target channel and delivers it.
type Notifier interface {
	Send(ctx context.Context, settings domain.GuildSettings, group domain.NotificationGroup) error
	SendAlert(ctx context.Context, settings domain.GuildSettings, text string) error
}

// Config tunes the cycle loop.
type Config struct {
	Interval     time.Duration
	Jitter       time.Duration
	BatchSizes   map[domain.SubscriptionKind]int
	MentionLimit int
}

// CycleReport summarizes one completed cycle.
type CycleReport struct {
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ms"`
	Subscriptions int           `json:"subscriptions"`
	Targets       int           `json:"targets"`
	Batches       int           `json:"batches"`
	QueriesIssued int           `json:"queries_issued"`
	BatchFailures []string      `json:"batch_failures,omitempty"`
	Matches       int           `json:"matches"`
	AfterDedupe   int           `json:"after_dedupe"`
	GroupsSent    int           `json:"groups_sent"`
	GroupsFailed  int           `json:"groups_failed"`
	PairsLogged   int           `json:"pairs_logged"`
}

// Status is the admin-facing view of the poll loop.
type Status struct {
	Running         bool                 `json:"running"`
	Paused          bool                 `json:"paused"`
	IntervalSeconds int                  `json:"interval_seconds"`
	LastRunAt       *time.Time           `json:"last_run_at,omitempty"`
	LastError       string               `json:"last_error,omitempty"`
	LastReport      *CycleReport         `json:"last_report,omitempty"`
	Keys            []domain.APIKeyState `json:"keys"`
}

// Poller sequences one full cycle per interval: snapshot → group →
// plan → execute → match → dedupe → coalesce → deliver → log.
type Poller struct {
	store    Store
	executor *Executor
	deduper  Deduper
	notifier Notifier
	keys     *engine.KeyPool
	logger   *slog.Logger

	batchSizes   map[domain.SubscriptionKind]int
	mentionLimit int
	jitter       time.Duration

	mu        sync.Mutex
	interval  time.Duration
	paused    bool
	running   bool
	lastRunAt *time.Time
	lastErr   string
	lastRep   *CycleReport

	cycleMu sync.Mutex // serializes cycles between the loop and RunOnce

	done chan struct{}
}

func New(store Store, executor *Executor, deduper Deduper, notifier Notifier, keys *engine.KeyPool, cfg Config, logger *slog.Logger) *Poller {
	return &Poller{
		store:        store,
		executor:     executor,
		deduper:      deduper,
		notifier:     notifier,
		keys:         keys,
		logger:       logger,
		batchSizes:   cfg.BatchSizes,
		mentionLimit: cfg.MentionLimit,
		jitter:       cfg.Jitter,
		interval:     cfg.Interval,
		done:         make(chan struct{}),
	}
}

// Run drives the poll loop until ctx is cancelled. The in-flight cycle
// always finishes before Run returns: cycles execute on a context
// detached from ctx so cancellation never strands a sent notification
// without its log entry.
func (p *Poller) Run(ctx context.Context) {
	p.setRunning(true)
	defer p.setRunning(false)
	defer close(p.done)

	p.logger.Info("poll loop started",
		"interval", p.Interval(),
		"jitter", p.jitter,
		"keys", p.keys.Len(),
	)

	for {
		if !p.Paused() {
			if _, err := p.RunOnce(context.WithoutCancel(ctx)); err != nil {
				p.logger.Error("poll cycle failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poll loop stopped")
			return
		case <-time.After(p.sleepFor()):
		}
	}
}

// Done is closed once the loop (and its final cycle) has exited.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) sleepFor() time.Duration {
	d := p.Interval()
	if p.jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.jitter)))
	}
	return d
}

// RunOnce executes a single cycle and records its outcome. Exposed to
// the admin API for manual triggering.
func (p *Poller) RunOnce(ctx context.Context) (*CycleReport, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	started := time.Now().UTC()
	report, err := p.runCycle(ctx)
	if report == nil {
		report = &CycleReport{StartedAt: started}
	}
	report.StartedAt = started
	report.Duration = time.Since(started)

	p.mu.Lock()
	p.lastRunAt = &started
	p.lastRep = report
	if err != nil {
		p.lastErr = err.Error()
	} else {
		p.lastErr = ""
	}
	p.mu.Unlock()

	return report, err
}

func (p *Poller) runCycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{}

	subs, err := p.store.ListActiveSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("snapshotting subscriptions: %w", err)
	}
	report.Subscriptions = len(subs)
	if len(subs) == 0 {
		return report, nil
	}

	grouping := engine.GroupSubscriptions(subs)
	report.Targets = len(grouping.Targets)

	batches := engine.PlanBatches(grouping, p.batchSizes)
	report.Batches = len(batches)

	results, failures := p.executor.Execute(ctx, batches)
	report.QueriesIssued = len(results)
	for _, f := range failures {
		report.BatchFailures = append(report.BatchFailures,
			fmt.Sprintf("%s/%d codes: %s", f.Batch.Kind, len(f.Batch.Codes), f.Kind))
	}

	matches := engine.MatchFlights(results, grouping)
	report.Matches = len(matches)

	fresh := p.deduper.Filter(ctx, matches)
	report.AfterDedupe = len(fresh)

	groups := engine.Coalesce(fresh, p.mentionLimit)

	channels, err := p.store.GuildChannels(ctx)
	if err != nil {
		return report, fmt.Errorf("loading guild channels: %w", err)
	}

	now := time.Now().UTC()
	for _, group := range groups {
		settings, ok := channels[group.GuildID]
		if !ok {
			p.logger.Warn("guild has no notify channel, dropping group",
				"guild_id", group.GuildID,
				"code", group.Code,
			)
			continue
		}

		if err := p.notifier.Send(ctx, settings, group); err != nil {
			// Not logged as sent: the pair is re-offered next cycle.
			p.logger.Warn("notification delivery failed",
				"error", err,
				"guild_id", group.GuildID,
				"code", group.Code,
			)
			report.GroupsFailed++
			continue
		}
		report.GroupsSent++

		for _, pair := range group.Pairs {
			if err := p.store.RecordNotified(ctx, pair.SubscriptionID, pair.FlightKey, now); err != nil {
				p.logger.Error("failed to record notification",
					"error", err,
					"subscription_id", pair.SubscriptionID,
				)
				continue
			}
			p.deduper.MarkNotified(ctx, pair.SubscriptionID, pair.FlightKey)
			report.PairsLogged++
		}
	}

	p.warnKeyExhaustion(ctx, grouping, failures, channels)

	p.logger.Info("poll cycle complete",
		"subscriptions", report.Subscriptions,
		"targets", report.Targets,
		"queries", report.QueriesIssued,
		"matches", report.Matches,
		"sent", report.GroupsSent,
		"failed_batches", len(failures),
	)
	return report, nil
}

// warnKeyExhaustion reports skipped-for-exhaustion batches to the
// affected guilds' channels, tagging the owner. Transient skips stay
// log-only.
func (p *Poller) warnKeyExhaustion(ctx context.Context, grouping engine.Grouping, failures []BatchFailure, channels map[string]domain.GuildSettings) {
	var exhausted []domain.QueryTarget
	for _, f := range failures {
		if f.Kind == FailureKeyExhausted {
			exhausted = append(exhausted, f.Batch.Targets()...)
		}
	}
	if len(exhausted) == 0 {
		return
	}

	text := fmt.Sprintf("Poll cycle skipped %d code(s): all API keys are parked or over budget.", len(exhausted))
	for _, guildID := range grouping.GuildsForTargets(exhausted) {
		settings, ok := channels[guildID]
		if !ok {
			continue
		}
		if err := p.notifier.SendAlert(ctx, settings, text); err != nil {
			p.logger.Warn("failed to send key exhaustion warning",
				"error", err,
				"guild_id", guildID,
			)
		}
	}
}

// Pause stops future cycles without stopping the loop.
func (p *Poller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.logger.Info("poller paused")
}

// Resume re-enables cycles.
func (p *Poller) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.logger.Info("poller resumed")
}

func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetInterval adjusts the poll interval; takes effect after the
// current sleep.
func (p *Poller) SetInterval(d time.Duration) error {
	if d < time.Second {
		return fmt.Errorf("interval %s below 1s minimum", d)
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
	p.logger.Info("poll interval updated", "interval", d)
	return nil
}

func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

func (p *Poller) setRunning(v bool) {
	p.mu.Lock()
	p.running = v
	p.mu.Unlock()
}

// Status reports the loop state and per-key pool state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Running:         p.running,
		Paused:          p.paused,
		IntervalSeconds: int(p.interval / time.Second),
		LastRunAt:       p.lastRunAt,
		LastError:       p.lastErr,
		LastReport:      p.lastRep,
		Keys:            p.keys.Snapshot(),
	}
}
