package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flightwatch/flightwatch/internal/domain"
	"github.com/flightwatch/flightwatch/internal/engine"
	"github.com/flightwatch/flightwatch/internal/fr24"
)

// UpstreamClient issues one positions query per batch.
type UpstreamClient interface {
	QueryByCodes(ctx context.Context, apiKey string, kind domain.SubscriptionKind, codes []string) (*fr24.QueryResult, error)
}

// CreditsStore persists usage metadata observed on responses.
type CreditsStore interface {
	SaveCreditsSnapshot(ctx context.Context, snap domain.CreditsSnapshot) error
}

// FailureKind classifies why a batch was skipped.
type FailureKind string

const (
	FailureTransient    FailureKind = "transient"
	FailureRateLimited  FailureKind = "rate_limited"
	FailureKeyExhausted FailureKind = "key_exhausted"
)

// BatchFailure records one skipped batch. Failures never abort the
// cycle; they surface in the cycle report.
type BatchFailure struct {
	Batch engine.Batch
	Kind  FailureKind
	Err   error
}

// Executor runs a cycle's batches against the upstream, each batch
// drawing its own key from the pool. Batches execute concurrently up
// to a small cap since each is independent.
type Executor struct {
	client  UpstreamClient
	keys    *engine.KeyPool
	credits CreditsStore
	logger  *slog.Logger

	maxConcurrent int
	queryTimeout  time.Duration

	// pacer spaces requests out when fewer than two keys are
	// configured; with multiple keys the per-key window budget is the
	// only pacing mechanism and the delay is forced to zero.
	pacer *rate.Limiter
}

func NewExecutor(client UpstreamClient, keys *engine.KeyPool, credits CreditsStore, requestDelay time.Duration, maxConcurrent int, queryTimeout time.Duration, logger *slog.Logger) *Executor {
	var pacer *rate.Limiter
	if keys.Len() < 2 && requestDelay > 0 {
		pacer = rate.NewLimiter(rate.Every(requestDelay), 1)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxConcurrent > keys.Len() {
		maxConcurrent = keys.Len()
	}
	return &Executor{
		client:        client,
		keys:          keys,
		credits:       credits,
		logger:        logger,
		maxConcurrent: maxConcurrent,
		queryTimeout:  queryTimeout,
		pacer:         pacer,
	}
}

// Execute runs all batches and returns the successful results plus the
// per-batch failures. Workers read from a shared channel; every
// dispatched batch runs to completion even if ctx is cancelled
// mid-cycle, so a sent notification is never separated from its log
// entry by an abort.
func (e *Executor) Execute(ctx context.Context, batches []engine.Batch) ([]engine.BatchResult, []BatchFailure) {
	if len(batches) == 0 {
		return nil, nil
	}

	jobs := make(chan engine.Batch)
	var mu sync.Mutex
	var results []engine.BatchResult
	var failures []BatchFailure

	workers := e.maxConcurrent
	if workers > len(batches) {
		workers = len(batches)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range jobs {
				result, failure := e.runBatch(ctx, batch)
				mu.Lock()
				if failure != nil {
					failures = append(failures, *failure)
				} else {
					results = append(results, *result)
				}
				mu.Unlock()
			}
		}()
	}

	for _, batch := range batches {
		jobs <- batch
	}
	close(jobs)
	wg.Wait()

	// Restore plan order: worker interleaving must not make cycle
	// output order depend on scheduling.
	ordered := make([]engine.BatchResult, 0, len(results))
	for _, batch := range batches {
		for _, r := range results {
			if sameBatch(r.Batch, batch) {
				ordered = append(ordered, r)
				break
			}
		}
	}
	return ordered, failures
}

func (e *Executor) runBatch(ctx context.Context, batch engine.Batch) (*engine.BatchResult, *BatchFailure) {
	key, err := e.keys.Acquire()
	if err != nil {
		if errors.Is(err, engine.ErrNoKeyAvailable) {
			e.logger.Warn("batch skipped: no usable key",
				"kind", batch.Kind,
				"codes", len(batch.Codes),
			)
			return nil, &BatchFailure{Batch: batch, Kind: FailureKeyExhausted, Err: err}
		}
		return nil, &BatchFailure{Batch: batch, Kind: FailureTransient, Err: err}
	}

	if e.pacer != nil {
		if err := e.pacer.Wait(ctx); err != nil {
			return nil, &BatchFailure{Batch: batch, Kind: FailureTransient, Err: err}
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	result, err := e.client.QueryByCodes(queryCtx, key.Secret, batch.Kind, batch.Codes)
	if err != nil {
		if fr24.IsRateLimited(err) {
			e.logger.Warn("upstream throttled, parking key",
				"key_id", key.ID,
				"suffix", key.MaskedSuffix,
			)
			if _, parkErr := e.keys.Park(ctx, key.ID, 0, "rate_limited"); parkErr != nil {
				e.logger.Error("failed to park throttled key", "error", parkErr, "key_id", key.ID)
			}
			return nil, &BatchFailure{Batch: batch, Kind: FailureRateLimited, Err: err}
		}
		e.logger.Warn("batch query failed",
			"error", err,
			"kind", batch.Kind,
			"codes", len(batch.Codes),
			"key_id", key.ID,
		)
		return nil, &BatchFailure{Batch: batch, Kind: FailureTransient, Err: err}
	}

	e.saveCredits(ctx, key, result.Credits)

	return &engine.BatchResult{
		Batch:   batch,
		Flights: result.Flights,
		Credits: result.Credits,
	}, nil
}

func (e *Executor) saveCredits(ctx context.Context, key domain.APIKeyState, credits domain.CreditsMeta) {
	if e.credits == nil || (credits.Consumed == nil && credits.Remaining == nil) {
		return
	}
	snap := domain.CreditsSnapshot{
		KeyID:        key.ID,
		MaskedSuffix: key.MaskedSuffix,
		Consumed:     credits.Consumed,
		Remaining:    credits.Remaining,
		ObservedAt:   time.Now().UTC(),
	}
	if err := e.credits.SaveCreditsSnapshot(ctx, snap); err != nil {
		e.logger.Error("failed to save credits snapshot", "error", err, "key_id", key.ID)
	}
}

func sameBatch(a, b engine.Batch) bool {
	if a.Kind != b.Kind || len(a.Codes) != len(b.Codes) {
		return false
	}
	for i := range a.Codes {
		if a.Codes[i] != b.Codes[i] {
			return false
		}
	}
	return true
}
