package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flightwatch/flightwatch/internal/domain"
)

// ErrNoKeyAvailable is returned by Acquire when every key is parked or
// has exhausted its request window. The caller skips the batch rather
// than failing the cycle.
var ErrNoKeyAvailable = errors.New("no usable api key available")

// KeyStateStore persists the park state of a key so parking survives
// restarts. Window counters are deliberately not persisted; they reset
// with the process.
type KeyStateStore interface {
	SaveKeyState(ctx context.Context, state domain.APIKeyState) error
}

type keySlot struct {
	mu    sync.Mutex
	state domain.APIKeyState
}

// KeyPool holds the configured upstream credentials, each with an
// independent fixed-window request budget and an optional time-boxed
// parked state. Acquire hands out keys round-robin across keys whose
// window still has budget.
//
// All per-key state is guarded by a per-key mutex, so concurrent
// batch workers can acquire safely.
type KeyPool struct {
	slots  []*keySlot
	cursor atomic.Uint64

	window       time.Duration
	maxPerWindow int
	parkDuration time.Duration

	store  KeyStateStore
	logger *slog.Logger
	now    func() time.Time
}

// KeyPoolConfig configures budgets and parking.
type KeyPoolConfig struct {
	// MaxRequestsPerWindow is the per-key budget per window.
	MaxRequestsPerWindow int
	// Window is the budget window, typically one minute.
	Window time.Duration
	// ParkDuration is the default cool-down applied when a key is
	// parked without an explicit duration, typically 24h.
	ParkDuration time.Duration
}

// NewKeyPool builds a pool from the configured secrets, restoring any
// persisted park state by masked suffix. An empty key list is a fatal
// configuration error: the poll loop cannot run without credentials.
func NewKeyPool(secrets []string, persisted []domain.APIKeyState, cfg KeyPoolConfig, store KeyStateStore, logger *slog.Logger) (*KeyPool, error) {
	if len(secrets) == 0 {
		return nil, errors.New("no api keys configured")
	}
	if cfg.MaxRequestsPerWindow <= 0 {
		return nil, fmt.Errorf("invalid per-window request budget: %d", cfg.MaxRequestsPerWindow)
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.ParkDuration <= 0 {
		cfg.ParkDuration = 24 * time.Hour
	}

	parked := make(map[string]domain.APIKeyState, len(persisted))
	for _, st := range persisted {
		parked[st.MaskedSuffix] = st
	}

	pool := &KeyPool{
		window:       cfg.Window,
		maxPerWindow: cfg.MaxRequestsPerWindow,
		parkDuration: cfg.ParkDuration,
		store:        store,
		logger:       logger,
		now:          time.Now,
	}
	for i, secret := range secrets {
		state := domain.APIKeyState{
			ID:           i + 1,
			Secret:       secret,
			MaskedSuffix: domain.MaskSuffix(secret),
		}
		if prev, ok := parked[state.MaskedSuffix]; ok {
			state.ParkedUntil = prev.ParkedUntil
			state.ParkedReason = prev.ParkedReason
		}
		pool.slots = append(pool.slots, &keySlot{state: state})
	}
	return pool, nil
}

// Len returns the number of configured keys.
func (p *KeyPool) Len() int { return len(p.slots) }

// Acquire returns the next usable key, consuming one unit of its
// window budget atomically with the grant. With a single configured
// key there is no rotation; the key is returned whenever its window
// has budget. Returns ErrNoKeyAvailable when every key is parked or
// exhausted.
func (p *KeyPool) Acquire() (domain.APIKeyState, error) {
	start := p.cursor.Add(1)
	now := p.now()

	for i := 0; i < len(p.slots); i++ {
		slot := p.slots[(start+uint64(i))%uint64(len(p.slots))]
		slot.mu.Lock()
		p.rollWindowLocked(slot, now)
		if !slot.state.Parked(now) && slot.state.RequestsInWindow < p.maxPerWindow {
			slot.state.RequestsInWindow++
			granted := slot.state
			slot.mu.Unlock()
			return granted, nil
		}
		slot.mu.Unlock()
	}
	return domain.APIKeyState{}, ErrNoKeyAvailable
}

// rollWindowLocked resets the window counter once the window elapses.
// Caller holds slot.mu.
func (p *KeyPool) rollWindowLocked(slot *keySlot, now time.Time) {
	if slot.state.WindowStart.IsZero() || now.Sub(slot.state.WindowStart) >= p.window {
		slot.state.WindowStart = now
		slot.state.RequestsInWindow = 0
	}
}

// Park disables a key until now+duration. A zero duration applies the
// pool's default cool-down. Used by operators and on hard-throttle
// signals from upstream.
func (p *KeyPool) Park(ctx context.Context, keyID int, duration time.Duration, reason string) (domain.APIKeyState, error) {
	slot, err := p.slot(keyID)
	if err != nil {
		return domain.APIKeyState{}, err
	}
	if duration <= 0 {
		duration = p.parkDuration
	}
	until := p.now().Add(duration)

	slot.mu.Lock()
	slot.state.ParkedUntil = &until
	slot.state.ParkedReason = reason
	state := slot.state
	slot.mu.Unlock()

	p.logger.Warn("api key parked",
		"key_id", state.ID,
		"suffix", state.MaskedSuffix,
		"until", until,
		"reason", reason,
	)
	p.persist(ctx, state)
	return state, nil
}

// Unpark clears a key's park state, making it selectable again.
func (p *KeyPool) Unpark(ctx context.Context, keyID int) (domain.APIKeyState, error) {
	slot, err := p.slot(keyID)
	if err != nil {
		return domain.APIKeyState{}, err
	}

	slot.mu.Lock()
	slot.state.ParkedUntil = nil
	slot.state.ParkedReason = ""
	state := slot.state
	slot.mu.Unlock()

	p.logger.Info("api key unparked", "key_id", state.ID, "suffix", state.MaskedSuffix)
	p.persist(ctx, state)
	return state, nil
}

// Snapshot returns a copy of every key's state with secrets omitted,
// for status reporting.
func (p *KeyPool) Snapshot() []domain.APIKeyState {
	states := make([]domain.APIKeyState, 0, len(p.slots))
	for _, slot := range p.slots {
		slot.mu.Lock()
		state := slot.state
		slot.mu.Unlock()
		state.Secret = ""
		states = append(states, state)
	}
	return states
}

func (p *KeyPool) slot(keyID int) (*keySlot, error) {
	if keyID < 1 || keyID > len(p.slots) {
		return nil, fmt.Errorf("unknown key id %d", keyID)
	}
	return p.slots[keyID-1], nil
}

func (p *KeyPool) persist(ctx context.Context, state domain.APIKeyState) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveKeyState(ctx, state); err != nil {
		p.logger.Error("failed to persist key state",
			"error", err,
			"key_id", state.ID,
		)
	}
}
