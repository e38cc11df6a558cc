// Package sync implements the background reconciliation loop that
// keeps the local cache current with each bound forge repo
// (SPEC_FULL.md §4.4 / spec.md §4.4). It runs daemon-resident, one
// engine per process, ticking every binding on a cadence that speeds
// up with recent local access and slows down under a shared budget of
// sync ticks.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/types"
)

// Cadence tiers, overridable via Config.
type Config struct {
	Active time.Duration // accessed within the last 5 minutes
	Recent time.Duration // accessed within the last hour
	Day    time.Duration // accessed within the last day
	Idle   time.Duration // otherwise

	// BudgetPerHour is the hourly refill rate of a shared rate.Limiter
	// that SyncOne takes one token from, for every binding, before it
	// fetches. It paces sync ticks, not adapter requests: the pages
	// and re-fetches made within one tick draw no further tokens.
	BudgetPerHour int

	// PollInterval is how often the supervisor wakes to check which
	// bindings are due. It should be no coarser than the shortest
	// cadence tier.
	PollInterval time.Duration
}

// DefaultConfig matches the scheduling policy named in spec.md §4.4.
func DefaultConfig() Config {
	return Config{
		Active:        30 * time.Second,
		Recent:        2 * time.Minute,
		Day:           10 * time.Minute,
		Idle:          time.Hour,
		BudgetPerHour: 900,
		PollInterval:  15 * time.Second,
	}
}

// Engine ticks every bound repo and reconciles the cache against the
// adapter's current view.
type Engine struct {
	store    store.Store
	adapters map[types.ForgeKind]forge.Adapter
	cfg      Config
	logger   *slog.Logger

	limiter *rate.Limiter
	group   singleflight.Group

	mu         sync.Mutex
	lastAccess map[string]time.Time // bindingID -> last local access
	lastTick   map[string]time.Time // bindingID -> last completed tick
	notices    map[string]string    // bindingID -> last sync error, surfaced via status
}

// New builds an Engine. adapters must have an entry for every
// types.ForgeKind a binding can name.
func New(st store.Store, adapters map[types.ForgeKind]forge.Adapter, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	rps := rate.Limit(float64(cfg.BudgetPerHour) / 3600)
	return &Engine{
		store:      st,
		adapters:   adapters,
		cfg:        cfg,
		logger:     logger,
		limiter:    rate.NewLimiter(rps, 5),
		lastAccess: map[string]time.Time{},
		lastTick:   map[string]time.Time{},
		notices:    map[string]string{},
	}
}

// SetAdapters replaces the engine's adapter set, used by the daemon's
// Reload to pick up a newly linked forge kind or a rotated credential
// without a restart.
func (e *Engine) SetAdapters(adapters map[types.ForgeKind]forge.Adapter) {
	e.mu.Lock()
	e.adapters = adapters
	e.mu.Unlock()
}

// Touch records that bindingID just saw local CLI activity, moving it
// to the "active" cadence tier for its next scheduling decision.
func (e *Engine) Touch(bindingID string) {
	e.mu.Lock()
	e.lastAccess[bindingID] = time.Now()
	e.mu.Unlock()
}

// Notice returns the last sync error recorded for bindingID, if any,
// for surfacing in `fg status`.
func (e *Engine) Notice(bindingID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.notices[bindingID]
}

func (e *Engine) cadence(bindingID string) time.Duration {
	e.mu.Lock()
	accessed, ok := e.lastAccess[bindingID]
	e.mu.Unlock()
	if !ok {
		return e.cfg.Idle
	}
	since := time.Since(accessed)
	switch {
	case since <= 5*time.Minute:
		return e.cfg.Active
	case since <= time.Hour:
		return e.cfg.Recent
	case since <= 24*time.Hour:
		return e.cfg.Day
	default:
		return e.cfg.Idle
	}
}

func (e *Engine) due(b *types.Binding) bool {
	e.mu.Lock()
	last, ok := e.lastTick[b.ID()]
	e.mu.Unlock()
	if !ok {
		return true
	}
	return time.Since(last) >= e.cadence(b.ID())
}

// Run supervises the tick loop until ctx is canceled. It wakes every
// PollInterval, fans out SyncOne to every due binding concurrently,
// and prefers the most recently accessed bindings when several are
// due in the same wake (spec.md §4.4 scheduling policy).
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := e.tickAll(ctx); err != nil && ctx.Err() == nil {
				e.logger.Warn("sync tick failed", "error", err)
			}
		}
	}
}

func (e *Engine) tickAll(ctx context.Context) error {
	bindings, err := e.store.ListBindings(ctx)
	if err != nil {
		return err
	}

	var due []*types.Binding
	for _, b := range bindings {
		if e.due(b) {
			due = append(due, b)
		}
	}
	sortByRecency(due, e.accessSnapshot())

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range due {
		b := b
		g.Go(func() error {
			return e.SyncOne(gctx, b)
		})
	}
	return g.Wait()
}

func (e *Engine) accessSnapshot() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := make(map[string]time.Time, len(e.lastAccess))
	for k, v := range e.lastAccess {
		snap[k] = v
	}
	return snap
}

func sortByRecency(bindings []*types.Binding, access map[string]time.Time) {
	for i := 1; i < len(bindings); i++ {
		for j := i; j > 0 && access[bindings[j].ID()].After(access[bindings[j-1].ID()]); j-- {
			bindings[j], bindings[j-1] = bindings[j-1], bindings[j]
		}
	}
}

// SyncNow triggers an immediate, out-of-cadence sync for binding,
// collapsing concurrent callers onto a single in-flight reconciliation
// via singleflight (used by the control channel's sync_now and by the
// write path's targeted resync after a mutation).
func (e *Engine) SyncNow(ctx context.Context, b *types.Binding) error {
	_, err, _ := e.group.Do(b.ID(), func() (interface{}, error) {
		return nil, e.SyncOne(ctx, b)
	})
	return err
}

func (e *Engine) markTick(bindingID string, notice string) {
	e.mu.Lock()
	e.lastTick[bindingID] = time.Now()
	if notice == "" {
		delete(e.notices, bindingID)
	} else {
		e.notices[bindingID] = notice
	}
	e.mu.Unlock()
}

// adapterFor resolves the adapter for a binding, or a protocol error
// if none is registered for its forge kind.
func (e *Engine) adapterFor(b *types.Binding) (forge.Adapter, error) {
	e.mu.Lock()
	a, ok := e.adapters[b.Forge]
	e.mu.Unlock()
	if !ok {
		return nil, ferr.New(ferr.Protocol, "no adapter registered for forge "+string(b.Forge))
	}
	return a, nil
}
