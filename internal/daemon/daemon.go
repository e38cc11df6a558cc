// Package daemon wires the store, sync engine, write-path replayer,
// and control-channel server into the single long-lived process the
// CLI talks to (SPEC_FULL.md §4.6 / spec.md §4.6). Exactly one daemon
// runs per cache directory; internal/lockfile enforces that.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgectl/fg/internal/ferr"
	"github.com/forgectl/fg/internal/forge"
	"github.com/forgectl/fg/internal/forge/github"
	"github.com/forgectl/fg/internal/forge/linear"
	"github.com/forgectl/fg/internal/keyring"
	"github.com/forgectl/fg/internal/lockfile"
	"github.com/forgectl/fg/internal/rpc"
	"github.com/forgectl/fg/internal/store"
	"github.com/forgectl/fg/internal/sync"
	"github.com/forgectl/fg/internal/types"
	"github.com/forgectl/fg/internal/writepath"
)

// Version is reported in `fg daemon status` and the control channel's
// status response.
const Version = "0.1.0"

// Config carries everything the daemon needs to start that isn't
// already baked into the store it opens.
type Config struct {
	CacheDir    string
	SocketPath  string
	LockPath    string
	IdleTimeout time.Duration // 0 disables auto-exit
	Sync        sync.Config
	Logger      *slog.Logger
}

// Daemon is the resident process: one sync engine, one write-path
// replayer, one control-channel server, sharing one store handle.
type Daemon struct {
	cfg     Config
	store   store.Store
	keys    keyring.Store
	engine  *sync.Engine
	path    *writepath.Path
	replay  *writepath.Replayer
	server  *rpc.Server
	logger  *slog.Logger
	startedAt time.Time

	mu          gosync.Mutex
	adapters    map[types.ForgeKind]forge.Adapter
	lastConnect time.Time
	stop        context.CancelFunc
}

// New builds a Daemon bound to st and keys. Adapters are built lazily
// from whatever bindings and credentials exist at startup and again
// on every Reload.
func New(cfg Config, st store.Store, keys keyring.Store) *Daemon {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	d := &Daemon{cfg: cfg, store: st, keys: keys, logger: cfg.Logger}
	d.rebuildAdapters(context.Background())

	d.engine = sync.New(st, d.adapters, cfg.Sync, cfg.Logger)
	d.path = writepath.New(st, d.adapters, d.engine)
	d.replay = writepath.NewReplayer(st, d.path, cfg.Logger)
	d.server = rpc.NewServer(cfg.SocketPath, d, cfg.Logger)
	return d
}

// Run acquires the exclusivity lock and blocks until ctx is canceled,
// a control-channel shutdown request arrives, or the idle timeout
// elapses with nothing bound. It returns once every goroutine it
// started has stopped.
func (d *Daemon) Run(ctx context.Context) error {
	if err := rpc.EnsureSocketDir(d.cfg.CacheDir); err != nil {
		return fmt.Errorf("prepare cache dir: %w", err)
	}

	lock := lockfile.New(d.cfg.LockPath)
	acquired, err := lock.TryAcquire()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("a daemon is already running for %s", d.cfg.CacheDir)
	}
	defer lock.Release()

	d.startedAt = time.Now()
	d.touchConnect()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.stop = cancel
	d.mu.Unlock()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return d.server.Serve(gctx) })
	g.Go(func() error { return d.engine.Run(gctx) })
	g.Go(func() error { return d.replay.Run(gctx) })
	if d.cfg.IdleTimeout > 0 {
		g.Go(func() error { return d.watchIdle(gctx, cancel) })
	}

	err = g.Wait()
	_ = d.server.Close()
	if err != nil && runCtx.Err() != nil {
		return nil
	}
	return err
}

// watchIdle exits the daemon when no binding exists and no control
// channel connection has landed within IdleTimeout, so a user who
// unlinks every repo doesn't leave a process running forever.
func (d *Daemon) watchIdle(ctx context.Context, stop context.CancelFunc) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			bindings, err := d.store.ListBindings(ctx)
			if err != nil {
				continue
			}
			d.mu.Lock()
			idleSince := time.Since(d.lastConnect)
			d.mu.Unlock()
			if len(bindings) == 0 && idleSince >= d.cfg.IdleTimeout {
				d.logger.Info("exiting: idle with no bindings", "idle_for", idleSince)
				stop()
				return nil
			}
		}
	}
}

func (d *Daemon) touchConnect() {
	d.mu.Lock()
	d.lastConnect = time.Now()
	d.mu.Unlock()
}

// rebuildAdapters constructs one adapter per forge kind present among
// the bound repos, using the credential attached to the first binding
// of that kind it encounters. Every repo bound to the same forge kind
// is assumed to share one account; binding a second GitHub org under a
// distinct token is a named follow-up (see DESIGN.md).
func (d *Daemon) rebuildAdapters(ctx context.Context) {
	adapters := map[types.ForgeKind]forge.Adapter{}

	bindings, err := d.store.ListBindings(ctx)
	if err != nil {
		d.logger.Warn("rebuildAdapters: list bindings failed", "error", err)
	}
	for _, b := range bindings {
		if _, ok := adapters[b.Forge]; ok {
			continue
		}
		a, err := d.buildAdapter(ctx, b)
		if err != nil {
			d.logger.Warn("rebuildAdapters: skipping binding", "binding", b.ID(), "error", err)
			continue
		}
		adapters[b.Forge] = a
	}

	d.mu.Lock()
	d.adapters = adapters
	d.mu.Unlock()
}

func (d *Daemon) buildAdapter(ctx context.Context, b *types.Binding) (forge.Adapter, error) {
	token, err := d.keys.Get(ctx, string(b.Forge), b.TokenRef)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	switch b.Forge {
	case types.ForgeGitHub:
		return github.NewAdapter(token), nil
	case types.ForgeLinear:
		return linear.NewAdapter(token, b.Repo), nil
	default:
		return nil, ferr.New(ferr.Protocol, "unknown forge kind "+string(b.Forge))
	}
}

var _ rpc.Handler = (*Daemon)(nil)

// Status answers the control channel's status operation.
func (d *Daemon) Status(ctx context.Context) (rpc.StatusResponse, error) {
	d.touchConnect()

	bindings, err := d.store.ListBindings(ctx)
	if err != nil {
		return rpc.StatusResponse{}, err
	}

	statuses := make([]rpc.BindingStatus, 0, len(bindings))
	for _, b := range bindings {
		bs := rpc.BindingStatus{Repo: b.Repo, Forge: string(b.Forge)}

		if state, err := d.store.ReadSyncState(ctx, b.ID()); err == nil && state != nil && !state.LastSyncedAt.IsZero() {
			bs.LastSyncAt = state.LastSyncedAt.Format(time.RFC3339)
		}
		if notice := d.engine.Notice(b.ID()); notice != "" {
			bs.LastSyncError = notice
		}
		if ops, err := d.store.PeekOps(ctx, b.ID()); err == nil {
			bs.PendingWrites = len(ops)
		}
		if terminal, err := d.store.PeekTerminalOps(ctx, b.ID()); err == nil {
			for _, op := range terminal {
				bs.Notices = append(bs.Notices, fmt.Sprintf("%s (op #%d): %s", op.Kind, op.ID, op.Notice))
				if err := d.store.DeleteOp(ctx, op.ID); err != nil {
					d.logger.Warn("failed to consume terminal op", "binding", b.ID(), "op_id", op.ID, "error", err)
				}
			}
		}
		statuses = append(statuses, bs)
	}

	return rpc.StatusResponse{
		Version:       Version,
		PID:           os.Getpid(),
		StartedAt:     d.startedAt.Format(time.RFC3339),
		UptimeSeconds: time.Since(d.startedAt).Seconds(),
		Bindings:      statuses,
	}, nil
}

// SyncNow triggers an out-of-cadence reconciliation, either for one
// repo or, when repo is empty, every bound repo.
func (d *Daemon) SyncNow(ctx context.Context, repo string) error {
	d.touchConnect()

	bindings, err := d.store.ListBindings(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range bindings {
		if repo != "" && b.Repo != repo {
			continue
		}
		b := b
		g.Go(func() error { return d.engine.SyncNow(gctx, b) })
	}
	return g.Wait()
}

// Reload re-reads bindings and rebuilds the adapter set, picking up
// newly linked repos and newly rotated credentials without a restart.
func (d *Daemon) Reload(ctx context.Context) error {
	d.touchConnect()
	d.rebuildAdapters(ctx)

	d.mu.Lock()
	adapters := d.adapters
	d.mu.Unlock()

	d.engine.SetAdapters(adapters)
	d.path.SetAdapters(adapters)
	return nil
}

// EnqueueHint moves every binding of repo to the active cadence tier.
// It is reached through the control channel's EnqueueHint request; no
// fg CLI command sends that request.
func (d *Daemon) EnqueueHint(ctx context.Context, repo string) error {
	d.touchConnect()
	bindings, err := d.store.ListBindings(ctx)
	if err != nil {
		return err
	}
	for _, b := range bindings {
		if b.Repo == repo {
			d.engine.Touch(b.ID())
		}
	}
	return nil
}

// Shutdown asks the daemon to stop. Run's errgroup unwinds once the
// context it derived is canceled; this response is flushed to the
// caller before that cancellation lands.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.touchConnect()
	d.mu.Lock()
	stop := d.stop
	d.mu.Unlock()
	go func() {
		time.Sleep(50 * time.Millisecond) // let the response flush first
		if stop != nil {
			stop()
		}
	}()
	return nil
}
