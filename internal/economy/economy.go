// Package economy assembles a complete economy instance: storage engine,
// database manager, cache, event bus and every domain manager.
package economy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog/log"

	"guild-economy/internal/cache"
	"guild-economy/internal/config"
	"guild-economy/internal/database"
	"guild-economy/internal/dberr"
	"guild-economy/internal/events"
	"guild-economy/internal/service"
	"guild-economy/internal/storage"
)

// ErrNotStarted is returned by Destroy on an instance that is not running.
var ErrNotStarted = errors.New("economy is not started")

// Option customizes an Economy.
type Option func(*Economy)

// WithClock replaces the wall clock used for timestamps and retry delays.
func WithClock(c clock.Clock) Option {
	return func(e *Economy) { e.clock = c }
}

// WithEngine replaces the storage engine selected by the configuration.
func WithEngine(engine storage.Engine) Option {
	return func(e *Economy) { e.engine = engine }
}

// WithStorageTicker replaces the ticker factory driving the storage check.
func WithStorageTicker(newTicker func(time.Duration) ticker.Ticker) Option {
	return func(e *Economy) { e.newTicker = newTicker }
}

// WithRand replaces the random source used for reward ranges.
func WithRand(intn func(n int) int) Option {
	return func(e *Economy) { e.intn = intn }
}

// Economy is one independent economy instance.
type Economy struct {
	*service.Services

	cfg       *config.Config
	clock     clock.Clock
	engine    storage.Engine
	db        *database.Manager
	cache     *cache.Manager
	bus       *events.Bus
	newTicker func(time.Duration) ticker.Ticker
	intn      func(n int) int

	mu       sync.Mutex
	ready    atomic.Bool
	cancel   context.CancelFunc
	watchdog *storage.Watchdog
}

// New builds an instance from cfg. Nothing is connected until Start.
func New(cfg *config.Config, opts ...Option) (*Economy, error) {
	if cfg == nil {
		return nil, &dberr.Error{Kind: dberr.ErrMisconfigured, Op: "new", Err: errors.New("config is nil")}
	}

	e := &Economy{
		cfg:   cfg,
		clock: clock.NewDefaultClock(),
		bus:   events.NewBus(),
		newTicker: func(d time.Duration) ticker.Ticker {
			return ticker.New(d)
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.engine == nil {
		if err := cfg.Validate(); err != nil {
			return nil, &dberr.Error{Kind: dberr.ErrMisconfigured, Op: "new", Err: err}
		}
		switch cfg.Storage.Type {
		case config.StoragePostgres:
			e.engine = storage.NewPostgresEngine(cfg.Storage.Connection)
		default:
			e.engine = storage.NewFileEngine(cfg.Storage.Path)
		}
	}

	e.db = database.New(e.engine)
	e.cache = cache.New(e.db)
	e.Services = service.New(service.Deps{
		DB:     e.db,
		Cache:  e.cache,
		Bus:    e.bus,
		Clock:  e.clock,
		Config: cfg.Economy,
		Intn:   e.intn,
	})
	return e, nil
}

// Start connects the storage engine, retrying availability failures per the
// error handler policy, warms the cache, starts the storage check and emits
// ready. Calling Start on a running instance does nothing.
func (e *Economy) Start(ctx context.Context) error {
	started, err := e.start(ctx)
	if err != nil || !started {
		return err
	}
	log.Info().Str("engine", e.engine.Name()).Msg("Economy is ready")
	e.bus.Emit(events.Ready, events.LifecycleEvent{
		Type:   events.Ready,
		Engine: e.engine.Name(),
		At:     e.clock.Now(),
	})
	return nil
}

func (e *Economy) start(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready.Load() {
		return false, nil
	}

	if err := e.connect(ctx); err != nil {
		return false, err
	}
	if err := e.cache.Warm(ctx); err != nil {
		return false, fmt.Errorf("failed to warm cache: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	if checker, ok := e.engine.(storage.Checker); ok && e.cfg.Storage.Check {
		e.watchdog = storage.NewWatchdog(checker, e.newTicker(e.cfg.Storage.UpdateCountdown),
			func(recreated bool, err error) {
				if err == nil && recreated {
					e.storageRecreated(runCtx)
				}
			})
		e.watchdog.Start(runCtx)
		log.Info().
			Dur("interval", e.cfg.Storage.UpdateCountdown).
			Msg("Storage check started")
	}

	e.ready.Store(true)
	return true, nil
}

// storageRecreated rebuilds the cache from the now empty store.
func (e *Economy) storageRecreated(ctx context.Context) {
	if err := e.cache.Warm(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to rebuild cache after storage was recreated")
		e.cache.ClearAll()
	}
}

func (e *Economy) connect(ctx context.Context) error {
	policy := e.cfg.ErrorHandler
	for attempt := 1; ; attempt++ {
		err := e.engine.Connect(ctx)
		if err == nil {
			log.Info().
				Str("engine", e.engine.Name()).
				Int("attempt", attempt).
				Msg("Storage connected")
			return nil
		}

		if !policy.HandleErrors || !dberr.IsRetryable(err) {
			return fmt.Errorf("failed to connect storage: %w", err)
		}
		if policy.Attempts > 0 && attempt >= policy.Attempts {
			return fmt.Errorf("failed to connect storage after %d attempts: %w", attempt, err)
		}

		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", policy.Time).
			Msg("Storage connection failed, retrying")

		select {
		case <-e.clock.TickAfter(policy.Time):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Destroy stops the storage check, drops the cache, closes the engine and
// emits destroy.
func (e *Economy) Destroy() error {
	e.mu.Lock()
	if !e.ready.Load() {
		e.mu.Unlock()
		return ErrNotStarted
	}

	if e.watchdog != nil {
		e.watchdog.Stop()
		e.watchdog = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.cache.ClearAll()
	err := e.engine.Close()
	e.ready.Store(false)
	e.mu.Unlock()

	log.Info().Str("engine", e.engine.Name()).Msg("Economy destroyed")
	e.bus.Emit(events.Destroy, events.LifecycleEvent{
		Type:   events.Destroy,
		Engine: e.engine.Name(),
		At:     e.clock.Now(),
	})
	return err
}

// Ready reports whether Start has completed and Destroy has not run since.
func (e *Economy) Ready() bool {
	return e.ready.Load()
}

// Bus returns the instance's event bus.
func (e *Economy) Bus() *events.Bus { return e.bus }

// DB returns the path-based database manager.
func (e *Economy) DB() *database.Manager { return e.db }

// Cache returns the cache manager.
func (e *Economy) Cache() *cache.Manager { return e.cache }

// Engine returns the storage engine.
func (e *Economy) Engine() storage.Engine { return e.engine }

// Config returns the configuration the instance was built from.
func (e *Economy) Config() *config.Config { return e.cfg }
