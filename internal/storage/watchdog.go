package storage

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/ticker"
	"github.com/rs/zerolog/log"
)

// Watchdog periodically runs a Checker until stopped.
type Watchdog struct {
	checker Checker
	ticker  ticker.Ticker

	// onCheck, if set, receives the result of every check.
	onCheck func(recreated bool, err error)

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// NewWatchdog creates a watchdog driven by t.
func NewWatchdog(checker Checker, t ticker.Ticker, onCheck func(recreated bool, err error)) *Watchdog {
	return &Watchdog{
		checker: checker,
		ticker:  t,
		onCheck: onCheck,
		quit:    make(chan struct{}),
	}
}

// Start launches the check loop.
func (w *Watchdog) Start(ctx context.Context) {
	w.ticker.Resume()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.ticker.Ticks():
				recreated, err := w.checker.Check(ctx)
				if err != nil {
					log.Error().Err(err).Msg("Storage check failed")
				}
				if w.onCheck != nil {
					w.onCheck(recreated, err)
				}

			case <-ctx.Done():
				return

			case <-w.quit:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for it to exit. It is safe to call twice.
func (w *Watchdog) Stop() {
	w.once.Do(func() {
		close(w.quit)
		w.ticker.Stop()
		w.wg.Wait()
	})
}
