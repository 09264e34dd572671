package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"guild-economy/internal/cache"
	"guild-economy/internal/config"
	"guild-economy/internal/database"
	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/events"
	"guild-economy/internal/storage"
)

var testStart = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	*Services
	db    *database.Manager
	cache *cache.Manager
	bus   *events.Bus
	clock *clock.TestClock
}

// fatalHelper is satisfied by both *testing.T and *rapid.T.
type fatalHelper interface {
	Helper()
	Fatalf(format string, args ...any)
}

// newTestEnv builds every manager over an in-memory store seeded with seed.
// Random reward amounts always pick the top of the range.
func newTestEnv(tb fatalHelper, seed docpath.Document) *testEnv {
	tb.Helper()
	return newTestEnvOn(tb, storage.NewMemoryEngine(seed))
}

// newTestEnvOn is newTestEnv over a caller-supplied engine.
func newTestEnvOn(tb fatalHelper, engine storage.Engine) *testEnv {
	tb.Helper()

	db := database.New(engine)
	c := cache.New(db)
	if err := c.Warm(context.Background()); err != nil {
		tb.Fatalf("warm cache: %v", err)
	}
	bus := events.NewBus()
	clk := clock.NewTestClock(testStart)

	svc := New(Deps{
		DB:     db,
		Cache:  c,
		Bus:    bus,
		Clock:  clk,
		Config: config.Default().Economy,
		Intn:   func(n int) int { return n - 1 },
	})
	return &testEnv{Services: svc, db: db, cache: c, bus: bus, clock: clk}
}

// record collects every payload emitted for name.
func (e *testEnv) record(name events.Name) *[]any {
	var got []any
	e.bus.On(name, func(p any) { got = append(got, p) })
	return &got
}

func (e *testEnv) advance(d time.Duration) {
	e.clock.SetTime(e.clock.Now().Add(d))
}

// brokenEngine is a memory engine whose writes fail when fail reports true
// for the write's sequence number, counted from 1.
type brokenEngine struct {
	*storage.MemoryEngine
	writes atomic.Int64
	fail   func(n int64) bool
}

func newBrokenEngine() *brokenEngine {
	return &brokenEngine{MemoryEngine: storage.NewMemoryEngine(nil)}
}

// failFrom makes every write after the next skip ones fail.
func (e *brokenEngine) failFrom(skip int64) {
	start := e.writes.Load() + skip
	e.fail = func(n int64) bool { return n > start }
}

// failOnly makes exactly the write after the next skip ones fail.
func (e *brokenEngine) failOnly(skip int64) {
	target := e.writes.Load() + skip + 1
	e.fail = func(n int64) bool { return n == target }
}

func (e *brokenEngine) heal() { e.fail = nil }

func (e *brokenEngine) WriteAll(ctx context.Context, doc docpath.Document) error {
	n := e.writes.Add(1)
	if e.fail != nil && e.fail(n) {
		return dberr.ErrStorageUnavailable
	}
	return e.MemoryEngine.WriteAll(ctx, doc)
}
