package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestSerializedReadModifyWriteProperty checks that concurrent read-modify-
// write cycles under the same key add up to their sequential result.
func TestSerializedReadModifyWriteProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		amounts := rapid.SliceOfN(rapid.Int64Range(-500, 500), 2, 20).Draw(t, "amounts")
		key := rapid.StringMatching(`[0-9]{1,12}`).Draw(t, "key")

		expected := initial
		for _, a := range amounts {
			expected += a
		}

		l := New()
		balance := initial
		var wg sync.WaitGroup
		for _, a := range amounts {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				_ = l.WithLock(key, func() error {
					current := balance
					balance = current + amount
					return nil
				})
			}(a)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("expected %d, got %d", expected, balance)
		}
		if l.Len() != 0 {
			t.Fatalf("expected no entries left, got %d", l.Len())
		}
	})
}

func TestKeysAreIndependent(t *testing.T) {
	l := New()
	l.Lock("a")
	defer l.Unlock("a")

	assert.True(t, l.TryLock("b"))
	assert.False(t, l.TryLock("a"))
	assert.True(t, l.IsLocked("a"))
	l.Unlock("b")
	assert.False(t, l.IsLocked("b"))
}

func TestLockContextCanceled(t *testing.T) {
	l := New()
	l.Lock("g")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.LockContext(ctx, "g")
	require.ErrorIs(t, err, ErrLockCanceled)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	l.Unlock("g")
	assert.Equal(t, 0, l.Len())
	require.NoError(t, l.LockContext(context.Background(), "g"))
	l.Unlock("g")
}

func TestUnlockOfFreeKeyPanics(t *testing.T) {
	l := New()
	assert.Panics(t, func() { l.Unlock("nobody") })
}

func TestWaiterAcquiresAfterUnlock(t *testing.T) {
	l := New()
	l.Lock("g")

	acquired := make(chan struct{})
	go func() {
		l.Lock("g")
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	l.Unlock("g")
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the key")
	}
	l.Unlock("g")
}
