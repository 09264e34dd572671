package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_OnAndEmit(t *testing.T) {
	bus := NewBus()

	var got []BalanceEvent
	bus.On(BalanceAdd, func(p any) { got = append(got, p.(BalanceEvent)) })

	n := bus.Emit(BalanceAdd, BalanceEvent{Type: BalanceAdd, Amount: 10, Balance: 110})
	assert.Equal(t, 1, n)
	require.Len(t, got, 1)
	assert.Equal(t, 110.0, got[0].Balance)

	assert.Equal(t, 0, bus.Emit(BalanceSet, BalanceEvent{}))
}

func TestBus_OrderAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	var order []int
	bus.On(Ready, func(any) { order = append(order, 1) })
	off := bus.On(Ready, func(any) { order = append(order, 2) })
	bus.On(Ready, func(any) { order = append(order, 3) })

	bus.Emit(Ready, nil)
	off()
	off()
	bus.Emit(Ready, nil)

	assert.Equal(t, []int{1, 2, 3, 1, 3}, order)
	assert.Equal(t, 2, bus.Count(Ready))
}

func TestBus_Once(t *testing.T) {
	bus := NewBus()

	calls := 0
	bus.Once(Destroy, func(any) { calls++ })

	assert.Equal(t, 1, bus.Emit(Destroy, nil))
	assert.Equal(t, 0, bus.Emit(Destroy, nil))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Count(Destroy))
}

func TestBus_Off(t *testing.T) {
	bus := NewBus()
	bus.On(ShopClear, func(any) {})
	bus.On(ShopClear, func(any) {})

	assert.Equal(t, 2, bus.Off(ShopClear))
	assert.Equal(t, 0, bus.Emit(ShopClear, nil))
}

func TestBus_InstancesAreIsolated(t *testing.T) {
	a, b := NewBus(), NewBus()

	calls := 0
	a.On(Ready, func(any) { calls++ })
	b.Emit(Ready, nil)

	assert.Zero(t, calls)
}

func TestBus_HandlerMayEmit(t *testing.T) {
	bus := NewBus()

	var seen []Name
	bus.On(ShopItemBuy, func(any) {
		seen = append(seen, ShopItemBuy)
		bus.Emit(BalanceSubtract, nil)
	})
	bus.On(BalanceSubtract, func(any) { seen = append(seen, BalanceSubtract) })

	bus.Emit(ShopItemBuy, nil)
	assert.Equal(t, []Name{ShopItemBuy, BalanceSubtract}, seen)
}

func TestBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewBus()

	called := false
	bus.On(Ready, func(any) { panic("boom") })
	bus.On(Ready, func(any) { called = true })

	assert.NotPanics(t, func() { bus.Emit(Ready, nil) })
	assert.True(t, called)
}
