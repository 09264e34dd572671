package service

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"guild-economy/internal/model"
)

func TestNextID(t *testing.T) {
	id := func(n int) int { return n }
	if got := NextID([]int{}, id); got != 1 {
		t.Fatalf("empty: got %d", got)
	}
	if got := NextID([]int{3, 1, 2}, id); got != 4 {
		t.Fatalf("unordered: got %d", got)
	}
}

// Pushing items with removals of any item except the newest yields strictly
// increasing ids that are never handed out twice.
func TestShopIDMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		seen := map[int]bool{}
		last := 0
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			items, err := env.Shop.List(ctx, "G1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(items) > 1 && rapid.Bool().Draw(t, "remove") {
				victim := items[rapid.IntRange(0, len(items)-2).Draw(t, "victim")]
				if _, err := env.Shop.RemoveItem(ctx, "G1", victim.ID); err != nil {
					t.Fatalf("remove %d: %v", victim.ID, err)
				}
				continue
			}

			item, err := env.Shop.AddItem(ctx, "G1", NewShopItem{Name: "item", Price: 1})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if item.ID <= last {
				t.Fatalf("id %d not above previous %d", item.ID, last)
			}
			if seen[item.ID] {
				t.Fatalf("id %d reused", item.ID)
			}
			seen[item.ID] = true
			last = item.ID
		}
	})
}

func TestInventoryIDMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		last := 0
		n := rapid.IntRange(1, 15).Draw(t, "n")
		for i := 1; i <= n; i++ {
			item, err := env.Shop.AddItem(ctx, "G1", NewShopItem{Name: "item", Price: 0})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			res, err := env.Shop.Buy(ctx, "G1", "U1", item.ID, 1, "")
			if err != nil {
				t.Fatalf("buy: %v", err)
			}
			if res.Stack.ID <= last {
				t.Fatalf("stack id %d not above %d", res.Stack.ID, last)
			}
			last = res.Stack.ID
		}
	})
}

func TestHistoryIDMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		seen := map[int]bool{}
		last := 0
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			entries, err := env.History.List(ctx, "G1", "U1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) > 1 && rapid.Bool().Draw(t, "remove") {
				victim := entries[rapid.IntRange(0, len(entries)-2).Draw(t, "victim")]
				if _, err := env.History.Remove(ctx, "G1", "U1", victim.ID); err != nil {
					t.Fatalf("remove %d: %v", victim.ID, err)
				}
				continue
			}

			entry, err := env.History.Add(ctx, "G1", "U1", model.HistoryItem{Name: "gem", Price: 1, Quantity: 1})
			if err != nil {
				t.Fatalf("add: %v", err)
			}
			if entry.ID <= last || seen[entry.ID] {
				t.Fatalf("id %d reused or not above previous %d", entry.ID, last)
			}
			seen[entry.ID] = true
			last = entry.ID
		}
	})
}

func TestCurrencyIDMonotonicityProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		seen := map[int]bool{}
		last := 0
		steps := rapid.IntRange(1, 25).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			currencies, err := env.Currency.List(ctx, "G1")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(currencies) > 1 && rapid.Bool().Draw(t, "remove") {
				victim := currencies[rapid.IntRange(0, len(currencies)-2).Draw(t, "victim")]
				if _, err := env.Currency.Delete(ctx, "G1", victim.ID); err != nil {
					t.Fatalf("delete %d: %v", victim.ID, err)
				}
				continue
			}

			c, err := env.Currency.Create(ctx, "G1", fmt.Sprintf("coin%d", i), "")
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if c.ID <= last || seen[c.ID] {
				t.Fatalf("id %d reused or not above previous %d", c.ID, last)
			}
			seen[c.ID] = true
			last = c.ID
		}
	})
}
