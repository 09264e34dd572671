package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"guild-economy/internal/cache"
	"guild-economy/internal/model"
)

// After any sequence of manager operations the cache agrees with the store
// for every slice of every touched member.
func TestCacheCoherenceAfterOperationsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env := newTestEnv(t, nil)
		ctx := context.Background()

		item, err := env.Shop.AddItem(ctx, "G1", NewShopItem{Name: "gem", Price: 5})
		if err != nil {
			t.Fatalf("add item: %v", err)
		}
		members := []string{"U1", "U2"}

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			m := rapid.SampledFrom(members).Draw(t, "member")
			// Domain errors such as insufficient balance are expected here;
			// only coherence matters.
			switch rapid.IntRange(0, 6).Draw(t, "op") {
			case 0:
				_, _ = env.Balance.Add(ctx, "G1", m, 20, "")
			case 1:
				_ = env.Bank.Deposit(ctx, "G1", m, 5, "")
			case 2:
				_, _ = env.Shop.Buy(ctx, "G1", m, item.ID, 1, "")
			case 3:
				_, _ = env.Rewards.Work(ctx, "G1", m, "")
				env.advance(time.Duration(rapid.SampledFrom([]int{0, 3600}).Draw(t, "wait")) * time.Second)
			case 4:
				_, _ = env.Inventory.Sell(ctx, "G1", m, 1, 1, "")
			case 5:
				_, _ = env.Users.Delete(ctx, "G1", m)
			case 6:
				_, _ = env.Balance.Transfer(ctx, "G1", m, "U3", 1, "")
			}
		}

		for _, m := range append(members, "U3") {
			id := cache.MemberID("G1", m)
			for _, s := range coherentSlices {
				want, err := env.db.Fetch(ctx, s.Path(id))
				if err != nil {
					t.Fatalf("fetch: %v", err)
				}
				got, ok := env.cache.Get(s, id)
				if want == nil {
					if ok {
						t.Fatalf("%s %s: cached %v, nothing stored", s, m, got)
					}
					continue
				}
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("%s %s: cached %v, stored %v", s, m, got, want)
				}
			}
		}
	})
}

var coherentSlices = []cache.Slice{
	cache.Guilds, cache.Users, cache.Balance, cache.Bank, cache.Inventory, cache.History, cache.Shop,
}

// The first mutation of a member stores a whole record, so every member
// slice must be cached afterwards, not only the one the mutation touched.
func TestFirstMutationCachesEveryMemberSlice(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(env *testEnv) error{
		"balance add": func(env *testEnv) error {
			_, err := env.Balance.Add(ctx, "G1", "U1", 20, "")
			return err
		},
		"bank set": func(env *testEnv) error {
			_, err := env.Bank.Set(ctx, "G1", "U1", 5, "")
			return err
		},
		"history add": func(env *testEnv) error {
			_, err := env.History.Add(ctx, "G1", "U1", model.HistoryItem{Name: "gem", Price: 1, Quantity: 1})
			return err
		},
		"work": func(env *testEnv) error {
			_, err := env.Rewards.Work(ctx, "G1", "U1", "")
			return err
		},
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			require.NoError(t, op(env))

			id := cache.MemberID("G1", "U1")
			for _, s := range coherentSlices {
				want, err := env.db.Fetch(ctx, s.Path(id))
				require.NoError(t, err)
				got, ok := env.cache.Get(s, id)
				if s == cache.Shop {
					assert.False(t, ok, "empty shop cached")
					continue
				}
				require.True(t, ok, "%s not cached", s)
				assert.Equal(t, want, got, "slice %s", s)
			}
			_, ok := env.cache.Get(cache.Cooldowns, id)
			assert.True(t, ok, "cooldowns not cached")
		})
	}
}
