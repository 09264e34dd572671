package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"guild-economy/internal/database"
	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/storage"
)

func seededDB(t *testing.T) *database.Manager {
	t.Helper()
	return database.New(storage.NewMemoryEngine(docpath.Document{
		"G1": map[string]any{
			"shop":       []any{map[string]any{"id": 1.0, "name": "sword"}},
			"currencies": []any{},
			"settings":   map[string]any{},
			"U1": map[string]any{
				"money": 50.0, "bank": 10.0,
				"inventory": []any{}, "history": []any{},
				"dailyCooldown": 1000.0,
			},
			"U2": map[string]any{"money": 5.0},
		},
		"G2": map[string]any{},
	}))
}

func TestWarmFillsEverySlice(t *testing.T) {
	db := seededDB(t)
	c := New(db)
	require.NoError(t, c.Warm(context.Background()))

	assert.Equal(t, 2, c.Len(Guilds))
	assert.Equal(t, 2, c.Len(Users))

	v, ok := c.Get(Balance, MemberID("G1", "U1"))
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	v, ok = c.Get(Shop, GuildID("G1"))
	require.True(t, ok)
	assert.Len(t, v, 1)

	// Member IDs are ignored for guild-scoped slices.
	_, ok = c.Get(Shop, MemberID("G1", "U1"))
	assert.True(t, ok)

	v, ok = c.Get(Cooldowns, MemberID("G1", "U2"))
	require.True(t, ok)
	assert.Equal(t, 0.0, v.(map[string]any)["dailyCooldown"])

	v, ok = c.Get(Cooldowns, MemberID("G1", "U1"))
	require.True(t, ok)
	assert.Equal(t, 1000.0, v.(map[string]any)["dailyCooldown"])

	// U2 has no inventory stored, so nothing is cached for it.
	_, ok = c.Get(Inventory, MemberID("G1", "U2"))
	assert.False(t, ok)
}

func TestNoLoadOnMiss(t *testing.T) {
	db := seededDB(t)
	c := New(db)

	_, ok := c.Get(Balance, MemberID("G1", "U1"))
	assert.False(t, ok)
}

func TestUpdateAfterMutation(t *testing.T) {
	db := seededDB(t)
	c := New(db)
	ctx := context.Background()
	require.NoError(t, c.Warm(ctx))

	_, err := db.Add(ctx, "G1.U1.money", 25)
	require.NoError(t, err)

	// Stale until updated.
	v, _ := c.Get(Balance, MemberID("G1", "U1"))
	assert.Equal(t, 50.0, v)

	require.NoError(t, c.UpdateMany(ctx, []Slice{Balance, Users}, MemberID("G1", "U1")))
	v, _ = c.Get(Balance, MemberID("G1", "U1"))
	assert.Equal(t, 75.0, v)

	// Deleting the record drops the entries on the next update.
	_, err = db.Delete(ctx, "G1.U1")
	require.NoError(t, err)
	require.NoError(t, c.Update(ctx, MemberID("G1", "U1")))
	_, ok := c.Get(Users, MemberID("G1", "U1"))
	assert.False(t, ok)
	_, ok = c.Get(Balance, MemberID("G1", "U1"))
	assert.False(t, ok)
}

func TestUpdateSpecifiedManyIDs(t *testing.T) {
	db := seededDB(t)
	c := New(db)
	ctx := context.Background()

	require.NoError(t, c.UpdateSpecified(ctx, []Slice{Balance},
		MemberID("G1", "U1"), MemberID("G1", "U2")))
	assert.Equal(t, 2, c.Len(Balance))
	assert.Equal(t, 0, c.Len(Users))
}

func TestUpdateRequiresScope(t *testing.T) {
	c := New(seededDB(t))
	ctx := context.Background()

	err := c.UpdateMany(ctx, []Slice{Balance}, GuildID("G1"))
	assert.ErrorIs(t, err, dberr.ErrValidation)

	err = c.UpdateMany(ctx, []Slice{Shop}, ID{})
	assert.ErrorIs(t, err, dberr.ErrValidation)
}

func TestGetReturnsCopy(t *testing.T) {
	c := New(seededDB(t))
	ctx := context.Background()
	require.NoError(t, c.Warm(ctx))

	v, _ := c.Get(Shop, GuildID("G1"))
	v.([]any)[0].(map[string]any)["name"] = "changed"

	again, _ := c.Get(Shop, GuildID("G1"))
	assert.Equal(t, "sword", again.([]any)[0].(map[string]any)["name"])
}

func TestClear(t *testing.T) {
	c := New(seededDB(t))
	require.NoError(t, c.Warm(context.Background()))

	c.ClearSpecified(Shop, Balance)
	assert.Equal(t, 0, c.Len(Shop))
	assert.Equal(t, 0, c.Len(Balance))
	assert.NotZero(t, c.Len(Users))

	c.ClearAll()
	for _, s := range AllSlices {
		assert.Equal(t, 0, c.Len(s), s)
	}
}

// After every mutation followed by the matching update, the cache agrees
// with a fresh fetch of the same path.
func TestCacheCoherenceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := database.New(storage.NewMemoryEngine(nil))
		c := New(db)
		ctx := context.Background()

		guilds := []string{"G1", "G2"}
		members := []string{"U1", "U2", "U3"}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			id := MemberID(
				rapid.SampledFrom(guilds).Draw(t, "guild"),
				rapid.SampledFrom(members).Draw(t, "member"),
			)
			var err error
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				err = db.Set(ctx, Balance.Path(id), rapid.IntRange(-100, 100).Draw(t, "amount"))
			case 1:
				_, err = db.Add(ctx, Bank.Path(id), float64(rapid.IntRange(0, 100).Draw(t, "amount")))
			case 2:
				_, err = db.Push(ctx, Inventory.Path(id), map[string]any{"id": i})
			case 3:
				_, err = db.Push(ctx, Shop.Path(id), map[string]any{"id": i})
			case 4:
				_, err = db.Delete(ctx, Users.Path(id))
			}
			if err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
			if err := c.Update(ctx, id); err != nil {
				t.Fatalf("update %v: %v", id, err)
			}

			for _, s := range []Slice{Guilds, Users, Balance, Bank, Inventory, Shop} {
				want, err := db.Fetch(ctx, s.Path(id))
				if err != nil {
					t.Fatalf("fetch: %v", err)
				}
				got, ok := c.Get(s, id)
				if want == nil {
					if ok {
						t.Fatalf("%s %v: cached %v but nothing stored", s, id, got)
					}
					continue
				}
				if fmt.Sprint(got) != fmt.Sprint(want) {
					t.Fatalf("%s %v: cached %v, stored %v", s, id, got, want)
				}
			}
		}
	})
}

func TestClearGuild(t *testing.T) {
	c := New(seededDB(t))
	require.NoError(t, c.Warm(context.Background()))

	c.ClearGuild("G1")
	_, ok := c.Get(Balance, MemberID("G1", "U1"))
	assert.False(t, ok)
	_, ok = c.Get(Shop, GuildID("G1"))
	assert.False(t, ok)
	_, ok = c.Get(Guilds, GuildID("G2"))
	assert.True(t, ok)
}
