// Package service provides the domain managers of the economy. Each manager
// translates a domain operation into database path operations, refreshes the
// cache slices the operation touched, and emits an event.
package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"

	"github.com/lightningnetwork/lnd/clock"

	"guild-economy/internal/cache"
	"guild-economy/internal/config"
	"guild-economy/internal/database"
	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/events"
	"guild-economy/internal/model"
	"guild-economy/internal/storage"
)

// Domain errors.
var (
	ErrInvalidAmount       = errors.New("invalid amount: must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSelfTransfer        = errors.New("cannot transfer to self")
	ErrInvalidQuantity     = errors.New("invalid quantity: must be positive")
	ErrItemNotFound        = errors.New("item not found")
	ErrMaxAmountReached    = errors.New("item max amount reached")
	ErrNotEnoughItems      = errors.New("not enough items")
	ErrInvalidProperty     = errors.New("invalid item property")
	ErrCurrencyNotFound    = errors.New("currency not found")
	ErrCurrencyExists      = errors.New("currency already exists")
	ErrUnknownSetting      = errors.New("unknown setting")
	ErrUnknownReward       = errors.New("unknown reward type")
)

// Deps are the collaborators shared by every manager.
type Deps struct {
	DB     *database.Manager
	Cache  *cache.Manager
	Bus    *events.Bus
	Clock  clock.Clock
	Config config.EconomyConfig

	// Intn returns a random integer in [0, n). Defaults to math/rand.
	Intn func(n int) int
}

type base struct {
	Deps
}

func newBase(d Deps) base {
	if d.Clock == nil {
		d.Clock = clock.NewDefaultClock()
	}
	if d.Intn == nil {
		d.Intn = rand.Intn
	}
	if d.Bus == nil {
		d.Bus = events.NewBus()
	}
	return base{Deps: d}
}

// nowMs returns the current time in epoch milliseconds.
func (b base) nowMs() int64 {
	return b.Clock.Now().UnixMilli()
}

// refresh updates the given slices for id. The guilds slice mirrors the
// whole guild record, so it is refreshed by every mutation.
func (b base) refresh(ctx context.Context, id cache.ID, slices ...cache.Slice) error {
	return b.Cache.UpdateMany(ctx, append(slices, cache.Guilds), id)
}

// load decodes the value mirrored by slice into out, from the cache when an
// entry exists and from the database otherwise.
func (b base) load(ctx context.Context, slice cache.Slice, id cache.ID, out any) (bool, error) {
	if v, ok := b.Cache.Get(slice, id); ok {
		if err := database.Decode(v, out); err != nil {
			return false, dberr.Validation("load", slice.Path(id), "%v", err)
		}
		return true, nil
	}
	return b.DB.FetchInto(ctx, slice.Path(id), out)
}

// ensureUser stores a fresh record for the member when none exists and
// reports whether it did.
func (b base) ensureUser(ctx context.Context, id cache.ID) (bool, error) {
	v, err := b.DB.Fetch(ctx, cache.Users.Path(id))
	if err != nil {
		return false, err
	}
	if v != nil {
		return false, nil
	}
	if err := b.DB.Set(ctx, cache.Users.Path(id), model.NewUserData()); err != nil {
		return false, err
	}
	return true, nil
}

// refreshMember is refresh for member mutations. A record just created by
// ensureUser fills every member slice, so all of them are refreshed.
func (b base) refreshMember(ctx context.Context, id cache.ID, created bool, slices ...cache.Slice) error {
	if created {
		return b.Cache.Update(ctx, id)
	}
	return b.refresh(ctx, id, slices...)
}

func (b base) emit(name events.Name, payload any) {
	b.Bus.Emit(name, payload)
}

func guildScope(op, guildID string) (cache.ID, error) {
	if err := checkKey(op, "guild ID", guildID); err != nil {
		return cache.ID{}, err
	}
	return cache.GuildID(guildID), nil
}

func memberScope(op, guildID, memberID string) (cache.ID, error) {
	if err := checkKey(op, "guild ID", guildID); err != nil {
		return cache.ID{}, err
	}
	if err := checkKey(op, "member ID", memberID); err != nil {
		return cache.ID{}, err
	}
	if storage.IsReservedGuildKey(memberID) {
		return cache.ID{}, dberr.Validation(op, memberID, "member ID %q is reserved", memberID)
	}
	return cache.MemberID(guildID, memberID), nil
}

// checkKey rejects identifiers that cannot be used as one path segment.
func checkKey(op, what, key string) error {
	if key == "" {
		return dberr.Validation(op, key, "%s must not be empty", what)
	}
	if strings.Contains(key, ".") {
		return dberr.Validation(op, key, "%s must not contain '.'", what)
	}
	return nil
}

func checkPositive(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func checkFinite(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	return nil
}

// NextID returns the id for a new element of an id-bearing array: one past
// the largest id present, or 1 for an empty array.
func NextID[T any](items []T, idOf func(T) int) int {
	next := 1
	for _, it := range items {
		if id := idOf(it); id >= next {
			next = id + 1
		}
	}
	return next
}

// asNumber converts a decoded JSON number.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func pathOf(segments ...string) string {
	return docpath.Join(segments...)
}

// Services bundles every manager of one economy instance.
type Services struct {
	Balance   *BalanceService
	Bank      *BankService
	Shop      *ShopService
	Inventory *InventoryService
	History   *HistoryService
	Rewards   *RewardsService
	Cooldowns *CooldownsService
	Currency  *CurrencyService
	Settings  *SettingsService
	Users     *UserService
	Guilds    *GuildService
}

// New builds every manager over d.
func New(d Deps) *Services {
	d = newBase(d).Deps

	settings := NewSettingsService(d)
	balance := NewBalanceService(d)
	cooldowns := NewCooldownsService(d, settings)
	return &Services{
		Balance:   balance,
		Bank:      NewBankService(d, balance),
		Shop:      NewShopService(d, settings),
		Inventory: NewInventoryService(d, settings),
		History:   NewHistoryService(d),
		Rewards:   NewRewardsService(d, settings, cooldowns),
		Cooldowns: cooldowns,
		Currency:  NewCurrencyService(d),
		Settings:  settings,
		Users:     NewUserService(d),
		Guilds:    NewGuildService(d),
	}
}
