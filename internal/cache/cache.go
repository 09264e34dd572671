// Package cache mirrors frequently read subtrees of the stored document in
// memory.
//
// The cache is write-through: it never loads on a miss. Entries appear when
// the whole store is scanned by Warm, and are refreshed from the database by
// Update* after each mutation that touches them. Entries never expire; a
// cached value is always re-derivable by fetching the same path.
package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
	"guild-economy/internal/storage"
)

// Slice names a category of cached data.
type Slice string

// Cache slices.
const (
	Guilds     Slice = "guilds"
	Users      Slice = "users"
	Cooldowns  Slice = "cooldowns"
	Balance    Slice = "balance"
	Bank       Slice = "bank"
	Shop       Slice = "shop"
	Inventory  Slice = "inventory"
	History    Slice = "history"
	Currencies Slice = "currencies"
)

// GuildSlices are keyed by guild alone.
var GuildSlices = []Slice{Guilds, Shop, Currencies}

// MemberSlices are keyed by guild and member.
var MemberSlices = []Slice{Users, Cooldowns, Balance, Bank, Inventory, History}

// AllSlices lists every slice.
var AllSlices = append(append([]Slice{}, GuildSlices...), MemberSlices...)

// CooldownFields are the user record keys mirrored by the cooldowns slice.
var CooldownFields = []string{
	"dailyCooldown", "workCooldown", "weeklyCooldown", "monthlyCooldown", "hourlyCooldown",
}

// IsGuildScoped reports whether s is keyed by guild alone.
func (s Slice) IsGuildScoped() bool {
	switch s {
	case Guilds, Shop, Currencies:
		return true
	}
	return false
}

// Path returns the database path mirrored by s for id.
func (s Slice) Path(id ID) string {
	switch s {
	case Guilds:
		return id.GuildID
	case Shop:
		return docpath.Join(id.GuildID, storage.KeyShop)
	case Currencies:
		return docpath.Join(id.GuildID, storage.KeyCurrencies)
	case Users, Cooldowns:
		return docpath.Join(id.GuildID, id.MemberID)
	case Balance:
		return docpath.Join(id.GuildID, id.MemberID, "money")
	case Bank:
		return docpath.Join(id.GuildID, id.MemberID, "bank")
	case Inventory:
		return docpath.Join(id.GuildID, id.MemberID, "inventory")
	case History:
		return docpath.Join(id.GuildID, id.MemberID, "history")
	}
	return ""
}

// ID identifies a cache entry. Guild-scoped slices ignore MemberID.
type ID struct {
	GuildID  string
	MemberID string
}

// GuildID builds a guild-scoped ID.
func GuildID(guildID string) ID {
	return ID{GuildID: guildID}
}

// MemberID builds a member-scoped ID.
func MemberID(guildID, memberID string) ID {
	return ID{GuildID: guildID, MemberID: memberID}
}

func (id ID) key(s Slice) ID {
	if s.IsGuildScoped() {
		return ID{GuildID: id.GuildID}
	}
	return id
}

// Fetcher is the read side of the database manager.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (any, error)
	All(ctx context.Context) (docpath.Document, error)
}

// Manager holds the cached slices.
type Manager struct {
	db Fetcher

	mu     sync.RWMutex
	slices map[Slice]map[ID]any
}

// New creates an empty cache over db.
func New(db Fetcher) *Manager {
	m := &Manager{db: db}
	m.ClearAll()
	return m
}

// Get returns a copy of the cached value of slice for id.
func (m *Manager) Get(slice Slice, id ID) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.slices[slice][id.key(slice)]
	if !ok {
		return nil, false
	}
	return docpath.Clone(v), true
}

// Len returns the number of entries in slice.
func (m *Manager) Len(slice Slice) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slices[slice])
}

// Update refreshes every slice that applies to id: guild slices always,
// member slices when id names a member.
func (m *Manager) Update(ctx context.Context, id ID) error {
	slices := GuildSlices
	if id.MemberID != "" {
		slices = AllSlices
	}
	return m.UpdateMany(ctx, slices, id)
}

// UpdateMany refreshes the given slices for one id.
func (m *Manager) UpdateMany(ctx context.Context, slices []Slice, id ID) error {
	return m.UpdateSpecified(ctx, slices, id)
}

// UpdateSpecified refreshes the given slices for each of ids. Values that
// are no longer stored are dropped from the cache.
func (m *Manager) UpdateSpecified(ctx context.Context, slices []Slice, ids ...ID) error {
	for _, id := range ids {
		for _, s := range slices {
			if err := m.refresh(ctx, s, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, s Slice, id ID) error {
	if id.GuildID == "" {
		return dberr.Validation("cache update", string(s), "guild ID is required")
	}
	if !s.IsGuildScoped() && id.MemberID == "" {
		return dberr.Validation("cache update", string(s), "member ID is required")
	}
	path := s.Path(id)
	if path == "" {
		return dberr.Validation("cache update", string(s), "unknown cache slice")
	}

	v, err := m.db.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if s == Cooldowns {
		v = cooldownsOf(v)
	}
	m.store(s, id.key(s), v)
	return nil
}

func (m *Manager) store(s Slice, key ID, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == nil {
		delete(m.slices[s], key)
		return
	}
	m.slices[s][key] = v
}

// cooldownsOf extracts the cooldown fields from a user record.
func cooldownsOf(user any) any {
	record, ok := docpath.AsObject(user)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(CooldownFields))
	for _, f := range CooldownFields {
		v, ok := record[f]
		if !ok {
			v = 0.0
		}
		out[f] = v
	}
	return out
}

// Warm scans the whole document once and fills every slice for every guild
// and member found. Existing entries are replaced.
func (m *Manager) Warm(ctx context.Context) error {
	doc, err := m.db.All(ctx)
	if err != nil {
		return err
	}

	fresh := emptySlices()
	members := 0
	for guildID, raw := range doc {
		guild, ok := docpath.AsObject(raw)
		if !ok {
			continue
		}
		gid := GuildID(guildID)
		for _, s := range GuildSlices {
			if v, ok := lookup(doc, s.Path(gid)); ok && v != nil {
				fresh[s][gid] = docpath.Clone(v)
			}
		}

		for memberID, rec := range guild {
			if storage.IsReservedGuildKey(memberID) {
				continue
			}
			if _, ok := docpath.AsObject(rec); !ok {
				continue
			}
			members++
			mid := MemberID(guildID, memberID)
			for _, s := range MemberSlices {
				v, ok := lookup(doc, s.Path(mid))
				if !ok {
					continue
				}
				if s == Cooldowns {
					v = cooldownsOf(v)
				}
				if v != nil {
					fresh[s][mid] = docpath.Clone(v)
				}
			}
		}
	}

	m.mu.Lock()
	m.slices = fresh
	m.mu.Unlock()

	log.Info().
		Int("guilds", len(fresh[Guilds])).
		Int("members", members).
		Msg("Cache warmed")
	return nil
}

func lookup(doc docpath.Document, path string) (any, bool) {
	p, err := docpath.Parse(path)
	if err != nil {
		return nil, false
	}
	return docpath.Get(doc, p)
}

// ClearAll drops every cached entry.
func (m *Manager) ClearAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slices = emptySlices()
}

// ClearSpecified drops the entries of the given slices.
func (m *Manager) ClearSpecified(slices ...Slice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range slices {
		m.slices[s] = make(map[ID]any)
	}
}

// ClearGuild drops every entry belonging to guildID, member entries
// included. Callers use it after replacing or deleting a whole guild record.
func (m *Manager) ClearGuild(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entries := range m.slices {
		for id := range entries {
			if id.GuildID == guildID {
				delete(entries, id)
			}
		}
	}
}

func emptySlices() map[Slice]map[ID]any {
	out := make(map[Slice]map[ID]any, len(AllSlices))
	for _, s := range AllSlices {
		out[s] = make(map[ID]any)
	}
	return out
}
