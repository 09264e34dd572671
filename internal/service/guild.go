package service

import (
	"context"
	"fmt"
	"sort"

	"guild-economy/internal/cache"
	"guild-economy/internal/database"
	"guild-economy/internal/model"
	"guild-economy/internal/storage"
)

// GuildService reads and manages whole guild records.
type GuildService struct {
	base
}

// NewGuildService creates a GuildService.
func NewGuildService(d Deps) *GuildService {
	return &GuildService{base: newBase(d)}
}

// Get returns the guild record, or an absent guild when none is stored.
func (s *GuildService) Get(ctx context.Context, guildID string) (model.Guild, error) {
	id, err := guildScope("get guild", guildID)
	if err != nil {
		return model.Guild{}, err
	}
	var raw map[string]any
	found, err := s.load(ctx, cache.Guilds, id, &raw)
	if err != nil {
		return model.Guild{}, fmt.Errorf("failed to get guild: %w", err)
	}
	if !found {
		return model.AbsentGuild(guildID), nil
	}
	return guildOf(guildID, raw)
}

// Create stores a fresh guild record. It reports false, leaving the stored
// record untouched, when one already exists.
func (s *GuildService) Create(ctx context.Context, guildID string) (model.Guild, bool, error) {
	guild, err := s.Get(ctx, guildID)
	if err != nil || guild.Exists() {
		return guild, false, err
	}
	guild, err = s.Reset(ctx, guildID)
	return guild, err == nil, err
}

// Reset replaces the guild record, members included, with a fresh one.
func (s *GuildService) Reset(ctx context.Context, guildID string) (model.Guild, error) {
	id, err := guildScope("reset guild", guildID)
	if err != nil {
		return model.Guild{}, err
	}
	data := model.NewGuildData()
	if err := s.DB.Set(ctx, cache.Guilds.Path(id), data); err != nil {
		return model.Guild{}, fmt.Errorf("failed to reset guild: %w", err)
	}
	s.Cache.ClearGuild(guildID)
	if err := s.Cache.Update(ctx, id); err != nil {
		return model.Guild{}, err
	}
	return model.PresentGuild(guildID, data, nil), nil
}

// Delete removes the guild record. It reports false when none existed.
func (s *GuildService) Delete(ctx context.Context, guildID string) (bool, error) {
	id, err := guildScope("delete guild", guildID)
	if err != nil {
		return false, err
	}
	removed, err := s.DB.Delete(ctx, cache.Guilds.Path(id))
	if err != nil || !removed {
		return removed, err
	}
	s.Cache.ClearGuild(guildID)
	return true, nil
}

// All returns every stored guild, ordered by ID.
func (s *GuildService) All(ctx context.Context) ([]model.Guild, error) {
	doc, err := s.DB.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list guilds: %w", err)
	}
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	guilds := make([]model.Guild, 0, len(ids))
	for _, id := range ids {
		raw, ok := doc[id].(map[string]any)
		if !ok {
			continue
		}
		g, err := guildOf(id, raw)
		if err != nil {
			return nil, err
		}
		guilds = append(guilds, g)
	}
	return guilds, nil
}

func guildOf(guildID string, raw map[string]any) (model.Guild, error) {
	data := model.NewGuildData()
	reserved := map[string]any{
		storage.KeyShop:       raw[storage.KeyShop],
		storage.KeyCurrencies: raw[storage.KeyCurrencies],
		storage.KeySettings:   raw[storage.KeySettings],
	}
	if err := database.Decode(reserved, &data); err != nil {
		return model.Guild{}, fmt.Errorf("failed to decode guild %s: %w", guildID, err)
	}
	if data.Shop == nil {
		data.Shop = []model.ShopItem{}
	}
	if data.Currencies == nil {
		data.Currencies = []model.Currency{}
	}
	if data.Settings == nil {
		data.Settings = map[string]any{}
	}
	return model.PresentGuild(guildID, data, memberIDs(raw)), nil
}
