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

// UserService reads and manages whole member records.
type UserService struct {
	base
}

// NewUserService creates a UserService.
func NewUserService(d Deps) *UserService {
	return &UserService{base: newBase(d)}
}

// Get returns the member's record, or an absent user when none is stored.
// It never creates a record.
func (s *UserService) Get(ctx context.Context, guildID, memberID string) (model.User, error) {
	id, err := memberScope("get user", guildID, memberID)
	if err != nil {
		return model.User{}, err
	}
	data := model.NewUserData()
	found, err := s.load(ctx, cache.Users, id, &data)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return model.AbsentUser(guildID, memberID), nil
	}
	return model.PresentUser(guildID, memberID, data), nil
}

// Create stores a fresh record for the member. It reports false, leaving
// the stored record untouched, when one already exists.
func (s *UserService) Create(ctx context.Context, guildID, memberID string) (model.User, bool, error) {
	user, err := s.Get(ctx, guildID, memberID)
	if err != nil || user.Exists() {
		return user, false, err
	}
	user, err = s.Reset(ctx, guildID, memberID)
	return user, err == nil, err
}

// Reset replaces the member's record with a fresh one.
func (s *UserService) Reset(ctx context.Context, guildID, memberID string) (model.User, error) {
	id, err := memberScope("reset user", guildID, memberID)
	if err != nil {
		return model.User{}, err
	}
	data := model.NewUserData()
	if err := s.DB.Set(ctx, cache.Users.Path(id), data); err != nil {
		return model.User{}, fmt.Errorf("failed to reset user: %w", err)
	}
	if err := s.Cache.Update(ctx, id); err != nil {
		return model.User{}, err
	}
	return model.PresentUser(guildID, memberID, data), nil
}

// Delete removes the member's record. It reports false when none existed.
func (s *UserService) Delete(ctx context.Context, guildID, memberID string) (bool, error) {
	id, err := memberScope("delete user", guildID, memberID)
	if err != nil {
		return false, err
	}
	removed, err := s.DB.Delete(ctx, cache.Users.Path(id))
	if err != nil || !removed {
		return removed, err
	}
	return true, s.Cache.Update(ctx, id)
}

// All returns every stored member of the guild, ordered by member ID.
func (s *UserService) All(ctx context.Context, guildID string) ([]model.User, error) {
	id, err := guildScope("list users", guildID)
	if err != nil {
		return nil, err
	}
	var guild map[string]any
	if _, err := s.load(ctx, cache.Guilds, id, &guild); err != nil {
		return nil, fmt.Errorf("failed to load guild: %w", err)
	}
	return usersOf(guildID, guild)
}

func usersOf(guildID string, guild map[string]any) ([]model.User, error) {
	users := make([]model.User, 0, len(guild))
	for _, memberID := range memberIDs(guild) {
		data := model.NewUserData()
		if err := database.Decode(guild[memberID], &data); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", memberID, err)
		}
		users = append(users, model.PresentUser(guildID, memberID, data))
	}
	return users, nil
}

// memberIDs returns the sorted keys of a guild record that hold members.
func memberIDs(guild map[string]any) []string {
	ids := make([]string, 0, len(guild))
	for key, v := range guild {
		if storage.IsReservedGuildKey(key) {
			continue
		}
		if _, ok := v.(map[string]any); !ok {
			continue
		}
		ids = append(ids, key)
	}
	sort.Strings(ids)
	return ids
}
