package service

import (
	"context"
	"fmt"
	"time"

	"guild-economy/internal/cache"
	"guild-economy/internal/database"
	"guild-economy/internal/model"
)

// CooldownsService reports and resets reward cooldowns.
type CooldownsService struct {
	base
	settings *SettingsService
}

// NewCooldownsService creates a CooldownsService.
func NewCooldownsService(d Deps, settings *SettingsService) *CooldownsService {
	return &CooldownsService{base: newBase(d), settings: settings}
}

// Get returns the time left before kind can be claimed again, 0 when it
// can be claimed now.
func (s *CooldownsService) Get(ctx context.Context, guildID, memberID string, kind model.RewardKind) (time.Duration, error) {
	id, err := memberScope("get cooldown", guildID, memberID)
	if err != nil {
		return 0, err
	}
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownReward, kind)
	}
	stamps, err := s.stamps(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.remaining(ctx, guildID, kind, stamps)
}

// All returns the remaining time of every reward kind.
func (s *CooldownsService) All(ctx context.Context, guildID, memberID string) (map[model.RewardKind]time.Duration, error) {
	id, err := memberScope("get cooldowns", guildID, memberID)
	if err != nil {
		return nil, err
	}
	stamps, err := s.stamps(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[model.RewardKind]time.Duration, len(model.RewardKinds()))
	for _, kind := range model.RewardKinds() {
		if out[kind], err = s.remaining(ctx, guildID, kind, stamps); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Reset clears the given cooldowns, or all of them when none are named.
func (s *CooldownsService) Reset(ctx context.Context, guildID, memberID string, kinds ...model.RewardKind) error {
	id, err := memberScope("reset cooldowns", guildID, memberID)
	if err != nil {
		return err
	}
	if len(kinds) == 0 {
		kinds = model.RewardKinds()
	}
	for _, kind := range kinds {
		if !kind.Valid() {
			return fmt.Errorf("%w: %s", ErrUnknownReward, kind)
		}
	}

	user, err := s.DB.Fetch(ctx, cache.Users.Path(id))
	if err != nil || user == nil {
		return err
	}
	for _, kind := range kinds {
		if err := s.DB.Set(ctx, pathOf(cache.Users.Path(id), kind.CooldownField()), 0); err != nil {
			return fmt.Errorf("failed to reset %s cooldown: %w", kind, err)
		}
	}
	return s.refresh(ctx, id, cache.Cooldowns, cache.Users)
}

// stamps returns the stored claim times keyed by cooldown field.
func (s *CooldownsService) stamps(ctx context.Context, id cache.ID) (map[string]float64, error) {
	out := make(map[string]float64, len(model.RewardKinds()))
	if v, ok := s.Cache.Get(cache.Cooldowns, id); ok {
		if err := database.Decode(v, &out); err != nil {
			return nil, fmt.Errorf("failed to decode cooldowns: %w", err)
		}
		return out, nil
	}

	var user model.UserData
	if _, err := s.DB.FetchInto(ctx, cache.Users.Path(id), &user); err != nil {
		return nil, fmt.Errorf("failed to load cooldowns: %w", err)
	}
	for _, kind := range model.RewardKinds() {
		out[kind.CooldownField()] = float64(user.Cooldown(kind))
	}
	return out, nil
}

func (s *CooldownsService) remaining(ctx context.Context, guildID string, kind model.RewardKind, stamps map[string]float64) (time.Duration, error) {
	last := int64(stamps[kind.CooldownField()])
	if last == 0 {
		return 0, nil
	}
	cooldown, err := s.settings.RewardCooldown(ctx, guildID, kind)
	if err != nil {
		return 0, err
	}
	elapsed := time.Duration(s.nowMs()-last) * time.Millisecond
	if elapsed >= cooldown {
		return 0, nil
	}
	return cooldown - elapsed, nil
}
