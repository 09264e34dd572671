package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"guild-economy/internal/cache"
	"guild-economy/internal/events"
	"guild-economy/internal/model"
)

// RewardResult describes a reward claim attempt.
type RewardResult struct {
	Type    model.RewardKind
	Claimed bool
	// Reward is the amount credited; 0 when not claimed.
	Reward float64
	// Remaining is the time left on the cooldown when not claimed.
	Remaining time.Duration
	// Balance is the member's balance after the claim.
	Balance float64
}

// RewardsService pays out cooldown-gated rewards.
type RewardsService struct {
	base
	cooldowns *CooldownsService
	settings  *SettingsService
}

// NewRewardsService creates a RewardsService.
func NewRewardsService(d Deps, settings *SettingsService, cooldowns *CooldownsService) *RewardsService {
	return &RewardsService{base: newBase(d), settings: settings, cooldowns: cooldowns}
}

func (s *RewardsService) Daily(ctx context.Context, guildID, memberID, reason string) (RewardResult, error) {
	return s.Claim(ctx, guildID, memberID, model.RewardDaily, reason)
}

func (s *RewardsService) Hourly(ctx context.Context, guildID, memberID, reason string) (RewardResult, error) {
	return s.Claim(ctx, guildID, memberID, model.RewardHourly, reason)
}

func (s *RewardsService) Weekly(ctx context.Context, guildID, memberID, reason string) (RewardResult, error) {
	return s.Claim(ctx, guildID, memberID, model.RewardWeekly, reason)
}

func (s *RewardsService) Monthly(ctx context.Context, guildID, memberID, reason string) (RewardResult, error) {
	return s.Claim(ctx, guildID, memberID, model.RewardMonthly, reason)
}

func (s *RewardsService) Work(ctx context.Context, guildID, memberID, reason string) (RewardResult, error) {
	return s.Claim(ctx, guildID, memberID, model.RewardWork, reason)
}

// Claim pays the reward of kind unless its cooldown is still running. A
// running cooldown is reported in the result, not as an error.
func (s *RewardsService) Claim(ctx context.Context, guildID, memberID string, kind model.RewardKind, reason string) (RewardResult, error) {
	id, err := memberScope("claim "+string(kind), guildID, memberID)
	if err != nil {
		return RewardResult{}, err
	}
	if !kind.Valid() {
		return RewardResult{}, fmt.Errorf("%w: %s", ErrUnknownReward, kind)
	}

	remaining, err := s.cooldowns.Get(ctx, guildID, memberID, kind)
	if err != nil {
		return RewardResult{}, err
	}
	if remaining > 0 {
		return RewardResult{Type: kind, Remaining: remaining}, nil
	}

	lo, hi, err := s.settings.RewardAmount(ctx, guildID, kind)
	if err != nil {
		return RewardResult{}, err
	}
	reward := s.pick(lo, hi)

	created, err := s.ensureUser(ctx, id)
	if err != nil {
		return RewardResult{}, err
	}

	// The reward is paid before the cooldown starts: a failed payment leaves
	// the claim available.
	slices := []cache.Slice{cache.Cooldowns, cache.Users}
	var balance float64
	if reward > 0 {
		balance, err = s.DB.Add(ctx, cache.Balance.Path(id), reward)
		if err != nil {
			return RewardResult{}, fmt.Errorf("failed to pay %s reward: %w", kind, err)
		}
		slices = append(slices, cache.Balance)
	} else if _, err := s.load(ctx, cache.Balance, id, &balance); err != nil {
		return RewardResult{}, err
	}
	if err := s.DB.Set(ctx, pathOf(cache.Users.Path(id), kind.CooldownField()), s.nowMs()); err != nil {
		return RewardResult{}, fmt.Errorf("failed to start %s cooldown: %w", kind, err)
	}
	if err := s.refreshMember(ctx, id, created, slices...); err != nil {
		return RewardResult{}, err
	}

	if reward > 0 {
		if reason == "" {
			reason = fmt.Sprintf("claimed the %s reward", kind)
		}
		s.emit(events.BalanceAdd, events.BalanceEvent{
			Type:     events.BalanceAdd,
			GuildID:  guildID,
			MemberID: memberID,
			Amount:   reward,
			Balance:  balance,
			Reason:   reason,
		})
	}
	return RewardResult{Type: kind, Claimed: true, Reward: reward, Balance: balance}, nil
}

// pick returns a whole number in [lo, hi], or lo when the range is a single
// value.
func (s *RewardsService) pick(lo, hi float64) float64 {
	from, to := math.Ceil(lo), math.Floor(hi)
	if to <= from {
		return lo
	}
	return from + float64(s.Intn(int(to-from)+1))
}
