package service

import (
	"context"
	"fmt"
	"time"

	"guild-economy/internal/config"
	"guild-economy/internal/model"
	"guild-economy/internal/storage"
)

// Guild setting keys.
const (
	SettingSellItemsPercent     = "sellItemsPercent"
	SettingSubtractOnBuy        = "subtractOnBuy"
	SettingSavePurchasesHistory = "savePurchasesHistory"
)

// AmountSetting is the setting key holding the reward amount of kind. Its
// value is a number or a [min, max] array.
func AmountSetting(kind model.RewardKind) string { return string(kind) + "Amount" }

// CooldownSetting is the setting key holding the cooldown of kind in
// milliseconds.
func CooldownSetting(kind model.RewardKind) string { return string(kind) + "Cooldown" }

type settingKind int

const (
	settingAmount settingKind = iota
	settingCooldown
	settingPercent
	settingBool
)

func settingKinds() map[string]settingKind {
	out := map[string]settingKind{
		SettingSellItemsPercent:     settingPercent,
		SettingSubtractOnBuy:        settingBool,
		SettingSavePurchasesHistory: settingBool,
	}
	for _, k := range model.RewardKinds() {
		out[AmountSetting(k)] = settingAmount
		out[CooldownSetting(k)] = settingCooldown
	}
	return out
}

// SettingsService stores per-guild overrides of the economy configuration.
type SettingsService struct {
	base
	kinds map[string]settingKind
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(d Deps) *SettingsService {
	return &SettingsService{base: newBase(d), kinds: settingKinds()}
}

// Keys returns the names of every setting.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		keys = append(keys, k)
	}
	return keys
}

func settingsPath(guildID string) string {
	return pathOf(guildID, storage.KeySettings)
}

// Get returns the guild's value for key, or the configured default.
func (s *SettingsService) Get(ctx context.Context, guildID, key string) (any, error) {
	if _, err := guildScope("get setting", guildID); err != nil {
		return nil, err
	}
	if _, ok := s.kinds[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	v, err := s.DB.Fetch(ctx, pathOf(guildID, storage.KeySettings, key))
	if err != nil {
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}
	if v == nil {
		return s.defaultValue(key), nil
	}
	return v, nil
}

// All returns every setting of the guild, defaults filled in.
func (s *SettingsService) All(ctx context.Context, guildID string) (map[string]any, error) {
	if _, err := guildScope("get settings", guildID); err != nil {
		return nil, err
	}
	var stored map[string]any
	if _, err := s.DB.FetchInto(ctx, settingsPath(guildID), &stored); err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	out := make(map[string]any, len(s.kinds))
	for key := range s.kinds {
		if v, ok := stored[key]; ok && v != nil {
			out[key] = v
		} else {
			out[key] = s.defaultValue(key)
		}
	}
	return out, nil
}

// Set validates and stores value for key.
func (s *SettingsService) Set(ctx context.Context, guildID, key string, value any) error {
	id, err := guildScope("set setting", guildID)
	if err != nil {
		return err
	}
	kind, ok := s.kinds[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	if err := validateSetting(key, kind, value); err != nil {
		return err
	}
	if err := s.DB.Set(ctx, pathOf(guildID, storage.KeySettings, key), value); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}
	return s.refresh(ctx, id)
}

// Remove drops the guild's value for key, restoring the default. It reports
// whether a value was stored.
func (s *SettingsService) Remove(ctx context.Context, guildID, key string) (bool, error) {
	id, err := guildScope("remove setting", guildID)
	if err != nil {
		return false, err
	}
	if _, ok := s.kinds[key]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	removed, err := s.DB.Delete(ctx, pathOf(guildID, storage.KeySettings, key))
	if err != nil || !removed {
		return removed, err
	}
	return true, s.refresh(ctx, id)
}

// Reset drops every stored setting of the guild.
func (s *SettingsService) Reset(ctx context.Context, guildID string) error {
	id, err := guildScope("reset settings", guildID)
	if err != nil {
		return err
	}
	if err := s.DB.Set(ctx, settingsPath(guildID), map[string]any{}); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	return s.refresh(ctx, id)
}

func (s *SettingsService) defaultValue(key string) any {
	c := s.Config
	for _, k := range model.RewardKinds() {
		switch key {
		case AmountSetting(k):
			return append([]float64{}, configAmount(c, k)...)
		case CooldownSetting(k):
			return float64(configCooldown(c, k).Milliseconds())
		}
	}
	switch key {
	case SettingSellItemsPercent:
		return c.SellItemsPercent
	case SettingSubtractOnBuy:
		return c.SubtractOnBuy
	case SettingSavePurchasesHistory:
		return c.SavePurchasesHistory
	}
	return nil
}

func configAmount(c config.EconomyConfig, kind model.RewardKind) []float64 {
	switch kind {
	case model.RewardDaily:
		return c.DailyAmount
	case model.RewardHourly:
		return c.HourlyAmount
	case model.RewardWeekly:
		return c.WeeklyAmount
	case model.RewardMonthly:
		return c.MonthlyAmount
	case model.RewardWork:
		return c.WorkAmount
	}
	return nil
}

func configCooldown(c config.EconomyConfig, kind model.RewardKind) time.Duration {
	switch kind {
	case model.RewardDaily:
		return c.DailyCooldown
	case model.RewardHourly:
		return c.HourlyCooldown
	case model.RewardWeekly:
		return c.WeeklyCooldown
	case model.RewardMonthly:
		return c.MonthlyCooldown
	case model.RewardWork:
		return c.WorkCooldown
	}
	return 0
}

func validateSetting(key string, kind settingKind, value any) error {
	switch kind {
	case settingAmount:
		if _, _, err := amountRange(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	case settingCooldown:
		if n, ok := asNumber(value); !ok || n < 0 {
			return fmt.Errorf("%s: cooldown must be a non-negative number of milliseconds", key)
		}
	case settingPercent:
		if n, ok := asNumber(value); !ok || n < 0 || n > 100 {
			return fmt.Errorf("%s: percent must be between 0 and 100", key)
		}
	case settingBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s: value must be a boolean", key)
		}
	}
	return nil
}

// amountRange reads a reward amount: a number, or an array of one or two
// numbers giving [min, max].
func amountRange(value any) (float64, float64, error) {
	var nums []float64
	switch v := value.(type) {
	case []float64:
		nums = v
	case []any:
		for _, e := range v {
			n, ok := asNumber(e)
			if !ok {
				return 0, 0, fmt.Errorf("%w: amount array must hold numbers", ErrInvalidAmount)
			}
			nums = append(nums, n)
		}
	default:
		n, ok := asNumber(value)
		if !ok {
			return 0, 0, fmt.Errorf("%w: amount must be a number or [min, max]", ErrInvalidAmount)
		}
		nums = []float64{n}
	}

	switch len(nums) {
	case 1:
		nums = []float64{nums[0], nums[0]}
	case 2:
	default:
		return 0, 0, fmt.Errorf("%w: amount must be a number or [min, max]", ErrInvalidAmount)
	}
	if nums[0] < 0 || nums[1] < nums[0] {
		return 0, 0, fmt.Errorf("%w: need 0 <= min <= max", ErrInvalidAmount)
	}
	return nums[0], nums[1], nil
}

// RewardAmount returns the [min, max] amount of kind for the guild.
func (s *SettingsService) RewardAmount(ctx context.Context, guildID string, kind model.RewardKind) (float64, float64, error) {
	v, err := s.Get(ctx, guildID, AmountSetting(kind))
	if err != nil {
		return 0, 0, err
	}
	return amountRange(v)
}

// RewardCooldown returns the cooldown of kind for the guild.
func (s *SettingsService) RewardCooldown(ctx context.Context, guildID string, kind model.RewardKind) (time.Duration, error) {
	v, err := s.Get(ctx, guildID, CooldownSetting(kind))
	if err != nil {
		return 0, err
	}
	ms, _ := asNumber(v)
	return time.Duration(ms) * time.Millisecond, nil
}

// SellItemsPercent returns the share of the price refunded when selling.
func (s *SettingsService) SellItemsPercent(ctx context.Context, guildID string) (float64, error) {
	v, err := s.Get(ctx, guildID, SettingSellItemsPercent)
	if err != nil {
		return 0, err
	}
	n, _ := asNumber(v)
	return n, nil
}

// SubtractOnBuy reports whether purchases charge the buyer.
func (s *SettingsService) SubtractOnBuy(ctx context.Context, guildID string) (bool, error) {
	return s.flag(ctx, guildID, SettingSubtractOnBuy)
}

// SavePurchasesHistory reports whether purchases are recorded.
func (s *SettingsService) SavePurchasesHistory(ctx context.Context, guildID string) (bool, error) {
	return s.flag(ctx, guildID, SettingSavePurchasesHistory)
}

func (s *SettingsService) flag(ctx context.Context, guildID, key string) (bool, error) {
	v, err := s.Get(ctx, guildID, key)
	if err != nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}
