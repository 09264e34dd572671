package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/model"
	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
	"guild-economy/internal/shop"
)

// RewardsHandler handles reward and cooldown commands.
type RewardsHandler struct {
	base
}

// NewRewardsHandler creates a new RewardsHandler.
func NewRewardsHandler(services *service.Services, locks *lock.KeyLock) *RewardsHandler {
	return &RewardsHandler{base: newBase(services, locks)}
}

var rewardNames = map[model.RewardKind]string{
	model.RewardDaily:   "每日奖励",
	model.RewardHourly:  "每小时奖励",
	model.RewardWeekly:  "每周奖励",
	model.RewardMonthly: "每月奖励",
	model.RewardWork:    "打工",
}

// HandleReward returns the handler claiming rewards of kind.
func (h *RewardsHandler) HandleReward(kind model.RewardKind) tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.withGuild(c, func(ctx context.Context, s Scope) error {
			res, err := h.services.Rewards.Claim(ctx, s.GuildID, s.MemberID, kind, "")
			if err != nil {
				return replyErr(c, "claim "+string(kind), err)
			}
			return c.Reply(FormatReward(res))
		})
	}
}

// FormatReward renders a claim attempt.
func FormatReward(res service.RewardResult) string {
	name := rewardNames[res.Type]
	if !res.Claimed {
		return fmt.Sprintf("⏰ %s冷却中，剩余 %s", name, shop.FormatDuration(res.Remaining))
	}
	return fmt.Sprintf(
		"✅ 领取%s成功！\n\n➕ 获得: %s 金币\n💰 当前余额: %s 金币",
		name, shop.FormatAmount(res.Reward), shop.FormatAmount(res.Balance),
	)
}

// HandleCooldowns lists the remaining cooldown of every reward.
func (h *RewardsHandler) HandleCooldowns(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		remaining, err := h.services.Cooldowns.All(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "cooldowns", err)
		}

		msg := "⏱️ 冷却时间\n━━━━━━━━━━━━━━━\n"
		for _, kind := range model.RewardKinds() {
			msg += fmt.Sprintf("%s: %s\n", rewardNames[kind], shop.FormatDuration(remaining[kind]))
		}
		msg += "━━━━━━━━━━━━━━━"
		return c.Reply(msg)
	})
}
