package handler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
	"guild-economy/internal/shop"
)

// TransferHandler handles transfer commands.
type TransferHandler struct {
	base
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(services *service.Services, locks *lock.KeyLock) *TransferHandler {
	return &TransferHandler{base: newBase(services, locks)}
}

// HandlePay transfers money to the author of the replied message, or to the
// first text mention.
// Format: /pay <amount> (as reply)
func (h *TransferHandler) HandlePay(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	target := replyTarget(c)
	if target == nil {
		target = mentionTarget(c)
	}
	if target == nil {
		return c.Reply("❌ 请回复收款人的消息\n用法: /pay 金额")
	}
	if target.IsBot {
		return c.Reply("❌ 不能给机器人转账")
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 请指定转账金额\n用法: /pay 金额 (回复对方消息)")
	}
	// The amount is the last argument so "/pay Name 100" also works with a
	// text mention.
	amount, err := ParseAmount(args[len(args)-1])
	if err != nil {
		return c.Reply(err.Error())
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		res, err := h.services.Balance.Transfer(ctx, s.GuildID, s.MemberID, IDString(target.ID), amount,
			fmt.Sprintf("transfer to %d", target.ID))
		if err != nil {
			return replyErr(c, "pay", err)
		}

		log.Info().
			Str("guild_id", s.GuildID).
			Str("from", s.MemberID).
			Int64("to", target.ID).
			Float64("amount", amount).
			Msg("Transfer executed")

		return c.Reply(fmt.Sprintf(
			"✅ 转账成功！\n\n💸 已向 %s 转账 %s 金币\n💰 当前余额: %s 金币",
			DisplayName(target), shop.FormatAmount(res.Amount), shop.FormatAmount(res.FromBalance),
		))
	})
}
