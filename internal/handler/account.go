package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
	"guild-economy/internal/shop"
)

// AccountHandler handles balance and bank commands.
type AccountHandler struct {
	base
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(services *service.Services, locks *lock.KeyLock) *AccountHandler {
	return &AccountHandler{base: newBase(services, locks)}
}

const helpText = "可用命令:\n" +
	"/balance - 查看余额\n" +
	"/bank - 查看银行存款\n" +
	"/deposit <金额|all> - 存入银行\n" +
	"/withdraw <金额|all> - 从银行取出\n" +
	"/pay <金额> - 回复对方消息转账\n" +
	"/daily /hourly /weekly /monthly /work - 领取奖励\n" +
	"/cooldowns - 查看冷却时间\n" +
	"/shop /buy /bag /use /sell /history - 商店与背包\n" +
	"/top - 富豪榜"

// HandleStart creates the member's record in this chat.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		user, created, err := h.services.Users.Create(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "start", err)
		}

		if created {
			return c.Reply(fmt.Sprintf(
				"🎉 欢迎 %s！\n\n您的账户已创建，当前余额: %s 金币\n\n%s",
				DisplayName(c.Sender()), shop.FormatAmount(user.Money()), helpText,
			))
		}
		return c.Reply(fmt.Sprintf(
			"👋 欢迎回来 %s！\n\n当前余额: %s 金币\n银行存款: %s 金币",
			DisplayName(c.Sender()), shop.FormatAmount(user.Money()), shop.FormatAmount(user.Bank()),
		))
	})
}

// HandleBalance shows the member's balance and bank.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		balance, err := h.services.Balance.Get(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "balance", err)
		}
		bank, err := h.services.Bank.Get(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "balance", err)
		}
		return c.Reply(fmt.Sprintf(
			"💰 当前余额: %s 金币\n🏦 银行存款: %s 金币",
			shop.FormatAmount(balance), shop.FormatAmount(bank),
		))
	})
}

// HandleBank shows the member's bank balance.
func (h *AccountHandler) HandleBank(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		bank, err := h.services.Bank.Get(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "bank", err)
		}
		return c.Reply(fmt.Sprintf("🏦 银行存款: %s 金币", shop.FormatAmount(bank)))
	})
}

// HandleDeposit moves money into the bank.
// Format: /deposit <amount|all>
func (h *AccountHandler) HandleDeposit(c tele.Context) error {
	return h.move(c, "deposit", "/deposit <金额|all>", h.services.Balance.Get, h.services.Bank.Deposit)
}

// HandleWithdraw moves money out of the bank.
// Format: /withdraw <amount|all>
func (h *AccountHandler) HandleWithdraw(c tele.Context) error {
	return h.move(c, "withdraw", "/withdraw <金额|all>", h.services.Bank.Get, h.services.Bank.Withdraw)
}

type getFunc func(ctx context.Context, guildID, memberID string) (float64, error)

type moveFunc func(ctx context.Context, guildID, memberID string, amount float64, reason string) error

func (h *AccountHandler) move(c tele.Context, op, usage string, source getFunc, apply moveFunc) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: " + usage)
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		var amount float64
		if strings.EqualFold(args[0], "all") {
			available, err := source(ctx, s.GuildID, s.MemberID)
			if err != nil {
				return replyErr(c, op, err)
			}
			if available <= 0 {
				return c.Reply(ErrorText(service.ErrInsufficientBalance))
			}
			amount = available
		} else {
			v, err := ParseAmount(args[0])
			if err != nil {
				return c.Reply(err.Error())
			}
			amount = v
		}

		if err := apply(ctx, s.GuildID, s.MemberID, amount, op+" via bot"); err != nil {
			return replyErr(c, op, err)
		}

		balance, err := h.services.Balance.Get(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, op, err)
		}
		bank, err := h.services.Bank.Get(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, op, err)
		}
		return c.Reply(fmt.Sprintf(
			"✅ 操作成功\n\n💰 当前余额: %s 金币\n🏦 银行存款: %s 金币",
			shop.FormatAmount(balance), shop.FormatAmount(bank),
		))
	})
}
