package handler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
	"guild-economy/internal/shop"
)

// AdminHandler handles admin-only commands. Permission is checked by the
// admin middleware.
type AdminHandler struct {
	base
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(services *service.Services, locks *lock.KeyLock) *AdminHandler {
	return &AdminHandler{base: newBase(services, locks)}
}

type balanceOp func(ctx context.Context, guildID, memberID string, amount float64, reason string) (float64, error)

// HandleAdminAdd adds to a member's balance.
// Format: /admin_add <user_id> <amount>, or /admin_add <amount> as reply
func (h *AdminHandler) HandleAdminAdd(c tele.Context) error {
	return h.adjust(c, "admin_add", "➕ 添加", false, h.services.Balance.Add)
}

// HandleAdminSub subtracts from a member's balance.
// Format: /admin_sub <user_id> <amount>, or /admin_sub <amount> as reply
func (h *AdminHandler) HandleAdminSub(c tele.Context) error {
	return h.adjust(c, "admin_sub", "➖ 扣除", false, h.services.Balance.Subtract)
}

// HandleAdminSet overwrites a member's balance.
// Format: /admin_set <user_id> <amount>, or /admin_set <amount> as reply
func (h *AdminHandler) HandleAdminSet(c tele.Context) error {
	return h.adjust(c, "admin_set", "✏️ 设置为", true, h.services.Balance.Set)
}

func (h *AdminHandler) adjust(c tele.Context, op, label string, allowZero bool, apply balanceOp) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	target, amount, err := ParseAdminArgs(c.Args(), replyTarget(c), allowZero)
	if err != nil {
		return c.Reply(err.Error())
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		reason := fmt.Sprintf("%s by admin %d", op, sender.ID)
		balance, err := apply(ctx, s.GuildID, target, amount, reason)
		if err != nil {
			return replyErr(c, op, err)
		}

		log.Info().
			Int64("admin_id", sender.ID).
			Str("guild_id", s.GuildID).
			Str("target_id", target).
			Float64("amount", amount).
			Str("operation", op).
			Msg("Admin operation executed")

		return c.Reply(fmt.Sprintf(
			"✅ 操作成功\n\n👤 用户 ID: %s\n%s: %s 金币\n💰 当前余额: %s 金币",
			target, label, shop.FormatAmount(amount), shop.FormatAmount(balance),
		))
	})
}

// ParseAdminArgs reads the target member and amount of an admin balance
// command. With a replied-to user only the amount is expected.
func ParseAdminArgs(args []string, replied *tele.User, allowZero bool) (string, float64, error) {
	var target, amountArg string
	switch {
	case replied != nil && len(args) >= 1:
		target, amountArg = IDString(replied.ID), args[len(args)-1]
	case len(args) >= 2:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return "", 0, fmt.Errorf("❌ 用户 ID 格式错误")
		}
		target, amountArg = IDString(id), args[1]
	default:
		return "", 0, fmt.Errorf("❌ 用法: <用户ID> <金额>，或回复目标消息并指定金额")
	}

	if allowZero && strings.TrimSpace(amountArg) == "0" {
		return target, 0, nil
	}
	amount, err := ParseAmount(amountArg)
	if err != nil {
		return "", 0, err
	}
	return target, amount, nil
}

// HandleShopAdd lists a new item in the chat's shop.
// Format: /shop_add <name> <price> [max_amount] [message...]
func (h *AdminHandler) HandleShopAdd(c tele.Context) error {
	in, err := ParseShopItem(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		item, err := h.services.Shop.AddItem(ctx, s.GuildID, in)
		if err != nil {
			return replyErr(c, "shop_add", err)
		}
		return c.Reply(fmt.Sprintf("✅ 已上架 #%d %s，价格 %s 金币",
			item.ID, item.Name, shop.FormatAmount(item.Price)))
	})
}

// ParseShopItem reads the arguments of /shop_add.
func ParseShopItem(args []string) (service.NewShopItem, error) {
	if len(args) < 2 {
		return service.NewShopItem{}, fmt.Errorf("❌ 用法: /shop_add <名称> <价格> [持有上限] [使用消息]")
	}
	price, err := ParseAmount(args[1])
	if err != nil {
		return service.NewShopItem{}, err
	}
	in := service.NewShopItem{Name: args[0], Price: price}

	rest := args[2:]
	if len(rest) > 0 {
		if n, err := strconv.Atoi(rest[0]); err == nil {
			if n < 0 {
				return service.NewShopItem{}, fmt.Errorf("❌ 持有上限不能为负数")
			}
			in.MaxAmount = n
			rest = rest[1:]
		}
	}
	in.Message = strings.Join(rest, " ")
	return in, nil
}

// HandleShopRemove removes an item from the chat's shop.
// Format: /shop_remove <id>
func (h *AdminHandler) HandleShopRemove(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /shop_remove <编号>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ 编号格式错误")
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		item, err := h.services.Shop.RemoveItem(ctx, s.GuildID, id)
		if err != nil {
			return replyErr(c, "shop_remove", err)
		}
		return c.Reply(fmt.Sprintf("✅ 已下架 #%d %s", item.ID, item.Name))
	})
}

// HandleSettings lists the chat's settings, or changes one.
// Format: /admin_settings [key value]
func (h *AdminHandler) HandleSettings(c tele.Context) error {
	args := c.Args()
	if len(args) == 1 || len(args) > 2 {
		return c.Reply("❌ 用法: /admin_settings [设置项 值]\n区间写作 10,50")
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		if len(args) == 2 {
			if err := h.services.Settings.Set(ctx, s.GuildID, args[0], ParseSettingValue(args[1])); err != nil {
				if isUserError(err) {
					return c.Reply(ErrorText(err))
				}
				return c.Reply("❌ " + err.Error())
			}
		}

		all, err := h.services.Settings.All(ctx, s.GuildID)
		if err != nil {
			return replyErr(c, "settings", err)
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		msg := "⚙️ 群设置\n━━━━━━━━━━━━━━━\n"
		for _, k := range keys {
			msg += fmt.Sprintf("%s: %v\n", k, all[k])
		}
		msg += "━━━━━━━━━━━━━━━"
		return c.Reply(msg)
	})
}

// ParseSettingValue reads a boolean, a number, or a comma separated range.
// Anything else is kept as text.
func ParseSettingValue(arg string) any {
	switch strings.ToLower(arg) {
	case "true", "on", "yes":
		return true
	case "false", "off", "no":
		return false
	}
	if strings.Contains(arg, ",") {
		parts := strings.Split(arg, ",")
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return arg
			}
			out = append(out, v)
		}
		return out
	}
	if v, err := strconv.ParseFloat(arg, 64); err == nil {
		return v
	}
	return arg
}
