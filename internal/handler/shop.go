package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/model"
	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
	"guild-economy/internal/shop"
)

const historyLimit = 10

// ShopHandler handles shop, inventory and history commands.
type ShopHandler struct {
	base
	loc *time.Location
}

// NewShopHandler creates a new ShopHandler. History dates are shown in loc.
func NewShopHandler(services *service.Services, locks *lock.KeyLock, loc *time.Location) *ShopHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ShopHandler{base: newBase(services, locks), loc: loc}
}

// HandleShop shows the chat's shop with a button per item.
func (h *ShopHandler) HandleShop(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		msg, markup, err := h.panel(ctx, s)
		if err != nil {
			return replyErr(c, "shop", err)
		}
		return c.Send(msg, markup)
	})
}

func (h *ShopHandler) panel(ctx context.Context, s Scope) (string, *tele.ReplyMarkup, error) {
	items, err := h.services.Shop.List(ctx, s.GuildID)
	if err != nil {
		return "", nil, err
	}
	balance, err := h.services.Balance.Get(ctx, s.GuildID, s.MemberID)
	if err != nil {
		return "", nil, err
	}
	return shop.FormatShopMessage(balance, items), shop.BuildShopPanel(items), nil
}

// HandleShopCallback handles shop button callbacks.
func (h *ShopHandler) HandleShopCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}
	action, itemID, ok := shop.ParseCallback(callback.Data)
	if !ok {
		return c.Respond()
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		switch action {
		case shop.ActionItem:
			item, found, err := h.services.Shop.Get(ctx, s.GuildID, itemID)
			if err != nil || !found {
				return c.Respond(&tele.CallbackResponse{Text: "❌ 商品不存在"})
			}
			balance, err := h.services.Balance.Get(ctx, s.GuildID, s.MemberID)
			if err != nil {
				return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
			}
			return c.Edit(shop.FormatItemDetail(item, balance), shop.BuildConfirmPanel(itemID))

		case shop.ActionBuy:
			res, err := h.services.Shop.Buy(ctx, s.GuildID, s.MemberID, itemID, 1, "bought via shop panel")
			if err != nil {
				if !isUserError(err) {
					log.Error().Err(err).Str("guild_id", s.GuildID).Int("item_id", itemID).Msg("Purchase failed")
				}
				return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
			}
			_ = c.Respond(&tele.CallbackResponse{Text: "✅ 购买成功！" + res.Item.Name})
		}

		msg, markup, err := h.panel(ctx, s)
		if err != nil {
			return c.Respond(&tele.CallbackResponse{Text: ErrorText(err), ShowAlert: true})
		}
		return c.Edit(msg, markup)
	})
}

// resolveItem finds a shop item by ID or, failing that, by name.
func (h *ShopHandler) resolveItem(ctx context.Context, guildID, arg string) (model.ShopItem, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		item, ok, err := h.services.Shop.Get(ctx, guildID, id)
		if err != nil {
			return model.ShopItem{}, err
		}
		if ok {
			return item, nil
		}
	}
	item, ok, err := h.services.Shop.Find(ctx, guildID, arg)
	if err != nil {
		return model.ShopItem{}, err
	}
	if !ok {
		return model.ShopItem{}, service.ErrItemNotFound
	}
	return item, nil
}

// HandleBuy buys an item.
// Format: /buy <id|name> [quantity]
func (h *ShopHandler) HandleBuy(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /buy <编号|名称> [数量]")
	}
	ref, countArg := args[0], ""
	if len(args) > 1 {
		ref, countArg = strings.Join(args[:len(args)-1], " "), args[len(args)-1]
		if _, err := strconv.Atoi(countArg); err != nil {
			ref, countArg = strings.Join(args, " "), ""
		}
	}
	quantity, err := ParseCount(countArg)
	if err != nil {
		return c.Reply(err.Error())
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		item, err := h.resolveItem(ctx, s.GuildID, ref)
		if err != nil {
			return replyErr(c, "buy", err)
		}
		res, err := h.services.Shop.Buy(ctx, s.GuildID, s.MemberID, item.ID, quantity, "bought via bot")
		if err != nil {
			return replyErr(c, "buy", err)
		}
		return c.Reply(fmt.Sprintf(
			"✅ 购买成功！\n\n🛍️ %s x%d\n💸 花费: %s 金币\n💰 当前余额: %s 金币",
			res.Item.Name, res.Quantity, shop.FormatAmount(res.TotalPrice), shop.FormatAmount(res.Balance),
		))
	})
}

// HandleBag shows the member's inventory.
func (h *ShopHandler) HandleBag(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		items, err := h.services.Inventory.List(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "bag", err)
		}
		return c.Reply(shop.FormatInventoryMessage(items))
	})
}

// HandleUse uses one unit of an inventory stack.
// Format: /use <id>
func (h *ShopHandler) HandleUse(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /use <编号>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ 编号格式错误")
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		res, err := h.services.Inventory.Use(ctx, s.GuildID, s.MemberID, id)
		if err != nil {
			return replyErr(c, "use", err)
		}
		msg := fmt.Sprintf("✨ %s 使用了 %s\n剩余: %d", DisplayName(c.Sender()), res.Item.Name, res.Remaining)
		if res.Message != "" {
			msg += "\n\n" + res.Message
		}
		return c.Reply(msg)
	})
}

// HandleSell sells items back to the shop.
// Format: /sell <id> [quantity]
func (h *ShopHandler) HandleSell(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ 用法: /sell <编号> [数量]")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return c.Reply("❌ 编号格式错误")
	}
	countArg := ""
	if len(args) > 1 {
		countArg = args[1]
	}
	quantity, err := ParseCount(countArg)
	if err != nil {
		return c.Reply(err.Error())
	}

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		res, err := h.services.Inventory.Sell(ctx, s.GuildID, s.MemberID, id, quantity, "sold via bot")
		if err != nil {
			return replyErr(c, "sell", err)
		}
		return c.Reply(fmt.Sprintf(
			"✅ 出售成功！\n\n📦 %s x%d\n➕ 获得: %s 金币\n💰 当前余额: %s 金币",
			res.Item.Name, res.Quantity, shop.FormatAmount(res.Earned), shop.FormatAmount(res.Balance),
		))
	})
}

// HandleHistory shows the member's latest purchases.
func (h *ShopHandler) HandleHistory(c tele.Context) error {
	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		entries, err := h.services.History.List(ctx, s.GuildID, s.MemberID)
		if err != nil {
			return replyErr(c, "history", err)
		}
		return c.Reply(shop.FormatHistoryMessage(entries, historyLimit, h.loc))
	})
}
