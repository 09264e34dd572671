// Package shop renders guild shops, inventories and purchase history as
// Telegram messages and inline keyboards.
package shop

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/model"
)

// Callback data prefixes
const (
	CallbackShopItem    = "shop_item:" // shop_item:3
	CallbackShopBuy     = "shop_buy:"  // shop_buy:3
	CallbackShopCancel  = "shop_cancel"
	CallbackShopRefresh = "shop_refresh"
)

// Callback actions returned by ParseCallback.
const (
	ActionItem    = "item"
	ActionBuy     = "buy"
	ActionCancel  = "cancel"
	ActionRefresh = "refresh"
)

// ParseCallback splits shop callback data into an action and item ID.
// Telebot prefixes button data with \f; it is ignored.
func ParseCallback(data string) (action string, itemID int, ok bool) {
	data = strings.TrimPrefix(data, "\f")
	// Data buttons carry "unique|payload"; the payload is unused.
	if i := strings.IndexByte(data, '|'); i >= 0 {
		data = data[:i]
	}

	switch {
	case data == CallbackShopCancel:
		return ActionCancel, 0, true
	case data == CallbackShopRefresh:
		return ActionRefresh, 0, true
	case strings.HasPrefix(data, CallbackShopItem):
		action, data = ActionItem, strings.TrimPrefix(data, CallbackShopItem)
	case strings.HasPrefix(data, CallbackShopBuy):
		action, data = ActionBuy, strings.TrimPrefix(data, CallbackShopBuy)
	default:
		return "", 0, false
	}

	id, err := strconv.Atoi(data)
	if err != nil || id <= 0 {
		return "", 0, false
	}
	return action, id, true
}

// BuildShopPanel creates one button per shop item, two per row, plus a
// refresh button.
func BuildShopPanel(items []model.ShopItem) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}

	var rows []tele.Row
	var current []tele.Btn
	for i, item := range items {
		btn := markup.Data(
			fmt.Sprintf("%s (%s💰)", item.Name, FormatAmount(item.Price)),
			CallbackShopItem+strconv.Itoa(item.ID),
		)
		current = append(current, btn)

		if len(current) == 2 || i == len(items)-1 {
			rows = append(rows, markup.Row(current...))
			current = nil
		}
	}

	rows = append(rows, markup.Row(markup.Data("🔄 刷新", CallbackShopRefresh)))
	markup.Inline(rows...)
	return markup
}

// BuildConfirmPanel creates the purchase confirmation panel.
func BuildConfirmPanel(itemID int) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data("✅ 购买", CallbackShopBuy+strconv.Itoa(itemID)),
		markup.Data("❌ 取消", CallbackShopCancel),
	))
	return markup
}
