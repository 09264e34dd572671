package shop

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"guild-economy/internal/model"
)

const divider = "━━━━━━━━━━━━━━━\n"

// FormatAmount prints a balance without trailing zeros.
func FormatAmount(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatDuration prints a remaining cooldown, most significant units first.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "已就绪"
	}
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%d天", days)
	}
	if hours > 0 {
		fmt.Fprintf(&b, "%d小时", hours)
	}
	if minutes > 0 {
		fmt.Fprintf(&b, "%d分钟", minutes)
	}
	if seconds > 0 && days == 0 {
		fmt.Fprintf(&b, "%d秒", seconds)
	}
	return b.String()
}

// FormatShopMessage creates the shop overview.
func FormatShopMessage(balance float64, items []model.ShopItem) string {
	msg := "🏪 群商店\n"
	msg += divider
	msg += fmt.Sprintf("💰 你的余额: %s 金币\n", FormatAmount(balance))
	msg += divider
	if len(items) == 0 {
		return msg + "商店暂无商品"
	}
	for _, item := range items {
		msg += fmt.Sprintf("#%d %s - %s 金币\n", item.ID, item.Name, FormatAmount(item.Price))
	}
	msg += divider
	msg += "点击下方按钮查看商品详情，或发送 /buy <编号> [数量]"
	return msg
}

// FormatItemDetail creates the item detail message.
func FormatItemDetail(item model.ShopItem, balance float64) string {
	msg := fmt.Sprintf("🛍️ #%d %s\n", item.ID, item.Name)
	msg += divider
	msg += fmt.Sprintf("💰 价格: %s 金币\n", FormatAmount(item.Price))
	if item.Description != "" {
		msg += fmt.Sprintf("📝 描述: %s\n", item.Description)
	}
	if item.MaxAmount > 0 {
		msg += fmt.Sprintf("📦 持有上限: %d\n", item.MaxAmount)
	}
	if item.Role != "" {
		msg += fmt.Sprintf("🏷️ 身份: %s\n", item.Role)
	}
	msg += divider
	msg += fmt.Sprintf("💰 你的余额: %s 金币\n", FormatAmount(balance))

	if balance < item.Price {
		msg += "❌ 余额不足！"
	} else {
		msg += "确认购买吗？"
	}
	return msg
}

// FormatInventoryMessage lists a member's inventory.
func FormatInventoryMessage(items []model.InventoryItem) string {
	if len(items) == 0 {
		return "🎒 背包为空\n\n发送 /shop 查看商店"
	}

	msg := "🎒 我的背包\n"
	msg += divider
	for _, item := range items {
		msg += fmt.Sprintf("#%d %s x%d\n", item.ID, item.Name, item.Quantity)
	}
	msg += divider
	msg += "使用: /use <编号>  出售: /sell <编号> [数量]"
	return msg
}

// FormatHistoryMessage lists the most recent purchases first, up to limit.
func FormatHistoryMessage(entries []model.HistoryItem, limit int, loc *time.Location) string {
	if len(entries) == 0 {
		return "🧾 暂无购买记录"
	}
	if loc == nil {
		loc = time.UTC
	}

	msg := "🧾 购买记录\n"
	msg += divider
	shown := 0
	for i := len(entries) - 1; i >= 0 && (limit <= 0 || shown < limit); i-- {
		e := entries[i]
		msg += fmt.Sprintf("%s %s x%d  -%s\n",
			time.UnixMilli(e.Date).In(loc).Format("01-02 15:04"),
			e.Name, e.Quantity, FormatAmount(e.TotalPrice))
		shown++
	}
	msg += divider
	return msg
}
