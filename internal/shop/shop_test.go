package shop

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"guild-economy/internal/model"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data   string
		action string
		id     int
		ok     bool
	}{
		{"\fshop_item:3", ActionItem, 3, true},
		{"shop_buy:12", ActionBuy, 12, true},
		{"\fshop_buy:12|x", ActionBuy, 12, true},
		{"\fshop_cancel", ActionCancel, 0, true},
		{"shop_refresh", ActionRefresh, 0, true},
		{"shop_buy:abc", "", 0, false},
		{"shop_item:0", "", 0, false},
		{"duel_accept", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			action, id, ok := ParseCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestParseCallbackRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		id := rapid.IntRange(1, 1<<30).Draw(t, "id")
		buy := rapid.Bool().Draw(t, "buy")

		markup := BuildConfirmPanel(id)
		unique := markup.InlineKeyboard[0][0].Unique
		if !buy {
			unique = BuildShopPanel([]model.ShopItem{{ID: id, Name: "x"}}).InlineKeyboard[0][0].Unique
		}

		action, got, ok := ParseCallback("\f" + unique)
		if !ok || got != id {
			t.Fatalf("parse %q: action=%s id=%d ok=%v", unique, action, got, ok)
		}
	})
}

func TestBuildShopPanelLayout(t *testing.T) {
	items := []model.ShopItem{
		{ID: 1, Name: "Sword", Price: 100},
		{ID: 2, Name: "Shield", Price: 50.5},
		{ID: 4, Name: "Potion", Price: 5},
	}
	markup := BuildShopPanel(items)

	require.Len(t, markup.InlineKeyboard, 3)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "shop_item:4", markup.InlineKeyboard[1][0].Unique)
	assert.Equal(t, "Shield (50.5💰)", markup.InlineKeyboard[0][1].Text)
	assert.Equal(t, CallbackShopRefresh, markup.InlineKeyboard[2][0].Unique)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100", FormatAmount(100))
	assert.Equal(t, "12.5", FormatAmount(12.5))
	assert.Equal(t, "-3", FormatAmount(-3))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "已就绪", FormatDuration(0))
	assert.Equal(t, "45秒", FormatDuration(45*time.Second))
	assert.Equal(t, "1小时30分钟", FormatDuration(90*time.Minute))
	assert.Equal(t, "6天23小时", FormatDuration(7*24*time.Hour-time.Hour))
	assert.Equal(t, "2分钟5秒", FormatDuration(125*time.Second+300*time.Millisecond))
}

func TestFormatInventoryMessage(t *testing.T) {
	assert.Contains(t, FormatInventoryMessage(nil), "背包为空")

	msg := FormatInventoryMessage([]model.InventoryItem{{ID: 2, Name: "Sword", Quantity: 3}})
	assert.Contains(t, msg, "#2 Sword x3")
}

func TestFormatHistoryNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []model.HistoryItem{
		{ID: 1, Name: "Old", Quantity: 1, TotalPrice: 10, Date: base.UnixMilli()},
		{ID: 2, Name: "Mid", Quantity: 1, TotalPrice: 20, Date: base.Add(time.Hour).UnixMilli()},
		{ID: 3, Name: "New", Quantity: 2, TotalPrice: 40, Date: base.Add(2 * time.Hour).UnixMilli()},
	}

	msg := FormatHistoryMessage(entries, 2, time.UTC)
	assert.Contains(t, msg, "01-01 14:00 New x2  -40")
	assert.Contains(t, msg, "Mid")
	assert.NotContains(t, msg, "Old")
	assert.Less(t, strings.Index(msg, "New"), strings.Index(msg, "Mid"))

	assert.Contains(t, FormatHistoryMessage(nil, 10, nil), "暂无购买记录")
}

func TestFormatItemDetailBalance(t *testing.T) {
	item := model.ShopItem{ID: 1, Name: "Sword", Price: 100, MaxAmount: 2}
	assert.Contains(t, FormatItemDetail(item, 50), "余额不足")
	msg := FormatItemDetail(item, 150)
	assert.Contains(t, msg, "确认购买")
	assert.Contains(t, msg, "持有上限: 2")
}
