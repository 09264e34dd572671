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

const topLimit = 10

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	base
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(services *service.Services, locks *lock.KeyLock) *RankingHandler {
	return &RankingHandler{base: newBase(services, locks)}
}

// HandleTop shows the richest members of the chat.
// Format: /top [bank]
func (h *RankingHandler) HandleTop(c tele.Context) error {
	bank := len(c.Args()) > 0 && strings.EqualFold(c.Args()[0], "bank")

	return h.withGuild(c, func(ctx context.Context, s Scope) error {
		board := h.services.Balance.Leaderboard
		title := "🏆 富豪榜 TOP 10"
		if bank {
			board = h.services.Bank.Leaderboard
			title = "🏦 存款榜 TOP 10"
		}

		entries, err := board(ctx, s.GuildID, topLimit)
		if err != nil {
			return replyErr(c, "top", err)
		}
		return c.Reply(FormatLeaderboard(title, entries))
	})
}

// FormatLeaderboard renders leaderboard entries with medals for the podium.
func FormatLeaderboard(title string, entries []service.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "📊 暂无排行数据"
	}

	msg := title + "\n━━━━━━━━━━━━━━━\n"
	medals := []string{"🥇", "🥈", "🥉"}
	for _, e := range entries {
		rank := fmt.Sprintf("%d.", e.Rank)
		if e.Rank >= 1 && e.Rank <= len(medals) {
			rank = medals[e.Rank-1]
		}
		msg += fmt.Sprintf("%s User%s: %s\n", rank, e.MemberID, shop.FormatAmount(e.Amount))
	}
	msg += "━━━━━━━━━━━━━━━"
	return msg
}
