// Package handler provides Telegram bot command handlers. Every chat is a
// guild of the economy and every sender is a member of it.
package handler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/dberr"
	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/service"
)

// commandTimeout bounds the storage work of a single command.
const commandTimeout = 15 * time.Second

// base holds what every handler shares.
type base struct {
	services *service.Services
	locks    *lock.KeyLock
}

func newBase(services *service.Services, locks *lock.KeyLock) base {
	if locks == nil {
		locks = lock.New()
	}
	return base{services: services, locks: locks}
}

// Scope is the guild and member a command acts on.
type Scope struct {
	GuildID  string
	MemberID string
}

// ScopeOf derives the scope from the chat and sender of c.
func ScopeOf(c tele.Context) (Scope, bool) {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return Scope{}, false
	}
	return Scope{GuildID: IDString(chat.ID), MemberID: IDString(sender.ID)}, true
}

// IDString formats a Telegram ID as an economy key.
func IDString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// withGuild runs fn with the chat's guild held, so that commands of one chat
// never interleave their read-modify-write cycles.
func (b base) withGuild(c tele.Context, fn func(ctx context.Context, s Scope) error) error {
	s, ok := ScopeOf(c)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := b.locks.LockContext(ctx, s.GuildID); err != nil {
		return c.Reply("❌ 操作繁忙，请稍后重试")
	}
	defer b.locks.Unlock(s.GuildID)
	return fn(ctx, s)
}

// ParseAmount parses a positive, finite amount of money.
func ParseAmount(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("❌ 金额格式错误，请输入正数")
	}
	if v <= 0 {
		return 0, fmt.Errorf("❌ 金额必须大于 0")
	}
	return v, nil
}

// ParseCount parses a positive item count; an empty argument counts as one.
func ParseCount(arg string) (int, error) {
	if arg == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("❌ 数量必须是正整数")
	}
	return n, nil
}

// ErrorText maps a service error to a user facing reply.
func ErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ 余额不足"
	case errors.Is(err, service.ErrInvalidAmount):
		return "❌ 金额必须大于 0"
	case errors.Is(err, service.ErrSelfTransfer):
		return "❌ 不能给自己转账"
	case errors.Is(err, service.ErrInvalidQuantity):
		return "❌ 数量必须是正整数"
	case errors.Is(err, service.ErrItemNotFound):
		return "❌ 商品不存在"
	case errors.Is(err, service.ErrMaxAmountReached):
		return "❌ 已达到该商品的持有上限"
	case errors.Is(err, service.ErrNotEnoughItems):
		return "❌ 物品数量不足"
	case errors.Is(err, service.ErrUnknownSetting):
		return "❌ 未知设置项"
	case errors.Is(err, dberr.ErrStorageUnavailable):
		return "❌ 存储暂不可用，请稍后重试"
	case errors.Is(err, dberr.ErrValidation):
		return "❌ 参数无效"
	}
	return "❌ 操作失败，请稍后重试"
}

// replyErr logs unexpected failures and replies with ErrorText.
func replyErr(c tele.Context, op string, err error) error {
	if !isUserError(err) {
		log.Error().Err(err).Str("op", op).Msg("Command failed")
	}
	return c.Reply(ErrorText(err))
}

func isUserError(err error) bool {
	for _, target := range []error{
		service.ErrInsufficientBalance, service.ErrInvalidAmount, service.ErrSelfTransfer,
		service.ErrInvalidQuantity, service.ErrItemNotFound, service.ErrMaxAmountReached,
		service.ErrNotEnoughItems, service.ErrUnknownSetting, dberr.ErrValidation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DisplayName returns @username, falling back to the first name and then the
// numeric ID.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return IDString(u.ID)
}

// replyTarget returns the sender of the message c replies to.
func replyTarget(c tele.Context) *tele.User {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil {
		return nil
	}
	return msg.ReplyTo.Sender
}

// mentionTarget returns the user of the first text mention in the message.
// Plain @username mentions carry no user and cannot be resolved.
func mentionTarget(c tele.Context) *tele.User {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	for _, e := range msg.Entities {
		if e.Type == tele.EntityTMention && e.User != nil {
			return e.User
		}
	}
	return nil
}
