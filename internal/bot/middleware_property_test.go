package bot

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/config"
)

type fakeContext struct {
	tele.Context
	chat    *tele.Chat
	sender  *tele.User
	replies []string
}

func (f *fakeContext) Chat() *tele.Chat   { return f.chat }
func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Text() string       { return "/cmd" }

func (f *fakeContext) Reply(what any, _ ...any) error {
	f.replies = append(f.replies, fmt.Sprint(what))
	return nil
}

// counter is a handler that counts its calls.
type counter struct{ calls int }

func (c *counter) handle(tele.Context) error {
	c.calls++
	return nil
}

func groupCtx(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID, Type: tele.ChatSuperGroup},
		sender: &tele.User{ID: userID},
	}
}

func privateCtx(userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		sender: &tele.User{ID: userID},
	}
}

// TestWhitelistProperty checks that a group command reaches its handler
// exactly when the chat is whitelisted, and that private chats open up for
// users seen in a whitelisted group.
func TestWhitelistProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		chats := rapid.SliceOfN(rapid.Int64Range(-1_000_000, -1), 1, 10).Draw(t, "chats")
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Chats: chats}}
		chatID := rapid.Int64Range(-1_000_000, -1).Draw(t, "chatID")
		userID := rapid.Int64Range(1, 1_000_000).Draw(t, "userID")

		private := newPrivateUsers()
		next := &counter{}
		mw := whitelist(cfg, private)(next.handle)

		if err := mw(privateCtx(userID)); err != nil {
			t.Fatal(err)
		}
		if next.calls != 0 {
			t.Fatalf("private chat of unknown user %d passed", userID)
		}

		if err := mw(groupCtx(chatID, userID)); err != nil {
			t.Fatal(err)
		}
		allowed := cfg.IsChatAllowed(chatID)
		if allowed != (next.calls == 1) {
			t.Fatalf("chat %d allowed=%v but handler calls=%d", chatID, allowed, next.calls)
		}

		before := next.calls
		if err := mw(privateCtx(userID)); err != nil {
			t.Fatal(err)
		}
		if allowed != (next.calls == before+1) {
			t.Fatalf("private chat of user %d after group allowed=%v calls=%d", userID, allowed, next.calls)
		}
	})
}

// TestAdminPermissionProperty checks that only configured admins reach admin
// handlers, and that everyone else gets a reply.
func TestAdminPermissionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		admins := rapid.SliceOfN(rapid.Int64Range(1, 1000), 1, 10).Draw(t, "admins")
		cfg := &config.Config{Admin: config.AdminConfig{IDs: admins}}
		userID := rapid.Int64Range(1, 1000).Draw(t, "userID")

		next := &counter{}
		c := groupCtx(-1, userID)
		if err := AdminMiddleware(cfg)(next.handle)(c); err != nil {
			t.Fatal(err)
		}

		isAdmin := false
		for _, id := range admins {
			isAdmin = isAdmin || id == userID
		}
		if isAdmin != (next.calls == 1) || isAdmin == (len(c.replies) == 1) {
			t.Fatalf("user %d admins=%v calls=%d replies=%d", userID, admins, next.calls, len(c.replies))
		}
	})
}

func TestEmptyWhitelistAllowsEverything(t *testing.T) {
	cfg := &config.Config{}
	next := &counter{}
	mw := WhitelistMiddleware(cfg)(next.handle)

	require.NoError(t, mw(groupCtx(-5, 1)))
	require.NoError(t, mw(privateCtx(2)))
	assert.Equal(t, 2, next.calls)
}

func TestMiddlewareIgnoresMissingSender(t *testing.T) {
	next := &counter{}
	c := &fakeContext{chat: &tele.Chat{ID: -1}}

	require.NoError(t, WhitelistMiddleware(&config.Config{})(next.handle)(c))
	require.NoError(t, AdminMiddleware(&config.Config{})(next.handle)(c))
	assert.Zero(t, next.calls)
}

func TestRecoveryMiddleware(t *testing.T) {
	c := groupCtx(-1, 1)
	err := RecoveryMiddleware()(func(tele.Context) error { panic("boom") })(c)
	require.NoError(t, err)
	require.Len(t, c.replies, 1)
	assert.Contains(t, c.replies[0], "内部错误")

	failure := errors.New("failed")
	err = RecoveryMiddleware()(func(tele.Context) error { return failure })(c)
	assert.ErrorIs(t, err, failure)
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	failure := errors.New("failed")
	err := LoggingMiddleware()(func(tele.Context) error { return failure })(groupCtx(-1, 1))
	assert.ErrorIs(t, err, failure)
}
