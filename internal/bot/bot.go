// Package bot wires the Telegram front-end to an economy instance.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"guild-economy/internal/config"
	"guild-economy/internal/economy"
	"guild-economy/internal/handler"
	"guild-economy/internal/model"
	"guild-economy/internal/pkg/lock"
	"guild-economy/internal/shop"
)

// Bot wraps the telebot instance with its handlers.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	accountHandler  *handler.AccountHandler
	transferHandler *handler.TransferHandler
	rewardsHandler  *handler.RewardsHandler
	rankingHandler  *handler.RankingHandler
	shopHandler     *handler.ShopHandler
	adminHandler    *handler.AdminHandler
}

// New creates a bot serving eco. The economy must be started by the caller.
func New(cfg *config.Config, eco *economy.Economy) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	teleBot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	locks := lock.New()
	b := &Bot{
		bot:             teleBot,
		cfg:             cfg,
		accountHandler:  handler.NewAccountHandler(eco.Services, locks),
		transferHandler: handler.NewTransferHandler(eco.Services, locks),
		rewardsHandler:  handler.NewRewardsHandler(eco.Services, locks),
		rankingHandler:  handler.NewRankingHandler(eco.Services, locks),
		shopHandler:     handler.NewShopHandler(eco.Services, locks, time.Local),
		adminHandler:    handler.NewAdminHandler(eco.Services, locks),
	}

	b.registerMiddleware()
	b.registerHandlers()
	return b, nil
}

func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg))
	b.bot.Use(LoggingMiddleware())
}

func (b *Bot) registerHandlers() {
	// Account
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/bank", b.accountHandler.HandleBank)
	b.bot.Handle("/deposit", b.accountHandler.HandleDeposit)
	b.bot.Handle("/withdraw", b.accountHandler.HandleWithdraw)
	b.bot.Handle("/pay", b.transferHandler.HandlePay)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)

	// Rewards
	for _, kind := range model.RewardKinds() {
		b.bot.Handle("/"+string(kind), b.rewardsHandler.HandleReward(kind))
	}
	b.bot.Handle("/cooldowns", b.rewardsHandler.HandleCooldowns)

	// Shop
	b.bot.Handle("/shop", b.shopHandler.HandleShop)
	b.bot.Handle("/buy", b.shopHandler.HandleBuy)
	b.bot.Handle("/bag", b.shopHandler.HandleBag)
	b.bot.Handle("/use", b.shopHandler.HandleUse)
	b.bot.Handle("/sell", b.shopHandler.HandleSell)
	b.bot.Handle("/history", b.shopHandler.HandleHistory)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_sub", b.adminHandler.HandleAdminSub)
	adminGroup.Handle("/admin_set", b.adminHandler.HandleAdminSet)
	adminGroup.Handle("/admin_settings", b.adminHandler.HandleSettings)
	adminGroup.Handle("/shop_add", b.adminHandler.HandleShopAdd)
	adminGroup.Handle("/shop_remove", b.adminHandler.HandleShopRemove)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes inline button presses.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	if _, _, ok := shop.ParseCallback(callback.Data); ok {
		return b.shopHandler.HandleShopCallback(c)
	}

	log.Debug().Str("data", callback.Data).Msg("Ignoring unknown callback")
	return c.Respond()
}

// Start polls for updates until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops polling.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
