// Package bot wires the Telegram transport to the settlement engine.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"telegram-wager-bot/internal/config"
	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/handler"
	"telegram-wager-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	private *PrivateAccess

	accountHandler  *handler.AccountHandler
	transferHandler *handler.TransferHandler
	adminHandler    *handler.AdminHandler
	gameHandler     *handler.GameHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Ledger   *service.Ledger
	Registry *service.BetRegistry
	Machine  *service.SessionMachine
	Games    *game.Registry
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler returned error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:             teleBot,
		cfg:             deps.Config,
		private:         NewPrivateAccess(),
		accountHandler:  handler.NewAccountHandler(deps.Ledger, deps.Machine, deps.Games),
		transferHandler: handler.NewTransferHandler(deps.Ledger),
		adminHandler:    handler.NewAdminHandler(deps.Ledger),
		gameHandler:     handler.NewGameHandler(deps.Ledger, deps.Registry, deps.Machine, deps.Games),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.private))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/my", b.accountHandler.HandleMy)
	b.bot.Handle("/matches", b.accountHandler.HandleMatches)

	b.bot.Handle("/pay", b.transferHandler.HandlePay)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/admin_add", b.adminHandler.HandleAdminAdd)
	adminGroup.Handle("/admin_sub", b.adminHandler.HandleAdminSub)
	adminGroup.Handle("/admin_withdraw", b.adminHandler.HandleAdminWithdraw)
	adminGroup.Handle("/profits", b.adminHandler.HandleProfits)

	for _, cmd := range b.gameHandler.Commands() {
		b.bot.Handle(cmd, b.gameHandler.HandlePlace)
	}
	b.bot.Handle("/verify", b.gameHandler.HandleVerify)
	b.bot.Handle(tele.OnDice, b.gameHandler.HandleDice)
	b.bot.Handle(tele.OnCallback, b.gameHandler.HandleCallback)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
