// Package main is the entry point for the Telegram wager bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-wager-bot/internal/bot"
	"telegram-wager-bot/internal/config"
	"telegram-wager-bot/internal/event"
	"telegram-wager-bot/internal/game"
	"telegram-wager-bot/internal/game/coinflip"
	"telegram-wager-bot/internal/game/connect4"
	"telegram-wager-bot/internal/game/dice"
	"telegram-wager-bot/internal/game/mines"
	"telegram-wager-bot/internal/pkg/db"
	"telegram-wager-bot/internal/pkg/lock"
	"telegram-wager-bot/internal/pkg/reserve"
	"telegram-wager-bot/internal/repository"
	"telegram-wager-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	reserver, closeReserver := openReserver(ctx, cfg)
	defer closeReserver()

	publisher := openPublisher(cfg)
	defer publisher.Close()

	games, houseRoller := buildGames(cfg)

	places := cfg.Wager.MoneyPlaces
	ledger := service.NewLedger(store, lock.NewUserLock(), reserver, service.LedgerConfig{
		MoneyPlaces:       places,
		WithdrawalFeeRate: cfg.Wager.WithdrawalFee(),
	})
	settler := service.NewSettler(service.SettlerConfig{
		FeeRate:        cfg.Wager.Fee(),
		ReferralShare:  cfg.Wager.ReferralShare(),
		MoneyPlaces:    places,
		HouseAccountID: cfg.Wager.HouseAccountID,
	}, publisher)

	sessionLocks := lock.NewSessionLock()
	registry := service.NewBetRegistry(ledger, games, reserver, sessionLocks)
	machine := service.NewSessionMachine(ledger, games, reserver, sessionLocks, settler, service.SessionMachineConfig{
		HouseAccountID: cfg.Wager.HouseAccountID,
		HouseRoller:    houseRoller,
	})

	wagers, sessions, err := machine.RestoreReservations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to restore reservations")
	}
	log.Info().Int("wagers", wagers).Int("sessions", sessions).Msg("Reservations restored")

	sweeper := service.NewSweeper(registry, machine, service.SweeperConfig{
		PendingTTL: cfg.Wager.PendingTTL,
		SessionTTL: cfg.Wager.SessionTTL,
		Interval:   cfg.Wager.SweepInterval,
	})
	go sweeper.Run(ctx)

	telegramBot, err := bot.New(&bot.Dependencies{
		Config:   cfg,
		Ledger:   ledger,
		Registry: registry,
		Machine:  machine,
		Games:    games,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go telegramBot.Start()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	cancel()
	telegramBot.Stop()
	log.Info().Msg("Bot stopped gracefully")
}

// openStore connects the configured store. The postgres pool migrates the
// schema on connect.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func()) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory store, balances are lost on restart")
		return repository.NewMemoryStore(), func() {}
	}

	pool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	return repository.NewPostgresStore(pool.Pool), pool.Close
}

// openReserver picks redis when an address is configured.
func openReserver(ctx context.Context, cfg *config.Config) (reserve.Reserver, func()) {
	if cfg.Redis.Addr == "" {
		return reserve.NewMemoryReserver(), func() {}
	}

	client, err := reserve.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using redis reservations")
	return reserve.NewRedisReserver(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }
}

// openPublisher connects the match event publisher. A broker that cannot be
// reached disables publishing rather than the bot.
func openPublisher(cfg *config.Config) event.Publisher {
	if cfg.AMQP.URL == "" {
		return event.Nop{}
	}
	p, err := event.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.RoutingKey)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to amqp broker, match events disabled")
		return event.Nop{}
	}
	log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("Publishing match events")
	return p
}

// buildGames registers the catalogue.
func buildGames(cfg *config.Config) (*game.Registry, *dice.HouseRoller) {
	houseMin, houseMax := cfg.Wager.HouseBand()

	var ladder *mines.Ladder
	if table := cfg.Mines.LadderTable(); table != nil {
		l, err := mines.NewLadder(table)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid mines ladder")
		}
		ladder = l
	}

	games, err := game.NewRegistry()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create game registry")
	}
	register := func(g game.Game) {
		if err := games.Register(g); err != nil {
			log.Fatal().Err(err).Str("game", string(g.Kind())).Msg("Failed to register game")
		}
	}

	for _, g := range dice.All(&dice.Config{HouseMinStake: houseMin, HouseMaxStake: houseMax}) {
		register(g)
	}
	register(connect4.New())
	register(mines.New(&mines.Config{
		Rows:          cfg.Mines.Rows,
		Cols:          cfg.Mines.Cols,
		MinMines:      cfg.Mines.MinMines,
		MaxMines:      cfg.Mines.MaxMines,
		DefaultMines:  cfg.Mines.DefaultMines,
		HouseMinStake: houseMin,
		HouseMaxStake: houseMax,
		Ladder:        ladder,
	}))
	coinMin, coinMax := cfg.CoinFlip.Band()
	register(coinflip.New(&coinflip.Config{
		MinStake:    coinMin,
		MaxStake:    coinMax,
		Nonce:       cfg.CoinFlip.Nonce,
		AlwaysHouse: cfg.CoinFlip.AlwaysHouse,
	}))

	houseRoller, err := dice.NewHouseRoller(cfg.House.Values, cfg.House.Weights, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid house roll table")
	}

	log.Info().Int("game_count", games.Count()).Msg("Games registered")
	return games, houseRoller
}
