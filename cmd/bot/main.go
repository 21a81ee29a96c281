// Package main is the entry point for the Twitch economy bot.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"twitch-economy-bot/internal/bot"
	"twitch-economy-bot/internal/command"
	"twitch-economy-bot/internal/config"
	"twitch-economy-bot/internal/game"
	"twitch-economy-bot/internal/game/roll"
	"twitch-economy-bot/internal/game/rpg"
	"twitch-economy-bot/internal/game/slots"
	"twitch-economy-bot/internal/handler"
	"twitch-economy-bot/internal/model"
	"twitch-economy-bot/internal/pkg/db"
	"twitch-economy-bot/internal/pkg/lock"
	"twitch-economy-bot/internal/repository"
	"twitch-economy-bot/internal/service"
	"twitch-economy-bot/internal/sfx"
	"twitch-economy-bot/internal/telemetry"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// .env is optional, the environment may already be populated
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env not loaded")
	}

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Str("channel", cfg.Channel.Name).Msg("Configuration loaded successfully")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	cmdRepo := repository.NewCommandRepository(dbPool.Pool)
	gamblingRepo := repository.NewGamblingRepository(dbPool.Pool)
	rpgRepo := repository.NewRpgRepository(dbPool.Pool)
	sfxRepo := repository.NewSfxRepository(dbPool.Pool)

	// Initialize user lock and services
	userLock := lock.NewUserLock()
	accountService := service.NewAccountService(userRepo, userLock, cfg.Channel.StartingCoins)

	// Seed the default adventure so !rpg works out of the box
	if err := seedDefaultAdventure(ctx, rpgRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed default adventure")
	}

	// Initialize games
	rng := game.NewRand()
	slotsGame := slots.New(rng)
	rollGame := roll.New(rng)
	rpgEngine := rpg.New(rng)

	// Initialize sfx playback
	sfxStore, err := sfx.NewStore(sfxRepo, cfg.Sfx.AssetDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open sfx asset store")
	}
	if pruned, err := sfxStore.Prune(ctx); err != nil {
		log.Warn().Err(err).Msg("Orphan sfx assets not pruned")
	} else if pruned > 0 {
		log.Info().Int("count", pruned).Msg("Orphan sfx assets pruned")
	}
	sfxPool := sfx.NewPool(&sfx.NopPlayer{}, cfg.Sfx.Channels, cfg.Sfx.DefaultVolume)

	// Metrics listener
	if cfg.Metrics.Enabled {
		telemetry.Init()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics listener started")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Error().Err(err).Msg("Metrics listener stopped")
			}
		}()
	}

	// Build the dispatch table
	registry := command.NewRegistry(cmdRepo, cfg.Channel.Prefix)

	chatBot := bot.New(cfg, accountService, registry)

	gameHandler := handler.NewGameHandler(
		cfg.Games, cfg.Channel.CoinName,
		accountService, chatBot, chatBot,
		gamblingRepo, rpgRepo,
		slotsGame, rollGame, rpgEngine,
	)
	chatHandler := handler.NewChatHandler(cfg.Channel.CoinName, accountService, chatBot, chatBot)
	sfxHandler := handler.NewSfxHandler(accountService, chatBot, chatBot, sfxRepo, sfxPool)

	if err := gameHandler.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register game commands")
	}
	if err := chatHandler.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register chat commands")
	}
	sfxHandler.Register(registry)

	if err := registry.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load command table")
	}
	if err := syncSfxCommands(ctx, registry, sfxRepo); err != nil {
		log.Fatal().Err(err).Msg("Failed to sync sfx commands")
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Info().Msg("Bot is starting...")
		errChan <- chatBot.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			log.Fatal().Err(err).Msg("Bot stopped with error")
		}
	}
	log.Info().Msg("Bot stopped gracefully")
}

// syncSfxCommands publishes a dynamic sfx-category command for every sound
// event that does not have one yet. Events whose names fail the command
// name rules are skipped, not fatal.
func syncSfxCommands(ctx context.Context, registry *command.Registry, sfxRepo *repository.SfxRepository) error {
	events, err := sfxRepo.GetAllEvents(ctx)
	if err != nil {
		return err
	}
	for _, event := range events {
		if _, exists := registry.Get(event.Name); exists {
			continue
		}
		cmd := &model.Command{
			Name:        event.Name,
			Description: "Plays the " + event.Name + " sound effect.",
			Usage:       "!" + event.Name,
			Category:    model.CategorySfx,
			Payload:     event.Name,
			Dynamic:     true,
			Enabled:     true,
		}
		if err := registry.Add(ctx, cmd); err != nil {
			log.Warn().Err(err).Str("event", event.Name).Msg("Sfx command not published")
		}
	}
	return nil
}

// seedDefaultAdventure creates the default rpg profile with its stock event
// list on first boot.
func seedDefaultAdventure(ctx context.Context, rpgRepo *repository.RpgRepository) error {
	if _, err := rpgRepo.GetProfileByName(ctx, "default"); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrProfileNotFound) {
		return err
	}

	created, err := rpgRepo.CreateProfile(ctx, rpg.DefaultProfile("default"))
	if err != nil {
		return err
	}
	for _, event := range rpg.DefaultEvents(created.ID) {
		if _, err := rpgRepo.AddEvent(ctx, event); err != nil {
			return err
		}
	}
	log.Info().Int64("rpg_id", created.ID).Msg("Default adventure seeded")
	return nil
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(255) PRIMARY KEY,
			balance BIGINT NOT NULL DEFAULT 0,
			message_count BIGINT NOT NULL DEFAULT 0,
			is_bot BOOLEAN NOT NULL DEFAULT FALSE,
			is_follower BOOLEAN NOT NULL DEFAULT FALSE,
			is_subscriber BOOLEAN NOT NULL DEFAULT FALSE,
			is_mod BOOLEAN NOT NULL DEFAULT FALSE,
			gamble_locked_until BIGINT NOT NULL DEFAULT 0,
			roll_locked_until BIGINT NOT NULL DEFAULT 0,
			rpg_locked_until BIGINT NOT NULL DEFAULT 0,
			sfx_locked_until BIGINT NOT NULL DEFAULT 0,
			slots_locked_until BIGINT NOT NULL DEFAULT 0,
			ban_until BIGINT NOT NULL DEFAULT 0,
			warning_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_users_balance ON users(balance DESC);
		CREATE INDEX IF NOT EXISTS idx_users_message_count ON users(message_count DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: command table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS cmd (
			name VARCHAR(255) PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			usage TEXT NOT NULL DEFAULT '',
			used BIGINT NOT NULL DEFAULT 0,
			cost BIGINT NOT NULL DEFAULT 0,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			aliases TEXT[] NOT NULL DEFAULT '{}',
			category VARCHAR(50) NOT NULL DEFAULT 'text',
			dynamic BOOLEAN NOT NULL DEFAULT TRUE,
			payload TEXT NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: cmd table created")

	// Migration 3: gambling config rows
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slots (
			id INT PRIMARY KEY CHECK (id = 1),
			cost BIGINT NOT NULL DEFAULT 10000,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			rng_bias INT NOT NULL DEFAULT 0,
			success_rate INT NOT NULL DEFAULT 33,
			reward_mushroom DOUBLE PRECISION NOT NULL DEFAULT 1.5,
			reward_coin DOUBLE PRECISION NOT NULL DEFAULT 2.5,
			reward_leaf DOUBLE PRECISION NOT NULL DEFAULT 5,
			reward_diamond DOUBLE PRECISION NOT NULL DEFAULT 10,
			jackpot BIGINT NOT NULL DEFAULT 7777777
		);
		INSERT INTO slots (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
		CREATE TABLE IF NOT EXISTS roll (
			id INT PRIMARY KEY CHECK (id = 1),
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			min_bet BIGINT NOT NULL DEFAULT 100,
			max_bet BIGINT NOT NULL DEFAULT 777777,
			crit_success_mult DOUBLE PRECISION NOT NULL DEFAULT 7.777,
			crit_failure_mult DOUBLE PRECISION NOT NULL DEFAULT 6.66
		);
		INSERT INTO roll (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: gambling tables created")

	// Migration 4: rpg tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS rpg (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			cost BIGINT NOT NULL DEFAULT 1000,
			win_rate INT NOT NULL DEFAULT 50,
			win_bonus BIGINT NOT NULL DEFAULT 100,
			boss_bonus DOUBLE PRECISION NOT NULL DEFAULT 7.777,
			boss_malus DOUBLE PRECISION NOT NULL DEFAULT 6.66,
			timer_seconds INT NOT NULL DEFAULT 60,
			ratio_normal INT NOT NULL DEFAULT 20,
			ratio_treasure INT NOT NULL DEFAULT 5,
			ratio_monster INT NOT NULL DEFAULT 60,
			ratio_trap INT NOT NULL DEFAULT 5,
			ratio_boss INT NOT NULL DEFAULT 10
		);
		CREATE TABLE IF NOT EXISTS rpg_event (
			id BIGSERIAL PRIMARY KEY,
			rpg_id BIGINT NOT NULL REFERENCES rpg(id) ON DELETE CASCADE,
			message TEXT NOT NULL,
			type VARCHAR(50) NOT NULL,
			outcome VARCHAR(50) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_rpg_event_draw ON rpg_event(rpg_id, type);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: rpg tables created")

	// Migration 5: sfx tables
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sfx (
			content_hash CHAR(64) PRIMARY KEY,
			file_path TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sfx_groups (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			category VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			enabled BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE TABLE IF NOT EXISTS sfx_event (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL REFERENCES sfx_groups(id) ON DELETE CASCADE,
			asset_hash CHAR(64) NOT NULL REFERENCES sfx(content_hash),
			name VARCHAR(255) NOT NULL UNIQUE,
			volume INT NOT NULL DEFAULT 100,
			cost BIGINT NOT NULL DEFAULT 0,
			cooldown_seconds INT NOT NULL DEFAULT 0,
			output_device VARCHAR(255) NOT NULL DEFAULT ''
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: sfx tables created")

	return nil
}
