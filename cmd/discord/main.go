package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/command/core"
	"github.com/keshon/jukebox/internal/command/music"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/internal/discord"
	"github.com/keshon/jukebox/internal/lavalink"
	"github.com/keshon/jukebox/internal/logging"
	"github.com/keshon/jukebox/internal/middleware"
	"github.com/keshon/jukebox/internal/music/coordinator"
	"github.com/keshon/jukebox/internal/music/events"
	"github.com/keshon/jukebox/internal/music/node"
	"github.com/keshon/jukebox/internal/music/player"
	"github.com/keshon/jukebox/internal/music/reaper"
	"github.com/keshon/jukebox/internal/status"
	"github.com/keshon/jukebox/internal/storage"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/keshon/jukebox/pkg/jobmgr"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

const (
	shutdownTimeout = 10 * time.Second
	cooldownIdle    = 10 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load config")
	}

	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to set up logging")
	}
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("Bot exited with error")
		closer.Close()
		os.Exit(1)
	}
	log.Info().Msg("Bot exited cleanly")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().Msg("Starting jukebox bot...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to save storage")
		}
	}()

	registry := player.NewRegistry()

	// The node dialer needs the bot user ID and the dispatcher, both of which
	// exist before the first dial.
	var (
		bot        *discord.Bot
		dispatcher *events.Dispatcher
	)
	sup := node.NewSupervisor(func(ctx context.Context) (node.Node, error) {
		c, err := lavalink.Dial(ctx, lavalink.Config{
			URL:      cfg.LavalinkURL,
			Password: cfg.LavalinkPassword,
			UserID:   bot.UserID(),
			Name:     cfg.LavalinkNodeID,
		}, dispatcher, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}, log, node.WithMaxRetries(cfg.NodeMaxRetries), node.WithHealthInterval(cfg.NodeHealthInterval))

	bot, err = discord.New(cfg, store, cmd.DefaultRegistry, sup, log)
	if err != nil {
		return err
	}

	coord := coordinator.New(registry, sup, bot, bot, log)
	dispatcher = events.New(registry, sup, bot, bot, coord, log,
		events.WithAdvanceDelay(cfg.AdvanceDelay),
		events.WithNowPlayingTTL(cfg.NowPlayingTTL),
		events.WithTrackRecorder(store),
	)
	idle := reaper.New(registry, bot, coord, cfg.ReaperInterval, log)

	limiter := command.NewLimiter(cfg.CommandCooldown)
	mws := []cmd.Middleware{
		middleware.WithGuildOnly(),
		middleware.WithCooldown(limiter, bot.IsCooldownExempt),
		middleware.WithUserPermissionCheck(),
		middleware.WithCommandLogger(log),
	}
	command.RegisterCommand(&music.MusicCommand{Music: coord, Settings: store, Notifier: bot, Log: log}, mws...)
	command.RegisterCommand(&music.ConnectCommand{Music: coord, Log: log}, mws...)
	command.RegisterCommand(&core.HelpCommand{Registry: cmd.DefaultRegistry}, mws...)
	command.RegisterCommand(&core.PingCommand{Node: sup}, mws...)

	if err := bot.Open(ctx); err != nil {
		return err
	}
	if !sup.Connect(ctx) {
		log.Warn().Msg("Audio node unavailable at startup; music commands will fail until it is reachable")
	}

	jobLog := log.With().Str("module", "jobs").Logger()
	jm := jobmgr.NewManager(ctx, func(msg string) { jobLog.Debug().Msg(msg) })
	_ = jm.StartAsync("node-health", sup.Run)
	_ = jm.StartAsync("idle-reaper", idle.Run)
	_ = jm.StartAsync("status-server", status.New(cfg.StatusAddr, sup, coord, log).Run)
	_ = jm.Every("cooldown-prune", cooldownIdle, func(context.Context) {
		if n := limiter.Prune(cooldownIdle); n > 0 {
			jobLog.Debug().Int("removed", n).Msg("Pruned idle cooldowns")
		}
	})

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	// Players leave voice before the gateway closes.
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Players did not shut down cleanly")
	}
	if err := sup.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close audio node")
	}
	jm.StopAll()
	return bot.Close()
}
