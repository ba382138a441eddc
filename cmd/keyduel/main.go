package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/keyduel/keyduel/internal/config"
	"github.com/keyduel/keyduel/internal/db"
	"github.com/keyduel/keyduel/internal/match"
	"github.com/keyduel/keyduel/internal/matchmaking"
	"github.com/keyduel/keyduel/internal/queuestore"
	"github.com/keyduel/keyduel/internal/server"
	"github.com/keyduel/keyduel/internal/store"
	"github.com/keyduel/keyduel/internal/words"
)

const ConfigPath = "config/keyduel.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("KEYDUEL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadServer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	})))
	slog.Info("keyduel server starting", "bind", cfg.BindAddress, "port", cfg.Port)

	// Database
	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// Redis: matchmaking queues and the Elo leaderboard
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	slog.Info("redis connected", "addr", cfg.Redis.Addr)

	// Stores
	pool := database.Pool()
	users := store.NewPgUserStore(pool)
	matchArchive := store.NewPgMatchStore(pool)
	audit := store.NewPgAuditSink(pool)
	friends := store.NewPgFriendGraph(pool)
	leaderboard := store.NewRedisLeaderboard(rdb)
	identity := store.NewHMACIdentity([]byte(cfg.Auth.Secret))

	// Matchmaking coordinator over the shared queue store
	coordinator := matchmaking.New(queuestore.NewRedis(rdb))
	defer coordinator.Close()

	// Hub doubles as the lobby broadcaster
	hub := server.NewHub()

	// Match orchestrator
	orchestrator := match.NewOrchestrator(match.Deps{
		Words:       words.NewSource(),
		Users:       users,
		Matches:     matchArchive,
		Audit:       audit,
		Leaderboard: leaderboard,
		Coordinator: coordinator,
		Broadcaster: hub,
	})
	defer orchestrator.Close()
	coordinator.SetOrchestrator(orchestrator)

	srv := server.New(server.Deps{
		Config:      cfg,
		Hub:         hub,
		Matchmaker:  coordinator,
		MatchRunner: orchestrator,
		Users:       users,
		Friends:     friends,
		Identity:    identity,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
