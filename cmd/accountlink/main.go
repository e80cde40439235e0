package main

// @title           Account Link API
// @version         1.0
// @description     Links Telegram bot users to Google accounts through an OAuth2 consent flow.

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Bot API token from /api/v1/auth/token, sent as "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/custodia-labs/accountlink/docs"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/auth"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/cache"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/google"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/memory"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/accountlink/internal/adapters/driven/redis"
	"github.com/custodia-labs/accountlink/internal/adapters/driven/telegram"
	"github.com/custodia-labs/accountlink/internal/adapters/driving/http"
	"github.com/custodia-labs/accountlink/internal/config"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
	"github.com/custodia-labs/accountlink/internal/core/ports/driving"
	"github.com/custodia-labs/accountlink/internal/core/services"
	"github.com/custodia-labs/accountlink/internal/logger"
	"github.com/custodia-labs/accountlink/internal/metrics"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.Init(logger.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Service: "accountlink",
		Version: version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("accountlink exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("accountlink starting", "mode", cfg.RunMode, "environment", cfg.Environment)

	// ===== Initialize PostgreSQL (optional) =====
	var db *postgres.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Connect(ctx, postgres.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InitSchema(ctx); err != nil {
			return err
		}
		log.Info("postgres connected and schema initialized")
	}

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		var err error
		redisClient, err = redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("redis connected")
	}

	checks := make(map[string]http.Pinger)

	// ===== Link State Store (Redis, then PostgreSQL, then in-process) =====
	var stateStore driven.LinkStateStore
	switch {
	case redisClient != nil:
		stateStore = redisadapter.NewLinkStateStore(redisClient, cfg.LinkStateTTL)
		log.Info("using redis link state store")
	case db != nil:
		stateStore = postgres.NewLinkStateStore(db, cfg.LinkStateTTL)
		log.Info("using postgres link state store")
	default:
		if cfg.RunMode == config.ModeSweeper {
			return &config.Error{Key: "REDIS_URL", Reason: "sweeper mode needs REDIS_URL or DATABASE_URL"}
		}
		stateStore = memory.NewLinkStateStore(cfg.LinkStateTTL)
		log.Warn("using in-memory link state store; pending links are lost on restart and not shared between instances")
	}
	checks["state_store"] = stateStore

	// ===== Distributed Lock (Redis if available, otherwise PostgreSQL advisory locks) =====
	var lock driven.DistributedLock
	switch {
	case redisClient != nil:
		lock = redisadapter.NewLock(redisClient)
	case db != nil:
		lock = postgres.NewAdvisoryLock(db)
	}
	if lock != nil {
		checks["lock"] = lock
	}

	if !cfg.ServesAPI() {
		return runSweeper(ctx, cfg, log, stateStore, lock)
	}

	// ===== Identity Mapping Store =====
	mappingStore, err := newMappingStore(cfg, log, db)
	if err != nil {
		return err
	}
	checks["mapping_store"] = mappingStore

	// ===== Google =====
	provider, err := google.NewProvider(google.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	if err != nil {
		return &config.Error{Key: "GOOGLE_CLIENT_ID", Reason: err.Error()}
	}

	// ===== Telegram (optional) =====
	var notifier driven.LinkNotifier
	if cfg.TelegramBotToken != "" {
		n, err := telegram.NewNotifier(telegram.Config{Token: cfg.TelegramBotToken})
		if err != nil {
			// Notifications are best effort; linking works without them.
			log.Warn("telegram notifier disabled", "error", err)
		} else {
			notifier = n
			log.Info("telegram notifier enabled", "bot", n.Username())
		}
	}

	linkService := services.NewLinkService(services.LinkServiceConfig{
		StateStore:      stateStore,
		MappingStore:    mappingStore,
		Provider:        provider,
		Notifier:        notifier,
		Logger:          log,
		ProviderTimeout: cfg.ProviderTimeout,
		NotifyTimeout:   cfg.NotifyTimeout,
	})

	authService, err := newAuthService(cfg, log)
	if err != nil {
		return err
	}

	if cfg.RunsSweeper() {
		sweeper := newSweeper(cfg, log, stateStore, lock)
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	server := http.NewServer(http.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        version,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	}, linkService, authService, checks)

	return server.Run(ctx)
}

func newMappingStore(cfg *config.Config, log *slog.Logger, db *postgres.DB) (driven.IdentityMappingStore, error) {
	var store driven.IdentityMappingStore
	if db != nil {
		var encryptor *postgres.SecretEncryptor
		if cfg.TokenEncryptionKey != "" {
			var err error
			encryptor, err = postgres.NewSecretEncryptorFromSecret(cfg.TokenEncryptionKey)
			if err != nil {
				return nil, &config.Error{Key: "TOKEN_ENCRYPTION_KEY", Reason: err.Error()}
			}
		} else {
			log.Warn("TOKEN_ENCRYPTION_KEY not set; provider refresh tokens will not be stored")
		}
		store = postgres.NewIdentityMappingStore(db, encryptor)
		log.Info("using postgres identity mapping store")
	} else {
		store = memory.NewIdentityMappingStore()
		log.Warn("using in-memory identity mapping store; links are lost on restart")
	}

	if cfg.MappingCacheSize == 0 {
		return store, nil
	}
	return cache.NewIdentityMappingCache(store, cfg.MappingCacheSize, cfg.MappingCacheTTL), nil
}

// newAuthService returns nil when the bot API is disabled.
func newAuthService(cfg *config.Config, log *slog.Logger) (driving.AuthService, error) {
	if !cfg.BotAPIEnabled() {
		log.Info("bot API disabled; set BOT_API_SECRET to enable")
		return nil, nil
	}

	adapter := auth.NewAdapter(cfg.BotAPISecret)

	hash := cfg.BotAPIKeyHash
	if hash == "" {
		var err error
		hash, err = adapter.HashAPIKey(cfg.BotAPIKey)
		if err != nil {
			return nil, fmt.Errorf("hash bot api key: %w", err)
		}
	}

	log.Info("bot API enabled", "client", cfg.BotAPIClient)

	return services.NewAuthService(services.AuthServiceConfig{
		Adapter:  adapter,
		Clients:  map[string]string{cfg.BotAPIClient: hash},
		TokenTTL: cfg.BotTokenTTL,
	}), nil
}

func newSweeper(cfg *config.Config, log *slog.Logger, store driven.LinkStateStore, lock driven.DistributedLock) *services.StateSweeper {
	return services.NewStateSweeper(services.StateSweeperConfig{
		Store:    store,
		Lock:     lock,
		Logger:   log,
		Interval: cfg.StateSweepInterval,
		OnSweep:  metrics.RecordSweep,
	})
}

// runSweeper runs the sweeper alone until ctx is cancelled.
func runSweeper(ctx context.Context, cfg *config.Config, log *slog.Logger, store driven.LinkStateStore, lock driven.DistributedLock) error {
	if !cfg.RunsSweeper() {
		return errors.New("sweeper mode with STATE_SWEEP_INTERVAL=0 has nothing to do")
	}

	sweeper := newSweeper(cfg, log, store, lock)
	sweeper.Start(ctx)

	<-ctx.Done()

	sweeper.Stop()
	return nil
}
