package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"telegram-miniapp/internal/application"
	"telegram-miniapp/internal/config"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/domain/ports/repository"
	tele "telegram-miniapp/internal/infra/adapters/telegram"
	"telegram-miniapp/internal/infra/api"
	"telegram-miniapp/internal/infra/i18n"
	pg "telegram-miniapp/internal/infra/db/postgres"
	"telegram-miniapp/internal/infra/logging"
	"telegram-miniapp/internal/infra/memory"
	"telegram-miniapp/internal/infra/metrics"
	red "telegram-miniapp/internal/infra/redis"
	"telegram-miniapp/internal/infra/worker"
	"telegram-miniapp/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

type poller interface {
	StartPolling(ctx context.Context) error
	StopPolling()
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: in-memory directory, noop bot without a token")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Str("directory", cfg.Directory.Backend).Msg("starting")

	// ---- Postgres ----
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres")
		}
		defer pool.Close()
		go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)
	}

	// ---- Redis ----
	var (
		redisClient *red.Client
		rateLimiter *red.RateLimiter
		locker      red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		rateLimiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	}

	// ---- Repositories ----
	directory := buildDirectory(cfg, pool, redisClient)
	var (
		subs     repository.SubscriberRepository
		requests repository.RequestLogRepository
	)
	if pool != nil {
		subs = pg.NewSubscriberRepo(pool)
		requests = pg.NewRequestLogRepo(pool)
	} else {
		logger.Warn().Msg("database.url not set; subscribers and request log are kept in memory")
		subs = memory.NewSubscriberRepo()
		requests = memory.NewRequestLog(10000)
	}

	// ---- Telegram (outbound channel + inbound polling) ----
	facade := application.NewBotFacade(directory, nil, nil)
	var (
		channel adapter.TelegramBotAdapter
		bot     poller
	)
	if cfg.Bot.Mode == "noop" || (cfg.Runtime.Dev && cfg.Bot.Token == "") {
		noop := tele.NewNoopBotAdapter(logger, cfg.Runtime.Dev)
		channel, bot = noop, noop
		logger.Warn().Msg("telegram bot disabled; messages are logged only")
	} else {
		translator, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Bot.Language)
		if err != nil {
			logger.Fatal().Err(err).Str("language", cfg.Bot.Language).Msg("translations")
		}
		tg, err := tele.NewRealTelegramBotAdapter(&cfg.Bot, facade, rateLimiter, translator, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		channel, bot = tg, tg
	}

	// ---- Use cases ----
	notifier := usecase.NewNotificationUseCase(directory, channel, logging.Component(logger, "notify"), cfg.Runtime.Dev)
	services := usecase.NewServiceUseCase(notifier, channel, subs, requests,
		usecase.ServiceOptions{BookURL: cfg.Services.BookURL, AdminIDs: cfg.Bot.AdminIDs},
		logging.Component(logger, "services"))

	workers := worker.NewPool(cfg.Notify.Workers, 0, logger)
	workers.Start(ctx)
	defer workers.Stop()
	broadcast := usecase.NewBroadcastUseCase(subs, notifier, workers, locker, cfg.Notify.BroadcastPerSec,
		logging.Component(logger, "broadcast"))

	facade.Notifier = notifier
	facade.Services = services

	go func() {
		if err := bot.StartPolling(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("telegram polling stopped")
		}
	}()

	// ---- HTTP ----
	initDataToken := cfg.Bot.Token
	if cfg.Services.SkipInitData || initDataToken == "" {
		initDataToken = ""
		logger.Warn().Msg("Mini App initData is not verified; /api/service trusts the user id in the body")
	}
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.CookieDomain, cfg.Admin.SessionTTL)
	srv := api.NewServer(notifier, services, broadcast, directory, auth, rateLimiter, api.Options{
		APIKey:          cfg.Admin.APIKey,
		RateLimit:       cfg.Services.RateLimit,
		RateLimitWindow: cfg.Services.RateLimitWindow,
		RequestTimeout:  cfg.HTTP.RequestTimeout,
		InitDataToken:   initDataToken,
		InitDataMaxAge:  cfg.Services.InitDataMaxAge,
	}, logger)

	if err := srv.Run(ctx, cfg.HTTP.Port); err != nil {
		logger.Error().Err(err).Msg("http server")
	}
	bot.StopPolling()
	logger.Info().Msg("shutdown complete")
}

func buildDirectory(cfg *config.Config, pool *pgxpool.Pool, redisClient *red.Client) repository.AddressDirectory {
	switch cfg.Directory.Backend {
	case config.BackendRedis:
		return red.NewAddressDirectory(redisClient)
	case config.BackendPostgres:
		var dir repository.AddressDirectory = pg.NewAddressRepo(pool)
		if cfg.Directory.Cache {
			dir = pg.NewAddressRepoCacheDecorator(dir, redisClient, cfg.Redis.TTL)
		}
		return dir
	default:
		return memory.NewAddressDirectory()
	}
}
