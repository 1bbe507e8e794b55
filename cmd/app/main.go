// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-video-gen/internal/application"
	"telegram-video-gen/internal/config"
	"telegram-video-gen/internal/domain/ports/adapter"
	aiAdapters "telegram-video-gen/internal/infra/adapters/ai"
	tele "telegram-video-gen/internal/infra/adapters/telegram"
	vid "telegram-video-gen/internal/infra/adapters/video"
	pg "telegram-video-gen/internal/infra/db/postgres"
	"telegram-video-gen/internal/infra/logging"
	"telegram-video-gen/internal/infra/metrics"
	red "telegram-video-gen/internal/infra/redis"
	"telegram-video-gen/internal/infra/sched"
	"telegram-video-gen/internal/infra/storage"
	"telegram-video-gen/internal/infra/web"
	"telegram-video-gen/internal/infra/worker"
	"telegram-video-gen/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop adapters where keys are missing)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	rateLimiter := red.NewRateLimiter(redisClient)
	toggles := red.NewToggleStore(redisClient, logger)

	// ---- Repositories ----
	jobRepo := pg.NewVideoJobRepo(pool)
	recordRepo := pg.NewGenerationRecordRepo(pool)
	ledger := pg.NewCreditLedger(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Video providers ----
	var providers []adapter.VideoGenAdapter
	if cfg.Providers.Kling.APIKey != "" {
		kling, err := vid.NewKlingAdapter(cfg.Providers.Kling.APIKey, cfg.Providers.Kling.Model, cfg.Providers.Kling.BaseURL, cfg.Providers.Kling.CallbackURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("kling adapter")
		}
		providers = append(providers, kling)
	}
	if cfg.Providers.Veo.APIKey != "" {
		veo, err := vid.NewVeoAdapter(ctx, cfg.Providers.Veo.APIKey, cfg.Providers.Veo.BaseURL, cfg.Providers.Veo.Model)
		if err != nil {
			logger.Fatal().Err(err).Msg("veo adapter")
		}
		providers = append(providers, veo)
	}
	if cfg.Runtime.Dev {
		providers = append(providers, &vid.NoopVideoAdapter{Delay: 2 * time.Second})
	}
	if len(providers) == 0 {
		logger.Fatal().Msgf("no video provider configured: set providers.kling.api_key or providers.veo.api_key in %s", *cfgPath)
	}
	registry := vid.NewRegistry(providers...)
	logger.Info().Strs("providers", registry.Names()).Str("default", cfg.Providers.DefaultProvider).Msg("video providers ready")

	// ---- Prompt enhancer ----
	var enhancer adapter.PromptEnhancer = aiAdapters.NoopEnhancer{}
	if cfg.Enhancer.OpenAIKey != "" {
		enhancer, err = aiAdapters.NewOpenAIPromptEnhancer(cfg.Enhancer.OpenAIKey, cfg.Enhancer.Model, cfg.Enhancer.MaxPromptTokens)
		if err != nil {
			logger.Fatal().Err(err).Msg("prompt enhancer")
		}
	}

	// ---- Artifact storage ----
	var artifacts adapter.ArtifactStore = storage.PassthroughStore{}
	if cfg.Storage.Dir != "" {
		artifacts, err = storage.NewFSArtifactStore(cfg.Storage.Dir)
		if err != nil {
			logger.Fatal().Err(err).Msg("artifact store")
		}
	}

	// ---- Telegram ----
	var bot adapter.TelegramBotAdapter
	var realBot *tele.RealTelegramBotAdapter
	if cfg.Bot.Token != "" {
		realBot, err = tele.NewRealTelegramBotAdapter(&cfg.Bot, rateLimiter, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
		bot = realBot
	} else {
		logger.Warn().Msg("bot.token not set; outbound notifications disabled")
		bot = &tele.NoopBotAdapter{}
	}

	// ---- Use cases ----
	jobUC := usecase.NewVideoJobUseCase(jobRepo, recordRepo, txManager, ledger, registry, enhancer, bot, artifacts, cfg.Worker, logger)
	facade := application.NewVideoFacade(jobUC, ledger, bot, cfg.Providers.DefaultProvider, cfg.Providers.DefaultCost, logger)
	if realBot != nil {
		realBot.SetFacade(facade)
		go func() {
			if err := realBot.StartPolling(ctx); err != nil {
				logger.Error().Err(err).Msg("telegram polling stopped")
			}
		}()
	}

	// ---- Workers ----
	dispatcher := worker.NewDispatcher(jobUC, jobRepo, toggles, cfg.Worker, logger)
	go func() { _ = dispatcher.Run(ctx) }()

	retention := sched.NewRetentionWorker(cfg.Worker.RetentionInterval, cfg.Worker.RetentionAge, jobRepo, logger)
	go func() { _ = retention.Run(ctx) }()

	// ---- HTTP server ----
	server := web.NewServer(jobUC, rateLimiter, cfg.Server.APIKey, logger)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
