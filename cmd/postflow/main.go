package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postflow/internal/app"
	"postflow/internal/config"
	"postflow/internal/ratelimit"
	"postflow/internal/server"
	"postflow/internal/util"
	"postflow/pkg/ai"
	"postflow/pkg/auth"
	"postflow/pkg/cache"
	"postflow/pkg/events"
	"postflow/pkg/generate"
	"postflow/pkg/queue"
	"postflow/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	if err != nil {
		log.Fatalf("failed to init token issuer: %v", err)
	}

	primary, fallback, transcriber, err := buildAI(cfg)
	if err != nil {
		log.Fatalf("failed to init AI clients: %v", err)
	}

	var genCache generate.Cache
	var invalidator app.Invalidator
	counters := ratelimit.CounterStore(ratelimit.NewMemoryCounterStore())
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, "postflow:gen", time.Duration(cfg.CacheTTLHours)*time.Hour)
		if err != nil {
			log.Fatalf("failed to init redis cache: %v", err)
		}
		genCache = redisCache
		invalidator = redisCache
		redisCounters, err := ratelimit.NewRedisCounterStore(cfg.RedisAddr, cfg.RedisPassword, "postflow:rl")
		if err != nil {
			log.Fatalf("failed to init redis rate limiter: %v", err)
		}
		counters = redisCounters
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	}

	var jobs *queue.RedisJobQueue
	if cfg.RedisAddr != "" && objects != nil && transcriber != nil {
		jobs, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.QueueStream,
		})
		if err != nil {
			log.Fatalf("failed to init transcription queue: %v", err)
		}
	}

	appCfg := app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		Tokens:         tokens,
		Limiter:        ratelimit.New(counters, ratelimit.DefaultRules()),
		Executor:       generate.NewExecutor(primary, fallback, genCache),
		Cache:          invalidator,
		Publisher:      publisher,
		Objects:        objects,
		Transcriber:    transcriber,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}
	if jobs != nil {
		appCfg.Jobs = jobs
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if jobs != nil {
		jobs.Start(ctx, 2, appCore.HandleTranscriptionJob)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func buildAI(cfg config.FileConfig) (primary, fallback ai.TextGenerator, transcriber ai.Transcriber, err error) {
	switch cfg.AIProvider {
	case "gemini":
		primary, err = ai.NewGeminiGenerator(cfg.AIAPIKey, cfg.AIModel)
		if err != nil {
			return nil, nil, nil, err
		}
		if cfg.AIFallbackModel != "" {
			fallback, err = ai.NewGeminiGenerator(cfg.AIAPIKey, cfg.AIFallbackModel)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	default:
		primary = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
		if cfg.AIFallbackModel != "" {
			fallback = ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIFallbackModel)
		}
	}
	if cfg.TranscribeModel != "" {
		transcriber = ai.NewOpenAICompatTranscriber(cfg.AIBaseURL, cfg.AIAPIKey, cfg.TranscribeModel)
	}
	return primary, fallback, transcriber, nil
}
