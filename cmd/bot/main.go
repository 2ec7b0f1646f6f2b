package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weihan/menu-copilot-back/internal/ai"
	"github.com/weihan/menu-copilot-back/internal/bot"
	"github.com/weihan/menu-copilot-back/internal/chat"
	"github.com/weihan/menu-copilot-back/internal/config"
	"github.com/weihan/menu-copilot-back/internal/docstore"
	"github.com/weihan/menu-copilot-back/internal/extract"
	"github.com/weihan/menu-copilot-back/internal/ocr"
	"github.com/weihan/menu-copilot-back/internal/repository"
)

func main() {
	logger := log.New(os.Stdout, "[menu-bot] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	if cfg.SlackBotToken == "" || cfg.SlackAppToken == "" {
		logger.Fatal("SLACK_BOT_TOKEN and SLACK_APP_TOKEN are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser := setupStore(ctx, cfg, logger)
	defer storeCloser()

	deduper := setupDeduper(cfg, logger)

	documents, err := docstore.NewFSStore(cfg.DocumentsDir)
	if err != nil {
		logger.Fatalf("documents dir: %v", err)
	}

	visionClient := ocr.NewVisionClient(ocr.VisionClientConfig{
		Endpoint: cfg.OCREndpoint,
		APIKey:   cfg.OCRAPIKey,
		Timeout:  time.Duration(cfg.OCRTimeoutMS) * time.Millisecond,
	}, documents)
	if !visionClient.Available() {
		logger.Printf("OCR_API_KEY not configured, image menus will fail extraction")
	}
	extractor := extract.NewExtractor(documents, visionClient)

	completer := ai.NewOpenRouterClient(ai.OpenRouterClientConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Model:   cfg.OpenRouterModel,
		Timeout: time.Duration(cfg.OpenRouterTimeoutMS) * time.Millisecond,
		SiteURL: cfg.OpenRouterSiteURL,
		AppName: cfg.AppName,
	})
	if !completer.Available() {
		logger.Printf("OPENROUTER_API_KEY not configured, every turn will fail")
	}

	slackClient := chat.NewSlackClient(cfg.SlackBotToken, cfg.SlackAppToken, logger)
	poster := chat.NewRateLimitedPoster(slackClient, cfg.ChatRateRPS, cfg.ChatRateBurst)

	engine := bot.NewEngine(bot.Dependencies{
		Store:      store,
		Documents:  documents,
		Extractor:  extractor,
		Completer:  completer,
		Poster:     poster,
		Uploader:   slackClient,
		Downloader: slackClient,
		LogoPath:   cfg.BrandLogoPath,
		Logger:     logger,
	})

	dispatcher := bot.NewDispatcher(64)
	defer dispatcher.Close()
	defer engine.Wait()

	onMessage := func(event chat.MessageEvent) {
		if duplicate(ctx, deduper, event.EventID, logger) {
			return
		}
		dispatcher.Submit(bot.ConversationKey(event.ChannelID, event.ThreadID), func() {
			engine.OnMessage(ctx, event)
		})
	}
	onFile := func(event chat.FileEvent) {
		if duplicate(ctx, deduper, event.EventID, logger) {
			return
		}
		dispatcher.Submit(bot.ConversationKey(event.ChannelID, event.ThreadID), func() {
			engine.OnFileShared(ctx, event)
		})
	}

	logger.Printf("menu bot connecting to slack")
	if err := slackClient.Listen(ctx, onMessage, onFile); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("slack listener stopped: %v", err)
	}
	logger.Printf("shutting down")
}

func duplicate(ctx context.Context, deduper chat.Deduper, eventID string, logger *log.Logger) bool {
	if eventID == "" {
		return false
	}
	seen, err := deduper.Seen(ctx, eventID)
	if err != nil {
		// Dedupe store trouble must not drop messages.
		logger.Printf("dedupe check failed for %s: %v", eventID, err)
		return false
	}
	if seen {
		logger.Printf("skipping redelivered event %s", eventID)
	}
	return seen
}

func setupStore(ctx context.Context, cfg config.Config, logger *log.Logger) (repository.Store, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory store")
		return repository.NewMemoryStore(), func() {}
	}

	pgStore, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres store, fallback to memory: %v", err)
		return repository.NewMemoryStore(), func() {}
	}
	if err := pgStore.EnsureSchema(ctx); err != nil {
		logger.Printf("failed to ensure schema, fallback to memory: %v", err)
		pgStore.Close()
		return repository.NewMemoryStore(), func() {}
	}
	logger.Printf("postgres store initialized")
	return pgStore, func() {
		pgStore.Close()
	}
}

func setupDeduper(cfg config.Config, logger *log.Logger) chat.Deduper {
	ttl := time.Duration(cfg.DedupeTTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory event dedupe")
		return chat.NewMemoryDeduper(ttl)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Printf("redis event dedupe initialized")
	return chat.NewRedisDeduper(client, ttl)
}
