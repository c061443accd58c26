package main

import (
	"context"
	"time"

	"github.com/CryptoRabble/glanker/internal/engine"
	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/internal/generate"
	"github.com/CryptoRabble/glanker/internal/handlers"
	"github.com/CryptoRabble/glanker/internal/imagesearch"
	"github.com/CryptoRabble/glanker/pkg/config"
	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/llm"
	"github.com/CryptoRabble/glanker/pkg/logging"
	"github.com/CryptoRabble/glanker/pkg/monitoring"
	"github.com/CryptoRabble/glanker/pkg/server"
	"github.com/CryptoRabble/glanker/pkg/version"
)

type redisPinger struct {
	store *kv.RedisStore
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.store.Client().Ping(ctx).Err()
}

func main() {
	logger := logging.NewLoggerWithService("glanker")
	config.LoadEnv(logger)

	port := config.GetEnv("PORT", "8080")
	webhookSecret := config.RequireEnv("WEBHOOK_SECRET")
	neynarAPIKey := config.RequireEnv("NEYNAR_API_KEY")
	signerUUID := config.RequireEnv("SIGNER_UUID")

	botFID := config.GetEnvInt64("BOT_FID", 885622)
	deployerFID := config.GetEnvInt64("DEPLOYER_FID", 874542)
	botUsername := config.GetEnv("BOT_USERNAME", "glanker")
	minScore := config.GetEnvFloat("MIN_USER_SCORE", 0.25)

	healthChecker := monitoring.NewHealthChecker("glanker", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("glanker", version.Version, version.GitCommit)
	webhookEvents, webhookDuration := metricsCollector.CreateWebhookMetrics()

	// State lives in Redis when configured, otherwise in process memory.
	var store kv.Store
	redisURL := config.GetEnv("REDIS_URL", "")
	if redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisStore, err := kv.NewRedisStoreFromURL(ctx, redisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() { _ = redisStore.Close() }()
		store = redisStore
		healthChecker.AddCheck("redis", monitoring.RedisHealthCheck(redisPinger{redisStore}))
	} else {
		logger.Warn("REDIS_URL not set, using in-memory state")
		store = kv.NewMemoryStore()
	}

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"WEBHOOK_SECRET": webhookSecret,
		"NEYNAR_API_KEY": neynarAPIKey,
		"SIGNER_UUID":    signerUUID,
	}))

	social := farcaster.NewClient(neynarAPIKey, signerUUID)

	llmProvider, err := llm.NewProvider(llm.LoadConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}

	var giphy *imagesearch.GiphyClient
	if key := config.GetEnv("GIPHY_API_KEY", ""); key != "" {
		giphy = imagesearch.NewGiphyClient(key)
	} else {
		logger.Warn("GIPHY_API_KEY not set, skipping Giphy search")
	}
	var imgur *imagesearch.ImgurClient
	if clientID := config.GetEnv("IMGUR_CLIENT_ID", ""); clientID != "" {
		imgur = imagesearch.NewImgurClient(clientID)
	} else {
		logger.Warn("IMGUR_CLIENT_ID not set, skipping Imgur search")
	}

	searcher := imagesearch.NewSearcher(giphy, imgur, store, logger)
	analyzer := generate.NewImageAnalyzer(llmProvider, logger)
	generator := generate.NewService(llmProvider, searcher, analyzer, logger)

	authorizer := engine.NewAuthorizer(engine.AuthorizerConfig{
		BotFID:               botFID,
		DeployerFID:          deployerFID,
		AllowDeployerReplies: config.GetEnvBool("ALLOW_DEPLOYER_REPLIES", false),
	}, nil, social, logger)

	resolver := engine.NewContextResolver(engine.ResolverConfig{
		BotFID:                botFID,
		BotUsername:           botUsername,
		BlendRequesterHistory: config.GetEnvBool("BLEND_REQUESTER_HISTORY", false),
	}, store, social, logger)

	limiter := engine.NewRateLimiter(
		store,
		engine.RateLimitPolicy(config.GetEnv("RATE_LIMIT_POLICY", string(engine.PolicySingleSlot))),
		config.GetEnvInt("DAILY_TOKEN_QUOTA", 3),
	)

	pipeline := engine.NewPipeline(
		engine.PipelineConfig{BotFID: botFID, BotUsername: botUsername, MinUserScore: minScore},
		engine.NewDeduplicator(store, engine.DefaultDedupeTTL),
		authorizer,
		limiter,
		resolver,
		social,
		social,
		generator,
		social,
		nil,
		logger,
	)

	app := server.SetupServiceRouter(logger, "glanker", healthChecker, metricsCollector)

	webhookHandler := handlers.NewWebhookHandler(webhookSecret, pipeline, logger, webhookEvents, webhookDuration)
	webhookHandler.RegisterRoutes(app)

	serverConfig := server.DefaultConfig("glanker", port)
	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.Fatal(err.Error())
	}
}
