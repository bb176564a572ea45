package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vidgen/internal/adapter/repo"
	"vidgen/internal/db"
	"vidgen/internal/http/handlers"
	"vidgen/internal/http/httpapi"
	"vidgen/internal/infra"
	"vidgen/internal/providers/sora"
	"vidgen/internal/realtime"
	"vidgen/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	if err := db.Migrate(ctx, dbpool); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	users := repo.NewUserRepository(dbpool)
	videos := repo.NewVideoRepository(dbpool)

	provider, err := sora.NewClient(sora.Options{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		Model:           cfg.OpenAIVideoModel,
		ModerationModel: cfg.OpenAIModerationModel,
		HTTPClient:      &http.Client{Timeout: 60 * time.Second},
		Logger:          &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure video provider")
	}
	if !provider.HasCredentials() {
		logger.Warn().Msg("OPENAI_API_KEY missing, provider calls will fail")
	}

	// One registry instance shared by the channel-open handler and the
	// dispatcher; poll loops reach it through the hub.
	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry, logger)

	videoService := service.NewVideoService(service.Options{
		Videos:     videos,
		Provider:   provider,
		Dispatcher: hub,
		Logger:     logger,
	})

	app := handlers.NewApp(logger, users, videoService, cfg.JWTSecret)
	wsHandler := realtime.NewHandler(hub, cfg.JWTSecret, wsOrigins(cfg), logger)
	router := httpapi.NewRouter(cfg, app, wsHandler, logger)

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func wsOrigins(cfg *infra.Config) []string {
	if cfg.FrontendURL == "" {
		return nil
	}
	return []string{cfg.FrontendURL, "http://localhost:3000", "http://localhost:3001"}
}
