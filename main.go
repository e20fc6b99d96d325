package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/isdelr/mealsnap-be/internal/api"
	"github.com/isdelr/mealsnap-be/internal/config"
	"github.com/isdelr/mealsnap-be/internal/database"
	"github.com/isdelr/mealsnap-be/internal/logger"
	"github.com/isdelr/mealsnap-be/internal/nutrition"
	"github.com/isdelr/mealsnap-be/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	if cfg.SecretKeyGenerated {
		log.Warn().Msg("SECRET_KEY is not set, using a random key for this process")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set, meal analysis will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up services
	userService := services.NewUserService(db)
	mealService := services.NewMealService(db)
	analyzer := nutrition.NewClient(nutrition.Config{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		BaseURL:   cfg.OpenAIBaseURL,
		MaxTokens: cfg.AnalysisMaxTokens,
		Timeout:   cfg.AnalysisTimeout,
	})

	// Set up router
	router := api.NewRouter(api.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, db, userService, mealService, analyzer)

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("dialect", string(db.Dialect)).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("Server exiting")
}
