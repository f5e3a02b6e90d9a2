package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"chatrelay/internal/auth"
	"chatrelay/internal/config"
	"chatrelay/internal/handler"
	"chatrelay/internal/handler/sse"
	"chatrelay/internal/llmclient"
	"chatrelay/internal/middleware"
	"chatrelay/internal/presets"
	"chatrelay/internal/repository/postgres"
	postgresChat "chatrelay/internal/repository/postgres/chat"
	chatSvc "chatrelay/internal/service/chat"
	providerSvc "chatrelay/internal/service/provider"
	settingsSvc "chatrelay/internal/service/settings"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}

	logOutput := os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, 10)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOutput = logFile
	}

	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// Create JWT verifier
	verifier, err := auth.NewJWKSVerifier(cfg.AuthJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer verifier.Close()

	// Create pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create repositories
	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	conversationRepo := postgresChat.NewConversationRepository(repoConfig)
	turnRepo := postgresChat.NewTurnRepository(repoConfig)
	providerRepo := postgresChat.NewProviderRepository(repoConfig)
	settingsRepo := postgresChat.NewSettingsRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	// Built-in provider presets
	presetRegistry, err := presets.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load provider presets: %v", err)
	}

	// Create services
	store := chatSvc.NewStore(conversationRepo, turnRepo, txManager, logger)
	registry := providerSvc.NewRegistry(providerRepo, logger)
	settingsService := settingsSvc.NewService(settingsRepo, logger)
	client := llmclient.NewClient()
	relay := chatSvc.NewRelay(client, store, logger)
	coordinator := chatSvc.NewCoordinator(store, registry, settingsService, client, relay, logger)

	// Create handlers
	historyHandler := handler.NewHistoryHandler(store, coordinator, sse.DefaultConfig(), logger)
	providerHandler := handler.NewProviderHandler(registry, presetRegistry, logger)
	settingsHandler := handler.NewSettingsHandler(settingsService, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", historyHandler.Health)

	// History routes
	mux.HandleFunc("POST /histories", historyHandler.CreateHistory)
	mux.HandleFunc("GET /histories", historyHandler.ListHistories)
	mux.HandleFunc("PUT /histories/{id}", historyHandler.UpdateHistory)
	mux.HandleFunc("DELETE /histories/{id}", historyHandler.DeleteHistory)
	mux.HandleFunc("GET /histories/{id}/messages", historyHandler.GetMessages)
	mux.HandleFunc("POST /histories/{id}/messages", historyHandler.PostMessage)

	// Provider routes
	mux.HandleFunc("GET /model_providers/presets", providerHandler.ListPresets) // Must come before {id} route
	mux.HandleFunc("POST /model_providers", providerHandler.CreateProvider)
	mux.HandleFunc("GET /model_providers", providerHandler.ListProviders)
	mux.HandleFunc("PUT /model_providers/{id}", providerHandler.UpdateProvider)
	mux.HandleFunc("DELETE /model_providers/{id}", providerHandler.DeleteProvider)

	// Model routes
	mux.HandleFunc("POST /model_providers/models", providerHandler.CreateModel)
	mux.HandleFunc("GET /model_providers/models", providerHandler.ListModels)
	mux.HandleFunc("DELETE /model_providers/models/{id}", providerHandler.DeleteModel)

	// Settings routes
	mux.HandleFunc("GET /settings", settingsHandler.GetSettings)
	mux.HandleFunc("PUT /settings", settingsHandler.UpdateSettings)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.AuthMiddleware(verifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
