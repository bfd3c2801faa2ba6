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

	"github.com/gin-gonic/gin"

	"mindcare-chatbot-backend/catalog"
	"mindcare-chatbot-backend/config"
	"mindcare-chatbot-backend/database"
	"mindcare-chatbot-backend/events"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/metrics"
	"mindcare-chatbot-backend/routes"
	"mindcare-chatbot-backend/services"
	"mindcare-chatbot-backend/utils"
)

type stores struct {
	sessions services.SessionStore
	logs     services.ConversationLogStore
	users    services.CredentialStore
	vault    services.VaultStore
}

func runServer() error {
	if err := config.Load(); err != nil {
		return err
	}
	cfg := config.Get()
	logger.Init(cfg.LogLevel)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	idx, shape, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.WithError(err).WithField("path", cfg.Catalog.Path).Error("Failed to load catalog")
		return err
	}
	logger.WithFields(map[string]interface{}{
		"path":     cfg.Catalog.Path,
		"shape":    shape,
		"diseases": idx.Len(),
	}).Info("Catalog loaded")

	if err := database.Connect(cfg); err != nil {
		return fmt.Errorf("connect databases: %w", err)
	}
	defer func() {
		if err := database.Disconnect(); err != nil {
			logger.WithError(err).Warn("Error while closing databases")
		}
	}()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	m := metrics.New()
	publisher := events.New(cfg.Kafka)
	defer publisher.Close()

	ai := services.NewAIService(cfg.AI, m)
	companion := services.NewCompanionService(ai)
	dialogue := services.NewDialogue(idx, utils.NewIntentClassifier(), services.NewPredictor(idx, ai))
	chatbot := services.NewChatbotService(dialogue, companion, st.sessions, st.logs, publisher, m)
	auth := services.NewAuthService(st.users, st.vault, chatbot, companion)

	whatsapp := services.NewWhatsAppService(cfg.WhatsApp)
	if !cfg.WhatsAppEnabled() {
		logger.Log.Warn("WhatsApp credentials missing, the WhatsApp channel will not deliver replies")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	handles := routes.SetupRoutes(router, routes.Dependencies{
		Config:   cfg,
		Chatbot:  chatbot,
		Auth:     auth,
		WhatsApp: whatsapp,
		Metrics:  m,
		Ready:    database.HealthCheck,
	})

	logAvailableEndpoints(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.AI.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]interface{}{
			"port":        cfg.Port,
			"ai_provider": ai.Provider(),
			"sessions":    cfg.Sessions.Store,
			"logs":        cfg.Logs.Store,
		}).Info("Server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-quit:
	}

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Server forced to shutdown")
	}
	handles.WhatsApp.Wait()

	logger.Log.Info("Server exited")
	return nil
}

// openStores picks the session, log and credential backends from config.
func openStores(cfg *config.Config) (stores, error) {
	var st stores

	switch cfg.Sessions.Store {
	case "redis":
		st.sessions = database.NewRedisSessionStore(database.GetRedis(cfg), cfg.Sessions.TTL)
	default:
		st.sessions = database.NewMemorySessionStore(cfg.Sessions.TTL)
	}

	switch cfg.Logs.Store {
	case "mongodb":
		st.logs = database.NewMongoLogStore(database.GetMongoDB())
	default:
		fileLogs, err := database.NewFileLogStore(cfg.Logs.Dir)
		if err != nil {
			return st, fmt.Errorf("conversation log dir: %w", err)
		}
		st.logs = fileLogs
	}

	if cfg.Postgres.Enabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			return st, err
		}
		repo := database.NewUserRepository(db, cfg.Security.PBKDF2Iterations)
		if err := repo.AutoMigrate(); err != nil {
			return st, fmt.Errorf("migrate users: %w", err)
		}
		st.users = repo
	} else {
		logger.Log.Warn("Postgres disabled, accounts are kept in memory")
		st.users = database.NewMemoryUserStore(cfg.Security.PBKDF2Iterations)
	}

	// st.vault stays a nil interface when disabled
	if cfg.Vault.Enabled {
		st.vault = database.NewVaultRepository(database.GetVaultDB(), cfg.Vault.Collection, cfg.Security.BcryptCost)
	}

	return st, nil
}

// logAvailableEndpoints logs all registered routes
func logAvailableEndpoints(router *gin.Engine) {
	for _, route := range router.Routes() {
		logger.WithFields(map[string]interface{}{
			"method": route.Method,
			"path":   route.Path,
		}).Debug("Route registered")
	}
}
