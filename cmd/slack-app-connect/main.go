package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"slack-app-connect/internal/bus"
	"slack-app-connect/internal/config"
	"slack-app-connect/internal/dispatch"
	"slack-app-connect/internal/handlers"
	"slack-app-connect/internal/middleware"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
	"slack-app-connect/internal/ui"
)

// App holds the wired services and handlers.
type App struct {
	config             *config.Config
	firestoreService   *services.FirestoreService
	slackService       *services.SlackService
	cloudTasksService  *services.CloudTasksService
	oauthService       *services.OAuthService
	sessionService     *services.SessionService
	registry           *dispatch.Registry
	eventBus           *bus.Bus
	webhookHandler     *handlers.WebhookHandler
	oauthHandler       *handlers.OAuthHandler
	connectHandler     *handlers.ConnectHandler
	eventsHandler      *handlers.EventsHandler
	eventWorkerHandler *handlers.EventWorkerHandler
}

func main() {
	cfg := config.Load()

	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	slog.Info("Connecting to Firestore", "project_id", cfg.FirestoreProjectID, "database_id", cfg.FirestoreDatabaseID)
	firestoreClient, err := firestore.NewClientWithDatabase(ctx, cfg.FirestoreProjectID, cfg.FirestoreDatabaseID)
	if err != nil {
		slog.Error("Failed to create Firestore client", "component", "startup", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := firestoreClient.Close(); err != nil {
			slog.Error("Error closing Firestore client", "component", "shutdown", "error", err)
		}
	}()

	firestoreService := services.NewFirestoreService(firestoreClient)
	slackService := services.NewSlackService(cfg.SlackClientID, cfg.SlackClientSecret, nil)

	cloudTasksService, err := services.NewCloudTasksService(services.CloudTasksConfig{
		ProjectID: cfg.GoogleCloudProject,
		Location:  cfg.GCPRegion,
		QueueName: cfg.CloudTasksQueue,
		WorkerURL: cfg.EventWorkerURL,
		Secret:    cfg.CloudTasksSecret,
	})
	if err != nil {
		slog.Error("Failed to create Cloud Tasks service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cloudTasksService.Close(); err != nil {
			slog.Error("Error closing Cloud Tasks client", "error", err)
		}
	}()

	verifier, err := services.NewSignatureVerifier(cfg.SlackSigningSecret, cfg.SlackTimestampMaxAge)
	if err != nil {
		slog.Error("Failed to create signature verifier", "error", err)
		os.Exit(1)
	}
	sessionService, err := services.NewSessionService(cfg.SessionSecret, cfg.SessionMaxAge)
	if err != nil {
		slog.Error("Failed to create session service", "error", err)
		os.Exit(1)
	}

	oauthService := services.NewOAuthService(firestoreService, slackService)
	registry := dispatch.NewRegistry()
	gate := dispatch.NewLinkGate(firestoreService)
	eventBus := bus.New(firestoreService, slackService)

	app := &App{
		config:             cfg,
		firestoreService:   firestoreService,
		slackService:       slackService,
		cloudTasksService:  cloudTasksService,
		oauthService:       oauthService,
		sessionService:     sessionService,
		registry:           registry,
		eventBus:           eventBus,
		webhookHandler:     handlers.NewWebhookHandler(verifier, registry, gate, cfg.BaseURL),
		oauthHandler:       handlers.NewOAuthHandler(oauthService, sessionService, verifier, cfg),
		connectHandler:     handlers.NewConnectHandler(firestoreService),
		eventsHandler:      handlers.NewEventsHandler(verifier, cloudTasksService),
		eventWorkerHandler: handlers.NewEventWorkerHandler(eventBus, cfg.EventProcessingTimeout),
	}

	if err := app.registerHandlers(); err != nil {
		slog.Error("Handler registration failed", "component", "startup", "error", err)
		os.Exit(1)
	}

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())

	sessionAuth := middleware.SessionAuth(sessionService, firestoreService)

	router.GET("/slack/install/", sessionAuth, app.oauthHandler.HandleInstallCallback)
	router.GET("/slack/login/", app.oauthHandler.HandleLoginCallback)
	router.POST("/slack/interactivity/", app.webhookHandler.HandleInteractivity)
	router.POST("/slack/commands/:name/", app.webhookHandler.HandleCommand)
	router.GET("/slack/connect/:nonce/", sessionAuth, app.connectHandler.HandleConnect)
	router.POST("/slack/events/", app.eventsHandler.HandleEvent)
	router.POST("/tasks/slack-event", middleware.CloudTasksAuthMiddleware(cfg), app.eventWorkerHandler.ProcessJob)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	slog.Info("Starting server", "component", "server", "port", cfg.Port)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "component", "server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...", "component", "server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "component", "server", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited gracefully", "component", "server")
}

// registerHandlers populates the dispatch registry and the event bus. A
// duplicate registration aborts startup.
func (app *App) registerHandlers() error {
	if err := app.registry.RegisterCommand("link-account", app.handleLinkAccountCommand, true); err != nil {
		return err
	}

	app.eventBus.Subscribe(app.handleAppUninstalled, "app_uninstalled")

	homeBuilder := ui.NewHomeViewBuilder(app.config.BaseURL)
	app.eventBus.SubscribeAppHome(func(
		_ context.Context, _ bus.Event, mapping *models.UserMapping, workspace *models.Workspace,
	) ([]slack.Block, string, error) {
		blocks, title := homeBuilder.BuildHomeView(mapping, workspace)
		return blocks, title, nil
	})

	return nil
}

// handleLinkAccountCommand is the built-in /link-account command. The link
// gate answers for unlinked callers with the connect URL; reaching the
// handler means the account is already linked.
func (app *App) handleLinkAccountCommand(
	_ context.Context, _ *dispatch.CommandPayload, _ *models.UserMapping, _ *models.Workspace,
) (any, error) {
	return gin.H{
		"response_type": "ephemeral",
		"text":          "Your Slack account is already linked.",
	}, nil
}

// handleAppUninstalled removes the workspace record when Slack reports the
// app was uninstalled. The mappings survive, detached.
func (app *App) handleAppUninstalled(ctx context.Context, event bus.Event) error {
	err := app.firestoreService.DeleteWorkspace(ctx, event.TeamID)
	if err != nil && !errors.Is(err, services.ErrWorkspaceNotFound) {
		return err
	}
	return nil
}

func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var logger *slog.Logger
	if cfg.GinMode != "release" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	}
	slog.SetDefault(logger)
}
