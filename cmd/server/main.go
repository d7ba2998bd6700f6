package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sasamuel24/contabilidadcq/internal/client"
	"github.com/sasamuel24/contabilidadcq/internal/config"
	"github.com/sasamuel24/contabilidadcq/internal/database"
	"github.com/sasamuel24/contabilidadcq/internal/handler"
	"github.com/sasamuel24/contabilidadcq/internal/logger"
	"github.com/sasamuel24/contabilidadcq/internal/middleware"
	"github.com/sasamuel24/contabilidadcq/internal/repository"
	"github.com/sasamuel24/contabilidadcq/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting invoice workflow service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize NATS. An empty URL runs the service without notifications.
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.NATS.URL).Msg("Failed to connect to NATS")
		}
		defer natsConn.Close()
		log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
	} else {
		log.Warn().Msg("NATS_URL not set, notifications disabled")
	}

	publisher, err := client.NewNotificationPublisher(natsConn, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create notification publisher")
	}

	// Initialize repositories
	invoiceRepo := repository.NewInvoiceRepository(db)
	attachmentRepo := repository.NewAttachmentRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	// Initialize services
	workflowService := service.NewWorkflowService(invoiceRepo, auditRepo, catalogRepo, publisher, cfg.Routing, log)
	attachmentService := service.NewAttachmentService(attachmentRepo, invoiceRepo, log)
	commentService := service.NewCommentService(commentRepo, invoiceRepo, log)
	folderService := service.NewFolderService(folderRepo, invoiceRepo, attachmentRepo, log)

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(workflowService, attachmentService, commentService, folderService, log)
	mux := http.NewServeMux()
	httpHandler.RegisterRoutes(mux)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log)(h)
	h = middleware.Recovery(&log)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(30 * time.Second)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
