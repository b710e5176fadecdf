package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/grupomeraki/leadchat/api"
	"github.com/grupomeraki/leadchat/capture"
	"github.com/grupomeraki/leadchat/config"
	"github.com/grupomeraki/leadchat/domain"
	"github.com/grupomeraki/leadchat/hub"
	"github.com/grupomeraki/leadchat/inference"
	"github.com/grupomeraki/leadchat/policy"
	"github.com/grupomeraki/leadchat/session"
	"github.com/grupomeraki/leadchat/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting leadchat...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Inference URL: %s", cfg.InferenceURL)
	log.Printf("Session TTL: %s", cfg.SessionTTL)

	// Initialize store
	kv, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer kv.Close()

	// Initialize inference client
	streamer := inference.NewClient(cfg.InferenceURL, cfg.InferenceAPIKey, cfg.InferenceModel, cfg.InferenceTimeout)

	// Initialize live-view hub
	h := hub.NewHub()
	go h.Run()
	wsServer := hub.NewServer(h)

	observer := func(sess *domain.Session) {
		if err := h.BroadcastJSON(sess.SessionID, sess); err != nil {
			log.Printf("WARN: failed to broadcast session update: %v", err)
		}
	}

	// Initialize session layer
	sessionStore := session.NewSessionStore(kv, cfg.SessionTTL)
	manager := session.NewManager(sessionStore, streamer, observer)

	// Initialize capture policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize capture submission
	crm := capture.NewCRMClient(cfg.CRMBaseURL, cfg.CRMAPIKey, 10*time.Second)
	submitter := capture.NewSubmitter(crm, capture.Options{
		Notifiers: []capture.Notifier{
			capture.NewHTTPNotifier("google_ads", cfg.GoogleAdsConversionURL, cfg.NotifyTimeout),
			capture.NewHTTPNotifier("meta_pixel", cfg.MetaPixelConversionURL, cfg.NotifyTimeout),
		},
		Policy:         policyEngine,
		WhatsAppNumber: cfg.WhatsAppNumber,
		SourceURL:      cfg.PortalURL,
		NotifyTimeout:  cfg.NotifyTimeout,
	})

	// Initialize handlers
	handler := api.NewHandler(manager, submitter, wsServer)

	// Create Echo server
	server := echo.New()
	server.HideBanner = true

	// Middleware
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())

	// Register routes
	handler.RegisterRoutes(server)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("Widget API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down leadchat...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Leadchat stopped")
}
