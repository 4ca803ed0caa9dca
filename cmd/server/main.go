package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClareAI/astra-voice-tools/internal/config"
	"github.com/ClareAI/astra-voice-tools/internal/handler"
	"github.com/ClareAI/astra-voice-tools/internal/services/onboarding"
	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// Server represents the voice tools server
type Server struct {
	config         *config.ToolsServiceConfig
	httpServer     *http.Server
	handlerManager *handler.HandlerManager
}

// NewServer creates a new voice tools server
func NewServer(ctx context.Context, cfg *config.ToolsServiceConfig) (*Server, error) {
	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler manager: %w", err)
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handlerManager.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: writeTimeout(cfg.CollaboratorTimeout),
			IdleTimeout:  60 * time.Second,
		},
		handlerManager: handlerManager,
	}, nil
}

// writeTimeout covers the longest onboarding chain plus slack for the store and response encoding
func writeTimeout(collaboratorTimeout time.Duration) time.Duration {
	return collaboratorTimeout*onboarding.MaxSequentialCalls + 15*time.Second
}

// Start starts background jobs and serves HTTP until Shutdown is called
func (s *Server) Start() error {
	s.handlerManager.StartBackgroundJobs()

	logger.Base().Info("Starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then stops background jobs and closes connections
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.httpServer.Shutdown(ctx)
	return errors.Join(httpErr, s.handlerManager.Close())
}

func main() {
	// Load .env file for local development if it exists
	// This will not override environment variables set by Helm/Docker
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	cfg := config.LoadToolsServiceConfig()

	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(cfg.LogEnv); err != nil {
		log.Printf("Failed to initialize zap logger, falling back to std log: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := NewServer(ctx, cfg)
	if err != nil {
		logger.Base().Fatal("Failed to create server", zap.Error(err))
	}
	logger.Base().Info("Server initialized successfully",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID),
		zap.String("db_driver", cfg.DBDriver))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Base().Fatal("Server failed to start", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Base().Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Base().Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Base().Info("Server stopped")
}
