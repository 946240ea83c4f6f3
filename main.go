package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ehcaw/lsclear-backend/internal/config"
	"github.com/ehcaw/lsclear-backend/internal/database"
	"github.com/ehcaw/lsclear-backend/internal/handlers"
	"github.com/ehcaw/lsclear-backend/internal/logging"
	"github.com/ehcaw/lsclear-backend/internal/terminal"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	config.Load()
	logging.Init()

	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	termController := terminal.NewController(terminal.Config{
		ShellCommand:   config.Cfg.ShellCommand,
		IdleTimeout:    config.Duration(config.Cfg.IdleTimeout, 15*time.Minute),
		SpawnTimeout:   config.Duration(config.Cfg.SpawnTimeout, 10*time.Second),
		TerminateGrace: config.Duration(config.Cfg.TerminateGrace, 5*time.Second),
		MaxSessions:    config.Cfg.MaxSessions,
		ScrollbackSize: config.Cfg.ScrollbackSize,
		SweepInterval:  config.Duration(config.Cfg.SweepInterval, time.Minute),
	})
	handlers.Terminals = termController

	if err := termController.StartSweeper(); err != nil {
		log.Fatalf("Idle sweeper: %v", err)
	}
	log.Printf("Terminal controller initialized (shell=%q, idle_timeout=%s, max_sessions=%d)",
		config.Cfg.ShellCommand, config.Cfg.IdleTimeout, config.Cfg.MaxSessions)

	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	// Health (no auth)
	r.Get("/health", handlers.HealthCheck)

	// Terminal session control surface
	r.Post("/terminal/start", handlers.StartTerminalSession)
	r.Post("/terminal/cleanup/{userID}", handlers.CleanupUserSessions)
	r.Get("/terminal/ws/{sessionID}", handlers.TerminalWS)
	r.Get("/terminal/{sessionID}", handlers.TerminalStatus)
	r.Delete("/terminal/{sessionID}", handlers.StopTerminalSession)

	// Collaborator surfaces consumed by the editor frontend
	r.Get("/api/files/tree", handlers.FileTree)
	r.Get("/api/logs", handlers.GetServerLogs)
	r.Delete("/api/logs", handlers.ClearServerLogs)

	srv := &http.Server{
		Addr:    config.Cfg.ListenAddr,
		Handler: r,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", config.Cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	termController.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
