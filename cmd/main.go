// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"class-enroll/internal/auth"
	"class-enroll/internal/config"
	"class-enroll/internal/database"
	"class-enroll/internal/handler"
	"class-enroll/internal/monitoring"
	"class-enroll/internal/notify"
	"class-enroll/internal/repository"
	"class-enroll/internal/service"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).
		With("service", "class-enroll")

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// ── 1. Connect to PostgreSQL and apply migrations ─────────────────────
	if err := repository.Migrate("up", cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	// ── 2. Wire up layers ─────────────────────────────────────────────────
	classRegistry := repository.NewPostgresClassRegistry(pool)
	ledger := repository.NewPostgresApplicationLedger(pool)
	userRepo := repository.NewPostgresUserRepository(pool)

	dispatcher := notify.NewDispatcher(
		&notify.LogSink{Logger: logger},
		logger,
		cfg.NotifyBuffer,
		monitoring.RecordNotificationDropped,
	)
	defer dispatcher.Close()

	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)
	classSvc := service.NewClassService(classRegistry)
	admissionSvc := service.NewAdmissionService(classRegistry, ledger, dispatcher)
	userSvc := service.NewUserService(userRepo, tokens)
	h := handler.New(classSvc, admissionSvc, userSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(logger))
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	authenticated := handler.Authenticator(tokens)
	limited := handler.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	r.Route("/api", func(r chi.Router) {
		r.With(limited).Post("/users", h.RegisterUser)
		r.With(limited).Post("/sessions", h.Login)

		r.Route("/classes", func(r chi.Router) {
			r.Get("/", h.ListClasses)
			r.Get("/{id}", h.GetClass)
			r.Get("/{id}/applications", h.ListClassApplications)
			r.Get("/{id}/occupancy", h.GetOccupancy)

			r.Group(func(r chi.Router) {
				r.Use(authenticated, limited)
				r.Post("/", h.CreateClass)
				r.Delete("/{id}", h.DeleteClass)
				r.Post("/{id}/applications", h.Apply)
				r.Delete("/{id}/applications", h.CancelApplication)
			})
		})

		r.With(authenticated).Get("/users/me/applications", h.ListMyApplications)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
