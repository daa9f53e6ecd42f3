package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	httpapi "github.com/i474232898/meteo-ensemble/internal/api/http"
	"github.com/i474232898/meteo-ensemble/internal/app"
	"github.com/i474232898/meteo-ensemble/internal/config"
	"github.com/i474232898/meteo-ensemble/internal/log"
	"github.com/i474232898/meteo-ensemble/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap logger until the configured level is known.
	if err := log.Init("info"); err != nil {
		panic(err)
	}

	// Load configuration.
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer log.Sync()

	// Core service orchestrating geocoder, models, cache and metrics.
	components := app.Build(cfg, true)
	service := components.Service

	// Scheduler that keeps the configured places warm and purges the cache.
	var purger scheduler.Purger
	if components.Cache != nil {
		purger = components.Cache
	}
	sched := scheduler.New(cfg.WarmLocations, cfg.WarmInterval, service, purger)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	srv := fiber.New(fiber.Config{
		AppName:               "meteo-ensemble",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	srv.Use(requestid.New())
	srv.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	srv.Use(recover.New())

	srv.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "meteo-ensemble",
			"models":  len(service.Models()),
		})
	})
	if components.Metrics != nil {
		srv.Get("/metrics", adaptor.HTTPHandler(components.Metrics.Handler()))
	}

	// API routes.
	httpapi.RegisterRoutes(srv, service, cfg.MaxDays)

	go func() {
		log.Infow("listening", "addr", cfg.Addr, "models", cfg.Models)
		if err := srv.Listen(cfg.Addr); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
