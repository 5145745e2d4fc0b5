package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"duet/internal/config"
	"duet/internal/database"
	"duet/internal/events"
	"duet/internal/handlers"
	"duet/internal/logger"
	"duet/internal/occ"
	"duet/internal/repository"
	"duet/internal/security"
	"duet/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()
	log.Info("database connection established", "type", cfg.DatabaseType)

	if err := db.RunMigrations(ctx); err != nil {
		log.Fatal("failed to run migrations", "error", err)
	}
	log.Info("migrations completed")

	tokens, err := security.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatal("invalid token configuration", "error", err)
	}

	// Post-commit event delivery
	sinks := []events.Sink{events.NewLogSink(log)}
	if cfg.RedisAddr != "" {
		redisSink, err := events.NewRedisSink(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			log.Warn("redis sink disabled", "error", err)
		} else {
			defer redisSink.Close()
			sinks = append(sinks, redisSink)
		}
	}
	emailSink, err := events.NewEmailSink(ctx, log, events.EmailSinkConfig{
		AWSRegion:  cfg.AWSRegion,
		FromEmail:  cfg.SESFromEmail,
		FromName:   cfg.SESFromName,
		AppBaseURL: cfg.AppBaseURL,
	}, repository.NewUserRepository(db))
	if err != nil {
		log.Warn("email sink disabled", "error", err)
	} else {
		sinks = append(sinks, emailSink)
	}
	dispatcher := events.NewDispatcher(log, events.DispatcherConfig{}, sinks...)

	// Initialize services
	retry := occ.BackoffRetry()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	retry.InitialDelay = cfg.RetryInitialDelay
	retry.MaxDelay = cfg.RetryMaxDelay
	deps := service.Deps{
		DB:          db,
		Coordinator: occ.NewCoordinator(log, nil),
		Events:      dispatcher,
		Logger:      log,
		Policies:    &service.Policies{Update: occ.ImmediateFail(), Retry: retry},
	}
	userService := service.NewUserService(deps)
	contentService := service.NewContentService(deps)
	scheduleService := service.NewScheduleService(deps)
	coupleService := service.NewCoupleService(deps, cfg.InvitationTTL)
	tagService := service.NewTagService(deps)

	// Initialize handlers
	limiter := security.NewRateLimiter(cfg.WriteRateLimit, cfg.WriteRateWindow)
	middleware := handlers.NewMiddleware(tokens, userService, limiter, log)
	contentHandler := handlers.NewContentHandler(contentService, scheduleService, log)
	coupleHandler := handlers.NewCoupleHandler(userService, coupleService, tagService, tokens, log)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.NewRouter(middleware, contentHandler, coupleHandler, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		limiter.Run(gctx, time.Hour)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
	}
	if n := dispatcher.Dropped(); n > 0 {
		log.Warn("events dropped while the queue was full", "count", n)
	}
}
