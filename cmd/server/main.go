package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/occasions/api/internal/config"
	"github.com/forgo/occasions/api/internal/database"
	"github.com/forgo/occasions/api/internal/handler"
	"github.com/forgo/occasions/api/internal/jobs"
	"github.com/forgo/occasions/api/internal/middleware"
	"github.com/forgo/occasions/api/internal/repository"
	"github.com/forgo/occasions/api/internal/service"
	"github.com/forgo/occasions/api/migrations"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	location, _ := cfg.Server.Location() // checked by Validate

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Apply schema
	schema, err := migrations.All()
	if err != nil {
		slog.Error("failed to load migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db, schema); err != nil {
		slog.Error("failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize repositories
	occasionRepo := repository.NewOccasionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)

	// Initialize notification hub for live updates
	hub := service.NewNotificationHub(cfg.Server.HeartbeatInterval)
	defer hub.Close()

	// Initialize services
	occasionService := service.NewOccasionService(service.OccasionServiceConfig{
		OccasionRepo:   occasionRepo,
		AttendanceRepo: attendanceRepo,
		Notifier:       hub,
		Location:       location,
	})

	userService := service.NewUserService(service.UserServiceConfig{
		UserRepo: userRepo,
		Groups:   groupRepo,
	})

	groupService := service.NewGroupService(service.GroupServiceConfig{
		GroupRepo: groupRepo,
		UserRepo:  userRepo,
		Creator:   userService,
		Notifier:  hub,
	})

	// Initialize job queue; failed jobs from a previous run are re-added first
	registry := jobs.NewRegistry()
	jobs.RegisterOccasionJobs(registry, jobs.NewOccasionLifecycle(occasionRepo, hub, nil, logger))

	failureLog := jobs.NewFailureLog(cfg.Jobs.FailureLogPath)
	queue := jobs.NewQueue(registry, failureLog, jobs.QueueConfig{
		RetryDelay: cfg.Jobs.RetryDelay,
		MaxRetries: cfg.Jobs.MaxRetries,
		Logger:     logger,
	})
	if err := queue.Start(ctx); err != nil {
		slog.Error("failed to reload failed jobs", slog.String("error", err.Error()))
		os.Exit(1)
	}

	scheduler := jobs.NewScheduler(queue, []jobs.ScheduleEntry{
		{Kind: jobs.KindStartOccasions, Priority: cfg.Jobs.StartPriority, Interval: cfg.Jobs.StartInterval},
		{Kind: jobs.KindEndOccasions, Priority: cfg.Jobs.EndPriority, Interval: cfg.Jobs.EndInterval},
	}, logger)
	scheduler.Start()

	// Initialize rate limiter for credential endpoints
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Rate:   cfg.Server.RateLimitPerMinute,
		Window: time.Minute,
		Burst:  cfg.Server.RateLimitBurst,
	})
	defer rateLimiter.Stop()
	limited := middleware.RateLimit(rateLimiter)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(db)
	occasionHandler := handler.NewOccasionHandler(occasionService)
	userHandler := handler.NewUserHandler(userService)
	groupHandler := handler.NewGroupHandler(groupService)
	eventsHandler := handler.NewEventsHandler(hub)
	liveHandler := handler.NewLiveHandler(hub, cfg.Server.AllowedOrigins, logger)
	jobsHandler := handler.NewJobsHandler(queue, failureLog)

	// Create router and register routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Occasion endpoints
	mux.HandleFunc("POST /v1/occasions", occasionHandler.Create)
	mux.HandleFunc("GET /v1/occasions", occasionHandler.List)
	mux.HandleFunc("GET /v1/occasions/groups", occasionHandler.GroupByParty)
	mux.HandleFunc("GET /v1/occasions/{occasionId}", occasionHandler.Get)
	mux.HandleFunc("PATCH /v1/occasions/{occasionId}", occasionHandler.Update)
	mux.HandleFunc("DELETE /v1/occasions/{occasionId}", occasionHandler.Delete)
	mux.HandleFunc("GET /v1/occasions/{occasionId}/attendance", occasionHandler.Attendance)

	// Member endpoints
	mux.Handle("POST /v1/users", limited(http.HandlerFunc(userHandler.Create)))
	mux.HandleFunc("GET /v1/users", userHandler.List)
	mux.HandleFunc("GET /v1/users/count", userHandler.Count)
	mux.HandleFunc("GET /v1/users/count/{group}", userHandler.CountByGroup)
	mux.HandleFunc("GET /v1/users/{userId}", userHandler.Get)
	mux.HandleFunc("PATCH /v1/users/{userId}", userHandler.Update)
	mux.HandleFunc("DELETE /v1/users/{userId}", userHandler.Delete)
	mux.Handle("POST /v1/auth/login", limited(http.HandlerFunc(userHandler.Login)))

	// Group endpoints
	mux.HandleFunc("GET /v1/groups", groupHandler.List)
	mux.Handle("POST /v1/groups", limited(http.HandlerFunc(groupHandler.Create)))
	mux.HandleFunc("GET /v1/groups/{groupId}", groupHandler.Get)
	mux.HandleFunc("PATCH /v1/groups/{groupId}", groupHandler.Update)
	mux.HandleFunc("DELETE /v1/groups/{groupId}", groupHandler.Delete)
	mux.HandleFunc("POST /v1/groups/{groupId}/admin", groupHandler.TransferAdmin)
	mux.HandleFunc("GET /v1/groups/{groupId}/members", groupHandler.Members)
	mux.HandleFunc("POST /v1/groups/{groupId}/members", groupHandler.AddMember)
	mux.HandleFunc("GET /v1/groups/{groupId}/members/count", groupHandler.CountMembers)
	mux.HandleFunc("DELETE /v1/groups/{groupId}/members/{userId}", groupHandler.RemoveMember)
	mux.HandleFunc("POST /v1/groups/{groupId}/members/{userId}/transfer", groupHandler.TransferMember)

	// Live updates
	mux.HandleFunc("GET /v1/events/stream", eventsHandler.Stream)
	mux.HandleFunc("GET /v1/live", liveHandler.Serve)

	// Job queue diagnostics
	mux.HandleFunc("GET /v1/admin/jobs", jobsHandler.Status)

	// Apply global middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger(logger),
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.Compress,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
			slog.String("timezone", location.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop producing jobs before draining the queue
	scheduler.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if err := queue.Close(shutdownCtx); err != nil {
		slog.Error("job queue did not drain", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
