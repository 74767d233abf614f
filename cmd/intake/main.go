package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"intake/internal/admin"
	"intake/internal/analytics"
	"intake/internal/auth"
	"intake/internal/config"
	"intake/internal/contact"
	"intake/internal/db"
	"intake/internal/lifecycle"
	"intake/internal/logger"
	"intake/internal/notify"
	"intake/internal/public"
	"intake/internal/ratelimit"
	"intake/internal/scheduler"

	"github.com/gin-gonic/gin"
)

// customRecovery is a middleware that recovers from panics and handles http.ErrAbortHandler gracefully.
func customRecovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"message": "An internal error occurred",
					"errors":  []string{"server_error"},
				})
			}
		}()
		c.Next()
	}
}

// application is the wired service with the background parts that need stopping.
type application struct {
	router     *gin.Engine
	dispatcher *notify.Dispatcher
	scheduler  *scheduler.Scheduler
	closers    []func() error
}

func newLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (*ratelimit.Limiter, func() error, error) {
	if cfg.RateLimit.Store == "redis" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info("Rate limiter using Redis")
		return ratelimit.NewLimiter(ratelimit.NewRedisStore(client), log), client.Close, nil
	}
	log.Info("Rate limiter using in-memory counters")
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(), log), nil, nil
}

// newNotifier combines the configured channels. The email notifier is also
// returned on its own so the daily report can use it.
func newNotifier(cfg *config.Config, log *slog.Logger) (notify.Notifier, *notify.EmailNotifier, []func() error, error) {
	var (
		notifiers notify.Multi
		email     *notify.EmailNotifier
		closers   []func() error
	)
	if cfg.SMTP.Host != "" {
		client, err := notify.NewSMTPClient(cfg.SMTP)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("error creating SMTP client: %w", err)
		}
		email = notify.NewEmailNotifier(client, cfg.SMTP, cfg.Admin.Emails, log)
		notifiers = append(notifiers, email)
		log.Info("Email notifications enabled", "host", cfg.SMTP.Host)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		kn := notify.NewKafkaNotifier(notify.NewKafkaWriter(cfg.Kafka))
		notifiers = append(notifiers, kn)
		closers = append(closers, kn.Close)
		log.Info("Kafka events enabled", "topic", cfg.Kafka.Topic)
	}
	if len(notifiers) == 0 {
		log.Warn("No notification channel configured, notifications are discarded")
		return notify.Noop{}, nil, nil, nil
	}
	return notifiers, email, closers, nil
}

func buildApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, database db.Service) (*application, error) {
	created, err := auth.EnsureReviewer(ctx, database, cfg.Admin.Username, cfg.Admin.Password, "")
	if err != nil {
		return nil, fmt.Errorf("error creating reviewer account: %w", err)
	}
	if created {
		log.Info("Reviewer account created", "username", cfg.Admin.Username)
	}

	limiter, closeLimiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("error creating rate limiter: %w", err)
	}
	app := &application{}
	if closeLimiter != nil {
		app.closers = append(app.closers, closeLimiter)
	}

	next, email, closers, err := newNotifier(cfg, log)
	if err != nil {
		app.close(log)
		return nil, err
	}
	app.closers = append(app.closers, closers...)
	app.dispatcher = notify.NewDispatcher(next, cfg.Notify.QueueSize, cfg.Notify.RatePerSecond, log)

	applications := lifecycle.NewService(database, app.dispatcher, log)
	contacts := contact.NewService(database, app.dispatcher, log)
	analyticsService := analytics.NewService(database, log)

	app.scheduler = scheduler.NewScheduler(analyticsService, cfg.Scheduler.AnalyticsSpec, log)
	if email != nil && len(cfg.Admin.Emails) > 0 {
		app.scheduler.EnableDailyReport(analyticsService, email, cfg.Scheduler.ReportSpec)
	}
	if err := app.scheduler.Start(); err != nil {
		app.scheduler = nil
		app.close(log)
		return nil, err
	}

	router := gin.New()
	router.Use(customRecovery(log))
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	public.SetupRoutes(router, public.NewHandler(applications, contacts, database, log), public.Limits{
		Limiter: limiter,
		ContactForm: ratelimit.Policy{
			Action:      "contact_form",
			MaxRequests: cfg.RateLimit.ContactForm.MaxRequests,
			Window:      cfg.RateLimit.ContactForm.WindowDuration(time.Hour),
		},
		PartnerApplication: ratelimit.Policy{
			Action:      "partner_application",
			MaxRequests: cfg.RateLimit.PartnerApplication.MaxRequests,
			Window:      cfg.RateLimit.PartnerApplication.WindowDuration(24 * time.Hour),
		},
	}, log)
	admin.SetupRoutes(router, admin.NewHandler(database, applications, contacts, analyticsService,
		admin.Config{JWTSecret: cfg.Admin.JWTSecret, TokenTTL: cfg.Admin.TokenTTL(), EmailEnabled: email != nil}, log))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Page not found"})
	})

	app.router = router
	return app, nil
}

// close stops the scheduler, drains pending notifications and releases connections.
func (a *application) close(log *slog.Logger) {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			log.Error("Error closing resource", "error", err)
		}
	}
}

func setupAndRunServer(cfg *config.Config, log *slog.Logger, database db.Service) error {
	app, err := buildApplication(context.Background(), cfg, log, database)
	if err != nil {
		return err
	}
	defer app.close(log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exiting")
	return nil
}

func main() {
	cfg, warning, err := config.LoadConfig("config.yaml")
	if err != nil {
		// Use a temporary logger for startup errors
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Debug: cfg.Debug, Format: cfg.Log.Format, File: cfg.Log.File})
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.NewService(cfg.Database)
	if err != nil {
		log.Error("Error initializing database", "error", err)
		os.Exit(1)
	}
	log.Info("Database initialized", "type", cfg.Database.Type)

	if err := setupAndRunServer(cfg, log, database); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}
