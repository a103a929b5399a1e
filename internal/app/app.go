// Package app wires configuration, the FAQ index, the LINE webhook and the
// HTTP server together and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyellow/faq-linebot-go/internal/bot"
	"github.com/garyellow/faq-linebot-go/internal/buildinfo"
	"github.com/garyellow/faq-linebot-go/internal/config"
	"github.com/garyellow/faq-linebot-go/internal/corpussync"
	"github.com/garyellow/faq-linebot-go/internal/ctxutil"
	"github.com/garyellow/faq-linebot-go/internal/logger"
	"github.com/garyellow/faq-linebot-go/internal/metrics"
	"github.com/garyellow/faq-linebot-go/internal/ratelimit"
	"github.com/garyellow/faq-linebot-go/internal/sentry"
	"github.com/garyellow/faq-linebot-go/internal/warmup"
	"github.com/garyellow/faq-linebot-go/internal/webhook"
)

const serviceName = "faq-linebot-go"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	syncer         *corpussync.Syncer // nil unless R2 is enabled
	webhookHandler *webhook.Handler
	userLimiter    *ratelimit.KeyedLimiter
	noticeLimiter  *ratelimit.KeyedLimiter
	readinessState *warmup.ReadinessState
	server         *http.Server
	wg             sync.WaitGroup // background goroutines
}

// Initialize creates and initializes a new application with all dependencies.
// The FAQ index is built later, in the background, by Run.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})
	log = log.WithField("service", serviceName)
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}
	// Package-level slog calls get the context handler too.
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		Token:       cfg.SentryToken,
		Host:        cfg.SentryHost,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed, error reporting disabled")
	} else if sentry.IsEnabled() {
		log.WithField("host", cfg.SentryHost).Info("Sentry error reporting enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	var syncer *corpussync.Syncer
	r2, err := NewR2Client(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if r2 != nil {
		syncer = corpussync.NewSyncer(r2, SyncConfig(cfg), log, m)
		log.WithField("bucket", r2.Bucket()).WithField("prefix", cfg.R2.Prefix).Info("R2 corpus sync enabled")
	}

	userLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          ratelimit.MetricTypeUser,
		Burst:         cfg.Bot.UserRateLimitBurst,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	// One notice per time it takes the user bucket to refill completely.
	noticeLimiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          ratelimit.MetricTypeNotice,
		Burst:         1,
		RefillRate:    cfg.Bot.UserRateLimitRefillPerSec / max(cfg.Bot.UserRateLimitBurst, 1),
		CleanupPeriod: config.RateLimiterCleanupInterval,
	})

	readiness := warmup.NewReadinessState(cfg.CorpusLoadTimeout)

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Matchers:      readiness,
		UserLimiter:   userLimiter,
		NoticeLimiter: noticeLimiter,
		Logger:        log,
		Metrics:       m,
		BotConfig:     &cfg.Bot,
		Fallback:      cfg.FallbackAnswer,
	})

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		BotConfig:     &cfg.Bot,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}

	app := &Application{
		cfg:            cfg,
		logger:         log,
		metrics:        m,
		registry:       registry,
		syncer:         syncer,
		webhookHandler: webhookHandler,
		userLimiter:    userLimiter,
		noticeLimiter:  noticeLimiter,
		readinessState: readiness,
	}

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func (a *Application) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(sentry.Middleware())
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.index)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.POST("/callback", a.readinessMiddleware(), a.webhookHandler.Handle)
	router.POST("/webhook", a.readinessMiddleware(), a.webhookHandler.Handle)
	router.GET("/metrics",
		metricsAuthMiddleware(a.cfg.MetricsUsername, a.cfg.MetricsPassword),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

func (a *Application) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": serviceName,
		"version": buildinfo.Release(),
	})
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (a *Application) readinessCheck(c *gin.Context) {
	status := a.readinessState.Status()
	if !status.Ready {
		a.logger.WithField("elapsed_seconds", status.ElapsedSeconds).
			WithField("timeout_seconds", status.TimeoutSeconds).
			Debug("Readiness check: index build in progress")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": status.Reason,
			"progress": gin.H{
				"elapsed_seconds": status.ElapsedSeconds,
				"timeout_seconds": status.TimeoutSeconds,
			},
		})
		return
	}

	resp := gin.H{"status": "ready"}
	if m := a.readinessState.Matcher(); m != nil {
		resp["index"] = m.Stats()
	} else {
		resp["degraded"] = status.Reason
	}
	c.JSON(http.StatusOK, resp)
}

// readinessMiddleware rejects webhook requests with 503 until the index is
// built. LINE redelivers them later.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	retryAfter := int(config.ReadinessRetryAfter.Seconds())
	return func(c *gin.Context) {
		if a.readinessState.IsReady() {
			c.Next()
			return
		}
		a.logger.WithField("elapsed_seconds", a.readinessState.Status().ElapsedSeconds).
			Debug("Webhook rejected: index build in progress")
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":       "index build in progress",
			"retry_after": retryAfter,
		})
	}
}

// Run starts the HTTP server and the index build, then blocks until SIGINT
// or SIGTERM and shuts everything down.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.startBackgroundJobs(ctx)
	serverErr := a.startHTTPServer()

	select {
	case sig := <-a.shutdownSignal():
		a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErr:
		a.logger.WithError(err).Error("HTTP server stopped unexpectedly")
		sentry.CaptureException(err)
		cancel()
		a.wg.Wait()
		_ = a.shutdown()
		return err
	}

	cancel()
	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs builds the FAQ index without blocking startup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				a.logger.WithField("panic", r).Error("Panic while building FAQ index")
				sentry.CapturePanic(ctx, "warmup", r)
			}
		}()
		a.buildIndex(ctx)
	})
}

func (a *Application) buildIndex(ctx context.Context) {
	tok := NewTokenizer(a.cfg, a.logger)
	onPanic := func(recovered any) {
		a.logger.WithField("panic", recovered).Error("Recovered panic in FAQ matcher")
		sentry.CapturePanic(context.Background(), "matcher", recovered)
	}
	warmup.RunAndPublish(ctx, a.readinessState, a.cfg.CorpusLoadTimeout, a.logger, warmup.Options{
		Paths:          FAQPaths(a.cfg),
		Tokenizer:      tok,
		MatcherOptions: MatcherOptions(a.cfg, onPanic),
		Syncer:         a.syncer,
		Metrics:        a.metrics,
	})
}

// startHTTPServer serves in a goroutine. The channel receives the error if
// the listener fails.
func (a *Application) startHTTPServer() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func (a *Application) shutdownSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}

// shutdown stops accepting requests, drains in-flight webhook events and
// then releases resources.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.userLimiter.Stop()
	a.noticeLimiter.Stop()

	if sentry.IsEnabled() && !sentry.Flush(2*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	a.logger.Info("Shutdown complete")
	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Logger shutdown timed out", "error", err)
	}
	return nil
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// requestIDHeaders are checked in order for an upstream request ID.
var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// loggingMiddleware tags each request with an ID, reusing an upstream one
// when present, and logs it with a level chosen by status: 5xx error, other
// 4xx warn, everything else debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var requestID string
		for _, h := range requestIDHeaders {
			if requestID = c.GetHeader(h); requestID != "" {
				break
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		status := c.Writer.Status()
		entry := log.WithRequestID(requestID).
			WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			WithField("client_ip", c.ClientIP())

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status >= 400 && status != http.StatusNotFound:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
