package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bestcars/dealer-review/config"
	"github.com/bestcars/dealer-review/internal/cache"
	"github.com/bestcars/dealer-review/internal/guard"
	"github.com/bestcars/dealer-review/internal/handlers"
	"github.com/bestcars/dealer-review/internal/middleware"
	"github.com/bestcars/dealer-review/internal/services"
	"github.com/bestcars/dealer-review/internal/web"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	"github.com/bestcars/dealer-review/pkg/httpclient"
	"github.com/bestcars/dealer-review/pkg/jwt"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	"github.com/bestcars/dealer-review/pkg/profiling"
	"github.com/bestcars/dealer-review/pkg/recaptcha"
	"github.com/bestcars/dealer-review/pkg/tracing"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const maxFormBodySize = 64 * 1024

// registerReviewRoutes registers the review page and its JSON twin
func registerReviewRoutes(
	router *gin.Engine,
	pageRateLimiter, submitRateLimiter *middleware.RateLimiter,
	identity gin.HandlerFunc,
	reviewHandler *handlers.ReviewPageHandler,
) {
	page := router.Group("/postreview", identity)
	page.GET("/:id", pageRateLimiter.Middleware(), reviewHandler.ShowPage)
	page.POST("/:id", submitRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(maxFormBodySize), reviewHandler.SubmitPage)

	v1 := router.Group("/api/v1/postreview", identity)
	v1.GET("/:id", pageRateLimiter.Middleware(), reviewHandler.GetState)
	v1.POST("/:id", submitRateLimiter.Middleware(), middleware.BodySizeLimitMiddleware(maxFormBodySize), reviewHandler.PostReview)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	err = logger.Initialize(logger.Config{
		Level:       cfg.Logging.Level,
		LogDir:      cfg.Logging.Dir,
		Environment: cfg.Server.AppEnv,
		ServiceName: cfg.Observability.ServiceName,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting dealer review service",
		zap.String("version", cfg.Observability.ServiceVersion),
		zap.String("environment", cfg.Server.AppEnv),
	)

	tracerShutdown, err := tracing.InitTracer(tracing.Config{
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
		ExporterEndpoint:  cfg.Observability.ExporterEndpoint,
	})
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tracerShutdown(ctx); shutdownErr != nil {
			logger.Error("Failed to shutdown tracer", zap.Error(shutdownErr))
		}
	}()

	stopProfiler, err := profiling.InitProfiler(profiling.Config{
		Enabled:           cfg.Profiling.Enabled,
		Endpoint:          cfg.Profiling.Endpoint,
		AppName:           cfg.Profiling.AppName,
		SampleTypes:       cfg.Profiling.SampleTypes,
		UploadInterval:    time.Duration(cfg.Profiling.UploadIntervalSeconds) * time.Second,
		ServiceName:       cfg.Observability.ServiceName,
		ServiceNamespace:  cfg.Observability.ServiceNamespace,
		ServiceVersion:    cfg.Observability.ServiceVersion,
		ServiceInstanceID: cfg.Observability.ServiceInstanceID,
		Environment:       cfg.Server.AppEnv,
	})
	if err != nil {
		logger.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	defer stopProfiler()

	metrics.Init(cfg.Observability.ServiceName)
	metrics.RecordInfrastructureMetrics()

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// Upstream collaborators
	httpClient := httpclient.NewClientWithTimeout(time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second)
	dealerClient := dealerapi.NewClient(cfg.Upstream.BaseURL, httpClient)
	catalogCache := cache.NewCatalogCache(time.Duration(cfg.Cache.CarCatalogTTLSeconds) * time.Second)
	if cfg.Upstream.BaseURL == "" {
		logger.Info("Upstream base URL will be derived from the public origin",
			zap.String("origin", cfg.Server.AllowedOrigins[0]))
	}

	// Submission guard: shared through redis when configured
	guardTTL := time.Duration(cfg.SubmissionGuard.TTLSeconds) * time.Second
	var submissionGuard guard.Guard = guard.NewMemoryGuard(guardTTL)
	if cfg.SubmissionGuard.RedisURL != "" {
		redisGuard, err := guard.NewRedisGuard(appCtx, cfg.SubmissionGuard.RedisURL, guardTTL)
		if err != nil {
			logger.Fatal("Failed to initialize submission guard", zap.Error(err))
		}
		defer redisGuard.Close()
		submissionGuard = redisGuard
	}

	var captcha services.CaptchaVerifier
	if verifier := recaptcha.NewVerifier(cfg.ReCAPTCHA.SecretKey, httpClient); verifier != nil {
		captcha = verifier
	}

	var tokenManager *jwt.TokenManager
	if cfg.Session.JWTSecret != "" {
		tokenManager = jwt.NewTokenManager(cfg.Session.JWTSecret, cfg.Session.JWTIssuer, 24)
	} else {
		logger.Warn("SESSION_JWT_SECRET not set: reviewer names are read from plain cookies")
	}

	// Services and handlers
	reviewService := services.NewReviewPageService(
		services.NewUpstreamResolver(dealerClient, cfg.Upstream.BaseURL, catalogCache),
		submissionGuard,
		services.ReviewPageServiceOptions{
			Captcha:    captcha,
			HTTPClient: httpClient,
			TriggerURL: cfg.EventTriggers.ReviewPostedTriggerURL,
		},
	)
	reviewHandler := handlers.NewReviewPageHandler(reviewService, cfg.ReCAPTCHA.SiteKey, cfg.Server.AllowedOrigins)
	healthHandler := handlers.NewHealthHandler(func() (bool, string) {
		if !dealerClient.Available() {
			return false, "dealer service circuit open"
		}
		return true, ""
	})

	templates, err := web.Templates()
	if err != nil {
		logger.Fatal("Failed to parse page templates", zap.Error(err))
	}

	// Set up Gin router
	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.SetHTMLTemplate(templates)

	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Observability.ServiceName))
	router.Use(middleware.ObservabilityMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	allowedOrigins := append([]string{}, cfg.Server.AllowedOrigins...)
	if cfg.IsDevelopment() {
		allowedOrigins = append(allowedOrigins, "http://localhost:3000", "http://127.0.0.1:3000")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "traceparent", "tracestate"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true, // session cookies carry the reviewer name
		MaxAge:           12 * time.Hour,
	}))

	generalRateLimiter := middleware.NewRateLimiter(appCtx, 100, 200) // 100 req/sec, burst of 200
	pageRateLimiter := middleware.NewRateLimiter(appCtx, 20, 40)      // 20 req/sec, burst of 40
	submitRateLimiter := middleware.NewRateLimiter(appCtx, 1, 5)      // 1 req/sec, burst of 5

	api := router.Group("/api")
	api.GET("/healthcheck", generalRateLimiter.Middleware(), healthHandler.Healthcheck)
	api.GET("/metrics", generalRateLimiter.Middleware(), gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	registerReviewRoutes(router, pageRateLimiter, submitRateLimiter,
		middleware.IdentityMiddleware(tokenManager, cfg.Session.CookieName), reviewHandler)

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		// a submission may wait the full upstream timeout
		WriteTimeout:   time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("Server started", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
