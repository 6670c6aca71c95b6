package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-admission-api/api/swagger"
	"github.com/noah-isme/uni-admission-api/internal/handler"
	"github.com/noah-isme/uni-admission-api/internal/middleware"
	"github.com/noah-isme/uni-admission-api/internal/repository"
	"github.com/noah-isme/uni-admission-api/internal/service"
	"github.com/noah-isme/uni-admission-api/pkg/cache"
	"github.com/noah-isme/uni-admission-api/pkg/config"
	"github.com/noah-isme/uni-admission-api/pkg/database"
	"github.com/noah-isme/uni-admission-api/pkg/jobs"
	"github.com/noah-isme/uni-admission-api/pkg/logger"
	"github.com/noah-isme/uni-admission-api/pkg/mail"
	corsmiddleware "github.com/noah-isme/uni-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-admission-api/pkg/middleware/requestid"
	"github.com/noah-isme/uni-admission-api/pkg/storage"

	"github.com/go-playground/validator/v10"
)

// @title University Admission Portal API
// @version 1.0.0
// @description Campaign catalog, envoy referrals and student enrollment tracking
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	// Redis is optional: catalog caching and rate limiting degrade gracefully
	// when it is unreachable.
	var cacheRepo *repository.CacheRepository
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting disabled", "error", err)
	} else {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
	}

	avatars, err := storage.NewLocalStorage(cfg.Avatars.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init avatar storage", "error", err)
	}

	var mailer mail.Mailer
	if cfg.Mail.SendGridKey != "" {
		mailer = mail.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.AppName, cfg.Mail.FromEmail)
	} else {
		logr.Sugar().Infow("no sendgrid key configured, logging outbound mail instead")
		mailer = mail.NewConsoleMailer(logr)
	}

	mailQueue := jobs.NewQueue("mail", func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(mail.Message)
		if !ok {
			return fmt.Errorf("unexpected mail payload type %T", job.Payload)
		}
		return mailer.Send(ctx, msg)
	}, jobs.QueueConfig{
		Workers:    cfg.Mail.WorkerConcurrency,
		MaxRetries: cfg.Mail.WorkerRetries,
		Logger:     logr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	seeder := service.NewSeedService(db, service.SeedConfig{
		RootEmail:    cfg.Seed.RootEmail,
		RootPassword: cfg.Seed.RootPassword,
	}, logr)
	if err := seeder.Run(ctx); err != nil {
		logr.Sugar().Fatalw("failed to seed reference data", "error", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	admissionRepo := repository.NewAdmissionRepository(db)
	presenterRepo := repository.NewPresenterRepository(db)
	studentRepo := repository.NewStudentRepository(db)

	var cacheSvc *service.CacheService
	if cacheRepo != nil {
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	} else {
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Catalog.CacheTTL, logr, false)
	}

	authSvc := service.NewAuthService(userRepo, avatars, mailQueue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	admissionSvc := service.NewAdmissionService(admissionRepo, cacheSvc, validate, logr)
	envoySvc := service.NewEnvoyService(presenterRepo, admissionRepo, userRepo, metricsSvc, logr)
	rosterSvc := service.NewRosterService(studentRepo, presenterRepo, admissionRepo, metricsSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	admissionHandler := handler.NewAdmissionHandler(admissionSvc)
	envoyHandler := handler.NewEnvoyHandler(envoySvc, rosterSvc)
	rosterHandler := handler.NewRosterHandler(rosterSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	rateLimit := func(route string, limit int, window time.Duration) gin.HandlerFunc {
		if cacheRepo == nil || !cfg.RateLimit.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimit(cacheRepo, metricsSvc, logr, route, int64(limit), window)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Referral links point here; a session is not required but claims are
	// attached when present.
	r.POST("/mocks/student/apply", middleware.OptionalJWT(authSvc), rosterHandler.Apply)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", rateLimit("register", cfg.RateLimit.RegisterPerSec, time.Second), authHandler.Register)
			auth.GET("/activate", authHandler.Activate)
			auth.GET("/check-email", authHandler.CheckEmail)
			auth.POST("/check-email", authHandler.CheckEmail)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/envoy-types", authHandler.EnvoyTypes)

			session := auth.Group("", middleware.JWT(authSvc))
			{
				session.POST("/logout", rateLimit("logout", cfg.RateLimit.LogoutPerMin, time.Minute), authHandler.Logout)
				session.GET("/me", authHandler.Me)
				session.GET("/profile", authHandler.Profile)
				session.PUT("/profile", authHandler.UpdateProfile)
			}
		}

		admissions := api.Group("/admissions")
		{
			admissions.GET("/available", admissionHandler.ListAvailable)
			admissions.GET("/running", admissionHandler.ListRunning)
			admissions.GET("/finished", admissionHandler.ListFinished)

			envoy := admissions.Group("", middleware.JWT(authSvc))
			{
				envoy.POST("/:id/join", envoyHandler.Join)
				envoy.GET("/:id/link", envoyHandler.Link)
			}

			staff := admissions.Group("", middleware.JWT(authSvc), middleware.RequireStaff())
			{
				staff.GET("/types", admissionHandler.ListTypes)
				staff.POST("/types", admissionHandler.CreateType)
				staff.GET("/:id", admissionHandler.Get)
				staff.POST("", admissionHandler.Create)
				staff.PUT("/:id", admissionHandler.Update)
				staff.POST("/:id/finish", admissionHandler.Finish)
				staff.DELETE("/:id", admissionHandler.Delete)
				staff.GET("/:id/envoys", envoyHandler.List)
				staff.GET("/:id/students", rosterHandler.Students)
				staff.GET("/:id/students/export", rosterHandler.Export)
			}
		}

		envoys := api.Group("/envoys", middleware.JWT(authSvc), middleware.RequireStaff())
		{
			envoys.POST("/:id/approve", envoyHandler.Approve)
			envoys.DELETE("/:id", envoyHandler.Remove)
			envoys.GET("/:id/rewards", envoyHandler.Rewards)
			envoys.POST("/:id/students/:studentId/paid", rosterHandler.MarkPaid)
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
