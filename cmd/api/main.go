package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sakolwit/school-portal-api/api/swagger"
	"github.com/sakolwit/school-portal-api/internal/handler"
	"github.com/sakolwit/school-portal-api/internal/middleware"
	"github.com/sakolwit/school-portal-api/internal/models"
	"github.com/sakolwit/school-portal-api/internal/repository"
	"github.com/sakolwit/school-portal-api/internal/service"
	"github.com/sakolwit/school-portal-api/pkg/cache"
	"github.com/sakolwit/school-portal-api/pkg/config"
	"github.com/sakolwit/school-portal-api/pkg/database"
	"github.com/sakolwit/school-portal-api/pkg/jobs"
	"github.com/sakolwit/school-portal-api/pkg/logger"
	corsmiddleware "github.com/sakolwit/school-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sakolwit/school-portal-api/pkg/middleware/requestid"
	"github.com/sakolwit/school-portal-api/pkg/secure"
)

// @title School Portal API
// @version 1.0.0
// @description Conduct score ledger and school portal backend
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	var fieldCipher *secure.FieldCipher
	if cfg.Secure.EncryptionKey != "" {
		fieldCipher, err = secure.NewFieldCipher(cfg.Secure.EncryptionKey)
		if err != nil {
			logr.Fatal("invalid encryption key", zap.Error(err))
		}
	} else {
		logr.Warn("encryption key not configured, citizen ids stored in plaintext")
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	termRepo := repository.NewTermRepository(db)
	conductRepo := repository.NewConductRepository(db, cfg.Conduct.AppendRetries)
	notificationRepo := repository.NewNotificationRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	termSvc := service.NewTermService(termRepo, nil, logr)
	conductSvc := service.NewConductService(conductRepo, studentRepo, userRepo, termSvc, nil, logr, service.ConductConfig{
		DefaultScore: cfg.Conduct.DefaultScore,
		MaxDelta:     cfg.Conduct.MaxDelta,
	})
	backfillSvc := service.NewBackfillService(conductRepo, termSvc, logr, cfg.Conduct.DefaultScore)
	studentSvc := service.NewStudentService(studentRepo, fieldCipher, nil, logr, cfg.Conduct.DefaultScore)

	dispatchQueue := jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		// Delivery targets (mail, push) hang off this handler; storing the
		// announcement is already done by the time the job runs.
		logr.Info("notification dispatched", zap.String("job", job.ID))
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		Logger:     logr,
	})
	dispatchQueue.Start(context.Background())
	defer dispatchQueue.Stop()

	notificationSvc := service.NewNotificationService(notificationRepo, dispatchQueue, nil, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	conductHandler := handler.NewConductHandler(conductSvc, metricsSvc)
	termHandler := handler.NewTermHandler(termSvc, backfillSvc, metricsSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.RateLimit(redisClient, cfg.RateLimit, logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	staffRoles := []models.UserRole{models.RoleAdmin, models.RoleTeacher, models.RoleAffairs}

	conduct := api.Group("/conduct", middleware.JWT(authSvc))
	conduct.GET("/me", conductHandler.MyScore)
	conduct.GET("/students/:id", middleware.RequireRoles(staffRoles...), conductHandler.StudentScore)
	conduct.GET("/students/:id/export", middleware.RequireRoles(staffRoles...), conductHandler.ExportHistory)
	conduct.POST("/logs", middleware.RequireRoles(staffRoles...), conductHandler.Append)
	conduct.GET("/terms", termHandler.List)
	conduct.POST("/terms", middleware.RequireRoles(models.RoleAdmin), termHandler.Create)
	conduct.POST("/terms/backfill", middleware.RequireRoles(models.RoleAdmin), termHandler.Backfill)
	conduct.GET("/verify", middleware.RequireRoles(models.RoleAdmin), termHandler.Verify)

	students := api.Group("/students", middleware.JWT(authSvc), middleware.RequireRoles(staffRoles...))
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Create)
	students.POST("/import", middleware.RequireRoles(models.RoleAdmin), studentHandler.Import)

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	notifications.GET("", notificationHandler.List)
	notifications.GET("/:id", notificationHandler.Get)
	notifications.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleAffairs), notificationHandler.Create)
	notifications.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleAffairs), notificationHandler.Update)
	notifications.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleAffairs), notificationHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
