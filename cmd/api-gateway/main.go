package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sigab-api/api/swagger"
	"github.com/noah-isme/sigab-api/internal/handler"
	"github.com/noah-isme/sigab-api/internal/middleware"
	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/repository"
	"github.com/noah-isme/sigab-api/internal/service"
	"github.com/noah-isme/sigab-api/internal/workflow"
	"github.com/noah-isme/sigab-api/pkg/cache"
	"github.com/noah-isme/sigab-api/pkg/config"
	"github.com/noah-isme/sigab-api/pkg/database"
	"github.com/noah-isme/sigab-api/pkg/jobs"
	"github.com/noah-isme/sigab-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sigab-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sigab-api/pkg/middleware/requestid"
	"github.com/noah-isme/sigab-api/pkg/storage"
)

// @title SIGAB API
// @version 1.0.0
// @description Sistema de Gestión de Bienes: asset registry and disposal workflow engine
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	catalog, err := workflow.Default()
	if err != nil {
		logr.Sugar().Fatalw("invalid workflow catalog", "error", err)
	}

	blobs, err := storage.NewBlobStore(cfg.Blobs.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init blob storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Blobs.SignedURLSecret, cfg.Blobs.SignedURLTTL)

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	custodyRepo := repository.NewCustodyRepository(db)
	disposalRepo := repository.NewDisposalRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Assets.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sigab-api",
	})
	assetSvc := service.NewAssetService(assetRepo, custodyRepo, cacheSvc, cfg.Assets.CacheTTL, logr)
	disposalSvc := service.NewDisposalService(disposalRepo, assetRepo, custodyRepo, blobs, catalog, signer, logr, service.DisposalServiceConfig{
		MaxFileSize:  cfg.Blobs.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Blobs.AllowedMIMEs,
		SweepMinAge:  cfg.Blobs.SweepMinAge,
	})
	auditSvc := service.NewAuditService(auditRepo, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	assetHandler := handler.NewAssetHandler(assetSvc)
	disposalHandler := handler.NewDisposalHandler(disposalSvc, auditSvc)
	workflowHandler := handler.NewWorkflowHandler(catalog)
	auditHandler := handler.NewAuditHandler(auditSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	// Background orphan blob sweep.
	sweeper := jobs.NewRunner("blob-sweep", cfg.Blobs.SweepInterval, func(ctx context.Context) error {
		removed, err := disposalSvc.SweepOrphanBlobs(ctx)
		if err != nil {
			return err
		}
		logr.Sugar().Debugw("blob sweep finished", "removed", removed)
		return nil
	}, logr)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	sweeper.Start(sweepCtx)
	defer sweeper.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	manage := middleware.RequireRoles(models.RoleAdmin, models.RoleBienes)

	assets := api.Group("/assets", middleware.JWT(authSvc))
	{
		assets.GET("", assetHandler.List)
		assets.POST("", manage, middleware.Audit(auditRepo, "ASSET_CREATE", "asset"), assetHandler.Create)
		assets.GET("/:id", assetHandler.Get)
		assets.GET("/:id/custody", assetHandler.CustodyHistory)
		assets.POST("/:id/custody", manage, middleware.Audit(auditRepo, "CUSTODY_ASSIGN", "asset"), assetHandler.AssignCustody)
	}

	disposals := api.Group("/disposals", middleware.JWT(authSvc))
	{
		disposals.GET("", disposalHandler.List)
		disposals.POST("", manage, disposalHandler.Create)
		disposals.GET("/:id", disposalHandler.Get)
		disposals.GET("/:id/audit", disposalHandler.Audit)
		disposals.POST("/:id/transition", manage, disposalHandler.Transition)
		disposals.POST("/:id/documents", manage, disposalHandler.AttachDocument)
		disposals.GET("/:id/documents/:docId/download-url", disposalHandler.DocumentDownloadURL)
		disposals.POST("/:id/disposition", manage, disposalHandler.RegisterDisposition)
	}

	// Downloads authenticate through the signed token, so the JWT is optional.
	api.GET("/disposals/:id/documents/:docId/download", middleware.OptionalJWT(authSvc), disposalHandler.DownloadDocument)

	workflows := api.Group("/workflows", middleware.JWT(authSvc))
	{
		workflows.GET("", workflowHandler.List)
		workflows.GET("/:reason", workflowHandler.Get)
	}

	api.GET("/audit-logs", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), auditHandler.List)
	api.GET("/metrics/system", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), metricsHandler.System)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
