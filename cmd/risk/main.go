package main

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/towerclub/ambassador-server/internal/referrals"
	"github.com/towerclub/ambassador-server/internal/risk"
	"github.com/towerclub/ambassador-server/pkg/anthropic"
	"github.com/towerclub/ambassador-server/pkg/common"
	"github.com/towerclub/ambassador-server/pkg/config"
	"github.com/towerclub/ambassador-server/pkg/database"
	"github.com/towerclub/ambassador-server/pkg/health"
	"github.com/towerclub/ambassador-server/pkg/logger"
	"github.com/towerclub/ambassador-server/pkg/middleware"
	"github.com/towerclub/ambassador-server/pkg/redis"
)

const serviceName = "risk"

var version = "dev"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)

	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	referralRepo := referrals.NewRepository(pool)
	riskRepo := risk.NewRepository(pool)

	var advisor risk.NarrativeAdvisor
	if cfg.Anthropic.Enabled && cfg.Anthropic.APIKey != "" {
		advisor = risk.NewAnthropicAdvisor(
			anthropic.NewClient(cfg.Anthropic.APIKey),
			cfg.Anthropic.Model,
			cfg.Anthropic.MaxTokens,
			time.Duration(cfg.Anthropic.TimeoutSeconds)*time.Second,
		)
		logger.Info("Narrative advisor enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		logger.Info("Narrative advisor disabled, scans run without narratives")
	}

	service := risk.NewService(referralRepo, riskRepo, advisor, redisClient, risk.ServiceConfig{
		BuildingSize:    cfg.Risk.BuildingSize,
		ScanLockTTL:     time.Duration(cfg.Risk.ScanLockTTL) * time.Second,
		Assessor:        cfg.Risk.AssessorName,
		NarrativeMinHot: cfg.Risk.NarrativeMinHot,
	})
	handler := risk.NewHandler(service)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Recovery())
	router.Use(middleware.Metrics(serviceName))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOriginList()
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/healthz", common.HealthCheckWithDeps(serviceName, version, map[string]func() error{
		"postgres": health.DatabaseChecker(pool),
		"redis":    health.RedisChecker(redisClient),
	}))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret), middleware.AdminOnly())
	handler.RegisterRoutes(api)

	addr := ":" + cfg.Server.Port
	logger.Info("Risk service starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
