package main

import (
	"context"
	"log"
	"os"
	"time"

	"cvtailor/internal/api"
	"cvtailor/internal/auth"
	"cvtailor/internal/config"
	"cvtailor/internal/document"
	"cvtailor/internal/redis"
	"cvtailor/internal/scraper"
	"cvtailor/internal/service/rewrite"
	"cvtailor/internal/service/tailor"
	"cvtailor/internal/storage"
	"cvtailor/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CVTAILOR_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	dbType := os.Getenv("CVTAILOR_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		logger.Fatal("open database", zap.String("driver", dbType), zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		logger.Fatal("migrate database", zap.Error(err))
	}

	// redis is optional: without it cooldowns stay in process and
	// rate limiting is off
	cooldownWindow := time.Duration(cfg.Rotation.CooldownSeconds) * time.Second
	var cooldowns rewrite.CooldownStore
	var limiter *api.RateLimiter
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("redis unavailable, using in-process cooldowns", zap.Error(err))
		cooldowns = rewrite.NewMemoryCooldowns(cooldownWindow)
	} else {
		defer rdb.Close()
		cooldowns = rewrite.NewRedisCooldowns(rdb, cooldownWindow)
		limiter = api.NewRateLimiter(rdb, cfg.BasicConfig.RateLimitPerMinute, logger)
	}

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTL) * time.Minute
	tailorSvc, err := tailor.NewService(db, cfg.BasicConfig.UploadDir, cfg.BasicConfig.ModifiedDir, sessionTTL, logger)
	if err != nil {
		logger.Fatal("init tailor service", zap.Error(err))
	}
	cleanCtx, cleanCancel := context.WithCancel(context.Background())
	defer cleanCancel()
	tailorSvc.StartCleaner(cleanCtx, time.Duration(cfg.BasicConfig.CleanInterval)*time.Minute)

	rewriteSvc := rewrite.NewService(cfg, cooldowns, logger)
	scrapeSvc := scraper.NewService()
	manager := worker.NewManager(tailorSvc, scrapeSvc, rewriteSvc, logger)
	dispatcher := worker.NewDispatcher(
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		manager,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)

	authSvc := auth.NewService(db, sessionTTL)
	converter := document.NewConverter(cfg.BasicConfig.SofficePath)
	handlers := api.NewHandler(tailorSvc, authSvc, dispatcher, converter, limiter, cfg.BasicConfig.MaxUploadBytes, logger)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	logger.Info("listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
