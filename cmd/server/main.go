package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/ideafund/internal/config"
	"github.com/blues/ideafund/internal/feed"
	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/notify"
	"github.com/blues/ideafund/internal/repository"
	"github.com/blues/ideafund/internal/router"
	"github.com/blues/ideafund/internal/scheduler"
	"github.com/blues/ideafund/internal/wallet"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	// 本地开发时从 .env 读取环境变量
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	// 加载配置
	cfg := config.Load()
	logger.Setup(cfg.Log)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化变更通知
	broker, err := openBroker(ctx, cfg.Notify)
	if err != nil {
		logger.Fatal("Failed to initialize notification broker: %v", err)
	}
	defer broker.Close()

	// 初始化记录存储
	store, err := openStore(cfg.Database, broker)
	if err != nil {
		logger.Fatal("Failed to initialize record store: %v", err)
	}

	// 初始化链上网关
	network, err := ledger.Dial(ctx, cfg.Chain)
	if err != nil {
		logger.Fatal("Failed to initialize ledger network: %v", err)
	}
	defer network.Close()
	gateway := ledger.NewGateway(network, cfg.Chain.Decimals, cfg.Chain.MaxRounds)

	keyring, err := wallet.NewKeyring(cfg.Wallet.Keys, cfg.Wallet.Tokens)
	if err != nil {
		logger.Fatal("Failed to load wallet keys: %v", err)
	}
	logger.Info("Loaded %d signer accounts", len(keyring.Addresses()))

	policy, err := funding.PolicyFromConfig(cfg.Funding)
	if err != nil {
		logger.Fatal("Invalid funding policy: %v", err)
	}
	engine := funding.NewEngine(store, gateway, funding.WithPolicy(policy))
	logger.Info("Funding policy: commit_mode=%s amount_limit=%s", policy.CommitMode, policy.AmountLimit)

	ideaFeed := feed.New(store, engine)
	ideaFeed.Start(ctx)

	// 启动定时任务
	tasks, err := scheduler.NewManager(
		scheduler.NewFeedRefreshJob(ideaFeed, seconds(cfg.Feed.RefreshInterval)),
		scheduler.NewFundingSweepJob(engine, seconds(cfg.Feed.SweepInterval)),
	)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	if err := tasks.Start(); err != nil {
		logger.Fatal("Failed to start task manager: %v", err)
	}
	defer tasks.Stop()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(ctx, engine, ideaFeed, keyring, cfg.Server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
}

func openBroker(ctx context.Context, cfg config.NotifyConfig) (notify.Broker, error) {
	local, err := notify.NewLocalBroker(cfg.PoolSize)
	if err != nil {
		return nil, err
	}
	if cfg.Driver != "redis" {
		return local, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	broker, err := notify.NewRedisBroker(ctx, client, cfg.Channel, local)
	if err != nil {
		_ = client.Close()
		_ = local.Close()
		return nil, err
	}
	logger.Info("Change notifications bridged through redis %s", cfg.RedisAddr)
	return broker, nil
}

func openStore(cfg config.DatabaseConfig, broker notify.Broker) (repository.Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory record store, data is lost on restart")
		return repository.NewMemoryStore(broker), nil
	}

	db, err := repository.Init(cfg)
	if err != nil {
		return nil, err
	}
	return repository.NewGormStore(db, broker), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
