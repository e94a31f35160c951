package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/handler"
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/bitfantasy/cargotrack/internal/ledger/sse"
	"github.com/bitfantasy/cargotrack/internal/middleware"
	"github.com/bitfantasy/cargotrack/internal/shared/events"
	"github.com/bitfantasy/cargotrack/internal/shared/storage"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ledger HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	zapLogger.Info("Starting cargotrack service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database, cfg.Log.Level)
	if err != nil {
		return err
	}
	if skip, _ := cmd.Flags().GetBool("skip-migrate"); !skip {
		if err := migrate(db); err != nil {
			return err
		}
	}

	// 初始化Redis
	rdb := initRedis(cfg.Redis)
	defer rdb.Close()
	if err := rdb.Ping(cmd.Context()).Err(); err != nil {
		zapLogger.Warn("Redis not reachable, wallet login and dashboard cache degraded", zap.Error(err))
	}

	rate, err := cfg.Ledger.PenaltyRateWei()
	if err != nil {
		return err
	}
	ledger := service.NewLedger(db, service.Config{
		AdminAddress:      cfg.Ledger.AdminAddress,
		CarrierFeeBps:     cfg.Ledger.CarrierFeeBps,
		GracePeriod:       cfg.Ledger.GracePeriod,
		PenaltyRatePerDay: rate,
	})

	// 单证存储：未配置 endpoint 时不启用
	var store storage.ObjectStore
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		})
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		err = minioStore.EnsureBucket(ctx)
		cancel()
		if err != nil {
			zapLogger.Warn("MinIO bucket check failed", zap.String("bucket", cfg.MinIO.Bucket), zap.Error(err))
		}
		store = minioStore
		zapLogger.Info("Document storage enabled", zap.String("endpoint", cfg.MinIO.Endpoint))
	}

	services := service.NewServices(ledger, rdb, store, service.AuthConfig{
		Secret:      cfg.JWT.Secret,
		Issuer:      cfg.JWT.Issuer,
		TokenExpire: cfg.JWT.AccessTokenExpire,
		NonceTTL:    cfg.JWT.NonceTTL,
	}, zapLogger)

	hub := sse.NewHub(zapLogger)
	ledger.AddSink(hub)

	var producer *events.KafkaProducer
	if cfg.Kafka.Enabled() {
		producer = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		ledger.AddSink(service.NewPublisherSink(producer))
		zapLogger.Info("Kafka publishing enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	handlers := handler.NewHandlers(services, hub)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger, "/health", "/health/live", "/health/ready"))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/events/stream"})))

	registerHealthRoutes(router, db, rdb)
	handler.RegisterRoutes(router.Group("/api/v1"), handlers, cfg.JWT.Secret)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout, // 0: SSE 长连接
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 先断开 SSE 客户端，否则 Shutdown 会一直等长连接
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			zapLogger.Warn("Kafka producer close failed", zap.Error(err))
		}
	}

	zapLogger.Info("Server exited")
	return nil
}

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, rdb *redis.Client) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "down"
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})
}
