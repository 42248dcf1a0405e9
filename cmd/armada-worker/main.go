// Armada Worker — выполняет отдельные provisioning tasks.
//
// Worker:
//   - Получает tasks из RabbitMQ (prefetch=1, late ack)
//   - Проверяет rate limit и daily quota tenant'а
//   - Идемпотентно вызывает cloud adapter
//   - Реализует retry с exponential backoff через retry-очередь
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Armada/internal/admission"
	"github.com/shaiso/Armada/internal/cloud"
	"github.com/shaiso/Armada/internal/config"
	"github.com/shaiso/Armada/internal/mq"
	"github.com/shaiso/Armada/internal/repo"
	"github.com/shaiso/Armada/internal/retry"
	"github.com/shaiso/Armada/internal/telemetry"
	"github.com/shaiso/Armada/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting armada-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DBURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.AMQPURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()
	logger.Info("RabbitMQ connected")

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Warn("failed to setup topology", "error", err)
	}
	publisher := mq.NewPublisher(mqConn, logger)

	// Admission: Redis-счётчики, общие для всех workers.
	// Без REDIS_ADDR — in-memory store, пригодный только для
	// единственного процесса.
	var store admission.CounterStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer client.Close()
		store = admission.NewRedisStore(client)
		logger.Info("Redis connected", "addr", cfg.RedisAddr)
	} else {
		store = admission.NewMemoryStore()
		logger.Warn("REDIS_ADDR not set, using in-memory admission counters")
	}

	gate := admission.New(admission.Config{
		Store:      store,
		RateLimit:  cfg.RateLimit,
		RateWindow: time.Minute,
		DailyQuota: cfg.DailyQuota,
		Location:   cfg.QuotaTimezone,
	})

	// Cloud adapters
	registry := cloud.NewRegistry()
	registry.Register("fake", cloud.NewFakeAdapter())

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Warn("AWS credentials not available, aws provider disabled", "error", err)
	} else {
		registry.Register("aws", cloud.NewAWSAdapter(awsCfg))
	}

	// Создаём worker
	w := worker.New(worker.Config{
		TaskStore: taskRepo,
		Queue:     publisher,
		Conn:      mqConn,
		Admission: gate,
		Registry:  registry,
		Policy: retry.Policy{
			MaxRetries:   cfg.MaxRetries,
			InitialDelay: retry.DefaultInitialDelay,
			MaxDelay:     retry.DefaultMaxDelay,
		},
		AdapterTimeout: cfg.AdapterTimeout,
		AdapterRPS:     cfg.AdapterRPS,
		Logger:         logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		// Без соединения с брокером воркер не получает tasks.
		if !mqConn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("mq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("WORKER_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	// Останавливаем worker
	w.Stop()
	logger.Info("armada-worker stopped")
}
