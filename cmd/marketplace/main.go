// Package main запускает HTTP-сервер маркетплейса с рассрочкой.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mmeshcher/marketplace-installments/internal/config"
	"github.com/mmeshcher/marketplace-installments/internal/events"
	"github.com/mmeshcher/marketplace-installments/internal/handler"
	"github.com/mmeshcher/marketplace-installments/internal/metrics"
	"github.com/mmeshcher/marketplace-installments/internal/middleware"
	"github.com/mmeshcher/marketplace-installments/internal/notify"
	"github.com/mmeshcher/marketplace-installments/internal/repository"
	"github.com/mmeshcher/marketplace-installments/internal/service"
	"github.com/mmeshcher/marketplace-installments/internal/sweep"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}
	location, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithLocation(location),
		service.WithMetrics(metrics.New(registry)),
	}

	if cfg.SMS.Email != "" {
		opts = append(opts, service.WithNotifier(notify.NewClient(cfg.SMS.BaseURL, cfg.SMS.Email, cfg.SMS.Password, cfg.SMS.From)))
		sugar.Infow("sms notifications enabled", "provider", cfg.SMS.BaseURL)
	}

	var publisher *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer publisher.Close()
		opts = append(opts, service.WithPublisher(publisher))
		sugar.Infow("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	svc := service.NewService(repo, opts...)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.TokenTTL)
	loginLimiter := middleware.NewRateLimiter(rate.Every(12*time.Second), 5)
	h := handler.NewHandler(svc, logger, authMiddleware, loginLimiter)

	r := h.SetupRouter(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновый перевод просроченных планов в overdue
	if cfg.OverdueSweepInterval > 0 {
		var lock sweep.Lock
		if cfg.RedisURL != "" {
			redisOpts, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				sugar.Fatalw("redis configuration error", "error", err.Error())
			}
			client := redis.NewClient(redisOpts)
			defer client.Close()

			redisLock, err := sweep.NewRedisLock(client, sweep.LockKey, cfg.OverdueSweepInterval)
			if err != nil {
				sugar.Fatalw("sweep lock error", "error", err.Error())
			}
			lock = redisLock
		}

		worker := sweep.NewWorker(svc, lock, cfg.OverdueSweepInterval, logger.Named("sweep"))
		g.Go(func() error {
			sugar.Infow("starting overdue sweep", "interval", cfg.OverdueSweepInterval)
			return worker.Run(ctx)
		})
	}

	g.Go(func() error {
		sugar.Infow("starting marketplace server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
