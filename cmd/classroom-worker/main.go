package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/internal/core/worker"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configMgr := config.InitConfig("config/config_worker.yaml")
	cfg := configMgr.GetConfig()

	logger.Init(cfg.Logger)
	logger.Info("Starting classroom worker",
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
		zap.String("kafka_topic", cfg.Kafka.Topic),
		zap.Strings("redis_addrs", cfg.Redis.Addrs),
	)

	observability.InitMetrics()
	observability.TryEnablePrometheusExport(cfg)

	// 监听配置热更新
	go func() {
		for newCfg := range configMgr.ConfigChan {
			logger.Info("Configuration updated", zap.Any("new_config", newCfg))
		}
	}()

	w, err := worker.NewWorker(cfg)
	if err != nil {
		logger.Panic("Failed to create worker", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received, stopping worker...")

	cancel()
	w.Close()
	wg.Wait()
	logger.Sync()
	logger.Info("Worker stopped gracefully")
}
