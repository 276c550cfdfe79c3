package main

import (
	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/internal/core/observability"
	"github.com/penwyp/mini-classroom/internal/core/websocket"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configMgr := config.InitConfig("config/config_server.yaml")
	cfg := configMgr.GetConfig()

	logger.Init(cfg.Logger)
	logger.Info("Starting classroom server",
		zap.String("port", cfg.App.Port),
		zap.Bool("websocket_enabled", cfg.WebSocket.Enabled),
		zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
	)

	observability.InitMetrics()
	if err := observability.InitTracing(cfg); err != nil {
		logger.Warn("Tracing initialization failed", zap.Error(err))
	}

	// 监听配置热更新
	go func() {
		for newCfg := range configMgr.ConfigChan {
			logger.Info("Configuration updated", zap.Any("new_config", newCfg))
		}
	}()

	observability.TryEnablePrometheusExport(cfg)

	gateway := websocket.NewServer(configMgr.GetConfig())
	gateway.Start()
}
