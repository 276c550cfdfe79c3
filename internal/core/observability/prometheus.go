package observability

import (
	"net/http"

	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// TryEnablePrometheusExport 按配置启动 /metrics 导出端点
func TryEnablePrometheusExport(cfg *config.Config) {
	if !cfg.Observability.Prometheus.Enabled {
		return
	}
	metricsPort := cfg.Observability.GetPrometheusExportPortStr()
	go func() {
		mux := http.NewServeMux()
		mux.Handle(cfg.Observability.Prometheus.Path, promhttp.Handler())
		logger.Info("Starting Prometheus metrics endpoint", zap.String("port", metricsPort))
		if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
			logger.Panic("Failed to start Prometheus metrics endpoint", zap.Error(err))
		}
	}()
}
