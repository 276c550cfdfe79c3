package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/penwyp/mini-classroom/client"
	"github.com/penwyp/mini-classroom/config"
	"github.com/penwyp/mini-classroom/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	configMgr := config.InitConfig("config/config_client.yaml")
	cfg := configMgr.GetConfig()

	logger.Init(cfg.Logger)
	logger.Info("Starting classroom client",
		zap.String("websocket_endpoint", cfg.WebSocket.Endpoint),
		zap.String("classroomID", cfg.Client.ClassroomID),
		zap.String("userID", cfg.Client.UserID),
		zap.String("role", cfg.Client.Role),
		zap.String("mode", cfg.Client.Mode))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := client.NewClient(ctx, cfg)
	if err != nil {
		logger.Panic("Failed to create classroom client", zap.Error(err))
	}
	defer c.Close()

	var wg sync.WaitGroup

	// 接收并渲染课堂事件
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.Receive(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Receive loop ended", zap.Error(err))
			cancel()
		}
	}()

	// edit 模式周期性编辑共享白板，watch 模式只旁听
	if cfg.Client.Mode == "edit" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(cfg.Client.EditDelay)
			defer ticker.Stop()
			count := 0
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					count++
					code := fmt.Sprintf("# edit %d by %s\nprint(%d)", count, cfg.Client.UserID, count)
					if err := c.SendCodeChange(ctx, code); err != nil {
						logger.Warn("Failed to send code change", zap.Error(err))
					}
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, leaving classroom...")
		if err := c.Leave(context.Background()); err != nil {
			logger.Warn("Failed to send leave", zap.Error(err))
		}
	case <-ctx.Done():
	}

	cancel()
	wg.Wait()
	logger.Sync()
	logger.Info("Client stopped gracefully")
}
