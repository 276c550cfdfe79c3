package logger

import (
	"os"
	"sync"

	"github.com/penwyp/mini-classroom/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	global *zap.Logger
)

// Init 根据配置初始化全局日志实例，支持文件轮转
func Init(cfg config.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = build(cfg)
}

// build 构建 zap.Logger，同时输出到控制台和轮转文件
func build(cfg config.Logger) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}

	if cfg.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(rotator),
			level,
		))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// get 获取全局日志实例，未初始化时退化为开发模式日志
func get() *zap.Logger {
	if global != nil {
		return global
	}
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global, _ = zap.NewDevelopment(zap.AddCallerSkip(1))
	}
	return global
}

func Debug(msg string, fields ...zap.Field) {
	get().Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	get().Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	get().Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	get().Error(msg, fields...)
}

func Panic(msg string, fields ...zap.Field) {
	get().Panic(msg, fields...)
}

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	if global != nil {
		_ = global.Sync()
	}
}
