package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

var configMgr *ConfigManager

// ConfigManager 管理配置及其变更通知
type ConfigManager struct {
	config     *Config
	mutex      sync.RWMutex
	ConfigChan chan *Config // 用于通知配置变更
}

// Config 定义协作课堂系统的配置结构体
type Config struct {
	Type          string        `mapstructure:"type"` // "server", "worker" 或 "client"
	App           App           `mapstructure:"app"`
	Logger        Logger        `mapstructure:"logger"`
	WebSocket     WebSocket     `mapstructure:"websocket"`
	Classroom     Classroom     `mapstructure:"classroom"`
	Kafka         Kafka         `mapstructure:"kafka"`
	Redis         Redis         `mapstructure:"redis"`
	Observability Observability `mapstructure:"observability"`
	Client        Client        `mapstructure:"client"` // 客户端专用
}

// App 服务器配置
type App struct {
	Port string `mapstructure:"port"`
}

// Logger 日志配置
type Logger struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"filePath"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// WebSocket WebSocket 配置
type WebSocket struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxConns      int           `mapstructure:"maxConns"`
	IdleTimeout   time.Duration `mapstructure:"idleTimeout"`
	SendQueueSize int           `mapstructure:"sendQueueSize"`
	Endpoint      string        `mapstructure:"endpoint"`
	Compression   bool          `mapstructure:"compression"`
}

// Classroom 课堂行为配置
type Classroom struct {
	RemoveWhenEmpty bool          `mapstructure:"removeWhenEmpty"` // 最后一名成员离开后是否销毁课堂
	PresenceTTL     time.Duration `mapstructure:"presenceTTL"`     // Redis 活跃课堂集合的过期时间
}

// Kafka Kafka 配置
type Kafka struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	Balancer string   `mapstructure:"balancer"`
	GroupID  string   `mapstructure:"groupID"`
}

// Redis Redis 配置
type Redis struct {
	Addrs    []string `mapstructure:"addrs"`
	Password string   `mapstructure:"password"`
	DB       int      `mapstructure:"db"`
}

// Observability 可观测性配置
type Observability struct {
	Prometheus Prometheus `mapstructure:"prometheus"`
	Jaeger     Jaeger     `mapstructure:"jaeger"`
}

// Prometheus 配置
type Prometheus struct {
	Enabled      bool   `mapstructure:"enabled"`
	Path         string `mapstructure:"path"`
	HttpEndpoint string `mapstructure:"httpEndpoint"`
}

// GetPrometheusExportPortStr 返回 Prometheus 导出端口
func (o *Observability) GetPrometheusExportPortStr() string {
	parts := strings.Split(o.Prometheus.HttpEndpoint, ":")
	return parts[len(parts)-1]
}

// Jaeger 追踪配置
type Jaeger struct {
	Enabled      bool    `mapstructure:"enabled"`
	Endpoint     string  `mapstructure:"endpoint"`
	HttpEndpoint string  `mapstructure:"httpEndpoint"`
	SampleRatio  float64 `mapstructure:"sampleRatio"`
}

// Client 客户端专用配置
type Client struct {
	ClassroomID string        `mapstructure:"classroomID"`
	UserID      string        `mapstructure:"userID"`
	Role        string        `mapstructure:"role"` // student 或 teacher
	Mode        string        `mapstructure:"mode"` // watch 或 edit
	EditDelay   time.Duration `mapstructure:"editDelay"`
}

// InitConfig 初始化配置并返回 ConfigManager
func InitConfig(configFile string) *ConfigManager {
	cfg := &Config{}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	setDefaultValues(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read configuration file, %v", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		log.Fatalf("Failed to unmarshal configuration, %v", err)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration validation failed, %v", err)
	}

	configMgr = &ConfigManager{
		config:     cfg,
		ConfigChan: make(chan *Config, 1),
		mutex:      sync.RWMutex{},
	}

	// 监听配置文件变化以实现热更新
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Configuration file changed, file:%s", e.Name)
		newCfg := &Config{}

		newV := viper.New()
		newV.SetConfigFile(e.Name)
		newV.SetConfigType("yaml")
		setDefaultValues(newV)

		if err := newV.ReadInConfig(); err != nil {
			log.Printf("Failed to read configuration file on reload, %v", err)
			return
		}
		if err := newV.Unmarshal(newCfg); err != nil {
			log.Printf("Failed to unmarshal configuration on reload, %v", err)
			return
		}

		if err := validateConfig(newCfg); err != nil {
			log.Printf("Configuration validation failed on reload, %v", err)
			return
		}

		configMgr.mutex.Lock()
		configMgr.config = newCfg
		configMgr.mutex.Unlock()

		// 通知配置变更
		select {
		case configMgr.ConfigChan <- newCfg:
			log.Println("Configuration reload notification sent")
		default:
			log.Println("Config channel full, skipping notification")
		}
	})

	return configMgr
}

// GetConfig 获取当前配置（线程安全）
func (cm *ConfigManager) GetConfig() *Config {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.config
}

// GetConfig 获取当前全局配置实例（线程安全）
func GetConfig() *Config {
	return configMgr.GetConfig()
}

// UpdateConfig 更新配置并通知监听者
func (cm *ConfigManager) UpdateConfig(cfg *Config) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.config = cfg
	cm.ConfigChan <- cfg
}

// SaveConfigToFile 将配置保存到文件并保证字段顺序
func (cm *ConfigManager) SaveConfigToFile(cfg *Config, filePath string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	orderedData := yaml.MapSlice{
		{Key: "type", Value: cfg.Type},
		{Key: "app", Value: cfg.App},
		{Key: "logger", Value: cfg.Logger},
		{Key: "websocket", Value: cfg.WebSocket},
		{Key: "classroom", Value: cfg.Classroom},
		{Key: "kafka", Value: cfg.Kafka},
		{Key: "redis", Value: cfg.Redis},
		{Key: "observability", Value: cfg.Observability},
		{Key: "client", Value: cfg.Client},
	}

	out, err := yaml.Marshal(orderedData)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, out, 0644); err != nil {
		return err
	}

	log.Printf("Configuration saved to file, path:%s", filePath)
	return nil
}

// setDefaultValues 设置默认配置值
func setDefaultValues(v *viper.Viper) {
	v.SetDefault("type", "server")
	v.SetDefault("app.port", "8483")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.filePath", "logs/classroom.log")
	v.SetDefault("logger.maxSize", 100)
	v.SetDefault("logger.maxBackups", 10)
	v.SetDefault("logger.maxAge", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.maxConns", 100000)
	v.SetDefault("websocket.idleTimeout", 5*time.Minute)
	v.SetDefault("websocket.sendQueueSize", 256)
	v.SetDefault("websocket.endpoint", "ws://localhost:8483/classroom")
	v.SetDefault("websocket.compression", false)

	v.SetDefault("classroom.removeWhenEmpty", false)
	v.SetDefault("classroom.presenceTTL", 24*time.Hour)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "classroom_events")
	v.SetDefault("kafka.balancer", "hash")

	v.SetDefault("redis.addrs", []string{"localhost:6379"})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.path", "/metrics")
	v.SetDefault("observability.prometheus.httpEndpoint", "localhost:9090")
	v.SetDefault("observability.jaeger.enabled", false)
	v.SetDefault("observability.jaeger.endpoint", "localhost:6831")
	v.SetDefault("observability.jaeger.httpEndpoint", "localhost:14268")
	v.SetDefault("observability.jaeger.sampleRatio", 1.0)

	// client
	v.SetDefault("client.role", "student")
	v.SetDefault("client.mode", "watch")
	v.SetDefault("client.editDelay", 500*time.Millisecond)
}

// validateConfig 验证配置有效性
func validateConfig(cfg *Config) error {
	if err := checkConfigType(cfg.Type); err != nil {
		return err
	}

	if err := validateWebSocket(cfg.WebSocket); err != nil {
		return err
	}

	typeValidators := map[string]func(*Config) error{
		"server": validateServer,
		"worker": validateWorker,
		"client": validateClient,
	}

	if validator, exists := typeValidators[cfg.Type]; exists {
		return validator(cfg)
	}
	return nil
}

// checkConfigType 验证配置类型
func checkConfigType(configType string) error {
	validTypes := map[string]bool{
		"server": true,
		"worker": true,
		"client": true,
	}
	if !validTypes[configType] {
		return fmt.Errorf("invalid config type: %s, must be 'server', 'worker', or 'client'", configType)
	}
	return nil
}

// validateWebSocket 验证 WebSocket 配置（公共）
func validateWebSocket(ws WebSocket) error {
	if ws.IdleTimeout <= 0 {
		return fmt.Errorf("websocket idleTimeout must be positive: %s", ws.IdleTimeout)
	}
	if ws.SendQueueSize <= 0 {
		return fmt.Errorf("websocket sendQueueSize must be positive: %d", ws.SendQueueSize)
	}
	if ws.Enabled && ws.MaxConns <= 0 {
		return fmt.Errorf("websocket maxConns must be positive when enabled: %d", ws.MaxConns)
	}
	return nil
}

// validateServer 验证 server 类型配置
func validateServer(cfg *Config) error {
	if cfg.App.Port == "" {
		return fmt.Errorf("app port cannot be empty for server")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers list cannot be empty")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic cannot be empty")
	}
	if len(cfg.Redis.Addrs) == 0 {
		return fmt.Errorf("redis addrs cannot be empty")
	}
	if cfg.Classroom.PresenceTTL <= 0 {
		return fmt.Errorf("classroom presenceTTL must be positive: %s", cfg.Classroom.PresenceTTL)
	}
	return nil
}

// validateWorker 验证 worker 类型配置
func validateWorker(cfg *Config) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers list cannot be empty")
	}
	if cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic cannot be empty")
	}
	if cfg.Kafka.GroupID == "" {
		return fmt.Errorf("kafka groupID cannot be empty")
	}
	if len(cfg.Redis.Addrs) == 0 {
		return fmt.Errorf("redis addrs cannot be empty")
	}
	return nil
}

// validateClient 验证 client 类型配置
func validateClient(cfg *Config) error {
	if cfg.WebSocket.Endpoint == "" {
		return fmt.Errorf("websocket endpoint cannot be empty for client")
	}
	if !strings.HasPrefix(cfg.WebSocket.Endpoint, "ws://") && !strings.HasPrefix(cfg.WebSocket.Endpoint, "wss://") {
		return fmt.Errorf("websocket endpoint must start with ws:// or wss://: %s", cfg.WebSocket.Endpoint)
	}
	if cfg.Client.ClassroomID == "" {
		return fmt.Errorf("client classroomID cannot be empty")
	}
	if cfg.Client.UserID == "" {
		return fmt.Errorf("client userID cannot be empty")
	}
	if cfg.Client.Role != "student" && cfg.Client.Role != "teacher" {
		return fmt.Errorf("client role must be 'student' or 'teacher': %s", cfg.Client.Role)
	}
	if cfg.Client.Mode != "watch" && cfg.Client.Mode != "edit" {
		return fmt.Errorf("client mode must be 'watch' or 'edit': %s", cfg.Client.Mode)
	}
	return nil
}

// InitTestConfigManager 初始化测试配置管理器
func InitTestConfigManager() {
	configMgr = &ConfigManager{
		config: &Config{
			Type: "server",
			App: App{
				Port: "8483",
			},
			Logger: Logger{
				Level:    "debug",
				FilePath: "logs/classroom.log",
			},
			WebSocket: WebSocket{
				Enabled:       true,
				MaxConns:      1000,
				IdleTimeout:   1 * time.Minute,
				SendQueueSize: 64,
			},
			Classroom: Classroom{
				RemoveWhenEmpty: false,
				PresenceTTL:     24 * time.Hour,
			},
			Kafka: Kafka{
				Brokers: []string{"localhost:9092"},
				Topic:   "classroom_events_test",
			},
			Redis: Redis{
				Addrs:    []string{"localhost:6379"},
				Password: "",
			},
			Observability: Observability{
				Prometheus: Prometheus{Enabled: true},
			},
		},
		ConfigChan: make(chan *Config, 1),
		mutex:      sync.RWMutex{},
	}
}
