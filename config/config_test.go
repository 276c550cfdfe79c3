package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServerConfig() *Config {
	return &Config{
		Type: "server",
		App:  App{Port: "8483"},
		WebSocket: WebSocket{
			Enabled:       true,
			MaxConns:      1000,
			IdleTimeout:   time.Minute,
			SendQueueSize: 64,
		},
		Classroom: Classroom{PresenceTTL: 24 * time.Hour},
		Kafka:     Kafka{Brokers: []string{"localhost:9092"}, Topic: "classroom_events"},
		Redis:     Redis{Addrs: []string{"localhost:6379"}},
	}
}

func TestCheckConfigType(t *testing.T) {
	for _, typ := range []string{"server", "worker", "client"} {
		assert.NoError(t, checkConfigType(typ), typ)
	}
	assert.Error(t, checkConfigType("gateway"))
	assert.Error(t, checkConfigType(""))
}

func TestValidateWebSocket(t *testing.T) {
	tests := []struct {
		name    string
		ws      WebSocket
		wantErr bool
	}{
		{"valid", WebSocket{Enabled: true, MaxConns: 10, IdleTimeout: time.Minute, SendQueueSize: 8}, false},
		{"zero idle timeout", WebSocket{Enabled: true, MaxConns: 10, SendQueueSize: 8}, true},
		{"zero send queue", WebSocket{Enabled: true, MaxConns: 10, IdleTimeout: time.Minute}, true},
		{"enabled without maxConns", WebSocket{Enabled: true, IdleTimeout: time.Minute, SendQueueSize: 8}, true},
		{"disabled ignores maxConns", WebSocket{Enabled: false, IdleTimeout: time.Minute, SendQueueSize: 8}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateWebSocket(tt.ws)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateServerConfig(t *testing.T) {
	cfg := validServerConfig()
	require.NoError(t, validateConfig(cfg))

	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.App.Port = "" }},
		{"no kafka brokers", func(c *Config) { c.Kafka.Brokers = nil }},
		{"empty kafka topic", func(c *Config) { c.Kafka.Topic = "" }},
		{"no redis addrs", func(c *Config) { c.Redis.Addrs = nil }},
		{"zero presence ttl", func(c *Config) { c.Classroom.PresenceTTL = 0 }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			cfg := validServerConfig()
			m.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestValidateWorkerConfig(t *testing.T) {
	cfg := validServerConfig()
	cfg.Type = "worker"
	cfg.Kafka.GroupID = "classroom-worker"
	require.NoError(t, validateConfig(cfg))

	cfg.Kafka.GroupID = ""
	assert.Error(t, validateConfig(cfg))
}

func TestValidateClientConfig(t *testing.T) {
	base := func() *Config {
		cfg := validServerConfig()
		cfg.Type = "client"
		cfg.WebSocket.Endpoint = "ws://localhost:8483/classroom"
		cfg.Client = Client{
			ClassroomID: "class-1",
			UserID:      "alice",
			Role:        "student",
			Mode:        "watch",
			EditDelay:   500 * time.Millisecond,
		}
		return cfg
	}
	require.NoError(t, validateConfig(base()))

	mutations := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty endpoint", func(c *Config) { c.WebSocket.Endpoint = "" }},
		{"http endpoint", func(c *Config) { c.WebSocket.Endpoint = "http://localhost:8483" }},
		{"empty classroom id", func(c *Config) { c.Client.ClassroomID = "" }},
		{"empty user id", func(c *Config) { c.Client.UserID = "" }},
		{"bad role", func(c *Config) { c.Client.Role = "admin" }},
		{"bad mode", func(c *Config) { c.Client.Mode = "replay" }},
	}
	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			cfg := base()
			m.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}

	secure := base()
	secure.WebSocket.Endpoint = "wss://classroom.example.com/classroom"
	assert.NoError(t, validateConfig(secure))
}

func TestInitTestConfigManager(t *testing.T) {
	InitTestConfigManager()
	cfg := GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "server", cfg.Type)
	assert.NoError(t, validateConfig(cfg))
	assert.Positive(t, cfg.WebSocket.SendQueueSize)
}
