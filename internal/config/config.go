package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the gateway configuration. Values come from defaults overridden
// by CHATCLIENT_-prefixed environment variables, e.g.
// CHATCLIENT_CHAT_SERVER_URL, CHATCLIENT_AMQP_URL.
type Config struct {
	ListenAddr     string `koanf:"listen_addr"`
	APIToken       string `koanf:"api_token"`
	ChatServerURL  string `koanf:"chat_server_url"`
	HistoryBaseURL string `koanf:"history_base_url"`
	AMQPURL        string `koanf:"amqp_url"`
	AMQPExchange   string `koanf:"amqp_exchange"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	LogLevel       string `koanf:"log_level"`

	ReconnectMaxAttempts int `koanf:"reconnect_max_attempts"`
	ReconnectDelayMS     int `koanf:"reconnect_delay_ms"`
	DialTimeoutMS        int `koanf:"dial_timeout_ms"`
	TypingExpiryMS       int `koanf:"typing_expiry_ms"`
}

// Load builds the configuration from defaults and the environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	k.Load(confmap.Provider(map[string]interface{}{
		"listen_addr":            ":8086",
		"chat_server_url":        "ws://localhost:8087/ws",
		"history_base_url":       "http://localhost:8087",
		"amqp_exchange":          "chat_client_events",
		"log_level":              "info",
		"reconnect_max_attempts": 5,
		"reconnect_delay_ms":     1000,
		"dial_timeout_ms":        10000,
		"typing_expiry_ms":       3000,
	}, "."), nil)

	k.Load(env.Provider("CHATCLIENT_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "CHATCLIENT_"))
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

// DialTimeout returns the dial timeout as a duration.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// TypingExpiry returns the typing indicator expiry as a duration.
func (c *Config) TypingExpiry() time.Duration {
	return time.Duration(c.TypingExpiryMS) * time.Millisecond
}
