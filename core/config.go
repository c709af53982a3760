package core

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Addr        string `koanf:"addr" mapstructure:"addr"`
	WebhookPath string `koanf:"webhook_path" mapstructure:"webhook_path"`
}

type WebhookConfig struct {
	Secret       string `koanf:"secret" mapstructure:"secret"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type StorageConfig struct {
	Driver             string `koanf:"driver" mapstructure:"driver"`
	DSN                string `koanf:"dsn" mapstructure:"dsn"`
	Debug              bool   `koanf:"debug" mapstructure:"debug"`
	PingTimeoutSeconds int    `koanf:"ping_timeout_seconds" mapstructure:"ping_timeout_seconds"`
}

// GetDriver and friends satisfy the go-persistence-bun config contract.
func (c StorageConfig) GetDriver() string { return strings.TrimSpace(c.Driver) }

func (c StorageConfig) GetServer() string { return strings.TrimSpace(c.DSN) }

func (c StorageConfig) GetDebug() bool { return c.Debug }

func (c StorageConfig) GetPingTimeout() time.Duration {
	if c.PingTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.PingTimeoutSeconds) * time.Second
}

func (c StorageConfig) GetOtelIdentifier() string { return "cart-recovery" }

type ShopifyConfig struct {
	APIVersion            string            `koanf:"api_version" mapstructure:"api_version"`
	DirectoryPageSize     int               `koanf:"directory_page_size" mapstructure:"directory_page_size"`
	RequestTimeoutSeconds int               `koanf:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`
	AccessTokens          map[string]string `koanf:"access_tokens" mapstructure:"access_tokens"`
}

func (c ShopifyConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

type RecoveryConfig struct {
	WindowMinutes   int `koanf:"window_minutes" mapstructure:"window_minutes"`
	IntervalMinutes int `koanf:"interval_minutes" mapstructure:"interval_minutes"`
	BatchSize       int `koanf:"batch_size" mapstructure:"batch_size"`
}

// AbandonmentWindow is how long a cart must stay pending before it is
// considered abandoned.
func (c RecoveryConfig) AbandonmentWindow() time.Duration {
	if c.WindowMinutes <= 0 {
		return 4 * time.Hour
	}
	return time.Duration(c.WindowMinutes) * time.Minute
}

func (c RecoveryConfig) RecheckInterval() time.Duration {
	if c.IntervalMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.IntervalMinutes) * time.Minute
}

type MailConfig struct {
	APIKey            string `koanf:"api_key" mapstructure:"api_key"`
	FromAddress       string `koanf:"from_address" mapstructure:"from_address"`
	FromName          string `koanf:"from_name" mapstructure:"from_name"`
	FallbackRecipient string `koanf:"fallback_recipient" mapstructure:"fallback_recipient"`
}

type RelayConfig struct {
	Enabled bool     `koanf:"enabled" mapstructure:"enabled"`
	Brokers []string `koanf:"brokers" mapstructure:"brokers"`
	Topic   string   `koanf:"topic" mapstructure:"topic"`
	GroupID string   `koanf:"group_id" mapstructure:"group_id"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
	Webhook     WebhookConfig  `koanf:"webhook" mapstructure:"webhook"`
	Storage     StorageConfig  `koanf:"storage" mapstructure:"storage"`
	Shopify     ShopifyConfig  `koanf:"shopify" mapstructure:"shopify"`
	Recovery    RecoveryConfig `koanf:"recovery" mapstructure:"recovery"`
	Mail        MailConfig     `koanf:"mail" mapstructure:"mail"`
	Relay       RelayConfig    `koanf:"relay" mapstructure:"relay"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "cart-recovery",
		HTTP: HTTPConfig{
			Addr:        ":8080",
			WebhookPath: "/webhooks",
		},
		Webhook: WebhookConfig{
			MaxBodyBytes: 1 << 20,
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Shopify: ShopifyConfig{
			APIVersion:            "2025-07",
			DirectoryPageSize:     50,
			RequestTimeoutSeconds: 10,
		},
		Recovery: RecoveryConfig{
			WindowMinutes:   240,
			IntervalMinutes: 10,
			BatchSize:       100,
		},
		Relay: RelayConfig{
			Topic:   "cart-create",
			GroupID: "cart-check-group",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		return fmt.Errorf("core: storage.driver is required")
	}
	if c.Recovery.WindowMinutes < 0 {
		return fmt.Errorf("core: recovery.window_minutes must not be negative")
	}
	if c.Recovery.IntervalMinutes < 0 {
		return fmt.Errorf("core: recovery.interval_minutes must not be negative")
	}
	if c.Relay.Enabled {
		if len(c.Relay.Brokers) == 0 {
			return fmt.Errorf("core: relay.brokers is required when the relay is enabled")
		}
		if strings.TrimSpace(c.Relay.Topic) == "" {
			return fmt.Errorf("core: relay.topic is required when the relay is enabled")
		}
	}
	return nil
}
