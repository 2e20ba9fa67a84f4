package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream proxies, captured once at startup. Empty means direct.
	HTTPProxy  string
	HTTPSProxy string

	PruneStaleSeries bool

	// Kafka sink, disabled when no brokers are configured.
	KafkaBrokers []string
	KafkaTopic   string

	// MQTT sink, disabled when no broker is configured.
	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// KafkaEnabled reports whether the Kafka sink is configured.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// MQTTEnabled reports whether the MQTT sink is configured.
func (c *Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is read first; variables already set win.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	prune, err := parseBool("PRUNE_STALE_SERIES", true)
	if err != nil {
		return nil, err
	}

	var brokers []string
	if v := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":9002"),
		LogLevel:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "text")),
		ShutdownTimeout: shutdownTimeout,

		HTTPProxy:  os.Getenv("HTTP_PROXY"),
		HTTPSProxy: os.Getenv("HTTPS_PROXY"),

		PruneStaleSeries: prune,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "buienradar-measurements"),

		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "buienradar-exporter"),
		MQTTTopicPrefix: strings.Trim(sharedcfg.EnvOrDefault("MQTT_TOPIC_PREFIX", "buienradar"), "/"),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json", "tint":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (allowed: text, json, tint)", cfg.LogFormat)
	}
	if err := validateProxy("HTTP_PROXY", cfg.HTTPProxy); err != nil {
		return nil, err
	}
	if err := validateProxy("HTTPS_PROXY", cfg.HTTPSProxy); err != nil {
		return nil, err
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if cfg.MQTTEnabled() && cfg.MQTTTopicPrefix == "" {
		return nil, errors.New("MQTT_TOPIC_PREFIX is required when MQTT_BROKER is set")
	}

	return cfg, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return v, nil
}

func validateProxy(key, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q: scheme and host are required", key, raw)
	}
	return nil
}
