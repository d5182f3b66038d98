// Package config loads the layered configuration shared by every service
// binary: built-in defaults, then an optional YAML file, then environment
// variables, then command-line flags — each layer overriding the last.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full knob set; each binary only reads the fields it needs.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	DataDir    string `yaml:"datadir"`
	DebugLevel string `yaml:"debuglevel"`

	FabricURL string `yaml:"fabric_url"` // redis connection string, shared pub/sub + KV
	DBPath    string `yaml:"db_path"`

	SmallBlind       int64 `yaml:"small_blind"`
	BigBlind         int64 `yaml:"big_blind"`
	StartingStack    int64 `yaml:"starting_stack"`
	MaxPlayers       int   `yaml:"max_players"`
	TurnTimerSeconds int   `yaml:"turn_timer_seconds"`

	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
	HeartbeatTimeoutSeconds  int `yaml:"heartbeat_timeout_seconds"`
	OutboundQueueBytes       int `yaml:"outbound_queue_bytes"`
	OutboundQueueMessages    int `yaml:"outbound_queue_messages"`

	AuthKeySource string `yaml:"auth_key_source"` // "static" | "pem" | "jwks"
	AuthSecret    string `yaml:"auth_secret"`
	AuthKeyPath   string `yaml:"auth_key_path"`
	AuthJWKSURL   string `yaml:"auth_jwks_url"`

	ChatRetentionHours int `yaml:"chat_retention_hours"`
}

// Default returns the baseline configuration every layer starts from.
func Default() Config {
	return Config{
		ListenAddr:               ":8080",
		DataDir:                  "./data",
		DebugLevel:               "info",
		FabricURL:                "redis://127.0.0.1:6379/0",
		DBPath:                   "./data/poker.db",
		SmallBlind:               5,
		BigBlind:                 10,
		StartingStack:            1000,
		MaxPlayers:               9,
		TurnTimerSeconds:         30,
		HeartbeatIntervalSeconds: 15,
		HeartbeatTimeoutSeconds:  30,
		OutboundQueueBytes:       1 << 20,
		OutboundQueueMessages:    256,
		AuthKeySource:            "static",
		ChatRetentionHours:       24,
	}
}

// LoadYAML overlays an optional YAML file onto cfg. A missing file is not
// an error — it simply means this layer contributes nothing.
func LoadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// env looks up key in the environment with a POKER_ prefix, the layer
// LoadEnv overlays onto the defaults and YAML values.
func env(key string) (string, bool) {
	v, ok := os.LookupEnv("POKER_" + key)
	return v, ok
}

// LoadEnv overlays environment variable overrides onto cfg.
func LoadEnv(cfg *Config) error {
	if v, ok := env("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := env("DATADIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := env("DEBUGLEVEL"); ok {
		cfg.DebugLevel = v
	}
	if v, ok := env("FABRIC_URL"); ok {
		cfg.FabricURL = v
	}
	if v, ok := env("DB_PATH"); ok {
		cfg.DBPath = v
	}
	if v, ok := env("SMALL_BLIND"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: POKER_SMALL_BLIND: %w", err)
		}
		cfg.SmallBlind = n
	}
	if v, ok := env("BIG_BLIND"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: POKER_BIG_BLIND: %w", err)
		}
		cfg.BigBlind = n
	}
	if v, ok := env("AUTH_KEY_SOURCE"); ok {
		cfg.AuthKeySource = v
	}
	if v, ok := env("AUTH_SECRET"); ok {
		cfg.AuthSecret = v
	}
	if v, ok := env("AUTH_JWKS_URL"); ok {
		cfg.AuthJWKSURL = v
	}
	return nil
}

// Load runs the default -> YAML -> env layering. Flags are applied by the
// caller afterward: each binary's flags default to empty and override the
// returned Config's field only when set.
func Load(yamlPath string) (Config, error) {
	cfg := Default()
	if err := LoadYAML(&cfg, yamlPath); err != nil {
		return cfg, err
	}
	if err := LoadEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
