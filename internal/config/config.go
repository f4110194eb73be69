package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultSocketServer is the relay address baked into the client at build time:
//
//	go build -ldflags "-X github.com/dkeye/Meet/internal/config.DefaultSocketServer=https://relay.example.com" ./cmd/client
var DefaultSocketServer = "http://localhost:5000"

const (
	DropPolicyDrop       = "drop"
	DropPolicyDisconnect = "disconnect"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	CORSOrigin string        `mapstructure:"cors_origin"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	DropPolicy string        `mapstructure:"drop_policy"`
	LogLevel   string        `mapstructure:"log_level"`
}

type ClientConfig struct {
	SocketServer string   `mapstructure:"socket_server"`
	ICEServers   []string `mapstructure:"ice_servers"`
	LogLevel     string   `mapstructure:"log_level"`
}

// Load reads the relay configuration. Sources, later wins:
// defaults, config/config.<CONFIG_ENV>.yaml, .env, environment.
func Load() (*Config, error) {
	v := newViper()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("cors_origin", "http://localhost:5173")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("drop_policy", DropPolicyDrop)
	v.SetDefault("log_level", "info")

	for _, key := range []string{"mode", "port", "cors_origin", "read_limit", "ping_period", "send_buffer", "drop_policy", "log_level"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("cors_origin", cfg.CORSOrigin).Msg("config loaded")
	return &cfg, nil
}

// LoadClient reads the call client configuration from the same sources as Load.
func LoadClient() (*ClientConfig, error) {
	v := newViper()

	v.SetDefault("socket_server", DefaultSocketServer)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("log_level", "info")

	for _, key := range []string{"socket_server", "ice_servers", "log_level"} {
		_ = v.BindEnv(key)
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client config: %w", err)
	}
	if cfg.SocketServer == "" {
		return nil, errors.New("socket_server must not be empty")
	}
	return &cfg, nil
}

// Level parses a zerolog level name, falling back to info.
func Level(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.CORSOrigin != "*" && !strings.HasPrefix(c.CORSOrigin, "http://") && !strings.HasPrefix(c.CORSOrigin, "https://") {
		return fmt.Errorf("cors_origin must be \"*\" or an http(s) origin, got %q", c.CORSOrigin)
	}
	switch c.DropPolicy {
	case DropPolicyDrop, DropPolicyDisconnect:
	default:
		return fmt.Errorf("unknown drop_policy %q", c.DropPolicy)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		log.Debug().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config file")
	}

	if _, err := os.Stat(".env"); err == nil {
		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.MergeInConfig(); err != nil {
			log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
		}
	}
	return v
}
