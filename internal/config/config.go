// Package config handles resolving configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Config is the resolved process configuration. Values come from defaults,
// then the YAML config file, then command-line flags, in that order.
type Config struct {
	// ListenAddress is the host:port the REST API binds to.
	ListenAddress string `koanf:"listen_address"`
	// MongoURI is the MongoDB connection string.
	MongoURI string `koanf:"mongo_uri"`
	// Database is the MongoDB database name.
	Database string `koanf:"database"`
	// TokenSecret signs session tokens. Process-wide; rotating it invalidates
	// every outstanding token. Must be set by the user.
	TokenSecret string `koanf:"token_secret"`
	// TokenTTL is how long an issued session token remains valid.
	TokenTTL time.Duration `koanf:"token_ttl"`
	// BcryptCost is the bcrypt work factor; 0 selects the library default.
	BcryptCost int `koanf:"bcrypt_cost"`
	// RegisterToken controls whether registration also signs the new account
	// in by returning a session token.
	RegisterToken bool `koanf:"register_token"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// DevMode enables request logging, source locations in logs, and the
	// seed command.
	DevMode bool `koanf:"dev_mode"`
}

// Default returns a version of the config with all default values populated.
// Note that this configuration is _not_ valid, as the user must set
// token_secret.
func Default() Config {
	return Config{
		ListenAddress: "localhost:3000",
		MongoURI:      "mongodb://localhost:27017",
		Database:      "meigen",
		TokenTTL:      24 * time.Hour,
		BcryptCost:    bcrypt.DefaultCost,
		RegisterToken: true,
		LogLevel:      "info",
	}
}

// Load loads a YAML configuration file from a path, merges it over defaults
// and under the given flags (which may be nil), and validates the result.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	def := Default()
	k := koanf.New(".")
	// Defaults go in first so that unset flags resolve to them instead of
	// the flag zero values.
	if err := k.Load(confmap.Provider(map[string]any{
		"listen_address": def.ListenAddress,
		"mongo_uri":      def.MongoURI,
		"database":       def.Database,
		"token_ttl":      def.TokenTTL,
		"bcrypt_cost":    def.BcryptCost,
		"register_token": def.RegisterToken,
		"log_level":      def.LogLevel,
	}, "."), nil); err != nil {
		return Config{}, fmt.Errorf("failed to load default config: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("failed to merge command-line flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen_address must be set")
	}
	if c.MongoURI == "" {
		return errors.New("mongo_uri must be set")
	}
	if c.Database == "" {
		return errors.New("database must be set")
	}
	if c.TokenSecret == "" {
		return errors.New("token_secret must be set")
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt_cost must be 0 or between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Call Validate first; unknown
// levels fall back to info here.
func (c Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", level)
	}
}
