// Package command contains the CLI command constructors.
package command

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigenapp/meigen/internal/config"
	"github.com/meigenapp/meigen/internal/observability"
)

// RootCommand instantiates the root command, with all sub-commands bound.
func RootCommand() *cobra.Command {
	configFilePath := filepath.Join(xdg.ConfigHome, "meigen.yaml")
	cmd := &cobra.Command{
		Use:          "meigen [command] [flags]",
		Short:        "The anime quote sharing service",
		Version:      version(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) (err error) {
			cfg, err := loadOrInitConfig(configFilePath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration file: %w", err)
			}
			logger := observability.InitSlog(cfg)
			logger.DebugContext(cmd.Context(), "configuration loaded", slog.String("path", configFilePath))
			slog.SetDefault(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(
		&configFilePath,
		"config", "c",
		configFilePath,
		"path to the configuration file",
	)
	cmd.PersistentFlags().String("listen_address", "", "host:port the REST API binds to")
	cmd.PersistentFlags().String("mongo_uri", "", "MongoDB connection string")
	cmd.PersistentFlags().String("database", "", "MongoDB database name")
	cmd.PersistentFlags().String("log_level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().Bool("dev_mode", false, "enable development mode")

	cmd.AddCommand(
		serveCommand(),
		accountCommand(),
		seedCommand(),
	)

	return cmd
}

func loadOrInitConfig(configFilePath string, flags *pflag.FlagSet) (config.Config, error) {
	cfg, err := config.Load(configFilePath, flags)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return cfg, err
	}

	resp, initErr := prompt(fmt.Sprintf("Config not found at %s. Create one? [y|N] ", configFilePath), false)
	if initErr != nil || !bytes.Equal(resp, []byte("y")) {
		return config.Config{}, errors.Join(err, initErr)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return config.Config{}, fmt.Errorf("failed to generate token secret: %w", err)
	}

	cfg = config.Default()
	cfg.TokenSecret = hex.EncodeToString(secret)
	data, err := yaml.Parser().Marshal(map[string]any{
		"listen_address": cfg.ListenAddress,
		"mongo_uri":      cfg.MongoURI,
		"database":       cfg.Database,
		"token_secret":   cfg.TokenSecret,
		"token_ttl":      cfg.TokenTTL.String(),
		"bcrypt_cost":    cfg.BcryptCost,
		"register_token": cfg.RegisterToken,
		"log_level":      cfg.LogLevel,
	})
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err = os.WriteFile(configFilePath, data, 0600); err != nil { //nolint:mnd // owner rw access
		return config.Config{}, fmt.Errorf("failed to write config file to %s: %w", configFilePath, err)
	}
	return cfg, nil
}
