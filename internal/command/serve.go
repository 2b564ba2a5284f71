package command

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/meigenapp/meigen/internal/api"
	"github.com/meigenapp/meigen/internal/auth"
	"github.com/meigenapp/meigen/internal/observability"
	"github.com/meigenapp/meigen/internal/server"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "serve the quote REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(context.WithoutCancel(cmd.Context())); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			metrics := observability.NewMetrics()
			issuer := auth.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL)
			svc := auth.NewService(
				store,
				auth.NewBcryptHasher(cfg.BcryptCost),
				issuer,
				logger,
				metrics,
				cfg.RegisterToken,
			)

			return server.Run(cmd.Context(), cfg, logger, api.New(cfg, logger, store, svc, issuer, metrics))
		},
	}
}
