package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/meigenapp/meigen/internal/auth"
	"github.com/meigenapp/meigen/internal/storage"
)

func seedCommand() *cobra.Command {
	var (
		accounts int
		quotes   int
		seed     uint64
		password string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with fake accounts and quotes",
		Long: "Generates fake accounts and quotes for local development. " +
			"Refuses to run unless dev_mode is enabled.",
		Args: cobra.NoArgs,
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

			if !cfg.DevMode {
				return errors.New("seed requires dev_mode to be enabled")
			}

			faker := gofakeit.New(seed)
			svc := auth.NewService(
				store,
				auth.NewBcryptHasher(cfg.BcryptCost),
				auth.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
				logger,
				nil,
				false,
			)

			for range accounts {
				result, err := svc.Register(cmd.Context(), faker.Email(), password)
				if err != nil {
					// Fake emails collide occasionally; skip and move on.
					if errors.Is(err, storage.ErrAlreadyExists) {
						continue
					}
					return err
				}
				for range quotes {
					_, err := store.CreateQuote(cmd.Context(), storage.Quote{
						Text:      faker.Sentence(faker.Number(5, 15)),
						Character: faker.Name(),
						Source:    faker.MovieName(),
						Owner:     result.Account.ID,
					})
					if err != nil {
						return fmt.Errorf("failed to seed quotes for %s: %w", result.Account.Email, err)
					}
				}
				logger.InfoContext(cmd.Context(), "seeded account",
					slog.String("email", result.Account.Email),
					slog.Int("quotes", quotes),
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&accounts, "accounts", 5, "number of accounts to create")
	cmd.Flags().IntVar(&quotes, "quotes", 20, "number of quotes per account")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "faker seed, 0 for random")
	cmd.Flags().StringVar(&password, "password", "password", "password for every seeded account")

	return cmd
}
