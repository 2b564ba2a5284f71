package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigenapp/meigen/internal/auth"
)

func accountCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account commands",
	}
	cmd.AddCommand(
		accountCreateCommand(),
		accountDeleteCommand(),
	)
	return cmd
}

func accountCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create account",
		Long: "Creates an account for the provided email and password. Passwords may be\n" +
			"provided via stdin or through the interactive prompt.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			cfg, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(context.WithoutCancel(cmd.Context())); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			passwd, err := prompt("password: ", true)
			if err != nil {
				return err
			}

			svc := auth.NewService(
				store,
				auth.NewBcryptHasher(cfg.BcryptCost),
				auth.NewIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL),
				logger,
				nil,
				false,
			)
			result, err := svc.Register(cmd.Context(), args[0], string(passwd))
			if err != nil {
				return err
			}

			logger.InfoContext(cmd.Context(), "created account",
				slog.String("email", result.Account.Email),
				slog.String("id", result.Account.ID.Hex()),
			)
			return nil
		},
	}
}

func accountDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete EMAIL",
		Short: "Delete account",
		Long: "Permanently deletes the account and every quote it owns. " +
			"This operation is permanent and irreversible.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (runErr error) {
			_, logger, store, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(context.WithoutCancel(cmd.Context())); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()

			email := args[0]
			logger = logger.With(slog.String("email", email))
			account, err := store.GetAccountByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			resp, err := prompt("Are you sure you want to delete this account? [y|N] ", false)
			if !bytes.Equal(resp, []byte{'y'}) || err != nil {
				logger.InfoContext(cmd.Context(), "aborted account deletion")
				return err
			}
			if err = store.DeleteAccount(cmd.Context(), account.ID); err != nil {
				return err
			}
			logger.InfoContext(cmd.Context(), "account deleted")
			return nil
		},
	}
}
