package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/meigenapp/meigen/internal/observability"
	"github.com/meigenapp/meigen/internal/storage"
)

// Metric flow labels.
const (
	flowRegister = "register"
	flowSignIn   = "signin"
)

// dummySecretHash is verified against when a sign-in names an unknown email,
// so the unknown-email and wrong-password paths do comparable work. It parses
// as bcrypt but matches no password; its verification result is discarded.
const dummySecretHash = "$2a$10$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service coordinates the credential store, hasher, and token issuer for the
// register and sign-in flows. It is the only caller into all three.
type Service struct {
	accounts      storage.Accounts
	hasher        PasswordHasher
	issuer        *Issuer
	logger        *slog.Logger
	metrics       *observability.Metrics
	registerToken bool
}

// NewService creates a Service. metrics may be nil. registerToken controls
// whether Register also signs the new account in by issuing a token.
func NewService(
	accounts storage.Accounts,
	hasher PasswordHasher,
	issuer *Issuer,
	logger *slog.Logger,
	metrics *observability.Metrics,
	registerToken bool,
) *Service {
	return &Service{
		accounts:      accounts,
		hasher:        hasher,
		issuer:        issuer,
		logger:        logger,
		metrics:       metrics,
		registerToken: registerToken,
	}
}

// RegisterResult is the outcome of a successful registration. Token is empty
// when the service is configured not to auto-issue one.
type RegisterResult struct {
	Account storage.Account
	Token   string
}

// Register creates an account for the given email and password. Input is
// validated before any hashing work, and the password is hashed exactly once,
// before the store is touched. Returns [storage.ErrInvalidEmail],
// [ErrPasswordRequired], [ErrPasswordTooLong], or [storage.ErrAlreadyExists]
// for rejected input; anything else is an infrastructure failure.
func (s *Service) Register(ctx context.Context, email, password string) (RegisterResult, error) {
	if password == "" {
		s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeRejected)
		return RegisterResult{}, ErrPasswordRequired
	}
	if !storage.ValidEmail(storage.NormalizeEmail(email)) {
		s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeRejected)
		return RegisterResult{}, storage.ErrInvalidEmail
	}

	secretHash, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordRequired) || errors.Is(err, ErrPasswordTooLong) {
			s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeRejected)
			return RegisterResult{}, err
		}
		s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeError)
		s.logger.ErrorContext(ctx, "password hashing failed",
			slog.Any("error", err),
		)
		return RegisterResult{}, err
	}

	account, err := s.accounts.CreateAccount(ctx, storage.Account{
		Email:      email,
		SecretHash: secretHash,
	})
	if err != nil {
		outcome := observability.OutcomeRejected
		if !errors.Is(err, storage.ErrInvalidEmail) && !errors.Is(err, storage.ErrAlreadyExists) {
			outcome = observability.OutcomeError
		}
		s.metrics.RecordAuthAttempt(flowRegister, outcome)
		return RegisterResult{}, err
	}

	result := RegisterResult{Account: account}
	if s.registerToken {
		if result.Token, err = s.issuer.Issue(account.ID); err != nil {
			s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeError)
			return RegisterResult{}, fmt.Errorf("failed to issue token: %w", err)
		}
	}

	s.metrics.RecordAuthAttempt(flowRegister, observability.OutcomeOK)
	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID.Hex()),
	)
	return result, nil
}

// SignIn authenticates the email/password pair and returns a session token.
// An unknown email and a wrong password both return [ErrAuthenticationFailed]
// with no distinguishing detail; the dummy-hash verification keeps the two
// paths comparable in cost as well.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	account, lookupErr := s.accounts.GetAccountByEmail(ctx, email)

	targetHash := account.SecretHash
	accountExists := true
	if lookupErr != nil {
		if !errors.Is(lookupErr, storage.ErrNotFound) {
			s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeError)
			return "", fmt.Errorf("failed to load account: %w", lookupErr)
		}
		targetHash = dummySecretHash
		accountExists = false
	}

	match, err := s.hasher.Verify(password, targetHash)
	if err != nil {
		if !accountExists {
			// The dummy hash never stores a real credential; fold its
			// verification errors into the generic rejection.
			s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeRejected)
			return "", ErrAuthenticationFailed
		}
		s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeError)
		s.logger.ErrorContext(ctx, "password verification failed",
			slog.String("account_id", account.ID.Hex()),
			slog.Any("error", err),
		)
		return "", err
	}

	if !accountExists || !match {
		s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeRejected)
		return "", ErrAuthenticationFailed
	}

	token, err := s.issuer.Issue(account.ID)
	if err != nil {
		s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeError)
		return "", fmt.Errorf("failed to issue token: %w", err)
	}

	s.metrics.RecordAuthAttempt(flowSignIn, observability.OutcomeOK)
	return token, nil
}

// ChangeSecret replaces the account's password. The new password is hashed
// exactly once; no other account field is written.
func (s *Service) ChangeSecret(ctx context.Context, accountID primitive.ObjectID, newPassword string) error {
	if newPassword == "" {
		return ErrPasswordRequired
	}
	secretHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		if !errors.Is(err, ErrPasswordRequired) && !errors.Is(err, ErrPasswordTooLong) {
			s.logger.ErrorContext(ctx, "password hashing failed",
				slog.String("account_id", accountID.Hex()),
				slog.Any("error", err),
			)
		}
		return err
	}
	return s.accounts.UpdateAccountSecret(ctx, accountID, secretHash)
}
