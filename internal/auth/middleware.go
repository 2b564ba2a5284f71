package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// accountIDKey is the echo context key the middleware stores the validated
// account ID under.
const accountIDKey = "auth.account_id"

// RequireToken returns echo middleware that rejects requests without a valid
// session token before they reach the handler. The token is read from the
// Authorization header, with or without a Bearer prefix (older clients send
// the bare token).
func RequireToken(issuer *Issuer, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization token")
			}

			accountID, err := issuer.Validate(token)
			if err != nil {
				// ErrTokenExpired vs ErrTokenInvalid stays in the logs; the
				// response is the same either way.
				logger.DebugContext(c.Request().Context(), "rejected token",
					slog.Any("error", err),
				)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(accountIDKey, accountID)
			return next(c)
		}
	}
}

// AccountID returns the authenticated account's ID from the echo context.
// Returns the zero ObjectID if the middleware did not run.
func AccountID(c echo.Context) primitive.ObjectID {
	if id, ok := c.Get(accountIDKey).(primitive.ObjectID); ok {
		return id
	}
	return primitive.NilObjectID
}

func extractToken(header string) string {
	if header == "" {
		return ""
	}
	const scheme = "bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return header
}
