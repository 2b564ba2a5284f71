package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Issuer mints and validates signed session tokens. Tokens are stateless JWTs
// signed with a process-wide HMAC secret; rotating the secret invalidates all
// outstanding tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an Issuer signing with the given secret. Tokens expire
// ttl after issuance.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a signed token asserting the identity of the given account.
func (i *Issuer) Issue(accountID primitive.ObjectID) (string, error) {
	now := i.now()
	claims := jwt.RegisteredClaims{
		Subject:   accountID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Validate verifies the token's signature and expiry and returns the account
// ID it asserts. Whether that account still exists is the caller's concern.
// Returns [ErrTokenExpired] for a correctly signed but stale token and
// [ErrTokenInvalid] for everything else.
func (i *Issuer) Validate(token string) (primitive.ObjectID, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		// Reject any token not signed with our HMAC family before touching
		// the claims.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(func() time.Time { return i.now() }),
		// Issue always sets exp; a signed token without one must not be
		// eternally valid.
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return primitive.NilObjectID, mapJWTError(err)
	}
	if !parsed.Valid {
		return primitive.NilObjectID, ErrTokenInvalid
	}

	accountID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return primitive.NilObjectID, ErrTokenInvalid
	}
	return accountID, nil
}

// mapJWTError translates jwt library errors into the package sentinels. A
// tampered signature wins over expiry.
func mapJWTError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
