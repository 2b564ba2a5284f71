package auth

import "errors"

var (
	// ErrAuthenticationFailed is returned by sign-in for both an unknown email
	// and a wrong password. Callers must not be able to tell which it was.
	ErrAuthenticationFailed = errors.New("invalid email or password")

	// ErrPasswordRequired is returned when a register or change-secret request
	// carries an empty password.
	ErrPasswordRequired = errors.New("password is required")

	// ErrPasswordTooLong is returned when a password exceeds bcrypt's 72-byte
	// input limit. Client input, not a primitive failure.
	ErrPasswordTooLong = errors.New("password is longer than 72 bytes")

	// ErrTokenInvalid is returned when a token is malformed, carries a bad
	// signature, or was signed with an unexpected method.
	ErrTokenInvalid = errors.New("token is invalid")

	// ErrTokenExpired is returned when a well-formed, correctly signed token
	// is past its expiry. Distinct from ErrTokenInvalid for logs and metrics;
	// both map to the same unauthorized response.
	ErrTokenExpired = errors.New("token has expired")

	// ErrHashingPrimitive is wrapped around failures of the hashing primitive
	// itself. Never folded into ErrAuthenticationFailed.
	ErrHashingPrimitive = errors.New("hashing primitive failure")
)
