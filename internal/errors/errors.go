package errors

import (
	"errors"
	"fmt"
)

// Common error types for the back-office API
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")

	// Token codec errors
	ErrTokenMalformed   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongTokenKind   = errors.New("wrong token kind")

	// Rotation errors
	ErrInvalidToken = errors.New("invalid refresh token")
	ErrUnknownUser  = errors.New("unknown user for refresh token")
	ErrUnknownToken = errors.New("unknown refresh token")
	ErrTokenReused  = errors.New("refresh token already used")

	// Infrastructure errors
	ErrStoreWrite = errors.New("store write failed")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
