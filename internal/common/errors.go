// Package common defines sentinel errors and small helpers shared by every
// layer of the password manager. Callers should use errors.Is to match the
// sentinels; repositories and services wrap them with fmt.Errorf("...: %w").
package common

import "errors"

var (
	// Repository-level errors. ErrorNotFound is the "no result" marker
	// returned by by-id lookups.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorForbidden     = errors.New("forbidden")
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrorValidation is matched by *ValidationError.
	ErrorValidation = errors.New("validation failed")

	// Token errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
