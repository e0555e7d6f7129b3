// Package apperr defines the error kinds shared by the token lifecycle.
//
// Business failures are sentinel kinds checked with errors.Is. Internal reasons
// (why a token was rejected) are wrapped alongside the kind so logs can tell
// them apart while callers only ever branch on the kind.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrAlreadyExists        = errors.New("already exists")
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")

	// ErrUnavailable marks store timeouts and outages. Safe to retry.
	ErrUnavailable = errors.New("store unavailable")
)

// Reasons a token is rejected. Always wrapped together with ErrTokenInvalid.
var (
	ErrTokenEmpty      = errors.New("token empty")
	ErrTokenRevoked    = errors.New("token already invalidated")
	ErrTokenMalformed  = errors.New("token malformed")
	ErrTokenSignature  = errors.New("token signature invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenKind       = errors.New("token kind mismatch")
	ErrSubjectUnknown  = errors.New("token subject unknown")
	ErrAccountInactive = errors.New("account inactive")
)

// TokenInvalid wraps reason with ErrTokenInvalid.
func TokenInvalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrTokenInvalid, reason)
}

// Unavailable wraps an infrastructure failure. nil stays nil, and errors that
// already carry a business kind are returned untouched.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if IsBusiness(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// IsBusiness reports whether err carries one of the business-rule kinds.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrTokenInvalid) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation)
}

func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Reason returns the most specific token rejection reason in err, or "" when
// err is not a token rejection.
func Reason(err error) string {
	if !errors.Is(err, ErrTokenInvalid) {
		return ""
	}
	for _, r := range []error{
		ErrTokenEmpty, ErrTokenRevoked, ErrTokenMalformed, ErrTokenSignature,
		ErrTokenExpired, ErrTokenKind, ErrSubjectUnknown, ErrAccountInactive,
	} {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	return ErrTokenInvalid.Error()
}
