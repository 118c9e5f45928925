// Package clientErrors defines the failure taxonomy shared by the
// explorer, consensus and price-oracle clients. A provider returning
// "nothing to report" is never modeled as an error; callers get an empty
// result instead.
package clientErrors

import (
	"errors"
	"fmt"
)

// ProviderError is a non-success, non-rate-limit response from an
// upstream API. It propagates to the caller and never corrupts local
// state.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimitedError is an HTTP 429. Clients retry with capped exponential
// backoff; once the retry ceiling is exhausted it surfaces wrapped in a
// ProviderError.
type RateLimitedError struct {
	Provider string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

// TransientNetworkError wraps a transport-level failure that is worth
// retrying on a later sync pass.
type TransientNetworkError struct {
	Provider string
	Err      error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: transient network error: %v", e.Provider, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// PermanentInvalidInputError indicates the request itself is malformed
// (bad address, bad pubkey). Retrying is pointless.
type PermanentInvalidInputError struct {
	Provider string
	Message  string
}

func (e *PermanentInvalidInputError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Provider, e.Message)
}

// NotFoundError indicates the provider knows nothing about the requested
// entity, as opposed to knowing it and having nothing to report.
type NotFoundError struct {
	Provider string
	Entity   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: not found: %s", e.Provider, e.Entity)
}

func IsRateLimited(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

func IsTransient(err error) bool {
	var rateLimited *RateLimitedError
	var transient *TransientNetworkError
	return errors.As(err, &rateLimited) || errors.As(err, &transient)
}

func IsPermanent(err error) bool {
	var target *PermanentInvalidInputError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
