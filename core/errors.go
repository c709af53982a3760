package core

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorCodeUnauthorized       = "CART_WEBHOOK_UNAUTHORIZED"
	ErrorCodeBadPayload         = "CART_BAD_PAYLOAD"
	ErrorCodeUpstreamTransient  = "CART_UPSTREAM_TRANSIENT"
	ErrorCodePersistenceFailure = "CART_PERSISTENCE_FAILURE"
	ErrorCodeInternal           = "CART_INTERNAL_ERROR"
)

// AuthenticationFailure rejects an inbound delivery whose signature is
// missing, malformed, or does not match. No state is mutated on this path.
func AuthenticationFailure(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorCodeUnauthorized)
}

// ValidationFailure rejects a malformed payload before any mutation.
func ValidationFailure(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorCodeBadPayload)
}

// UpstreamTransient wraps a directory, order, or mail transport failure.
// These are always recovered locally: logged and swallowed in the ingestion
// handler, retried on the next tick in the scheduler.
func UpstreamTransient(source error, message string) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorCodeUpstreamTransient)
}

// PersistenceFailure wraps a store error. The webhook path surfaces it as a
// 500; a scheduler pass aborts and retries the whole batch next tick.
func PersistenceFailure(source error, message string) error {
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorCodePersistenceFailure)
}

// MapError normalizes any error into the service envelope with a category,
// text code, and HTTP status filled in.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureEnvelope(rich)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ensureEnvelope(
			goerrors.Wrap(err, goerrors.CategoryExternal, "upstream call timed out").
				WithTextCode(ErrorCodeUpstreamTransient),
		)
	}
	return ensureEnvelope(goerrors.Wrap(err, goerrors.CategoryInternal, err.Error()))
}

// HTTPStatus resolves the response status for the webhook surface.
func HTTPStatus(err error) int {
	mapped := MapError(err)
	if mapped == nil {
		return http.StatusOK
	}
	return mapped.Code
}

// IsTransient reports whether the error should be retried on a later pass
// rather than treated as a definitive answer.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryExternal ||
			rich.Category == goerrors.CategoryRateLimit
	}
	return false
}

// IsBadInput reports whether the input itself is invalid, meaning a retry
// with the same bytes can never succeed.
func IsBadInput(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == goerrors.CategoryBadInput ||
			rich.Category == goerrors.CategoryValidation
	}
	return false
}

func ensureEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = statusForCategory(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = textCodeForCategory(err.Category)
	}
	return err
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func textCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorCodeBadPayload
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorCodeUnauthorized
	case goerrors.CategoryExternal, goerrors.CategoryRateLimit:
		return ErrorCodeUpstreamTransient
	default:
		return ErrorCodeInternal
	}
}
