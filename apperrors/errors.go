// Package apperrors holds the error taxonomy shared by the round engine and
// the HTTP layer. Callers compare with errors.Is; the engine wraps these
// sentinels with fmt.Errorf("...: %w", err) to add context.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation rejects malformed input before any state is touched.
	ErrValidation = errors.New("validation error")
	// ErrTimeout means the answer arrived after the question deadline.
	ErrTimeout = errors.New("question timed out")
	// ErrWrongAnswer means the submitted option did not match the correct one.
	ErrWrongAnswer = errors.New("wrong answer")
	// ErrForbidden is returned on a session or device mismatch.
	ErrForbidden = errors.New("session or device mismatch")
	// ErrStaleState means a concurrent request already advanced the participant.
	ErrStaleState = errors.New("stale participant state")
	// ErrRoundFull means the round has no paid capacity left.
	ErrRoundFull = errors.New("round is full")
	// ErrRoundClosed means the round was cancelled.
	ErrRoundClosed = errors.New("round is closed")
	// ErrInvalidState covers transitions the current state does not allow.
	ErrInvalidState = errors.New("invalid state")
	// ErrPaymentRequired means the next question is behind the paywall.
	ErrPaymentRequired = errors.New("payment required")
	// ErrNotFound is returned when a game, round or participant does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRetryable wraps unexpected store failures; the caller retries.
	ErrRetryable = errors.New("retryable system error")
)

var domainErrors = []error{
	ErrValidation,
	ErrTimeout,
	ErrWrongAnswer,
	ErrForbidden,
	ErrStaleState,
	ErrRoundFull,
	ErrRoundClosed,
	ErrInvalidState,
	ErrPaymentRequired,
	ErrNotFound,
	ErrRetryable,
}

// IsDomain reports whether err carries one of the sentinels above.
func IsDomain(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Retryable leaves domain errors untouched and wraps everything else with
// ErrRetryable so that callers know the transaction was rolled back.
func Retryable(err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrRetryable, err)
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrRoundClosed):
		return http.StatusGone
	case errors.Is(err, ErrWrongAnswer):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrStaleState), errors.Is(err, ErrRoundFull), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentRequired):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRetryable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
