package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ValidationError represents a classified failure talking to the rating service.
// The same taxonomy drives credential validation and the retry decision of
// the rating client.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates the service could not be reached.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates a rate limit or exhausted quota.
	ErrTypeQuotaExceeded
	// ErrTypeServerError indicates the service failed or is overloaded (5xx).
	ErrTypeServerError
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

// String returns a short label used in logs and metrics.
func (t ValidationErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	case ErrTypeServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth retrying with backoff.
// Only rate limits and server-side overload qualify; an unreachable network
// or a bad key will not fix itself within a backoff window.
func (e *ValidationError) Retryable() bool {
	return e.Type == ErrTypeQuotaExceeded || e.Type == ErrTypeServerError
}

// Pinger is implemented by rating backends that can make a minimal request
// to check the credential.
type Pinger interface {
	Ping(ctx context.Context) error
	Provider() string
}

// ValidateAPIKey verifies the credential by making a minimal API call.
// It returns nil if the key is valid, or a *ValidationError describing the failure.
func ValidateAPIKey(ctx context.Context, p Pinger) error {
	log.Debug().Str("provider", p.Provider()).Msg("Validating API key")

	start := time.Now()
	err := p.Ping(ctx)
	elapsed := time.Since(start)

	result := "success"
	var valErr *ValidationError
	if err != nil {
		valErr = ClassifyError(err)
		result = valErr.Type.String()
	}

	metrics.New("PhotoRater").
		Dimension("Provider", p.Provider()).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()

	if valErr != nil {
		return valErr
	}

	log.Info().Str("provider", p.Provider()).Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

// ClassifyError analyzes an error from a rating backend and returns a
// ValidationError with the appropriate type. An error that already is a
// *ValidationError is returned as is.
func ClassifyError(err error) *ValidationError {
	if err == nil {
		return nil
	}

	var existing *ValidationError
	if errors.As(err, &existing) {
		return existing
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ValidationError{Type: ErrTypeUnknown, Message: "request canceled", Err: err}
	}

	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) {
		return classifyStatus(geminiErr.Code, geminiErr.Message, err)
	}
	var geminiErrPtr *genai.APIError
	if errors.As(err, &geminiErrPtr) {
		return classifyStatus(geminiErrPtr.Code, geminiErrPtr.Message, err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return classifyStatus(anthropicErr.StatusCode, "", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}
	}

	errLower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid or has been revoked",
			Err:     err,
		}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "resource_exhausted") ||
		strings.Contains(errLower, "rate limit") ||
		strings.Contains(errLower, "too many requests"):
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API quota exceeded or rate limited",
			Err:     err,
		}

	case strings.Contains(errLower, "overloaded") ||
		strings.Contains(errLower, "unavailable"):
		return &ValidationError{
			Type:    ErrTypeServerError,
			Message: "Service overloaded - try again later",
			Err:     err,
		}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}

	default:
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Request failed",
			Err:     err,
		}
	}
}

// classifyStatus categorizes an HTTP status returned by a rating service.
func classifyStatus(code int, message string, err error) *ValidationError {
	switch code {
	case 400:
		// Gemini reports a malformed key as 400 INVALID_ARGUMENT.
		if strings.Contains(strings.ToLower(message+" "+err.Error()), "api key") {
			return &ValidationError{
				Type:    ErrTypeInvalidKey,
				Message: "Bad request - API key may be malformed",
				Err:     err,
			}
		}
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Bad request",
			Err:     err,
		}

	case 401, 403:
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid, expired, or lacks permissions",
			Err:     err,
		}

	case 429:
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API rate limit exceeded - try again later",
			Err:     err,
		}

	case 500, 502, 503, 504, 529:
		return &ValidationError{
			Type:    ErrTypeServerError,
			Message: "Rating service error - try again later",
			Err:     err,
		}

	default:
		if message == "" {
			message = "Rating service error"
		}
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: message,
			Err:     err,
		}
	}
}
