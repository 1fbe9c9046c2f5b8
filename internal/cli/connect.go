package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/store"
	"github.com/rs/zerolog/log"
)

// BackendFactory builds a rating backend. chat.NewBackend in production.
type BackendFactory func(ctx context.Context, provider, apiKey, model string) (chat.Backend, error)

// Connection is a ready backend plus where its key came from. Validation
// holds the key check result; nil means the key was accepted.
type Connection struct {
	Backend    chat.Backend
	Source     auth.Source
	Validation error
}

// Connect resolves the credential for provider, builds the backend and
// validates the key. A failed validation is logged as a warning and does not
// fail the connection; per-item failures will show the cause.
func Connect(ctx context.Context, factory BackendFactory, provider, model string, kv store.KVStore) (*Connection, error) {
	apiKey, source, err := auth.GetAPIKey(ctx, provider, kv)
	if err != nil {
		return nil, err
	}

	backend, err := factory(ctx, provider, apiKey, model)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", provider, err)
	}

	log.Info().
		Str("provider", provider).
		Str("model", backend.Model()).
		Str("source", string(source)).
		Str("key", auth.MaskKey(apiKey)).
		Msg("Rating backend initialized")

	conn := &Connection{Backend: backend, Source: source}
	if err := auth.ValidateAPIKey(ctx, backend); err != nil {
		log.Warn().Err(err).Msg(DescribeValidationError(err))
		conn.Validation = err
	}
	return conn, nil
}

// DescribeValidationError returns a one-line, user-facing explanation.
func DescribeValidationError(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "API key validation failed"
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key configured. Set PHOTO_RATER_API_KEY or run 'photo-rater key set'"
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	case auth.ErrTypeServerError:
		return "The rating service is unavailable. Please try again later"
	default:
		return "API key validation failed"
	}
}
