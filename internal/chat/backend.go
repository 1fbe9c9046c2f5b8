// Package chat talks to the vision models that rate photos. Each provider
// implements Backend; callers own retries and fallback.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fpang/photo-rater/internal/jsonutil"
	"github.com/rs/zerolog/log"
)

// ErrMalformedResponse is returned when the model answers with something that
// is not the requested structure.
var ErrMalformedResponse = errors.New("malformed model response")

// Backend is a vision model that can rate one image and summarize a batch.
type Backend interface {
	RateImage(ctx context.Context, req ImageRequest) (*Verdict, error)
	SummarizeBatch(ctx context.Context, req SummaryRequest) (*GroupSummary, error)

	// Ping makes the smallest possible request to check the credential.
	Ping(ctx context.Context) error
	Provider() string
	Model() string
}

// ImageRequest carries one prepared image and its rendered prompt.
type ImageRequest struct {
	Name     string
	Data     []byte
	MIMEType string
	Prompt   string
}

// Verdict is the structured rating of one image.
type Verdict struct {
	Rating string `json:"rating"`
	Reason string `json:"reason"`
}

// SummaryRequest carries the rendered group report prompt.
type SummaryRequest struct {
	Prompt string
}

// GroupSummary is the structured group report returned by the model.
type GroupSummary struct {
	Grade        string   `json:"grade"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// schemaTiers constrains the grade field of structured-output schemas. The
// rating package owns grade validation.
var schemaTiers = []string{"S", "A", "B"}

// NewBackend builds the backend for provider. model may be empty.
func NewBackend(ctx context.Context, provider, apiKey, model string) (Backend, error) {
	if err := ValidateProvider(provider); err != nil {
		return nil, err
	}
	model = ResolveModelName(provider, model)

	log.Debug().Str("provider", provider).Str("model", model).Msg("Creating rating backend")

	if provider == ProviderAnthropic {
		return NewAnthropicBackend(apiKey, model), nil
	}
	return NewGeminiBackend(ctx, apiKey, model)
}

// parseVerdict extracts a Verdict from model text and normalizes its fields.
// The rating letter is not checked against the tiers here.
func parseVerdict(text string) (*Verdict, error) {
	v, err := jsonutil.ParseJSON[Verdict](text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	v.Rating = strings.ToUpper(strings.TrimSpace(v.Rating))
	if v.Rating == "" {
		return nil, fmt.Errorf("%w: missing rating", ErrMalformedResponse)
	}
	v.Reason = strings.TrimSpace(v.Reason)
	return &v, nil
}

// parseGroupSummary extracts a GroupSummary from model text and normalizes
// its grade.
func parseGroupSummary(text string) (*GroupSummary, error) {
	s, err := jsonutil.ParseJSON[GroupSummary](text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	s.Grade = strings.ToUpper(strings.TrimSpace(s.Grade))
	if s.Grade == "" {
		return nil, fmt.Errorf("%w: missing grade", ErrMalformedResponse)
	}
	if strings.TrimSpace(s.Summary) == "" {
		return nil, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	return &s, nil
}
