package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/photo-rater/internal/assets"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// GeminiBackend rates photos with the Gemini API using response schemas.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

var _ Backend = (*GeminiBackend)(nil)

// NewGeminiClient creates a Gemini API client for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiBackend creates a Gemini backend for model.
func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Provider() string { return ProviderGemini }
func (g *GeminiBackend) Model() string    { return g.model }

// verdictSchema constrains the rating to the three tiers.
var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"rating": {Type: genai.TypeString, Enum: schemaTiers},
		"reason": {Type: genai.TypeString},
	},
	Required: []string{"rating", "reason"},
}

var groupSummarySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"grade":        {Type: genai.TypeString, Enum: schemaTiers},
		"summary":      {Type: genai.TypeString},
		"strengths":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"improvements": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"grade", "summary", "strengths", "improvements"},
}

// RateImage sends one inline image with the rating prompt.
func (g *GeminiBackend) RateImage(ctx context.Context, req ImageRequest) (*Verdict, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.RatingSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
		Temperature:      genai.Ptr[float32](0.2),
		MaxOutputTokens:  1024,
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: req.MIMEType, Data: req.Data}},
			{Text: req.Prompt},
		},
	}}

	log.Debug().
		Str("file", req.Name).
		Str("model", g.model).
		Int("image_bytes", len(req.Data)).
		Msg("Starting Gemini API call for photo rating")

	text, err := g.generate(ctx, "rate", contents, config)
	if err != nil {
		return nil, err
	}
	return parseVerdict(text)
}

// SummarizeBatch requests the group report.
func (g *GeminiBackend) SummarizeBatch(ctx context.Context, req SummaryRequest) (*GroupSummary, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.ReportSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema:   groupSummarySchema,
		MaxOutputTokens:  4096,
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}}

	text, err := g.generate(ctx, "report", contents, config)
	if err != nil {
		return nil, err
	}
	return parseGroupSummary(text)
}

// Ping sends a one-word prompt to check the key.
func (g *GeminiBackend) Ping(ctx context.Context) error {
	_, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text("hi"), &genai.GenerateContentConfig{
		MaxOutputTokens: 1,
	})
	return err
}

func (g *GeminiBackend) generate(ctx context.Context, operation string, contents []*genai.Content, config *genai.GenerateContentConfig) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	elapsed := time.Since(start)

	m := metrics.New("PhotoRater").
		Dimension("Provider", ProviderGemini).
		Dimension("Operation", operation).
		Metric("ModelApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ModelApiCalls")
	if err != nil {
		m.Count("ModelApiErrors")
	}
	if resp != nil && resp.UsageMetadata != nil {
		m.Metric("InputTokens", float64(resp.UsageMetadata.PromptTokenCount), metrics.UnitCount)
		m.Metric("OutputTokens", float64(resp.UsageMetadata.CandidatesTokenCount), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Str("operation", operation).Dur("duration", elapsed).Msg("Gemini API call failed")
		return "", fmt.Errorf("gemini %s: %w", operation, err)
	}

	if resp == nil || resp.Text() == "" {
		log.Warn().Str("operation", operation).Dur("duration", elapsed).Msg("Received empty response from Gemini")
		return "", fmt.Errorf("%w: empty response from Gemini", ErrMalformedResponse)
	}

	log.Debug().
		Str("operation", operation).
		Int("response_length", len(resp.Text())).
		Dur("duration", elapsed).
		Msg("Gemini API response received")
	return resp.Text(), nil
}
