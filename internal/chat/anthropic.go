package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/fpang/photo-rater/internal/assets"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/rs/zerolog/log"
)

// AnthropicBackend rates photos with the Anthropic Messages API. There is no
// response schema, so the prompts ask for bare JSON and the text is parsed
// with jsonutil.
type AnthropicBackend struct {
	api   *anthropic.Client
	model anthropic.Model
}

var _ Backend = (*AnthropicBackend)(nil)

// NewAnthropicBackend creates an Anthropic backend. The SDK's own retries are
// disabled; the rating client owns backoff. Extra options are applied last.
func NewAnthropicBackend(apiKey, model string, extra ...option.RequestOption) *AnthropicBackend {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)
	return &AnthropicBackend{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func (a *AnthropicBackend) Provider() string { return ProviderAnthropic }
func (a *AnthropicBackend) Model() string    { return string(a.model) }

// RateImage sends one base64 image block with the rating prompt.
func (a *AnthropicBackend) RateImage(ctx context.Context, req ImageRequest) (*Verdict, error) {
	encoded := base64.StdEncoding.EncodeToString(req.Data)

	log.Debug().
		Str("file", req.Name).
		Str("model", string(a.model)).
		Int("image_bytes", len(req.Data)).
		Msg("Starting Anthropic API call for photo rating")

	text, err := a.send(ctx, "rate", anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: assets.RatingSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(req.MIMEType, encoded),
				anthropic.NewTextBlock(req.Prompt),
			),
		},
	})
	if err != nil {
		return nil, err
	}
	return parseVerdict(text)
}

// SummarizeBatch requests the group report.
func (a *AnthropicBackend) SummarizeBatch(ctx context.Context, req SummaryRequest) (*GroupSummary, error) {
	text, err := a.send(ctx, "report", anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: assets.ReportSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, err
	}
	return parseGroupSummary(text)
}

// Ping sends a one-token request to check the key.
func (a *AnthropicBackend) Ping(ctx context.Context) error {
	_, err := a.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
		},
	})
	return err
}

func (a *AnthropicBackend) send(ctx context.Context, operation string, params anthropic.MessageNewParams) (string, error) {
	start := time.Now()
	msg, err := a.api.Messages.New(ctx, params)
	elapsed := time.Since(start)

	m := metrics.New("PhotoRater").
		Dimension("Provider", ProviderAnthropic).
		Dimension("Operation", operation).
		Metric("ModelApiLatencyMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ModelApiCalls")
	if err != nil {
		m.Count("ModelApiErrors")
	}
	if msg != nil {
		m.Metric("InputTokens", float64(msg.Usage.InputTokens), metrics.UnitCount)
		m.Metric("OutputTokens", float64(msg.Usage.OutputTokens), metrics.UnitCount)
	}
	m.Flush()

	if err != nil {
		log.Warn().Err(err).Str("operation", operation).Dur("duration", elapsed).Msg("Anthropic API call failed")
		return "", fmt.Errorf("anthropic %s: %w", operation, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		log.Warn().Str("operation", operation).Dur("duration", elapsed).Msg("No text content in Anthropic response")
		return "", fmt.Errorf("%w: no text content in Anthropic response", ErrMalformedResponse)
	}

	log.Debug().
		Str("operation", operation).
		Int("response_length", len(text)).
		Dur("duration", elapsed).
		Msg("Anthropic API response received")
	return text, nil
}
