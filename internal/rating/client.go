package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/photo-rater/internal/assets"
	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of rating one photo. Rate never fails outright: when
// Err is set, Grade is FallbackGrade and Critique explains what went wrong.
type Result struct {
	Grade    Grade
	Critique string
	Attempts int
	Err      error
}

// Degraded reports whether the result is a fallback rather than a real rating.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Client rates single photos against a chat.Backend.
type Client struct {
	backend      chat.Backend
	policy       Policy
	maxDimension int
}

// Option configures a Client or Reporter.
type Option func(*options)

type options struct {
	policy       Policy
	maxDimension int
	sampleSize   int
}

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithMaxDimension sets the longest edge images are scaled to before upload.
func WithMaxDimension(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDimension = n
		}
	}
}

// WithSampleSize sets how many critiques per tier the report quotes.
func WithSampleSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sampleSize = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		policy:       DefaultPolicy(),
		maxDimension: filehandler.DefaultMaxDimension,
		sampleSize:   DefaultSampleSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates a rating client.
func NewClient(backend chat.Backend, opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{
		backend:      backend,
		policy:       o.policy,
		maxDimension: o.maxDimension,
	}
}

// Rate prepares payload, asks the backend for a verdict and retries
// rate-limit and overload failures. Any other failure, or running out of
// attempts, yields the fallback grade with a diagnostic critique.
func (c *Client) Rate(ctx context.Context, name string, payload []byte) Result {
	start := time.Now()

	prepared, err := filehandler.PrepareImage(payload, c.maxDimension)
	if err != nil {
		return c.fallback(name, 0, start, fmt.Errorf("prepare image: %w", err))
	}

	prompt := assets.RenderRatingPrompt(assets.RatingPromptData{
		FileName:        name,
		MetadataContext: filehandler.MetadataFromBytes(payload).FormatMetadataContext(),
	})

	req := chat.ImageRequest{
		Name:     name,
		Data:     prepared.Data,
		MIMEType: prepared.MIMEType,
		Prompt:   prompt,
	}

	var verdict *chat.Verdict
	attempts, err := c.policy.run(ctx, "rate", func() error {
		v, err := c.backend.RateImage(ctx, req)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	if err != nil {
		return c.fallback(name, attempts, start, err)
	}

	grade, err := ParseGrade(verdict.Rating)
	if err != nil {
		return c.fallback(name, attempts, start, fmt.Errorf("%w: %v", chat.ErrMalformedResponse, err))
	}

	c.record(name, "success", attempts, start)
	log.Info().
		Str("file", name).
		Str("grade", string(grade)).
		Int("attempts", attempts).
		Dur("duration", time.Since(start)).
		Msg("Photo rated")

	return Result{Grade: grade, Critique: verdict.Reason, Attempts: attempts}
}

func (c *Client) fallback(name string, attempts int, start time.Time, err error) Result {
	reason := diagnose(err)
	c.record(name, "fallback", attempts, start)
	log.Warn().
		Err(err).
		Str("file", name).
		Int("attempts", attempts).
		Str("reason", reason).
		Msg("Photo could not be rated, using fallback grade")

	return Result{
		Grade:    FallbackGrade,
		Critique: reason,
		Attempts: attempts,
		Err:      err,
	}
}

func (c *Client) record(name, result string, attempts int, start time.Time) {
	m := metrics.New("PhotoRater").
		Dimension("Provider", c.backend.Provider()).
		Dimension("Result", result).
		Metric("RatingLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Count("PhotosRated").
		Property("file", name)
	if attempts > 1 {
		m.Metric("RatingRetries", float64(attempts-1), metrics.UnitCount)
	}
	m.Flush()
}

// diagnose turns a failure into a critique-sized explanation.
func diagnose(err error) string {
	if errors.Is(err, chat.ErrMalformedResponse) {
		return "Rating failed: the model returned an unreadable answer."
	}
	if errors.Is(err, filehandler.ErrImageTooLarge) {
		return "Rating failed: the image has too many pixels to decode."
	}
	switch auth.ClassifyError(err).Type {
	case auth.ErrTypeQuotaExceeded:
		return "Rating failed: rate limit persisted after retries."
	case auth.ErrTypeServerError:
		return "Rating failed: the service stayed unavailable after retries."
	case auth.ErrTypeNetworkError:
		return "Rating failed: the rating service could not be reached."
	case auth.ErrTypeInvalidKey, auth.ErrTypeNoKey:
		return "Rating failed: the API key was rejected."
	default:
		return "Rating failed: " + err.Error()
	}
}
