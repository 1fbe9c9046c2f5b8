package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fpang/photo-rater/internal/assets"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/rs/zerolog/log"
)

// DefaultSampleSize is how many critiques per tier the report quotes.
const DefaultSampleSize = 5

// ErrNothingToSummarize is returned when no photo has been rated yet.
var ErrNothingToSummarize = errors.New("no rated photos to summarize")

// Counts is the rating distribution of a batch.
type Counts struct {
	Total  int
	Failed int
	S      int
	A      int
	B      int
}

// Rated returns the number of photos with a real grade.
func (c Counts) Rated() int {
	return c.S + c.A + c.B
}

// Sample is one rated photo offered to the report.
type Sample struct {
	Name     string
	Grade    Grade
	Critique string
}

// Report is the group review of a batch.
type Report struct {
	Grade        Grade     `json:"grade"`
	Summary      string    `json:"summary"`
	Strengths    []string  `json:"strengths"`
	Improvements []string  `json:"improvements"`
	GeneratedAt  time.Time `json:"generatedAt"`
}

// Reporter writes group reports against a chat.Backend.
type Reporter struct {
	backend    chat.Backend
	policy     Policy
	sampleSize int
}

// NewReporter creates a group report generator.
func NewReporter(backend chat.Backend, opts ...Option) *Reporter {
	o := buildOptions(opts)
	return &Reporter{
		backend:    backend,
		policy:     o.policy,
		sampleSize: o.sampleSize,
	}
}

// Generate quotes up to the sample size of critiques from the best and the
// worst populated tiers and asks the backend for a group review. Retryable
// failures are retried under the same policy as ratings; the final error is
// returned as is and no partial report is produced.
func (r *Reporter) Generate(ctx context.Context, counts Counts, samples []Sample) (*Report, error) {
	data, err := buildReportData(counts, samples, r.sampleSize)
	if err != nil {
		return nil, err
	}

	req := chat.SummaryRequest{Prompt: assets.RenderReportPrompt(data)}

	log.Info().
		Int("rated", data.Rated).
		Str("top_tier", data.TopTier).
		Int("top_samples", len(data.TopSamples)).
		Str("bottom_tier", data.BottomTier).
		Int("bottom_samples", len(data.BottomSamples)).
		Msg("Generating group report")

	start := time.Now()
	var summary *chat.GroupSummary
	attempts, err := r.policy.run(ctx, "report", func() error {
		s, err := r.backend.SummarizeBatch(ctx, req)
		if err != nil {
			return err
		}
		summary = s
		return nil
	})

	m := metrics.New("PhotoRater").
		Dimension("Provider", r.backend.Provider()).
		Metric("ReportLatencyMs", float64(time.Since(start).Milliseconds()), metrics.UnitMilliseconds).
		Metric("ReportAttempts", float64(attempts), metrics.UnitCount).
		Count("ReportsRequested")
	if err != nil {
		m.Count("ReportErrors")
	}
	m.Flush()

	if err != nil {
		log.Error().Err(err).Int("attempts", attempts).Msg("Group report failed")
		return nil, fmt.Errorf("generate report: %w", err)
	}

	grade, err := ParseGrade(summary.Grade)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w: %v", chat.ErrMalformedResponse, err)
	}

	return &Report{
		Grade:        grade,
		Summary:      summary.Summary,
		Strengths:    summary.Strengths,
		Improvements: summary.Improvements,
		GeneratedAt:  time.Now(),
	}, nil
}

// buildReportData selects the quoted critiques. When only one tier is
// populated it is quoted once.
func buildReportData(counts Counts, samples []Sample, n int) (assets.ReportPromptData, error) {
	byTier := make(map[Grade][]assets.ReportSample)
	for _, s := range samples {
		if !s.Grade.IsTier() {
			continue
		}
		byTier[s.Grade] = append(byTier[s.Grade], assets.ReportSample{FileName: s.Name, Critique: s.Critique})
	}
	if len(byTier) == 0 {
		return assets.ReportPromptData{}, ErrNothingToSummarize
	}

	var top, bottom Grade
	for _, g := range Tiers {
		if len(byTier[g]) == 0 {
			continue
		}
		if top == "" {
			top = g
		}
		bottom = g
	}

	data := assets.ReportPromptData{
		Total:      counts.Total,
		Rated:      counts.Rated(),
		Failed:     counts.Failed,
		CountS:     counts.S,
		CountA:     counts.A,
		CountB:     counts.B,
		TopTier:    string(top),
		TopSamples: firstN(byTier[top], n),
	}
	if bottom != top {
		data.BottomTier = string(bottom)
		data.BottomSamples = firstN(byTier[bottom], n)
	}
	return data, nil
}

func firstN(s []assets.ReportSample, n int) []assets.ReportSample {
	if len(s) > n {
		return s[:n]
	}
	return s
}
