// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"text/template"
)

// --- Static prompts (no dynamic data) ---

// RatingSystemPrompt describes the S/A/B rubric used for every photo.
//
//go:embed prompts/rating-system.txt
var RatingSystemPrompt string

// ReportSystemPrompt frames the whole-batch group report.
//
//go:embed prompts/report-system.txt
var ReportSystemPrompt string

// --- Dynamic prompt templates ---

//go:embed prompts/rating-image.txt
var ratingImageTemplate string

//go:embed prompts/report-batch.txt
var reportBatchTemplate string

// Pre-parsed templates. template.Must panics on malformed templates,
// catching errors at program startup rather than at call time.
var (
	ratingImageTmpl = template.Must(template.New("rating").Parse(ratingImageTemplate))
	reportBatchTmpl = template.Must(template.New("report").Parse(reportBatchTemplate))
)

// RatingPromptData holds the dynamic data for the per-photo prompt.
type RatingPromptData struct {
	FileName string

	// MetadataContext is the formatted EXIF block. Empty if unavailable.
	MetadataContext string
}

// ReportSample is one critique quoted in the group report prompt.
type ReportSample struct {
	FileName string
	Critique string
}

// ReportPromptData holds the dynamic data for the group report prompt.
type ReportPromptData struct {
	Total  int
	Rated  int
	Failed int
	CountS int
	CountA int
	CountB int

	TopTier       string
	TopSamples    []ReportSample
	BottomTier    string
	BottomSamples []ReportSample
}

// RenderRatingPrompt renders the per-photo rating prompt.
func RenderRatingPrompt(data RatingPromptData) string {
	return renderTemplate(ratingImageTmpl, data)
}

// RenderReportPrompt renders the group report prompt.
func RenderReportPrompt(data ReportPromptData) string {
	return renderTemplate(reportBatchTmpl, data)
}

func renderTemplate(tmpl *template.Template, data any) string {
	var buf bytes.Buffer
	// Execution errors are not expected with these templates; return whatever rendered.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}
