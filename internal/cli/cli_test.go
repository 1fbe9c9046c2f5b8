package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	pingErr error
}

func (s *stubBackend) RateImage(context.Context, chat.ImageRequest) (*chat.Verdict, error) {
	return &chat.Verdict{Rating: "A"}, nil
}

func (s *stubBackend) SummarizeBatch(context.Context, chat.SummaryRequest) (*chat.GroupSummary, error) {
	return &chat.GroupSummary{Grade: "A"}, nil
}

func (s *stubBackend) Ping(context.Context) error { return s.pingErr }
func (s *stubBackend) Provider() string           { return chat.ProviderGemini }
func (s *stubBackend) Model() string              { return "stub" }

func isolateCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, name := range []string{"PHOTO_RATER_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestConnect_ValidationWarnsOnly(t *testing.T) {
	isolateCredentials(t)
	t.Setenv("GEMINI_API_KEY", "AIza-test-key-123456")

	var gotKey string
	factory := func(_ context.Context, provider, apiKey, model string) (chat.Backend, error) {
		gotKey = apiKey
		return &stubBackend{pingErr: errors.New("API key not valid")}, nil
	}

	conn, err := Connect(context.Background(), factory, chat.ProviderGemini, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "AIza-test-key-123456", gotKey)
	assert.Equal(t, auth.SourceEnv, conn.Source)
	assert.NotNil(t, conn.Backend)

	var verr *auth.ValidationError
	require.ErrorAs(t, conn.Validation, &verr)
	assert.Equal(t, auth.ErrTypeInvalidKey, verr.Type)
}

func TestConnect_NoKey(t *testing.T) {
	isolateCredentials(t)

	called := false
	factory := func(context.Context, string, string, string) (chat.Backend, error) {
		called = true
		return &stubBackend{}, nil
	}

	_, err := Connect(context.Background(), factory, chat.ProviderGemini, "", nil)
	var verr *auth.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, auth.ErrTypeNoKey, verr.Type)
	assert.False(t, called)
}

func TestConnect_FactoryError(t *testing.T) {
	isolateCredentials(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	factory := func(context.Context, string, string, string) (chat.Backend, error) {
		return nil, errors.New("boom")
	}

	_, err := Connect(context.Background(), factory, chat.ProviderAnthropic, "", nil)
	assert.ErrorContains(t, err, "create anthropic backend")
}

func TestDescribeValidationError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&auth.ValidationError{Type: auth.ErrTypeNoKey}, "No API key"},
		{&auth.ValidationError{Type: auth.ErrTypeInvalidKey}, "Invalid API key"},
		{&auth.ValidationError{Type: auth.ErrTypeQuotaExceeded}, "quota"},
		{errors.New("plain"), "validation failed"},
	}
	for _, tt := range tests {
		assert.Contains(t, DescribeValidationError(tt.err), tt.want)
	}
}

func TestResolveDirectory(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.Mkdir(filepath.Join(home, "Pictures"), 0o700))
	file := filepath.Join(home, "a.jpg")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	got, err := ResolveDirectory("~/Pictures")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Pictures"), got)

	got, err = ResolveDirectory(home)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))

	_, err = ResolveDirectory(file)
	assert.ErrorContains(t, err, "not a directory")

	_, err = ResolveDirectory(filepath.Join(home, "missing"))
	assert.ErrorContains(t, err, "not found")
}

func TestPromptForDirectory(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, "/photos/trip", PromptForDirectory(strings.NewReader("  /photos/trip \n"), &out))
	assert.Contains(t, out.String(), "Directory [")

	cwd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, cwd, PromptForDirectory(strings.NewReader("\n"), &out))
	assert.Equal(t, cwd, PromptForDirectory(strings.NewReader(""), &out))
}

func TestReadSecret(t *testing.T) {
	var out bytes.Buffer
	got, err := ReadSecret(strings.NewReader("sk-123\n"), &out, "API key")
	require.NoError(t, err)
	assert.Equal(t, "sk-123", got)

	_, err = ReadSecret(strings.NewReader(""), &out, "API key")
	assert.Error(t, err)
}

func TestFormatElapsed(t *testing.T) {
	assert.Equal(t, "0:05", FormatElapsed(5*time.Second+400*time.Millisecond))
	assert.Equal(t, "2:03", FormatElapsed(123*time.Second))
	assert.Equal(t, "1:00:01", FormatElapsed(time.Hour+time.Second))
}

func TestRenderResults(t *testing.T) {
	items := []batch.Item{
		{Name: "keeper.jpg", Rating: rating.GradeS, Critique: "Great light."},
		{Name: "waiting.jpg", Rating: rating.GradeUnrated},
		{Name: "broken.jpg", Rating: rating.GradeRejected, Critique: "Rating failed: the rating service could not be reached."},
	}

	out := RenderResults(items, false)
	assert.Contains(t, out, "keeper.jpg")
	assert.Contains(t, out, "Great light.")
	assert.Contains(t, out, "REJECTED")
	assert.Contains(t, out, " - ")
	assert.NotContains(t, out, "\x1b[", "no escape codes without color")
}

func TestRenderStatsAndReport(t *testing.T) {
	stats := RenderStats(batch.Stats{Total: 4, Processed: 3, Completed: 2, Failed: 1, S: 1, A: 1})
	assert.Contains(t, stats, "Rejected")

	report := RenderReport(&rating.Report{
		Grade:        rating.GradeA,
		Summary:      "Solid set.",
		Strengths:    []string{"Color"},
		Improvements: []string{"Cropping"},
	}, false)
	assert.Contains(t, report, "Overall grade: A")
	assert.Contains(t, report, "+ Color")
	assert.Contains(t, report, "- Cropping")
}

func TestShouldColorize(t *testing.T) {
	assert.False(t, ShouldColorize(&bytes.Buffer{}))
	assert.Equal(t, "S", GradeLabel(rating.GradeS, false))
	assert.Equal(t, "-", GradeLabel(rating.GradeUnrated, false))
}
