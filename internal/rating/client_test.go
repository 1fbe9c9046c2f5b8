package rating

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fpang/photo-rater/internal/chat"
	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errRateLimited = errors.New("429 Too Many Requests: quota exceeded")
	errOverloaded  = errors.New("503 Service Unavailable: model overloaded")
	errNoNetwork   = errors.New("dial tcp: connection refused")
)

// fakeBackend replays scripted errors before answering.
type fakeBackend struct {
	mu          sync.Mutex
	rateErrs    []error
	verdict     chat.Verdict
	summaryErrs []error
	summary     chat.GroupSummary
	rateCalls   int
	sumCalls    int
	lastImage   chat.ImageRequest
	lastSummary chat.SummaryRequest
}

func (f *fakeBackend) RateImage(_ context.Context, req chat.ImageRequest) (*chat.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateCalls++
	f.lastImage = req
	if len(f.rateErrs) > 0 {
		err := f.rateErrs[0]
		f.rateErrs = f.rateErrs[1:]
		return nil, err
	}
	v := f.verdict
	return &v, nil
}

func (f *fakeBackend) SummarizeBatch(_ context.Context, req chat.SummaryRequest) (*chat.GroupSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sumCalls++
	f.lastSummary = req
	if len(f.summaryErrs) > 0 {
		err := f.summaryErrs[0]
		f.summaryErrs = f.summaryErrs[1:]
		return nil, err
	}
	s := f.summary
	return &s, nil
}

func (f *fakeBackend) Ping(context.Context) error { return nil }
func (f *fakeBackend) Provider() string           { return "fake" }
func (f *fakeBackend) Model() string              { return "fake-model" }

func testPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Base: time.Millisecond}
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRate_Success(t *testing.T) {
	backend := &fakeBackend{verdict: chat.Verdict{Rating: "S", Reason: "Decisive moment."}}
	client := NewClient(backend, WithPolicy(testPolicy()), WithMaxDimension(64))

	res := client.Rate(context.Background(), "sunset.png", pngPayload(t, 200, 100))

	assert.NoError(t, res.Err)
	assert.False(t, res.Degraded())
	assert.Equal(t, GradeS, res.Grade)
	assert.Equal(t, "Decisive moment.", res.Critique)
	assert.Equal(t, 1, res.Attempts)

	assert.Equal(t, "image/jpeg", backend.lastImage.MIMEType)
	assert.True(t, strings.Contains(backend.lastImage.Prompt, "sunset.png"))
}

func TestRate_RateLimitedTwiceThenSucceeds(t *testing.T) {
	backend := &fakeBackend{
		rateErrs: []error{errRateLimited, errRateLimited},
		verdict:  chat.Verdict{Rating: "A", Reason: "Clean composition."},
	}
	client := NewClient(backend, WithPolicy(testPolicy()))

	res := client.Rate(context.Background(), "a.png", pngPayload(t, 16, 16))

	require.NoError(t, res.Err)
	assert.Equal(t, GradeA, res.Grade)
	assert.Equal(t, "Clean composition.", res.Critique)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, backend.rateCalls)
}

func TestRate_RetriesExhausted(t *testing.T) {
	backend := &fakeBackend{
		rateErrs: []error{errOverloaded, errRateLimited, errRateLimited, errRateLimited, errRateLimited},
	}
	client := NewClient(backend, WithPolicy(testPolicy()))

	res := client.Rate(context.Background(), "a.png", pngPayload(t, 16, 16))

	assert.True(t, res.Degraded())
	assert.ErrorIs(t, res.Err, errRateLimited)
	assert.Equal(t, FallbackGrade, res.Grade)
	assert.Equal(t, DefaultMaxAttempts, res.Attempts)
	assert.Equal(t, DefaultMaxAttempts, backend.rateCalls)
	assert.Contains(t, res.Critique, "rate limit")
}

func TestRate_FailsFast(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCritique string
	}{
		{"network", errNoNetwork, "could not be reached"},
		{"malformed", chat.ErrMalformedResponse, "unreadable"},
		{"invalid key", errors.New("API key not valid"), "API key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{rateErrs: []error{tt.err}, verdict: chat.Verdict{Rating: "S"}}
			client := NewClient(backend, WithPolicy(testPolicy()))

			res := client.Rate(context.Background(), "a.png", pngPayload(t, 8, 8))

			assert.True(t, res.Degraded())
			assert.Equal(t, 1, backend.rateCalls, "must not retry")
			assert.Equal(t, FallbackGrade, res.Grade)
			assert.Contains(t, res.Critique, tt.wantCritique)
		})
	}
}

func TestRate_UndecodablePayload(t *testing.T) {
	backend := &fakeBackend{verdict: chat.Verdict{Rating: "S"}}
	client := NewClient(backend, WithPolicy(testPolicy()))

	res := client.Rate(context.Background(), "broken.jpg", []byte("not an image"))

	assert.True(t, res.Degraded())
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, backend.rateCalls)
	assert.Equal(t, FallbackGrade, res.Grade)
}

func TestRate_OversizedImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 12000, 12000))))

	backend := &fakeBackend{verdict: chat.Verdict{Rating: "S"}}
	client := NewClient(backend, WithPolicy(testPolicy()))

	res := client.Rate(context.Background(), "panorama.png", buf.Bytes())

	assert.True(t, res.Degraded())
	assert.ErrorIs(t, res.Err, filehandler.ErrImageTooLarge)
	assert.Contains(t, res.Critique, "too many pixels")
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, backend.rateCalls)
	assert.Equal(t, FallbackGrade, res.Grade)
}

func TestRate_GradeOutsideTiers(t *testing.T) {
	backend := &fakeBackend{verdict: chat.Verdict{Rating: "Z", Reason: "Off the scale."}}
	client := NewClient(backend, WithPolicy(testPolicy()))

	res := client.Rate(context.Background(), "a.png", pngPayload(t, 16, 16))

	assert.True(t, res.Degraded())
	assert.ErrorIs(t, res.Err, chat.ErrMalformedResponse)
	assert.Equal(t, FallbackGrade, res.Grade)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, backend.rateCalls)
	assert.Contains(t, res.Critique, "unreadable")
}

func TestPolicy_Intervals(t *testing.T) {
	p := Policy{MaxAttempts: 4, Base: 2 * time.Second}
	b := p.backOff(context.Background())

	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 4*time.Second, b.NextBackOff())
	assert.Equal(t, 8*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff(), "four attempts allow three waits")
}

func TestPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Policy{MaxAttempts: 4, Base: time.Hour}
	calls := 0
	_, err := p.run(ctx, "test", func() error {
		calls++
		return errRateLimited
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade(" a ")
	require.NoError(t, err)
	assert.Equal(t, GradeA, g)

	_, err = ParseGrade("Unrated")
	assert.Error(t, err)
	assert.False(t, GradeRejected.IsTier())
}
