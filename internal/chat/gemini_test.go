package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

const testGeminiModel = "gemini-test"

// geminiServer records generateContent bodies and answers with reply.
type geminiServer struct {
	mu     sync.Mutex
	bodies []map[string]any
	paths  []string
}

func newGeminiBackendForTest(t *testing.T, reply http.HandlerFunc) (*GeminiBackend, *geminiServer) {
	t.Helper()
	rec := &geminiServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &body)

		rec.mu.Lock()
		rec.bodies = append(rec.bodies, body)
		rec.paths = append(rec.paths, r.URL.Path)
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		reply(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	return &GeminiBackend{client: client, model: testGeminiModel}, rec
}

// candidateResponse builds a generateContent response with one text part.
func candidateResponse(text string) string {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 40, "candidatesTokenCount": 9},
	})
	return string(body)
}

func TestGeminiBackend_RateImage(t *testing.T) {
	backend, rec := newGeminiBackendForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, candidateResponse(`{"rating":"s","reason":"Decisive moment."}`))
	})

	v, err := backend.RateImage(context.Background(), ImageRequest{
		Name:     "a.jpg",
		Data:     []byte{0xff, 0xd8, 0xff},
		MIMEType: "image/jpeg",
		Prompt:   "Rate a.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "S", v.Rating)
	assert.Equal(t, "Decisive moment.", v.Reason)

	require.Len(t, rec.bodies, 1)
	assert.True(t, strings.HasSuffix(rec.paths[0], "models/"+testGeminiModel+":generateContent"), rec.paths[0])

	body := rec.bodies[0]
	contents := body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[0].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mimeType"])
	assert.NotEmpty(t, inline["data"])
	assert.Equal(t, "Rate a.jpg", parts[1].(map[string]any)["text"])

	gen := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	schema := gen["responseSchema"].(map[string]any)
	rating := schema["properties"].(map[string]any)["rating"].(map[string]any)
	assert.Equal(t, []any{"S", "A", "B"}, rating["enum"])
}

func TestGeminiBackend_SummarizeBatch(t *testing.T) {
	backend, rec := newGeminiBackendForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, candidateResponse(`{"grade":"A","summary":"Consistent set.","strengths":["light"],"improvements":["horizons"]}`))
	})

	s, err := backend.SummarizeBatch(context.Background(), SummaryRequest{Prompt: "Summarize"})
	require.NoError(t, err)
	assert.Equal(t, "A", s.Grade)
	assert.Equal(t, "Consistent set.", s.Summary)

	require.Len(t, rec.bodies, 1)
	gen := rec.bodies[0]["generationConfig"].(map[string]any)
	grade := gen["responseSchema"].(map[string]any)["properties"].(map[string]any)["grade"].(map[string]any)
	assert.Equal(t, []any{"S", "A", "B"}, grade["enum"])
}

func TestGeminiBackend_EmptyCandidates(t *testing.T) {
	backend, _ := newGeminiBackendForTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"candidates":[],"usageMetadata":{"promptTokenCount":40}}`)
	})

	_, err := backend.RateImage(context.Background(), ImageRequest{Name: "a.jpg", Data: []byte{1}, MIMEType: "image/jpeg"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGeminiBackend_ErrorsClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType auth.ValidationErrorType
	}{
		{
			name:     "quota",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"Resource has been exhausted (e.g. check quota).","status":"RESOURCE_EXHAUSTED"}}`,
			wantType: auth.ErrTypeQuotaExceeded,
		},
		{
			name:     "overloaded",
			status:   http.StatusServiceUnavailable,
			body:     `{"error":{"code":503,"message":"The model is overloaded. Please try again later.","status":"UNAVAILABLE"}}`,
			wantType: auth.ErrTypeServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, _ := newGeminiBackendForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := backend.RateImage(context.Background(), ImageRequest{Name: "a.jpg", Data: []byte{1}, MIMEType: "image/jpeg"})
			require.Error(t, err)

			verr := auth.ClassifyError(err)
			assert.Equal(t, tt.wantType, verr.Type)
			assert.True(t, verr.Retryable())
		})
	}
}
