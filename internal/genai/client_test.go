package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpclient "facecast/internal/common/http"
	"facecast/internal/common/logger"
	"facecast/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testRef = models.ReferenceArtifact{MIMEType: "image/jpeg", Data: []byte("portrait")}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &Config{BaseURL: server.URL, Model: "test-model", Timeout: 5 * time.Second}
	return NewClientWithHTTP(cfg, httpclient.NewClientWith(server.Client(), "facecast-test"), logger.NewTestLogger(t))
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

// ==========================
// Request Shape
// ==========================

func TestClient_Generate_RequestShape(t *testing.T) {
	var captured generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		assert.Equal(t, "facecast-test", r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		respondJSON(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)(w, r)
	})

	_, err := client.Generate(context.Background(), "secret", testRef, "draw a happy face")
	require.NoError(t, err)

	require.Len(t, captured.Contents, 1)
	parts := captured.Contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, "cG9ydHJhaXQ=", parts[0].InlineData.Data)
	assert.Equal(t, "draw a happy face", parts[1].Text)
}

// ==========================
// Response Handling
// ==========================

func TestClient_Generate_Responses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		expectErr   error
		expectImage string
		expectText  string
	}{
		{
			name:        "image and text",
			status:      http.StatusOK,
			body:        `{"candidates":[{"content":{"parts":[{"text":"Here you go"},{"inlineData":{"mimeType":"image/png","data":"aW1n"}}]}}]}`,
			expectImage: "data:image/png;base64,aW1n",
			expectText:  "Here you go",
		},
		{
			name:        "snake case inline data without mime",
			status:      http.StatusOK,
			body:        `{"candidates":[{"content":{"parts":[{"inline_data":{"data":"aW1n"}}]}}]}`,
			expectImage: "data:image/png;base64,aW1n",
		},
		{
			name:       "text only",
			status:     http.StatusOK,
			body:       `{"candidates":[{"content":{"parts":[{"text":"cannot draw that"}]}}]}`,
			expectText: "cannot draw that",
		},
		{
			name:      "no candidates",
			status:    http.StatusOK,
			body:      `{"candidates":[]}`,
			expectErr: ErrNoContent,
		},
		{
			name:      "blocked prompt",
			status:    http.StatusOK,
			body:      `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			expectErr: ErrNoContent,
		},
		{
			name:      "schema violation",
			status:    http.StatusOK,
			body:      `{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":"image/png"}}]}}]}`,
			expectErr: ErrMalformedResponse,
		},
		{
			name:      "not json",
			status:    http.StatusOK,
			body:      `<html>gateway</html>`,
			expectErr: ErrMalformedResponse,
		},
		{
			name:      "upstream error",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			expectErr: ErrUpstreamStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			payload, err := client.Generate(context.Background(), "k", testRef, "p")
			if tt.expectErr != nil {
				assert.ErrorIs(t, err, tt.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectImage, payload.Image)
			assert.Equal(t, tt.expectText, payload.Text)
		})
	}
}

func TestClient_Generate_UpstreamMessageInError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	})

	_, err := client.Generate(context.Background(), "bad", testRef, "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, "k", testRef, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_EscapesModel(t *testing.T) {
	c := NewClient(&Config{BaseURL: "https://example.test/", Model: "a/b"}, logger.NewNoOpLogger())
	assert.Equal(t, "https://example.test/v1beta/models/a%2Fb:generateContent", c.endpoint)
	assert.Equal(t, "a/b", c.Model())
}
