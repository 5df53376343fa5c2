package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrivision/llm"
)

// mockHTTPClient implements the HTTPClient interface for testing
type mockHTTPClient struct {
	response *http.Response
	err      error
	request  *http.Request
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.request = req
	return m.response, m.err
}

func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name         string
		opts         ClientOpts
		wantEndpoint string
		wantTemp     float64
		wantErr      bool
	}{
		{
			name:         "defaults",
			opts:         ClientOpts{BaseEndpoint: "http://localhost:11434", ModelID: "llama3.1"},
			wantEndpoint: "http://localhost:11434/api/chat",
			wantTemp:     0.2,
		},
		{
			name:         "trailing slash and custom temperature",
			opts:         ClientOpts{BaseEndpoint: "http://ollama:11434/", ModelID: "llama3.1", Temperature: 0.7},
			wantEndpoint: "http://ollama:11434/api/chat",
			wantTemp:     0.7,
		},
		{
			name:    "missing model",
			opts:    ClientOpts{BaseEndpoint: "http://localhost:11434"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewClient(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantEndpoint, got.endpoint)
			assert.Equal(t, tt.wantTemp, got.options.Temperature)
			assert.NotNil(t, got.httpClient)
		})
	}
}

func TestClient_Chat(t *testing.T) {
	tests := []struct {
		name        string
		response    *http.Response
		err         error
		want        string
		errContains string
	}{
		{
			name:     "successful response",
			response: createMockResponse(200, `{"message":{"role":"assistant","content":"  Apples are a good source of fiber. "},"done":true}`),
			want:     "Apples are a good source of fiber.",
		},
		{
			name:        "non-2xx",
			response:    createMockResponse(500, `model not loaded`),
			errContains: "model not loaded",
		},
		{
			name:        "malformed body",
			response:    createMockResponse(200, `not json`),
			errContains: "decode ollama response",
		},
		{
			name:        "error field",
			response:    createMockResponse(200, `{"error":"model \"x\" not found"}`),
			errContains: "not found",
		},
		{
			name:        "transport error",
			err:         errors.New("connection refused"),
			errContains: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &mockHTTPClient{response: tt.response, err: tt.err}
			c, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434", ModelID: "llama3.1", HTTPClient: hc})
			require.NoError(t, err)

			got, err := c.Chat(context.Background(), []llm.Message{llm.User("hello")})
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Chat_RequestBody(t *testing.T) {
	var captured wireRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"}}`))
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{BaseEndpoint: srv.URL, ModelID: "llama3.1", HTTPClient: srv.Client()})
	require.NoError(t, err)

	got, err := c.Chat(context.Background(), []llm.Message{
		llm.System("be brief"),
		llm.User("hi"),
		{Role: "tool", Content: "ignored role"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	assert.Equal(t, "llama3.1", captured.Model)
	assert.False(t, captured.Stream)
	require.Len(t, captured.Messages, 3)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[2].Role)
}
