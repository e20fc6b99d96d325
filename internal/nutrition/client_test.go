package nutrition

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/mealsnap-be/internal/common"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func toolCallResponse(arguments string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o",
		"choices": []any{
			map[string]any{
				"index": 0,
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []any{
						map[string]any{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      toolName,
								"arguments": arguments,
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			},
		},
		"usage": map[string]any{"prompt_tokens": 900, "completion_tokens": 80, "total_tokens": 980},
	}
}

type fakeModel struct {
	calls atomic.Int32
	last  map[string]any
	reply func(w http.ResponseWriter)
}

func (f *fakeModel) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
			f.last = body
		}
		w.Header().Set("Content-Type", "application/json")
		f.reply(w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL, key string) *Client {
	return NewClient(Config{
		APIKey:    key,
		Model:     "gpt-4o",
		BaseURL:   baseURL + "/v1",
		MaxTokens: 4096,
		Timeout:   5 * time.Second,
	})
}

func TestAnalyzeReturnsToolArguments(t *testing.T) {
	fake := &fakeModel{reply: func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(toolCallResponse(
			`{"description":"rice 150g, chicken 100g","calories":520,"protein":35.5,"carbs":60,"fat":12}`))
	}}
	srv := fake.server(t)

	got, err := newTestClient(srv.URL, "test-key").Analyze(context.Background(), Request{
		Image:   pngHeader,
		Weight:  250,
		Details: "homemade",
	})
	require.NoError(t, err)
	assert.Equal(t, &Analysis{
		Description: "rice 150g, chicken 100g",
		Calories:    520,
		Protein:     35.5,
		Carbs:       60,
		Fat:         12,
	}, got)
	assert.Equal(t, int32(1), fake.calls.Load())

	require.NotNil(t, fake.last)
	assert.Equal(t, "gpt-4o", fake.last["model"])
	assert.EqualValues(t, 4096, fake.last["max_tokens"])

	choice, ok := fake.last["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function", choice["type"])
	assert.Equal(t, toolName, choice["function"].(map[string]any)["name"])

	messages := fake.last["messages"].([]any)
	require.Len(t, messages, 1)
	parts := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)

	text := parts[0].(map[string]any)["text"].(string)
	assert.Contains(t, text, "250g")
	assert.Contains(t, text, "homemade")

	url := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"), url)
}

func TestAnalyzeWithoutAPIKeyMakesNoRequest(t *testing.T) {
	fake := &fakeModel{reply: func(w http.ResponseWriter) {}}
	srv := fake.server(t)

	_, err := newTestClient(srv.URL, "").Analyze(context.Background(), Request{Image: pngHeader, Weight: 100})
	assert.ErrorIs(t, err, common.ErrConfiguration)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	fake := &fakeModel{reply: func(w http.ResponseWriter) {}}
	srv := fake.server(t)
	client := newTestClient(srv.URL, "test-key")

	_, err := client.Analyze(context.Background(), Request{Weight: 100})
	assert.ErrorIs(t, err, common.ErrValidation)

	for _, w := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err = client.Analyze(context.Background(), Request{Image: pngHeader, Weight: w})
		assert.ErrorIs(t, err, common.ErrValidation, "weight %v", w)
	}

	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestAnalyzeUpstreamFailures(t *testing.T) {
	tests := []struct {
		name  string
		reply func(w http.ResponseWriter)
	}{
		{
			name: "rate limited",
			reply: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			},
		},
		{
			name: "malformed arguments",
			reply: func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(toolCallResponse(`{"description":`))
			},
		},
		{
			name: "missing field",
			reply: func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(toolCallResponse(`{"description":"soup","calories":100,"protein":5,"carbs":10}`))
			},
		},
		{
			name: "negative value",
			reply: func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(toolCallResponse(`{"description":"soup","calories":-5,"protein":5,"carbs":10,"fat":1}`))
			},
		},
		{
			name: "no tool call",
			reply: func(w http.ResponseWriter) {
				w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o","choices":[{"index":0,"message":{"role":"assistant","content":"I cannot see food."},"finish_reason":"stop"}]}`))
			},
		},
		{
			name: "no choices",
			reply: func(w http.ResponseWriter) {
				w.Write([]byte(`{"id":"x","object":"chat.completion","model":"gpt-4o","choices":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeModel{reply: tt.reply}
			srv := fake.server(t)

			got, err := newTestClient(srv.URL, "test-key").Analyze(context.Background(), Request{Image: pngHeader, Weight: 100})
			assert.Nil(t, got)
			assert.ErrorIs(t, err, common.ErrUpstream)
			assert.False(t, common.IsClientError(err))
			assert.Equal(t, int32(1), fake.calls.Load())
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(312.5, "  ")
	assert.Contains(t, p, "312.5g")
	assert.Contains(t, p, "does not include the plate")
	assert.NotContains(t, p, "Additional details")

	p = BuildPrompt(100, "no sauce")
	assert.Contains(t, p, "Additional details about the meal: no sauce")
}

func TestDataURI(t *testing.T) {
	assert.True(t, strings.HasPrefix(DataURI(pngHeader), "data:image/png;base64,"))
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", DataURI([]byte("hello")))
}
