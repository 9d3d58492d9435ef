package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuongbtq/job-audit/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Result        string `json:"result" enum:"open,closed,unsure"`
	Justification string `json:"justification"`
}

func newTestServer(t *testing.T, content, finishReason string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			require.NoError(t, json.Unmarshal(body, captured))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": finishReason,
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Complete(t *testing.T) {
	var captured map[string]any
	srv := newTestServer(t, `{"result":"closed","justification":"Posting says no longer accepting applications"}`, "stop", &captured)

	c := NewClient(&Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"}, logger.NewNop())

	var out verdict
	err := c.Complete(context.Background(), "system", "prompt", "closed_role_verdict", &out)
	require.NoError(t, err)

	assert.Equal(t, "closed", out.Result)
	assert.Equal(t, "Posting says no longer accepting applications", out.Justification)

	format, ok := captured["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
	schema := format["json_schema"].(map[string]any)
	assert.Equal(t, "closed_role_verdict", schema["name"])
	assert.Equal(t, true, schema["strict"])
}

func TestClient_CompleteTruncated(t *testing.T) {
	srv := newTestServer(t, `{"result":"op`, "length", nil)
	c := NewClient(&Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"}, logger.NewNop())

	var out verdict
	err := c.Complete(context.Background(), "system", "prompt", "closed_role_verdict", &out)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestClient_CompleteMalformed(t *testing.T) {
	srv := newTestServer(t, `not json`, "stop", nil)
	c := NewClient(&Config{APIKey: "test", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"}, logger.NewNop())

	var out verdict
	err := c.Complete(context.Background(), "system", "prompt", "closed_role_verdict", &out)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), "failed to decode structured response")
}
