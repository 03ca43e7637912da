package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/cache"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/infrastructure/llm"
)

func completionServer(t *testing.T, content string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAsker(srv *httptest.Server, c cache.Cache) *llm.OpenAIAsker {
	return llm.NewOpenAIAsker(llm.Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL + "/",
		Model:       "test-model",
		Temperature: 0.2,
		MaxTokens:   64,
		Cache:       c,
		Options:     []option.RequestOption{option.WithMaxRetries(0)},
	})
}

func TestOpenAIAsker_StripsThinkTags(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := completionServer(t, "<think>pondering\nmore</think>\n  Use a permission set group.", &calls)

	reply, err := newAsker(srv, nil).Ask(context.Background(), "How do I bundle sets?")
	require.NoError(t, err)
	assert.Equal(t, "Use a permission set group.", reply)
}

func TestOpenAIAsker_CachesReplies(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := completionServer(t, "cached answer", &calls)
	mem := cache.NewMemoryCache()
	asker := newAsker(srv, mem)

	for i := 0; i < 3; i++ {
		reply, err := asker.Ask(context.Background(), "same question")
		require.NoError(t, err)
		assert.Equal(t, "cached answer", reply)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, mem.Len())

	_, err := asker.Ask(context.Background(), "another question")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIAsker_UpstreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := newAsker(srv, nil).Ask(context.Background(), "anything")
	require.Error(t, err)
}
