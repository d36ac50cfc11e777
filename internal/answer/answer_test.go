package answer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func fakeChatServer(t *testing.T, status int, content string, totalTokens int, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{
				"prompt_tokens":     totalTokens / 2,
				"completion_tokens": totalTokens - totalTokens/2,
				"total_tokens":      totalTokens,
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAnswerer(url string, cfg Config) *OpenAIAnswerer {
	client := openai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(url),
		option.WithMaxRetries(0),
	)
	return NewOpenAIAnswerer(&client, cfg, nil)
}

func TestOpenAIAnswererPrompt(t *testing.T) {
	var req chatRequest
	srv := fakeChatServer(t, http.StatusOK, "Paris.", 42, &req)
	a := newTestAnswerer(srv.URL, Config{})

	ans, err := a.Answer(context.Background(), "What is the capital?", []string{"France: Paris", "Spain: Madrid"})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", ans.Text)
	assert.Equal(t, 42, ans.TokenCount)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, "Context:\nFrance: Paris\n\nSpain: Madrid\n\nQuestion: What is the capital?\n\n"+
		"Please provide a clear and concise answer based on the context above.", req.Messages[1].Content)
	assert.Equal(t, DefaultModel, req.Model)
}

func TestOpenAIAnswererEstimatesTokensWithoutUsage(t *testing.T) {
	srv := fakeChatServer(t, http.StatusOK, "two words", 0, nil)
	a := newTestAnswerer(srv.URL, Config{})

	ans, err := a.Answer(context.Background(), "q", []string{"ctx"})
	require.NoError(t, err)
	prompt := buildPrompt("q", "ctx")
	assert.Equal(t, len(strings.Fields(prompt))+2, ans.TokenCount)
}

func TestOpenAIAnswererError(t *testing.T) {
	srv := fakeChatServer(t, http.StatusInternalServerError, "", 0, nil)
	a := newTestAnswerer(srv.URL, Config{})

	_, err := a.Answer(context.Background(), "q", []string{"ctx"})
	assert.Error(t, err)
}

func TestTruncateContext(t *testing.T) {
	a := NewOpenAIAnswerer(nil, Config{MaxContextTokens: 10}, nil)

	long := strings.Repeat("This is a test content. ", 100)
	truncated := a.truncateContext(long)
	if len(truncated) != 40 {
		t.Errorf("Expected truncated length 40, got %d", len(truncated))
	}
	if !strings.HasPrefix(long, truncated) {
		t.Error("Truncated content should be a prefix of original content")
	}

	short := "short content"
	if got := a.truncateContext(short); got != short {
		t.Errorf("Short content should not be truncated, got %q", got)
	}
}

func TestTruncateContextKeepsRunes(t *testing.T) {
	a := NewOpenAIAnswerer(nil, Config{MaxContextTokens: 1}, nil)
	assert.Equal(t, "aaé", a.truncateContext("aaéé"))
	assert.Equal(t, "aaa", a.truncateContext("aaaéé"), "a split rune is dropped")
}

func TestStaticAnswerer(t *testing.T) {
	ans, err := NewStaticAnswerer().Answer(context.Background(), "what", []string{"  ", "best match", "other"})
	require.NoError(t, err)
	assert.Equal(t, "best match", ans.Text)
	assert.Equal(t, 3, ans.TokenCount)

	ans, err = NewStaticAnswerer().Answer(context.Background(), "what", nil)
	require.NoError(t, err)
	assert.Equal(t, noContextText, ans.Text)
}

func TestNew(t *testing.T) {
	a, err := New(Config{Provider: ProviderAuto}, nil)
	require.NoError(t, err)
	assert.IsType(t, &StaticAnswerer{}, a)

	a, err = New(Config{Provider: ProviderAuto, APIKey: "sk-test"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIAnswerer{}, a)

	_, err = New(Config{Provider: ProviderOpenAI}, nil)
	assert.Error(t, err)

	_, err = New(Config{Provider: "llama"}, nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Provider: ProviderOpenAI}.Validate())
	assert.NoError(t, Config{Provider: ProviderOpenAI, APIKey: "k"}.Validate())
}
