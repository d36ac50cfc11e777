package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxContextTokens is the context budget before truncation (in tokens).
	DefaultMaxContextTokens = 16000
)

const systemPrompt = "You are a helpful AI assistant. Answer questions based on the provided context. " +
	"If the context doesn't contain relevant information, say so."

// OpenAIAnswerer answers with an OpenAI chat completion.
type OpenAIAnswerer struct {
	client *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewOpenAIAnswerer creates an answerer on client. Zero config fields take
// their defaults.
func NewOpenAIAnswerer(client *openai.Client, cfg Config, logger *slog.Logger) *OpenAIAnswerer {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = def.MaxContextTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIAnswerer{client: client, cfg: cfg, logger: logger}
}

func (a *OpenAIAnswerer) Answer(ctx context.Context, query string, contexts []string) (Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	prompt := buildPrompt(query, a.truncateContext(strings.Join(contexts, "\n\n")))

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(a.cfg.Model),
	}
	if a.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(a.cfg.MaxTokens))
	}
	if a.cfg.Temperature > 0 {
		params.Temperature = openai.Float(a.cfg.Temperature)
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Answer{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Answer{}, errors.New("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return Answer{}, errors.New("chat completion returned empty content")
	}

	tokens := int(resp.Usage.TotalTokens)
	if tokens == 0 {
		tokens = EstimateTokens(prompt, text)
	}
	return Answer{Text: text, TokenCount: tokens}, nil
}

func buildPrompt(query, context string) string {
	return fmt.Sprintf(`Context:
%s

Question: %s

Please provide a clear and concise answer based on the context above.`, context, query)
}

// truncateContext cuts content to the token budget.
// Uses rough estimate of 4 characters per token.
func (a *OpenAIAnswerer) truncateContext(content string) string {
	maxChars := a.cfg.MaxContextTokens * 4
	if len(content) <= maxChars {
		return content
	}

	cut := maxChars
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	a.logger.Warn("Truncating answer context",
		"from_chars", len(content),
		"to_chars", cut,
		"max_tokens", a.cfg.MaxContextTokens)
	return content[:cut]
}

// EstimateTokens approximates usage as the word count of prompt plus response.
func EstimateTokens(prompt, response string) int {
	return len(strings.Fields(prompt)) + len(strings.Fields(response))
}
