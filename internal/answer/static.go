package answer

import (
	"context"
	"strings"
)

const noContextText = "I could not find any relevant information in the uploaded documents."

// StaticAnswerer answers without a language model by returning the most
// relevant context verbatim. It is used offline and in tests.
type StaticAnswerer struct{}

func NewStaticAnswerer() *StaticAnswerer { return &StaticAnswerer{} }

func (StaticAnswerer) Answer(_ context.Context, query string, contexts []string) (Answer, error) {
	text := noContextText
	for _, c := range contexts {
		if strings.TrimSpace(c) != "" {
			text = strings.TrimSpace(c)
			break
		}
	}
	return Answer{Text: text, TokenCount: EstimateTokens(query, text)}, nil
}
