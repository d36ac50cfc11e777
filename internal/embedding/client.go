package embedding

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client. baseURL is optional and points the
// client at a compatible endpoint.
func NewClient(apiKey, baseURL string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for use in other packages (e.g., answer generation).
func (c *Client) Client() *openai.Client {
	return c.client
}
