// Package github fetches repository files for batch ingestion.
package github

import (
	"net/http"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// NewClient creates a GitHub client that waits out primary and secondary
// rate limits. An empty token gives an unauthenticated client (60 requests
// per hour). base is the HTTP client to wrap; nil uses http.DefaultClient's
// transport.
func NewClient(token string, base *http.Client) (*Client, error) {
	var transport http.RoundTripper
	if base != nil {
		transport = base.Transport
	}
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(transport)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)
	if token != "" {
		ghClient = ghClient.WithAuthToken(token)
	}
	return &Client{Client: ghClient}, nil
}
