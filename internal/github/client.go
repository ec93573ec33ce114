package github

import (
	"fmt"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// ClientOptions configures the GitHub API client.
type ClientOptions struct {
	// Token authenticates requests. Empty means unauthenticated (60 requests/hour).
	Token string
	// APIURL points the client at GitHub Enterprise or a mirror.
	// Empty means api.github.com.
	APIURL string
}

// Client wraps the GitHub API client with rate limiting support
type Client struct {
	*github.Client
}

// NewClient creates a GitHub client that sleeps through primary and
// secondary rate limits instead of failing the build.
func NewClient(opts ClientOptions) (*Client, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}

	ghClient := github.NewClient(rateLimiter)
	if opts.Token != "" {
		ghClient = ghClient.WithAuthToken(opts.Token)
	}
	if opts.APIURL != "" {
		ghClient, err = ghClient.WithEnterpriseURLs(opts.APIURL, opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", opts.APIURL, err)
		}
	}

	return &Client{Client: ghClient}, nil
}
