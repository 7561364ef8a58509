// Package assistant provides the HTTP client for the squall assistant
// backend. It speaks the backend's server-sent event protocol and
// exposes the response as a core.RecordStream, so a Client plugs
// straight into the engine as a collaborator:
//
//	client := assistant.New(os.Getenv("SQUALL_API_KEY"))
//	session := core.NewSession()
//	err := session.Start(ctx, client.Collaborator(), input, core.DefaultOptions())
package assistant

import (
	"errors"
	"net/http"
	"os"

	"github.com/squall-labs/squall/core"
)

// DefaultBaseURL is the default assistant API base URL.
const DefaultBaseURL = "https://api.squall.dev"

// DefaultAPIKeyEnvVar is the environment variable name for the API key.
const DefaultAPIKeyEnvVar = "SQUALL_API_KEY"

// defaultUserAgent identifies this client on the wire.
const defaultUserAgent = "squall-go"

// ErrAPIKeyNotFound is returned when the API key environment variable is not set.
var ErrAPIKeyNotFound = errors.New("assistant: SQUALL_API_KEY environment variable not set")

// Config holds configuration for the assistant client.
type Config struct {
	// APIKey is the assistant API key (required).
	APIKey core.Secret

	// BaseURL is the API base URL. Defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// UserAgent is the User-Agent header value. Defaults to defaultUserAgent.
	UserAgent string

	// Headers contains optional extra headers to include in requests.
	Headers http.Header
}

// Option configures the assistant client.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// WithUserAgent sets the User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(c *Config) {
		c.UserAgent = ua
	}
}

// WithHeader adds an extra header to include in requests.
func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Set(key, value)
	}
}

// Client is an HTTP client for the assistant API.
// Client is safe for concurrent use.
type Client struct {
	config Config
}

// New creates an assistant client with the given API key and options.
func New(apiKey string, opts ...Option) *Client {
	cfg := Config{
		APIKey:     core.NewSecret(apiKey),
		BaseURL:    DefaultBaseURL,
		HTTPClient: http.DefaultClient,
		UserAgent:  defaultUserAgent,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{config: cfg}
}

// NewFromEnv creates an assistant client using the SQUALL_API_KEY
// environment variable.
func NewFromEnv(opts ...Option) (*Client, error) {
	apiKey := os.Getenv(DefaultAPIKeyEnvVar)
	if apiKey == "" {
		return nil, ErrAPIKeyNotFound
	}
	return New(apiKey, opts...), nil
}

// buildHeaders constructs the HTTP headers for an API request.
func (c *Client) buildHeaders() http.Header {
	headers := make(http.Header)

	headers.Set("Authorization", "Bearer "+c.config.APIKey.Expose())
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "text/event-stream")
	headers.Set("User-Agent", c.config.UserAgent)

	// Copy any extra headers
	for key, values := range c.config.Headers {
		for _, v := range values {
			headers.Add(key, v)
		}
	}

	return headers
}
