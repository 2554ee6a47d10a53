// Package amadeus is the fare source: candidate search and live pricing
// against the Amadeus self-service API.
package amadeus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrAuth means the client-credentials exchange failed. Nothing can be
	// priced without a token, so callers treat it as fatal.
	ErrAuth = errors.New("amadeus: credential exchange failed")

	// ErrNoOffer means the live lookup returned no usable price.
	ErrNoOffer = errors.New("amadeus: no priced offer")
)

const userAgent = "fare-watch/1.0"

// Config holds the connection settings for the API.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Currency     string
	MaxOffers    int
	Timeout      time.Duration
	RetryCount   int
	RetryWait    time.Duration
}

// Client talks to the Amadeus API. It is not safe for concurrent use.
type Client struct {
	cfg    Config
	http   *resty.Client
	logger *slog.Logger
	token  string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying resty client.
func WithHTTPClient(rc *resty.Client) Option {
	return func(c *Client) { c.http = rc }
}

// NewClient builds a client whose transport retries network errors, 429 and
// 5xx responses with exponential backoff.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.MaxOffers <= 0 {
		cfg.MaxOffers = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	c := &Client{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = resty.New()
	}

	c.http.
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(retryable)

	return c
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate exchanges the client credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context) error {
	var tok tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     c.cfg.ClientID,
			"client_secret": c.cfg.ClientSecret,
		}).
		SetResult(&tok).
		Post("/v1/security/oauth2/token")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode())
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrAuth)
	}

	c.token = tok.AccessToken
	c.logger.Debug("amadeus token acquired", "expires_in", tok.ExpiresIn)
	return nil
}

// authed returns a request carrying the bearer token, fetching one first if needed.
func (c *Client) authed(ctx context.Context) (*resty.Request, error) {
	if c.token == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}
	return c.http.R().SetContext(ctx).SetAuthToken(c.token), nil
}

// apiError is the error envelope returned by the API.
type apiError struct {
	Errors []struct {
		Status int    `json:"status"`
		Code   int    `json:"code"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e *apiError) String() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	first := e.Errors[0]
	if first.Detail != "" {
		return first.Title + ": " + first.Detail
	}
	return first.Title
}

func statusError(op string, resp *resty.Response, body *apiError) error {
	if msg := body.String(); msg != "" {
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), msg)
	}
	return fmt.Errorf("%s: status %d", op, resp.StatusCode())
}
