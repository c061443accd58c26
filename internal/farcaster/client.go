package farcaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"golang.org/x/sync/singleflight"

	"github.com/CryptoRabble/glanker/pkg/clients"
)

const defaultBaseURL = "https://api.neynar.com"

type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("neynar returned status: %d", e.StatusCode)
}

// Client talks to the Neynar Farcaster API.
type Client struct {
	baseURL      string
	apiKey       string
	signerUUID   string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
	lookups      singleflight.Group
}

type Option func(*Client)

func NewClient(apiKey, signerUUID string, opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		signerUUID:   signerUUID,
		client:       clients.NewHTTPClient(15 * time.Second),
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

func (c *Client) get(ctx context.Context, reqURL string, out interface{}) error {
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// FetchRecentCasts returns a user's most recent top-level casts, newest
// first. Replies are excluded so the history reflects what the user
// actually posts about.
func (c *Client) FetchRecentCasts(ctx context.Context, fid int64, limit int) ([]Cast, error) {
	if limit <= 0 {
		limit = 15
	}
	key := fmt.Sprintf("casts:%d:%d", fid, limit)
	v, err, _ := c.lookups.Do(key, func() (interface{}, error) {
		q := url.Values{}
		q.Set("fid", strconv.FormatInt(fid, 10))
		q.Set("limit", strconv.Itoa(limit))
		q.Set("include_replies", "false")
		reqURL := fmt.Sprintf("%s/v2/farcaster/feed/user/casts?%s", c.baseURL, q.Encode())

		var result struct {
			Casts []Cast `json:"casts"`
		}
		if err := c.get(ctx, reqURL, &result); err != nil {
			return nil, err
		}
		return result.Casts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Cast), nil
}

// LookupCast fetches a single cast by hash.
func (c *Client) LookupCast(ctx context.Context, hash string) (*Cast, error) {
	v, err, _ := c.lookups.Do("cast:"+hash, func() (interface{}, error) {
		q := url.Values{}
		q.Set("identifier", hash)
		q.Set("type", "hash")
		reqURL := fmt.Sprintf("%s/v2/farcaster/cast?%s", c.baseURL, q.Encode())

		var result struct {
			Cast *Cast `json:"cast"`
		}
		if err := c.get(ctx, reqURL, &result); err != nil {
			return nil, err
		}
		if result.Cast == nil {
			return nil, fmt.Errorf("cast %s not found", hash)
		}
		return result.Cast, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cast), nil
}

// FetchUser fetches a user profile by FID.
func (c *Client) FetchUser(ctx context.Context, fid int64) (*User, error) {
	v, err, _ := c.lookups.Do("user:"+strconv.FormatInt(fid, 10), func() (interface{}, error) {
		reqURL := fmt.Sprintf("%s/v2/farcaster/user/bulk?fids=%d", c.baseURL, fid)

		var result struct {
			Users []User `json:"users"`
		}
		if err := c.get(ctx, reqURL, &result); err != nil {
			return nil, err
		}
		if len(result.Users) == 0 {
			return nil, fmt.Errorf("user %d not found", fid)
		}
		return &result.Users[0], nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*User), nil
}

// PublishRequest describes a cast to publish.
type PublishRequest struct {
	Text       string
	ParentHash string
	EmbedURLs  []string
}

type publishBody struct {
	SignerUUID string         `json:"signer_uuid"`
	Text       string         `json:"text"`
	Parent     string         `json:"parent,omitempty"`
	Embeds     []publishEmbed `json:"embeds,omitempty"`
}

type publishEmbed struct {
	URL string `json:"url"`
}

// PublishCast posts a new cast, optionally as a reply. Returns the hash
// of the published cast.
func (c *Client) PublishCast(ctx context.Context, pub PublishRequest) (string, error) {
	body := publishBody{
		SignerUUID: c.signerUUID,
		Text:       pub.Text,
		Parent:     pub.ParentHash,
	}
	for _, u := range pub.EmbedURLs {
		body.Embeds = append(body.Embeds, publishEmbed{URL: u})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	reqURL := fmt.Sprintf("%s/v2/farcaster/cast", c.baseURL)
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewBuffer(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", &APIError{StatusCode: resp.StatusCode}
	}

	var result struct {
		Cast struct {
			Hash string `json:"hash"`
		} `json:"cast"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Cast.Hash, nil
}
