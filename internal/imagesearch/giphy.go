package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/CryptoRabble/glanker/pkg/clients"
)

const defaultGiphyBaseURL = "https://api.giphy.com"

// GiphyClient searches Giphy for gifs matching a token name.
type GiphyClient struct {
	baseURL      string
	apiKey       string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
}

func NewGiphyClient(apiKey string, opts ...GiphyOption) *GiphyClient {
	c := &GiphyClient{
		baseURL:      defaultGiphyBaseURL,
		apiKey:       apiKey,
		client:       clients.NewHTTPClient(10 * time.Second),
		httpExecutor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type GiphyOption func(*GiphyClient)

func WithGiphyBaseURL(baseURL string) GiphyOption {
	return func(c *GiphyClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithGiphyHTTPClient(httpClient *http.Client) GiphyOption {
	return func(c *GiphyClient) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

type giphyGif struct {
	Images struct {
		Original struct {
			URL    string `json:"url"`
			Width  string `json:"width"`
			Height string `json:"height"`
		} `json:"original"`
	} `json:"images"`
}

// Search returns candidate gif URLs for the query, already filtered for
// usable dimensions and normalized to direct media links.
func (c *GiphyClient) Search(ctx context.Context, query string, limit int) ([]string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("rating", "pg-13")
	reqURL := fmt.Sprintf("%s/v1/gifs/search?%s", c.baseURL, q.Encode())

	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("giphy returned status: %d", resp.StatusCode)
	}

	var result struct {
		Data []giphyGif `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode giphy response: %w", err)
	}

	var urls []string
	for _, gif := range result.Data {
		if !usableGif(gif) {
			continue
		}
		urls = append(urls, NormalizeGiphyURL(gif.Images.Original.URL))
	}
	return urls, nil
}

// usableGif drops tiny gifs and extreme aspect ratios that render badly
// as cast embeds.
func usableGif(gif giphyGif) bool {
	width, werr := strconv.Atoi(gif.Images.Original.Width)
	height, herr := strconv.Atoi(gif.Images.Original.Height)
	if werr != nil || herr != nil || height == 0 {
		return false
	}
	aspect := float64(width) / float64(height)
	return width >= 100 && height >= 100 && aspect <= 4 && aspect >= 0.4
}

// NormalizeGiphyURL rewrites any giphy media URL to the stable
// i.giphy.com form. The gif id is the second-to-last path segment.
// Non-giphy URLs pass through untouched.
func NormalizeGiphyURL(rawURL string) string {
	if !strings.Contains(rawURL, "giphy.com") {
		return rawURL
	}
	segments := strings.Split(rawURL, "/")
	if len(segments) < 2 {
		return rawURL
	}
	gifID := segments[len(segments)-2]
	return fmt.Sprintf("https://i.giphy.com/media/%s/giphy.gif", gifID)
}
