package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/CryptoRabble/glanker/pkg/clients"
)

const defaultImgurBaseURL = "https://api.imgur.com"

// ImgurClient searches the Imgur gallery, used as a fallback when Giphy
// has nothing suitable.
type ImgurClient struct {
	baseURL      string
	clientID     string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
}

func NewImgurClient(clientID string, opts ...ImgurOption) *ImgurClient {
	c := &ImgurClient{
		baseURL:      defaultImgurBaseURL,
		clientID:     clientID,
		client:       clients.NewHTTPClient(10 * time.Second),
		httpExecutor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ImgurOption func(*ImgurClient)

func WithImgurBaseURL(baseURL string) ImgurOption {
	return func(c *ImgurClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithImgurHTTPClient(httpClient *http.Client) ImgurOption {
	return func(c *ImgurClient) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

type imgurItem struct {
	Link    string `json:"link"`
	IsAlbum bool   `json:"is_album"`
	NSFW    bool   `json:"nsfw"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Score   int    `json:"score"`
	Views   int    `json:"views"`
}

// Search returns the top gallery image links for the query, best first.
// Albums, NSFW posts, and small images are dropped, and the rest are
// ranked by score with views as a tiebreaker.
func (c *ImgurClient) Search(ctx context.Context, query string) ([]string, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("sort", "top")
	reqURL := fmt.Sprintf("%s/3/gallery/search?%s", c.baseURL, q.Encode())

	resp, err := clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Client-ID "+c.clientID)
		return c.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("imgur returned status: %d", resp.StatusCode)
	}

	var result struct {
		Data []imgurItem `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode imgur response: %w", err)
	}

	var items []imgurItem
	for _, item := range result.Data {
		if item.IsAlbum || item.NSFW || item.Link == "" {
			continue
		}
		if item.Width < 200 || item.Height < 200 {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return rank(items[i]) > rank(items[j])
	})

	links := make([]string, 0, len(items))
	for _, item := range items {
		links = append(links, item.Link)
	}
	return links, nil
}

func rank(item imgurItem) float64 {
	return float64(item.Score) + float64(item.Views)/1000
}
