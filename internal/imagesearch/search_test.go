package imagesearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

func giphyResponse(gifs ...map[string]string) map[string]interface{} {
	data := make([]map[string]interface{}, 0, len(gifs))
	for _, g := range gifs {
		data = append(data, map[string]interface{}{
			"images": map[string]interface{}{
				"original": map[string]interface{}{
					"url":    g["url"],
					"width":  g["width"],
					"height": g["height"],
				},
			},
		})
	}
	return map[string]interface{}{"data": data}
}

func TestGiphySearchFiltersAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("rating"); got != "pg-13" {
			t.Errorf("expected pg-13 rating, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(giphyResponse(
			map[string]string{"url": "https://media.giphy.com/media/abc123/giphy.gif", "width": "480", "height": "360"},
			map[string]string{"url": "https://media.giphy.com/media/tiny99/giphy.gif", "width": "50", "height": "50"},
			map[string]string{"url": "https://media.giphy.com/media/wide77/giphy.gif", "width": "1000", "height": "100"},
		))
	}))
	defer server.Close()

	client := NewGiphyClient("key", WithGiphyBaseURL(server.URL))

	urls, err := client.Search(context.Background(), "capybara", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(urls) != 1 {
		t.Fatalf("expected 1 usable gif, got %d: %v", len(urls), urls)
	}
	if urls[0] != "https://i.giphy.com/media/abc123/giphy.gif" {
		t.Errorf("expected normalized url, got %s", urls[0])
	}
}

func TestNormalizeGiphyURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://media.giphy.com/media/abc123/giphy.gif", "https://i.giphy.com/media/abc123/giphy.gif"},
		{"https://media2.giphy.com/media/xyz/200w.gif", "https://i.giphy.com/media/xyz/giphy.gif"},
		{"https://i.imgur.com/foo.png", "https://i.imgur.com/foo.png"},
	}
	for _, tt := range tests {
		if got := NormalizeGiphyURL(tt.in); got != tt.want {
			t.Errorf("NormalizeGiphyURL(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestImgurSearchRanksResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Client-ID cid" {
			t.Errorf("expected client id header, got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"link": "https://i.imgur.com/low.png", "width": 500, "height": 500, "score": 10, "views": 0},
				{"link": "https://i.imgur.com/album.png", "is_album": true, "width": 500, "height": 500, "score": 999},
				{"link": "https://i.imgur.com/top.png", "width": 500, "height": 500, "score": 100, "views": 5000},
				{"link": "https://i.imgur.com/small.png", "width": 100, "height": 100, "score": 500},
				{"link": "https://i.imgur.com/bad.png", "nsfw": true, "width": 500, "height": 500, "score": 500},
			},
		})
	}))
	defer server.Close()

	client := NewImgurClient("cid", WithImgurBaseURL(server.URL))

	links, err := client.Search(context.Background(), "capybara")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %v", len(links), links)
	}
	if links[0] != "https://i.imgur.com/top.png" {
		t.Errorf("expected top-ranked link first, got %s", links[0])
	}
}

func TestSearcherFallsBackToStockImages(t *testing.T) {
	searcher := NewSearcher(nil, nil, kv.NewMemoryStore(), logging.NewLogger())
	searcher.SetPicker(func(n int) int { return 0 })

	url := searcher.FindImage(context.Background(), "anything")
	if url != defaultFallbackImages[0] {
		t.Errorf("expected first fallback image, got %s", url)
	}
}

func TestSearcherSkipsBannedImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(giphyResponse(
			map[string]string{"url": "https://media.giphy.com/media/banned1/giphy.gif", "width": "480", "height": "360"},
			map[string]string{"url": "https://media.giphy.com/media/clean2/giphy.gif", "width": "480", "height": "360"},
		))
	}))
	defer server.Close()

	store := kv.NewMemoryStore()
	if err := store.Set(context.Background(), bannedKeyPrefix+"https://i.giphy.com/media/banned1/giphy.gif", "1", kv.NoExpiry); err != nil {
		t.Fatalf("failed to seed banned image: %v", err)
	}

	giphy := NewGiphyClient("key", WithGiphyBaseURL(server.URL))
	searcher := NewSearcher(giphy, nil, store, logging.NewLogger())
	searcher.SetPicker(func(n int) int { return 0 })

	url := searcher.FindImage(context.Background(), "capybara")
	if url != "https://i.giphy.com/media/clean2/giphy.gif" {
		t.Errorf("expected banned image skipped, got %s", url)
	}
}
