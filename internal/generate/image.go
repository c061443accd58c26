package generate

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CryptoRabble/glanker/internal/engine"
	"github.com/CryptoRabble/glanker/pkg/clients"
	"github.com/CryptoRabble/glanker/pkg/llm"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

// maxImageBytes caps downloads. Larger images are rejected before they
// reach the vision model.
const maxImageBytes = 5 << 20

const imagePrompt = `Generate a meme token name and ticker based on the uploaded image.
It should fit the image exactly. If the image is of a word, the name should be that word; if there is a person or character with a unique feature, the name should be based on that feature.
The name should not be a plain description though. Create imaginative names based on what the image looks like.

Rules:
- Output only the name and ticker, each on a separate line. Nothing more.
- Do not use these words in any part of the output: %s
- Use only the english alphabet
- Do not use the letters Q, X, and Z too much
- Do not use any existing popular memecoin names in the output
- The name should be a real word
- The name can be 1 or 2 words
- The ticker should be the same as the name if the name is between 3-10 characters`

// ImageAnalyzer fetches an image and asks the vision model for token
// details based on it.
type ImageAnalyzer struct {
	provider llm.Provider
	client   *http.Client
	logger   logging.Logger
}

func NewImageAnalyzer(provider llm.Provider, logger logging.Logger) *ImageAnalyzer {
	return &ImageAnalyzer{
		provider: provider,
		client:   clients.NewHTTPClient(20 * time.Second),
		logger:   logger,
	}
}

// SetHTTPClient overrides the download client.
func (a *ImageAnalyzer) SetHTTPClient(client *http.Client) {
	if client != nil {
		a.client = client
	}
}

// Analyze downloads the image and derives token details from it.
func (a *ImageAnalyzer) Analyze(ctx context.Context, imageURL string) (engine.TokenDetails, error) {
	data, mediaType, err := a.download(ctx, imageURL)
	if err != nil {
		return engine.TokenDetails{}, err
	}

	response, err := a.provider.Complete(ctx, llm.Request{
		MaxTokens: 1000,
		Messages: []llm.Message{
			{
				Role: "user",
				Content: []llm.Content{
					{
						Type:      "image",
						MediaType: mediaType,
						Data:      base64.StdEncoding.EncodeToString(data),
					},
					{
						Type: "text",
						Text: fmt.Sprintf(imagePrompt, bannedWords),
					},
				},
			},
		},
	})
	if err != nil {
		return engine.TokenDetails{}, fmt.Errorf("analyzing image: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return engine.TokenDetails{}, fmt.Errorf("unexpected image analysis output: %q", response)
	}
	return engine.TokenDetails{Name: lines[0], Ticker: lines[1]}, nil
}

func (a *ImageAnalyzer) download(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("image download returned status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return data, mediaType, nil
}
