package generate

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CryptoRabble/glanker/pkg/logging"
)

func TestAnalyzeImage(t *testing.T) {
	imageBytes := []byte{0xff, 0xd8, 0xff, 0xe0}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "Mozilla/5.0" {
			t.Errorf("expected browser user agent, got %q", got)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(imageBytes)
	}))
	defer server.Close()

	provider := &stubProvider{responses: []string{"Mustache Wizard\nMUSTWIZ"}}
	analyzer := NewImageAnalyzer(provider, logging.NewLogger())

	details, err := analyzer.Analyze(context.Background(), server.URL+"/pic.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Name != "Mustache Wizard" {
		t.Errorf("expected name from first line, got %q", details.Name)
	}
	if details.Ticker != "MUSTWIZ" {
		t.Errorf("expected ticker from second line, got %q", details.Ticker)
	}

	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(provider.requests))
	}
	content := provider.requests[0].Messages[0].Content
	if len(content) != 2 || content[0].Type != "image" {
		t.Fatalf("expected image block first, got %+v", content)
	}
	if content[0].MediaType != "image/jpeg" {
		t.Errorf("expected jpeg media type, got %q", content[0].MediaType)
	}
	if content[0].Data != base64.StdEncoding.EncodeToString(imageBytes) {
		t.Errorf("image bytes not base64 encoded correctly")
	}
}

func TestAnalyzeImageRejectsOversized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		big := make([]byte, maxImageBytes+1)
		_, _ = w.Write(big)
	}))
	defer server.Close()

	analyzer := NewImageAnalyzer(&stubProvider{}, logging.NewLogger())

	if _, err := analyzer.Analyze(context.Background(), server.URL); err == nil {
		t.Error("expected error for oversized image")
	}
}

func TestAnalyzeImageBadResponseFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0x89, 0x50})
	}))
	defer server.Close()

	provider := &stubProvider{responses: []string{"just one line"}}
	analyzer := NewImageAnalyzer(provider, logging.NewLogger())

	if _, err := analyzer.Analyze(context.Background(), server.URL); err == nil {
		t.Error("expected error for single-line model output")
	}
}
