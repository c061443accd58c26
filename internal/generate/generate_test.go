package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/CryptoRabble/glanker/internal/imagesearch"
	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/llm"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

type stubProvider struct {
	responses []string
	requests  []llm.Request
}

func (s *stubProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return "", nil
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	return next, nil
}

func TestTicker(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"frog", "FROG"},
		{"moon cheese", "MOONCHEESE"},
		{"spectacular waffles", "SPECWAF"},
		{"hippopotamus", "HIPPOPOTAMUS"},
		{"antidisestablishment", "ANTIDISESTT"},
	}
	for _, tt := range tests {
		if got := Ticker(tt.name); got != tt.want {
			t.Errorf("Ticker(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func newTestService(provider llm.Provider) *Service {
	logger := logging.NewLogger()
	searcher := imagesearch.NewSearcher(nil, nil, kv.NewMemoryStore(), logger)
	analyzer := NewImageAnalyzer(provider, logger)
	return NewService(provider, searcher, analyzer, logger)
}

func TestTokenFromTexts(t *testing.T) {
	provider := &stubProvider{responses: []string{
		"A chronically online gardener who narrates every tomato.",
		"tomato whisperer\ngarden gremlin",
		"garden gremlin",
	}}
	svc := newTestService(provider)

	details, err := svc.TokenFromTexts(context.Background(), []string{"my tomatoes are thriving", "day 47 of narrating the garden"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Name != "garden gremlin" {
		t.Errorf("expected picked name, got %q", details.Name)
	}
	if details.Ticker != "GARDENGREMLIN" {
		t.Errorf("unexpected ticker: %q", details.Ticker)
	}
	if len(provider.requests) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(provider.requests))
	}
}

func TestTokenFromTextsSingleCastSkipsDescription(t *testing.T) {
	provider := &stubProvider{responses: []string{
		"soggy cereal\nbreakfast regret",
		"soggy cereal",
	}}
	svc := newTestService(provider)

	details, err := svc.TokenFromTexts(context.Background(), []string{"cereal first, then milk, fight me"}, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if details.Name != "soggy cereal" {
		t.Errorf("expected picked name, got %q", details.Name)
	}
	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 model calls for single cast, got %d", len(provider.requests))
	}
	// The referenced cast text feeds the search terms prompt directly.
	if !strings.Contains(provider.requests[0].Messages[0].Content[0].Text, "cereal first") {
		t.Errorf("expected cast text in first prompt")
	}
}

func TestPersonaReplyTrimsOutput(t *testing.T) {
	provider := &stubProvider{responses: []string{"  glanking along as always fren  \n"}}
	svc := newTestService(provider)

	reply, err := svc.PersonaReply(context.Background(), "how are you")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "glanking along as always fren" {
		t.Errorf("expected trimmed reply, got %q", reply)
	}
}
