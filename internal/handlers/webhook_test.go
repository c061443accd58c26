package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CryptoRabble/glanker/internal/engine"
	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/pkg/kv"
	"github.com/CryptoRabble/glanker/pkg/logging"
)

const testSecret = "test-secret"

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

type stubProcessor struct {
	events  []*farcaster.WebhookEvent
	outcome engine.Outcome
	err     error
}

func (p *stubProcessor) Process(ctx context.Context, ev *farcaster.WebhookEvent) (engine.Outcome, error) {
	p.events = append(p.events, ev)
	return p.outcome, p.err
}

func newTestRouter(processor Processor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWebhookHandler(testSecret, processor, logging.NewLogger(), nil, nil)
	h.RegisterRoutes(router)
	return router
}

func eventBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(farcaster.WebhookEvent{
		Type: "cast.created",
		Data: farcaster.Cast{
			Hash:   "0xabc",
			Text:   "@glanker hi",
			Author: farcaster.User{FID: 123, Username: "alice"},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestStatusEndpoint(t *testing.T) {
	router := newTestRouter(&stubProcessor{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestWebhookValidSignature(t *testing.T) {
	processor := &stubProcessor{outcome: engine.OutcomeReplied}
	router := newTestRouter(processor)

	body := eventBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Neynar-Signature", sign(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(processor.events) != 1 {
		t.Fatalf("expected processor to run once, ran %d times", len(processor.events))
	}
	if processor.events[0].Data.Hash != "0xabc" {
		t.Errorf("unexpected event: %+v", processor.events[0])
	}
}

func TestWebhookMissingSignature(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(processor)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(eventBody(t)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if len(processor.events) != 0 {
		t.Error("expected processor untouched on missing signature")
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	processor := &stubProcessor{}
	router := newTestRouter(processor)

	body := eventBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Neynar-Signature", sign([]byte("different body")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if len(processor.events) != 0 {
		t.Error("expected processor untouched on invalid signature")
	}
}

func TestWebhookMalformedPayload(t *testing.T) {
	router := newTestRouter(&stubProcessor{})

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Neynar-Signature", sign(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestWebhookProcessorFailure(t *testing.T) {
	router := newTestRouter(&stubProcessor{outcome: engine.OutcomeError, err: errors.New("boom")})

	body := eventBody(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Neynar-Signature", sign(body))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestWebhookMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&stubProcessor{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/webhook", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", w.Code)
	}
}

// Full-stack stubs for the integration tests below.

type fakeFarcaster struct {
	published []farcaster.PublishRequest
}

func (f *fakeFarcaster) FetchRecentCasts(ctx context.Context, fid int64, limit int) ([]farcaster.Cast, error) {
	return []farcaster.Cast{{Text: "gm", Author: farcaster.User{FID: fid, Username: "alice"}}}, nil
}

func (f *fakeFarcaster) LookupCast(ctx context.Context, hash string) (*farcaster.Cast, error) {
	return nil, errors.New("not found")
}

func (f *fakeFarcaster) FetchUser(ctx context.Context, fid int64) (*farcaster.User, error) {
	return &farcaster.User{
		FID:          fid,
		Username:     "alice",
		Experimental: &farcaster.Experimental{NeynarUserScore: 0.9},
	}, nil
}

func (f *fakeFarcaster) PublishCast(ctx context.Context, pub farcaster.PublishRequest) (string, error) {
	f.published = append(f.published, pub)
	return "0xreply", nil
}

type fakeGenerator struct{}

func (fakeGenerator) PersonaReply(ctx context.Context, contextText string) (string, error) {
	return "hey fren", nil
}

func (fakeGenerator) TokenFromTexts(ctx context.Context, texts []string, singleCast bool) (engine.TokenDetails, error) {
	return engine.TokenDetails{Name: "frog", Ticker: "FROG"}, nil
}

func (fakeGenerator) TokenFromImage(ctx context.Context, imageURL string) (engine.TokenDetails, error) {
	return engine.TokenDetails{Name: "frog", Ticker: "FROG"}, nil
}

func (fakeGenerator) FindImage(ctx context.Context, name string) string {
	return "https://i.imgur.com/found.png"
}

func newIntegrationRouter(store *kv.MemoryStore, social *fakeFarcaster) *gin.Engine {
	logger := logging.NewLogger()
	auth := engine.NewAuthorizer(engine.AuthorizerConfig{BotFID: 885622, DeployerFID: 874542}, nil, social, logger)
	resolver := engine.NewContextResolver(engine.ResolverConfig{BotFID: 885622, BotUsername: "glanker"}, store, social, logger)
	limiter := engine.NewRateLimiter(store, engine.PolicySingleSlot, 1)
	pipeline := engine.NewPipeline(
		engine.PipelineConfig{BotFID: 885622, BotUsername: "glanker", MinUserScore: 0.25},
		engine.NewDeduplicator(store, time.Hour),
		auth, limiter, resolver, social, social, fakeGenerator{}, social, nil, logger,
	)
	return newTestRouter(pipeline)
}

func mentionBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(farcaster.WebhookEvent{
		Type: "cast.created",
		Data: farcaster.Cast{
			Hash:              "0xevent",
			Text:              "@glanker hi",
			Author:            farcaster.User{FID: 123, Username: "alice"},
			MentionedProfiles: []farcaster.User{{FID: 885622, Username: "glanker"}},
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return body
}

func TestInvalidSignatureWritesNothing(t *testing.T) {
	store := kv.NewMemoryStore()
	router := newIntegrationRouter(store, &fakeFarcaster{})

	body := mentionBody(t)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("X-Neynar-Signature", "deadbeef")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if store.Len() != 0 {
		t.Errorf("expected zero store writes, found %d keys", store.Len())
	}
}

func TestReplayPublishesOnce(t *testing.T) {
	store := kv.NewMemoryStore()
	social := &fakeFarcaster{}
	router := newIntegrationRouter(store, social)

	body := mentionBody(t)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
		req.Header.Set("X-Neynar-Signature", sign(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
	}

	if len(social.published) != 1 {
		t.Errorf("expected exactly one publication across replays, got %d", len(social.published))
	}
}
