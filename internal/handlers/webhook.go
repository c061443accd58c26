package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/CryptoRabble/glanker/internal/engine"
	"github.com/CryptoRabble/glanker/internal/farcaster"
	"github.com/CryptoRabble/glanker/pkg/logging"
	"github.com/CryptoRabble/glanker/pkg/middleware"
)

// signatureHeader carries the hex HMAC of the raw request body.
const signatureHeader = "X-Neynar-Signature"

// Processor runs one webhook event through the mention pipeline.
type Processor interface {
	Process(ctx context.Context, ev *farcaster.WebhookEvent) (engine.Outcome, error)
}

// WebhookHandler terminates the webhook HTTP surface.
type WebhookHandler struct {
	secret    string
	processor Processor
	logger    logging.Logger
	events    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func NewWebhookHandler(secret string, processor Processor, logger logging.Logger, events *prometheus.CounterVec, duration *prometheus.HistogramVec) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		processor: processor,
		logger:    logger,
		events:    events,
		duration:  duration,
	}
}

// RegisterRoutes wires the webhook endpoints onto the router.
func (h *WebhookHandler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(MethodNotAllowed)
	router.GET("/", h.Status)
	router.POST("/", h.Handle)
	router.POST("/webhook", h.Handle)
}

// Status reports liveness for the webhook provider's URL check.
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "Bot is running"})
}

// Handle verifies, decodes, and processes one webhook delivery. Only the
// status code matters to the provider: anything but 2xx is redelivered.
func (h *WebhookHandler) Handle(c *gin.Context) {
	start := time.Now()

	// The signature covers the exact bytes on the wire, so the body must
	// be read raw before any decoding.
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	if err := engine.VerifySignature(h.secret, body, c.GetHeader(signatureHeader)); err != nil {
		h.logger.WithError(err).Warn("Rejected webhook delivery")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var ev farcaster.WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		h.logger.WithError(err).Warn("Malformed webhook payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	c.Set("event_id", ev.Data.Hash)
	c.Set("author_fid", ev.Data.Author.FID)

	outcome, err := h.processor.Process(c.Request.Context(), &ev)
	h.observe(outcome, time.Since(start))
	if err != nil {
		middleware.GetContextLogger(c, h.logger).WithError(err).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Success", "outcome": string(outcome)})
}

func (h *WebhookHandler) observe(outcome engine.Outcome, elapsed time.Duration) {
	if h.events != nil {
		h.events.WithLabelValues(string(outcome)).Inc()
	}
	if h.duration != nil {
		h.duration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
	}
}

// MethodNotAllowed is installed as the router's NoMethod handler.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

var _ Processor = (*engine.Pipeline)(nil)
