package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/webhook"
)

// Development stand-in for the upstream carrier-aggregation gateway.
// Accepts sends on the same contract the engine's gateway client speaks,
// then calls back with HMAC-signed lifecycle webhooks. Also supports
// injecting inbound messages (STOP/HELP replies) for end-to-end testing.

type sendRequest struct {
	From      string   `json:"from" binding:"required"`
	To        string   `json:"to" binding:"required"`
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls"`
}

type sendResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Segments  int    `json:"segments,omitempty"`
	CostMicro *int64 `json:"cost_micro,omitempty"`
}

type inboundRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	Text string `json:"text" binding:"required"`
}

type eventPayload struct {
	EventID    string      `json:"event_id"`
	EventType  string      `json:"event_type"`
	ResourceID string      `json:"resource_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	Body       payloadBody `json:"body"`
}

type payloadBody struct {
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Text        string `json:"text,omitempty"`
	CostMicro   *int64 `json:"cost_micro,omitempty"`
	FailureCode string `json:"failure_code,omitempty"`
	FailureMsg  string `json:"failure_message,omitempty"`
}

type simulator struct {
	webhookURL    string
	webhookSecret []byte
	deliveryRate  float64
	minDelay      time.Duration
	maxDelay      time.Duration
	rng           *rand.Rand
	httpClient    *http.Client
}

func newSimulator(webhookURL, secret string, deliveryRate float64, minDelay, maxDelay time.Duration) *simulator {
	return &simulator{
		webhookURL:    webhookURL,
		webhookSecret: []byte(secret),
		deliveryRate:  deliveryRate,
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *simulator) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "message": err.Error()})
		return
	}

	externalID := uuid.NewString()
	cost := int64(750)

	log.Info().
		Str("external_id", externalID).
		Str("to", req.To).
		Msg("message accepted")

	go s.simulateLifecycle(externalID, req, cost)

	c.JSON(http.StatusCreated, sendResponse{
		ID:        externalID,
		Status:    "accepted",
		Segments:  1,
		CostMicro: &cost,
	})
}

// handleInbound injects a mobile-originated message, e.g. a STOP reply.
func (s *simulator) handleInbound(c *gin.Context) {
	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "invalid_request", "message": err.Error()})
		return
	}

	s.postEvent(eventPayload{
		EventID:    uuid.NewString(),
		EventType:  "received",
		OccurredAt: time.Now(),
		Body: payloadBody{
			From: req.From,
			To:   req.To,
			Text: req.Text,
		},
	})

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *simulator) simulateLifecycle(externalID string, req sendRequest, cost int64) {
	time.Sleep(s.randomDelay() / 2)

	s.postEvent(eventPayload{
		EventID:    uuid.NewString(),
		EventType:  "sent",
		ResourceID: externalID,
		OccurredAt: time.Now(),
	})

	time.Sleep(s.randomDelay())

	if s.rng.Float64() < s.deliveryRate {
		s.postEvent(eventPayload{
			EventID:    uuid.NewString(),
			EventType:  "delivered",
			ResourceID: externalID,
			OccurredAt: time.Now(),
			Body:       payloadBody{CostMicro: &cost},
		})
		log.Info().Str("external_id", externalID).Str("to", req.To).Msg("delivered")
		return
	}

	code := s.randomFailureCode()
	s.postEvent(eventPayload{
		EventID:    uuid.NewString(),
		EventType:  "delivery_failed",
		ResourceID: externalID,
		OccurredAt: time.Now(),
		Body: payloadBody{
			FailureCode: code,
			FailureMsg:  failureMessage(code),
		},
	})
	log.Warn().Str("external_id", externalID).Str("failure_code", code).Msg("delivery failed")
}

func (s *simulator) postEvent(p eventPayload) {
	body, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Msg("marshal webhook payload")
		return
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := webhook.Sign(s.webhookSecret, body, timestamp)

	req, err := http.NewRequest(http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Webhook-Timestamp", timestamp)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Str("event_id", p.EventID).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn().
			Str("event_id", p.EventID).
			Int("status", resp.StatusCode).
			Msg("webhook rejected")
	}
}

func (s *simulator) randomDelay() time.Duration {
	delta := s.maxDelay - s.minDelay
	if delta <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Int63n(int64(delta)))
}

func (s *simulator) randomFailureCode() string {
	codes := []string{
		"INVALID_NUMBER",
		"CARRIER_REJECTED",
		"UNREACHABLE",
		"SPAM_BLOCKED",
	}
	return codes[s.rng.Intn(len(codes))]
}

func failureMessage(code string) string {
	messages := map[string]string{
		"INVALID_NUMBER":   "The phone number is invalid or not in service",
		"CARRIER_REJECTED": "Downstream carrier rejected the message",
		"UNREACHABLE":      "The handset is unreachable",
		"SPAM_BLOCKED":     "Filtered by carrier spam detection",
	}
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "message": "bad api key"})
			return
		}
		c.Next()
	}
}

func setupRouter(sim *simulator, apiKey string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request processed")
	})

	v2 := router.Group("/v2", authMiddleware(apiKey))
	{
		v2.POST("/messages", sim.handleSend)
		v2.POST("/inbound", sim.handleInbound)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
	})

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	apiKey := getEnv("API_KEY", "")
	webhookURL := getEnv("WEBHOOK_URL", "http://localhost:8080/api/v1/webhooks/carrier")
	webhookSecret := getEnv("WEBHOOK_SECRET", "dev-secret")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 0.95)
	minDelay := getEnvDuration("MIN_DELAY", 200*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Str("webhook_url", webhookURL).
		Float64("delivery_rate", deliveryRate).
		Msg("starting carrier simulator")

	sim := newSimulator(webhookURL, webhookSecret, deliveryRate, minDelay, maxDelay)
	router := setupRouter(sim, apiKey)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
