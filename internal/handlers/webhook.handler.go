package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/webhook"
	xhttp "github.com/gyantigventure/telnyx-did-buy-sub000/pkg/http"
	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
)

const (
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
)

type WebhookIngestor interface {
	Ingest(ctx context.Context, payload []byte, signature, timestamp string) error
}

// WebhookHandler is the carrier-facing ingress. It acknowledges as soon
// as the event is durably stored and enqueued; all actual reconciliation
// happens in the processor service.
type WebhookHandler struct {
	ingestor WebhookIngestor
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/carrier", h.ReceiveEvent)
}

func NewWebhookHandler(ingestor WebhookIngestor) *WebhookHandler {
	return &WebhookHandler{ingestor: ingestor}
}

func (h *WebhookHandler) ReceiveEvent(ctx *xhttp.RequestCtx) {
	signature := string(ctx.Request.Header.Peek(HeaderWebhookSignature))
	timestamp := string(ctx.Request.Header.Peek(HeaderWebhookTimestamp))
	payload := ctx.PostBody()

	err := h.ingestor.Ingest(ctx, payload, signature, timestamp)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrBadSignature),
			errors.Is(err, webhook.ErrStaleTimestamp),
			errors.Is(err, webhook.ErrBadTimestamp):
			// Rejected before any side effect; the carrier must not
			// treat this as delivered.
			logger.Warn("webhook rejected", "reason", err, "remote", ctx.RemoteAddr().String())
			writeError(ctx, 401, "invalid signature")
			return
		case errors.Is(err, webhook.ErrBadPayload):
			writeError(ctx, 400, err.Error())
			return
		default:
			// Storage or queue trouble: a 5xx makes the carrier
			// redeliver, which the event-id dedupe absorbs.
			logger.Error("webhook ingest failed", "error", err)
			writeError(ctx, 500, "ingest failed")
			return
		}
	}

	writeJSON(ctx, 200, map[string]string{"status": "accepted"})
}
