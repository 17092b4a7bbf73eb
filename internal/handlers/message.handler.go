package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/services"
	xhttp "github.com/gyantigventure/telnyx-did-buy-sub000/pkg/http"
)

type MessageService interface {
	Send(ctx context.Context, req model.SendRequest) (*model.Message, model.Decision, error)
	Get(ctx context.Context, id string) (*model.Message, error)
	List(ctx context.Context, f repository.MessageFilter) ([]*model.Message, int64, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.SendMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/{id}", h.GetMessage)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type sendMessageRequest struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Body        string   `json:"body"`
	MediaURLs   []string `json:"media_urls,omitempty"`
	CampaignID  string   `json:"campaign_id"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
}

type sendMessageResponse struct {
	Message  *model.Message `json:"message"`
	Decision model.Decision `json:"decision"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

// SendMessage accepts an outbound message. 202 means the message passed
// the gate and is queued for dispatch; 422 carries the full decision so
// the caller sees every failed check, not just the first.
func (h *MessageHandler) SendMessage(ctx *xhttp.RequestCtx) {
	var req sendMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	sr := model.SendRequest{
		From:       req.From,
		To:         req.To,
		Body:       req.Body,
		MediaURLs:  req.MediaURLs,
		CampaignID: req.CampaignID,
	}
	if req.ScheduledAt != "" {
		t, err := parseTime(req.ScheduledAt)
		if err != nil {
			writeError(ctx, 400, "invalid scheduled_at: "+err.Error())
			return
		}
		sr.ScheduledAt = t
	}

	msg, decision, err := h.svc.Send(ctx, sr)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	if !decision.Allowed {
		writeJSON(ctx, 422, sendMessageResponse{Message: msg, Decision: decision})
		return
	}
	writeJSON(ctx, 202, sendMessageResponse{Message: msg, Decision: decision})
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		writeError(ctx, 400, "message id is required")
		return
	}

	msg, err := h.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(ctx, 404, "message not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, msg)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f repository.MessageFilter

	if v := query(ctx, "direction"); v != "" {
		d := model.Direction(v)
		f.Direction = &d
	}
	if v := query(ctx, "campaign_id"); v != "" {
		f.CampaignID = &v
	}
	if v := query(ctx, "to"); v != "" {
		f.To = &v
	}
	if v := query(ctx, "state"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.States = append(f.States, model.MessageState(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "until"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.Until = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 200, listResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
