package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/model"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/repository"
	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/services"
	xhttp "github.com/gyantigventure/telnyx-did-buy-sub000/pkg/http"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, req model.SendRequest) (*model.Message, model.Decision, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Get(1).(model.Decision), args.Error(2)
	}
	return args.Get(0).(*model.Message), args.Get(1).(model.Decision), args.Error(2)
}

func (m *MockMessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, f repository.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func allowedDecision() model.Decision {
	return model.Decision{
		Allowed: true,
		Checks: []model.CheckResult{
			{Name: model.CheckCampaignStatus, Passed: true},
			{Name: model.CheckOptOut, Passed: true},
			{Name: model.CheckContent, Passed: true},
			{Name: model.CheckTimeWindow, Passed: true},
			{Name: model.CheckThroughput, Passed: true},
		},
		EvaluatedAt: time.Now(),
	}
}

func TestMessageHandler_SendMessage(t *testing.T) {
	t.Run("accepted message returns 202", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := sendMessageRequest{
			From:       "+14155550100",
			To:         "+16175550123",
			Body:       "Your order has shipped",
			CampaignID: "cmp-1",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		queued := &model.Message{
			ID:    "msg-1",
			From:  "+14155550100",
			To:    "+16175550123",
			State: model.MessageStateQueued,
		}

		svc.On("Send", mock.Anything, mock.MatchedBy(func(r model.SendRequest) bool {
			return r.From == "+14155550100" && r.To == "+16175550123" && r.CampaignID == "cmp-1"
		})).Return(queued, allowedDecision(), nil)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())

		var response sendMessageResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "msg-1", response.Message.ID)
		assert.Equal(t, model.MessageStateQueued, response.Message.State)
		assert.True(t, response.Decision.Allowed)

		svc.AssertExpectations(t)
	})

	t.Run("denied message returns 422 with every failed check", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := sendMessageRequest{
			From:       "+14155550100",
			To:         "+16175550123",
			Body:       "late night promo",
			CampaignID: "cmp-1",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		denied := model.Decision{
			Allowed: false,
			Checks: []model.CheckResult{
				{Name: model.CheckCampaignStatus, Passed: true},
				{Name: model.CheckOptOut, Passed: false, Reason: model.ReasonOptedOut},
				{Name: model.CheckTimeWindow, Passed: false, Reason: model.ReasonTimeWindow},
			},
			EvaluatedAt: time.Now(),
		}
		failedRow := &model.Message{
			ID:          "msg-2",
			State:       model.MessageStateFailed,
			FailureCode: "compliance_denied",
		}

		svc.On("Send", mock.Anything, mock.Anything).Return(failedRow, denied, nil)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())

		var response sendMessageResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, model.MessageStateFailed, response.Message.State)
		assert.ElementsMatch(t,
			[]string{model.ReasonOptedOut, model.ReasonTimeWindow},
			response.Decision.FailureReasons())

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("POST", "/messages", []byte("invalid json"))
		handler.SendMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("invalid scheduled_at", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := sendMessageRequest{
			From:        "+14155550100",
			To:          "+16175550123",
			Body:        "hi",
			CampaignID:  "cmp-1",
			ScheduledAt: "not-a-time",
		}
		bodyBytes, _ := json.Marshal(reqBody)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("validation error from service", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		bodyBytes, _ := json.Marshal(sendMessageRequest{From: "+14155550100"})

		svc.On("Send", mock.Anything, mock.Anything).
			Return(nil, model.Decision{}, errors.New("to is required"))

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.SendMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "to is required", response["error"])

		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_GetMessage(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, "msg-1").
			Return(&model.Message{ID: "msg-1", State: model.MessageStateDelivered}, nil)

		ctx := setupTestContext("GET", "/messages/msg-1", nil)
		ctx.SetUserValue("id", "msg-1")
		handler.GetMessage(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.Message
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "msg-1", response.ID)
		assert.Equal(t, model.MessageStateDelivered, response.State)

		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, "missing").Return(nil, services.ErrNotFound)

		ctx := setupTestContext("GET", "/messages/missing", nil)
		ctx.SetUserValue("id", "missing")
		handler.GetMessage(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("missing id", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("GET", "/messages/", nil)
		handler.GetMessage(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
	})
}

func TestMessageHandler_ListMessages(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		expectedMessages := []*model.Message{
			{ID: "msg-1", State: model.MessageStateDelivered},
			{ID: "msg-2", State: model.MessageStateQueued},
		}

		svc.On("List", mock.Anything, mock.AnythingOfType("repository.MessageFilter")).
			Return(expectedMessages, int64(2), nil)

		ctx := setupTestContext("GET", "/messages?limit=10&offset=0", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response listResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(2), response.Total)
		assert.Len(t, response.Items, 2)

		svc.AssertExpectations(t)
	})

	t.Run("filter parsing", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f repository.MessageFilter) bool {
			return f.Direction != nil && *f.Direction == model.DirectionOutbound &&
				f.CampaignID != nil && *f.CampaignID == "cmp-1" &&
				len(f.States) == 2 &&
				f.States[0] == model.MessageStateQueued &&
				f.States[1] == model.MessageStateSent &&
				f.Limit == 5 && f.Offset == 10 && f.Desc
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET",
			"/messages?direction=outbound&campaign_id=cmp-1&state=queued,sent&limit=5&offset=10&order=desc", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("time range", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f repository.MessageFilter) bool {
			return f.From != nil && f.Until != nil
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages?from=2026-01-01&until=2026-12-31", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("database error"))

		ctx := setupTestContext("GET", "/messages", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "database error", response["error"])

		svc.AssertExpectations(t)
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("readJSON", func(t *testing.T) {
		data := map[string]string{"key": "value"}
		bodyBytes, _ := json.Marshal(data)
		ctx := setupTestContext("POST", "/", bodyBytes)

		var result map[string]string
		err := readJSON(ctx, &result)
		require.NoError(t, err)
		assert.Equal(t, "value", result["key"])
	})

	t.Run("writeJSON", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		data := map[string]string{"message": "test"}

		writeJSON(ctx, 200, data)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "application/json")

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "test", result["message"])
	})

	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "not found", result["error"])
	})

	t.Run("parseTime RFC3339", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
	})

	t.Run("parseTime date only", func(t *testing.T) {
		parsed, err := parseTime("2026-01-01")
		require.NoError(t, err)
		assert.Equal(t, 2026, parsed.Year())
		assert.Equal(t, time.Month(1), parsed.Month())
		assert.Equal(t, 1, parsed.Day())
	})

	t.Run("parseTime invalid", func(t *testing.T) {
		_, err := parseTime("invalid")
		assert.Error(t, err)
	})
}
