package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gyantigventure/telnyx-did-buy-sub000/internal/webhook"
)

type MockWebhookIngestor struct {
	mock.Mock
}

func (m *MockWebhookIngestor) Ingest(ctx context.Context, payload []byte, signature, timestamp string) error {
	args := m.Called(ctx, payload, signature, timestamp)
	return args.Error(0)
}

func TestWebhookHandler_ReceiveEvent(t *testing.T) {
	payload := []byte(`{"event_id":"evt-1","event_type":"delivered","resource_id":"ext-1"}`)

	t.Run("accepted event returns 200", func(t *testing.T) {
		ingestor := new(MockWebhookIngestor)
		handler := NewWebhookHandler(ingestor)

		ingestor.On("Ingest", mock.Anything, payload, "sig", "1700000000").Return(nil)

		ctx := setupTestContext("POST", "/webhooks/carrier", payload)
		ctx.Request.Header.Set(HeaderWebhookSignature, "sig")
		ctx.Request.Header.Set(HeaderWebhookTimestamp, "1700000000")
		handler.ReceiveEvent(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "accepted", response["status"])

		ingestor.AssertExpectations(t)
	})

	t.Run("verification failures return 401", func(t *testing.T) {
		for _, verifyErr := range []error{
			webhook.ErrBadSignature,
			webhook.ErrStaleTimestamp,
			webhook.ErrBadTimestamp,
		} {
			t.Run(verifyErr.Error(), func(t *testing.T) {
				ingestor := new(MockWebhookIngestor)
				handler := NewWebhookHandler(ingestor)

				ingestor.On("Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(verifyErr)

				ctx := setupTestContext("POST", "/webhooks/carrier", payload)
				handler.ReceiveEvent(ctx)

				assert.Equal(t, 401, ctx.Response.StatusCode())
			})
		}
	})

	t.Run("malformed payload returns 400", func(t *testing.T) {
		ingestor := new(MockWebhookIngestor)
		handler := NewWebhookHandler(ingestor)

		ingestor.On("Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(fmt.Errorf("%w: missing event_id", webhook.ErrBadPayload))

		ctx := setupTestContext("POST", "/webhooks/carrier", []byte(`{}`))
		handler.ReceiveEvent(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("storage trouble returns 500 so the carrier redelivers", func(t *testing.T) {
		ingestor := new(MockWebhookIngestor)
		handler := NewWebhookHandler(ingestor)

		ingestor.On("Ingest", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("db down"))

		ctx := setupTestContext("POST", "/webhooks/carrier", payload)
		handler.ReceiveEvent(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}
