package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gyantigventure/telnyx-did-buy-sub000/pkg/logger"
	"github.com/valyala/fasthttp"
)

// Error is an upstream gateway failure carrying the HTTP status and the
// gateway's own error code/message. 4xx responses are permanent (the
// request itself is bad, e.g. a malformed destination) and must not be
// retried; everything else is transient.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Permanent reports whether retrying the identical request is pointless.
func (e *Error) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// SendMessageRequest is the outbound handoff payload.
type SendMessageRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	Text      string   `json:"text"`
	MediaURLs []string `json:"media_urls,omitempty"`
}

// SendMessageResponse carries the gateway-assigned message id used to
// correlate later webhook events.
type SendMessageResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Segments  int    `json:"segments,omitempty"`
	CostMicro *int64 `json:"cost_micro,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Config struct {
	URL             string
	APIKey          string
	Timeout         time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

// Client talks to the upstream carrier-aggregation gateway. It performs
// exactly one HTTP call per invocation; retry policy belongs to the
// dispatcher, not here.
type Client struct {
	config *Config
	http   *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("gateway url is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     config.MaxConns,
		ReadTimeout:         config.Timeout,
		WriteTimeout:        config.Timeout,
		MaxIdleConnDuration: 60 * time.Second,
		ReadBufferSize:      config.ReadBufferSize,
		WriteBufferSize:     config.WriteBufferSize,
	}

	logger.Info("carrier gateway client initialized", "url", config.URL, "timeout", config.Timeout)

	return &Client{config: config, http: httpClient}, nil
}

// SendMessage hands one message to the gateway and returns its external id.
func (c *Client) SendMessage(ctx context.Context, r *SendMessageRequest) (*SendMessageResponse, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, status, err := c.doRequest(ctx, "POST", "/v2/messages", body)
	if err != nil {
		return nil, err
	}

	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated && status != fasthttp.StatusAccepted {
		gerr := &Error{StatusCode: status}
		var er errorResponse
		if jsonErr := json.Unmarshal(respBody, &er); jsonErr == nil {
			gerr.Code = er.Code
			gerr.Message = er.Message
		} else {
			gerr.Message = string(respBody)
		}
		return nil, gerr
	}

	var resp SendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if resp.ID == "" {
		return nil, &Error{StatusCode: status, Code: "missing_id", Message: "gateway returned no message id"}
	}

	logger.Debug("message handed to gateway", "external_id", resp.ID, "to", r.To)
	return &resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, resp.StatusCode(), nil
}
