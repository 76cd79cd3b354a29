package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/delivery"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
)

const defaultTimeout = 30 * time.Second

// ChatClient talks to the widget API the way a browser widget does. It keeps the session
// cookie between calls and implements delivery.Transport.
type ChatClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

var _ delivery.Transport = (*ChatClient)(nil)

// NewChatClient creates a ChatClient with OpenTelemetry instrumentation and a cookie jar.
func NewChatClient(baseURL string, timeout time.Duration, log *zap.Logger) *ChatClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	jar, _ := cookiejar.New(nil)
	return &ChatClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Jar:       jar,
		},
		Logger: log,
	}
}

// envelope mirrors serializer.Response with a typed payload.
type envelope[T any] struct {
	Code  int    `json:"code"`
	Data  T      `json:"data"`
	Msg   string `json:"msg"`
	Error string `json:"error"`
}

// BootstrapInfo is the widget's startup configuration.
type BootstrapInfo struct {
	SessionID       string `json:"session_id"`
	RealtimeEnabled bool   `json:"realtime_enabled"`
	RelayDriver     string `json:"relay_driver"`
	RelayKey        string `json:"relay_key"`
	RelayCluster    string `json:"relay_cluster"`
	RelayHost       string `json:"relay_host"`
	SessionChannel  string `json:"session_channel"`
	MaxUploadBytes  int64  `json:"max_upload_bytes"`
}

type historyReq struct {
	SessionID string `json:"session_id"`
	Since     string `json:"since,omitempty"`
}

type historyResp struct {
	SessionID string          `json:"session_id"`
	Messages  []model.Message `json:"messages"`
}

type sendReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type routeResp struct {
	MessageID       uint64 `json:"message_id"`
	CreatedAt       string `json:"created_at"`
	SystemResponse  string `json:"system_response"`
	SystemMessageID uint64 `json:"system_message_id"`
	SystemCreatedAt string `json:"system_created_at"`
}

// do sends reqBody as JSON and returns the body of a 200 response.
func (c *ChatClient) do(ctx context.Context, op, method, path string, reqBody any) ([]byte, error) {
	endpoint := c.BaseURL + path

	var body io.Reader
	if reqBody != nil {
		b, err := sonic.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Logger.Error(op+" request failed",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func call[T any](ctx context.Context, c *ChatClient, op, method, path string, reqBody any) (T, error) {
	var zero T
	respBody, err := c.do(ctx, op, method, path, reqBody)
	if err != nil {
		return zero, err
	}
	var result envelope[T]
	if err := sonic.Unmarshal(respBody, &result); err != nil {
		return zero, fmt.Errorf("unmarshal response: %w", err)
	}
	return result.Data, nil
}

// Bootstrap obtains the session cookie and realtime settings.
func (c *ChatClient) Bootstrap(ctx context.Context) (*BootstrapInfo, error) {
	info, err := call[BootstrapInfo](ctx, c, "bootstrap", http.MethodGet, "/api/v1/widget/bootstrap", nil)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// History returns messages after since, a message id or timestamp.
func (c *ChatClient) History(ctx context.Context, sessionID, since string) ([]model.Message, error) {
	res, err := call[historyResp](ctx, c, "history", http.MethodPost, "/api/v1/widget/history",
		historyReq{SessionID: sessionID, Since: since})
	if err != nil {
		return nil, err
	}
	if res.Messages == nil {
		return []model.Message{}, nil
	}
	return res.Messages, nil
}

// Send posts a visitor message.
func (c *ChatClient) Send(ctx context.Context, sessionID, text string) (*delivery.SendResult, error) {
	res, err := call[routeResp](ctx, c, "send_message", http.MethodPost, "/api/v1/widget/messages",
		sendReq{SessionID: sessionID, Message: text})
	if err != nil {
		return nil, err
	}
	return &delivery.SendResult{
		MessageID:       res.MessageID,
		CreatedAt:       res.CreatedAt,
		SystemResponse:  res.SystemResponse,
		SystemMessageID: res.SystemMessageID,
		SystemCreatedAt: res.SystemCreatedAt,
	}, nil
}

type relayAuthReq struct {
	SocketID    string `json:"socket_id"`
	ChannelName string `json:"channel_name"`
	SessionID   string `json:"session_id,omitempty"`
}

// RelayAuth signs a subscription of socketID to the visitor's session channel. The server
// returns the signature unwrapped.
func (c *ChatClient) RelayAuth(ctx context.Context, sessionID, channel, socketID string) (*relay.AuthResponse, error) {
	body, err := c.do(ctx, "relay_auth", http.MethodPost, "/api/v1/widget/relay/auth",
		relayAuthReq{SocketID: socketID, ChannelName: channel, SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	var auth relay.AuthResponse
	if err := sonic.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &auth, nil
}
