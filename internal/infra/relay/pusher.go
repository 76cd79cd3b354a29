package relay

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/wplc/livechat/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const pusherAuthVersion = "1.0"

// Pusher publishes through the Pusher Channels HTTP API.
type Pusher struct {
	Signer
	AppID      string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger

	now func() time.Time
}

type pusherEvent struct {
	Name     string   `json:"name"`
	Channels []string `json:"channels"`
	Data     string   `json:"data"`
}

func NewPusher(cfg config.RelayCfg, log *zap.Logger) *Pusher {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Pusher{
		Signer:  Signer{Key: cfg.Key, Secret: cfg.Secret},
		AppID:   cfg.AppID,
		BaseURL: pusherBaseURL(cfg),
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		Logger: log,
		now:    time.Now,
	}
}

func pusherBaseURL(cfg config.RelayCfg) string {
	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}
	host := cfg.Host
	switch {
	case host != "":
	case cfg.Cluster != "":
		host = "api-" + cfg.Cluster + ".pusher.com"
	default:
		host = "api.pusherapp.com"
	}
	return scheme + "://" + host
}

func (p *Pusher) Initialized() bool {
	return p.AppID != "" && p.Key != "" && p.Secret != ""
}

func (p *Pusher) Authenticate(channel, socketID string, member *Member) (*AuthResponse, error) {
	if !p.Initialized() {
		return nil, ErrNotInitialized
	}
	return p.Sign(channel, socketID, member)
}

func (p *Pusher) Publish(ctx context.Context, channel, event string, payload any) error {
	data, err := sonic.MarshalString(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	body, err := sonic.Marshal(pusherEvent{Name: event, Channels: []string{channel}, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	path := "/apps/" + p.AppID + "/events"
	endpoint := p.BaseURL + path + "?" + p.signedQuery(http.MethodPost, path, body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.Logger.Error("pusher trigger failed",
			zap.String("channel", channel),
			zap.String("event", event),
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", string(respBody)))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// signedQuery builds the auth_* query string for a REST call.
func (p *Pusher) signedQuery(method, path string, body []byte) string {
	sum := md5.Sum(body)
	params := map[string]string{
		"auth_key":       p.Key,
		"auth_timestamp": strconv.FormatInt(p.now().Unix(), 10),
		"auth_version":   pusherAuthVersion,
		"body_md5":       hex.EncodeToString(sum[:]),
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	query := strings.Join(pairs, "&")

	sig := hmacHex(p.Secret, method+"\n"+path+"\n"+query)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("auth_signature", sig)
	return q.Encode()
}

func (p *Pusher) Close() error {
	p.HTTPClient.CloseIdleConnections()
	return nil
}
