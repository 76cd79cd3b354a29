package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/infra/relay"
)

const testChannel = "private-session-wplc_abcdefghijk"

func newRealtimeServer(t *testing.T, signer relay.Signer) (*httptest.Server, *relay.Hub) {
	t.Helper()
	hub := relay.NewHub(config.RelayCfg{Key: "app-key", Secret: "app-secret"}, zap.NewNop())

	mux := http.NewServeMux()
	mux.Handle("/api/v1/realtime", hub)
	mux.HandleFunc("/api/v1/widget/relay/auth", func(w http.ResponseWriter, r *http.Request) {
		var req relayAuthReq
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &req))
		auth, err := signer.Sign(req.ChannelName, req.SocketID, nil)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b, _ := sonic.Marshal(auth)
		_, _ = w.Write(b)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		_ = hub.Close()
		srv.Close()
	})
	return srv, hub
}

func TestChatClient_SubscribeReceivesEvents(t *testing.T) {
	srv, hub := newRealtimeServer(t, relay.Signer{Key: "app-key", Secret: "app-secret"})
	c := NewChatClient(srv.URL, 5*time.Second, zap.NewNop())

	sub, err := c.Subscribe(context.Background(), "/api/v1/realtime", "wplc_abcdefghijk", testChannel)
	require.NoError(t, err)
	defer sub.Close()
	assert.NotEmpty(t, sub.SocketID)

	require.Eventually(t, func() bool { return hub.Subscribers(testChannel) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, hub.Publish(context.Background(), "private-session-other", "new-message", map[string]int{"message_id": 1}))
	require.NoError(t, hub.Publish(context.Background(), testChannel, "new-message", map[string]int{"message_id": 2}))

	f, err := sub.Next()
	require.NoError(t, err)
	assert.Equal(t, "new-message", f.Event)
	assert.JSONEq(t, `{"message_id":2}`, string(f.Data))
}

func TestChatClient_SubscribeRejected(t *testing.T) {
	srv, _ := newRealtimeServer(t, relay.Signer{Key: "app-key", Secret: "wrong"})
	c := NewChatClient(srv.URL, 5*time.Second, zap.NewNop())

	_, err := c.Subscribe(context.Background(), "/api/v1/realtime", "wplc_abcdefghijk", testChannel)
	assert.ErrorIs(t, err, ErrSubscriptionRejected)
}

func TestChatClient_WebsocketURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "relative path", base: "http://127.0.0.1:8029", host: "/api/v1/realtime", want: "ws://127.0.0.1:8029/api/v1/realtime"},
		{name: "tls base", base: "https://chat.example", host: "/api/v1/realtime", want: "wss://chat.example/api/v1/realtime"},
		{name: "absolute ws host", base: "https://chat.example", host: "wss://rt.example/ws", want: "wss://rt.example/ws"},
		{name: "unsupported scheme", base: "https://chat.example", host: "ftp://rt.example", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChatClient(tt.base, 0, zap.NewNop())
			got, err := c.websocketURL(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
