package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/delivery"
	"github.com/wplc/livechat/internal/modules/model"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "livechat dev")
	assert.Contains(t, buf.String(), "commit: none")
}

func TestPrintOperators(t *testing.T) {
	buf := new(bytes.Buffer)
	printOperators(buf, []model.Operator{
		{ID: 1, Name: "Sara", Email: "sara@example.com", Role: model.RoleAdministrator},
	})
	assert.Contains(t, buf.String(), "EMAIL")
	assert.Contains(t, buf.String(), "sara@example.com")
	assert.Contains(t, buf.String(), "administrator")
}

func TestApplyEvent(t *testing.T) {
	msg, err := sonic.Marshal(model.RealtimePayload{SessionID: "s1", SenderType: model.SenderAdmin, SenderName: "Sara", MessageID: 5, Content: "hi"})
	require.NoError(t, err)
	other, err := sonic.Marshal(model.RealtimePayload{SessionID: "s2", SenderType: model.SenderAdmin, MessageID: 6, Content: "wrong chat"})
	require.NoError(t, err)
	closed, err := sonic.Marshal(model.ClosePayload{SessionID: "s1", ClosedBy: "Sara"})
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	p := &printer{out: buf}
	conv := delivery.NewConversation("s1", model.SenderUser, &stubTransport{}, zap.NewNop())

	applyEvent(conv, p, model.EventNewMessage, msg, zap.NewNop())
	applyEvent(conv, p, model.EventNewMessage, msg, zap.NewNop())
	applyEvent(conv, p, model.EventNewMessage, other, zap.NewNop())
	applyEvent(conv, p, model.EventNewMessage, []byte("not json"), zap.NewNop())
	require.Len(t, conv.Entries(), 1)
	assert.Equal(t, 1, strings.Count(buf.String(), "Sara: hi"))
	assert.NotContains(t, buf.String(), "wrong chat")

	applyEvent(conv, p, model.EventChatClosed, closed, zap.NewNop())
	assert.True(t, conv.ChatClosed())
	assert.Contains(t, buf.String(), "closed by Sara")
}

type stubTransport struct {
	sendErr error
}

func (s *stubTransport) History(context.Context, string, string) ([]model.Message, error) {
	return nil, nil
}

func (s *stubTransport) Send(context.Context, string, string) (*delivery.SendResult, error) {
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &delivery.SendResult{MessageID: 9, CreatedAt: "2024-05-01 10:00:00.000000", SystemResponse: "phone?", SystemMessageID: 10, SystemCreatedAt: "2024-05-01 10:00:00.002000"}, nil
}

func TestHandleInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		sendErr error
		closed  bool
		want    []string
	}{
		{
			name:  "message and system reply",
			input: "hello",
			want:  []string{"user: hello", "phone?"},
		},
		{
			name:    "failed send offers retry",
			input:   "hello",
			sendErr: errors.New("boom"),
			want:    []string{"[failed: /retry temp_"},
		},
		{
			name:   "closed chat refuses input",
			input:  "hello",
			closed: true,
			want:   []string{"closed by the operator"},
		},
		{
			name:  "unknown retry id",
			input: "/retry temp_nope",
			want:  []string{"retry: no such local message"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := delivery.NewConversation("s1", model.SenderUser, &stubTransport{sendErr: tt.sendErr}, zap.NewNop())
			if tt.closed {
				conv.MarkClosed(model.ClosePayload{SessionID: "s1"})
			}
			buf := new(bytes.Buffer)
			handleInput(context.Background(), conv, &printer{out: buf}, tt.input)
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestPrintMirrorEvent(t *testing.T) {
	var mu sync.Mutex
	buf := new(bytes.Buffer)

	err := printMirrorEvent(&mu, buf, []byte(`{"message_id":7,"session_id":"s1","sender_type":"user","content":"hi","created_at":"2024-05-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message_id":7`)
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	err = printMirrorEvent(&mu, buf, []byte(`{"message_id":"x"`))
	assert.ErrorIs(t, err, errMalformedEvent)
}
