package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wplc/livechat/internal/modules/model"
	"go.uber.org/zap"
)

type chatMocks struct {
	sessions *MockSessionService
	messages *MockMessageService
	flow     *MockFlowEngine
	gateway  *MockGateway
	files    *MockFileService
	mirror   *MockMirror
}

func newChatUnderTest(mirror bool) (ChatService, *chatMocks) {
	m := &chatMocks{
		sessions: &MockSessionService{},
		messages: &MockMessageService{},
		flow:     &MockFlowEngine{},
		gateway:  &MockGateway{},
		files:    &MockFileService{},
		mirror:   &MockMirror{},
	}
	cfg := testConfig()
	cfg.RabbitMQ.Enabled = mirror
	svc := NewChatService(ChatServiceDeps{
		Sessions: m.sessions,
		Messages: m.messages,
		Flow:     m.flow,
		Gateway:  m.gateway,
		Files:    m.files,
		Mirror:   m.mirror,
		Config:   cfg,
		Log:      zap.NewNop(),
	})
	return svc, m
}

func (m *chatMocks) assert(t *testing.T) {
	m.sessions.AssertExpectations(t)
	m.messages.AssertExpectations(t)
	m.flow.AssertExpectations(t)
	m.gateway.AssertExpectations(t)
	m.files.AssertExpectations(t)
	m.mirror.AssertExpectations(t)
}

var msgTime = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

func storedMessage(id uint64, senderType model.SenderType, content string) *model.Message {
	return &model.Message{ID: id, SessionID: "s1", SenderType: senderType, Content: content, CreatedAt: msgTime}
}

// systemMessage is stored a few milliseconds after the visitor message it answers.
func systemMessage(id uint64, content string) *model.Message {
	m := storedMessage(id, model.SenderSystem, content)
	m.CreatedAt = msgTime.Add(4200 * time.Microsecond)
	return m
}

func TestChatService_RouteVisitorMessage(t *testing.T) {
	var noSender *uint64

	tests := []struct {
		name    string
		text    string
		mirror  bool
		setup   func(*chatMocks)
		want    *RouteResult
		wantErr error
	}{
		{
			name: "first message gets the phone prompt",
			text: "  Hello ",
			setup: func(m *chatMocks) {
				m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
				m.messages.On("Save", mock.Anything, "s1", model.SenderUser, model.TextBody{Text: "Hello"}, noSender).
					Return(storedMessage(10, model.SenderUser, "Hello"), nil).Once()
				m.flow.On("Process", mock.Anything, "s1", "Hello").
					Return(&FlowResult{Step: model.FlowAskPhone, SystemResponse: PromptAskPhone}, nil)
				m.sessions.On("Get", mock.Anything, "s1").Return(nil)
				m.gateway.On("PublishToOperators", mock.Anything, model.EventNewUserMessage, mock.MatchedBy(func(p model.RealtimePayload) bool {
					return p.MessageID == 10 && p.SenderType == model.SenderUser &&
						p.SenderID != nil && p.SenderID.SessionID == "s1" &&
						p.UserName == model.DefaultVisitorName && p.CreatedAt == "2024-06-01 08:30:00.000000"
				})).Return(true)
				m.messages.On("Save", mock.Anything, "s1", model.SenderSystem, model.TextBody{Text: PromptAskPhone}, noSender).
					Return(systemMessage(11, PromptAskPhone), nil).Once()
			},
			want: &RouteResult{
				MessageID:       10,
				MessageSaved:    true,
				Pushed:          true,
				CreatedAt:       "2024-06-01 08:30:00.000000",
				FlowStep:        model.FlowAskPhone,
				SystemResponse:  PromptAskPhone,
				SystemMessageID: 11,
				SystemCreatedAt: "2024-06-01 08:30:00.004200",
			},
		},
		{
			name: "publish failure still reports the saved message",
			text: "question",
			setup: func(m *chatMocks) {
				m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
				m.messages.On("Save", mock.Anything, "s1", model.SenderUser, model.TextBody{Text: "question"}, noSender).
					Return(storedMessage(12, model.SenderUser, "question"), nil)
				m.flow.On("Process", mock.Anything, "s1", "question").Return(&FlowResult{Step: model.FlowCompleted}, nil)
				m.sessions.On("Get", mock.Anything, "s1").Return(&model.Session{SessionID: "s1", UserName: "Ali"})
				m.gateway.On("PublishToOperators", mock.Anything, model.EventNewUserMessage, mock.MatchedBy(func(p model.RealtimePayload) bool {
					return p.UserName == "Ali"
				})).Return(false)
			},
			want: &RouteResult{MessageID: 12, MessageSaved: true, CreatedAt: "2024-06-01 08:30:00.000000", FlowStep: model.FlowCompleted},
		},
		{
			name: "flow failure does not lose the message",
			text: "Ali",
			setup: func(m *chatMocks) {
				m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
				m.messages.On("Save", mock.Anything, "s1", model.SenderUser, model.TextBody{Text: "Ali"}, noSender).
					Return(storedMessage(13, model.SenderUser, "Ali"), nil)
				m.flow.On("Process", mock.Anything, "s1", "Ali").Return(nil, ErrSessionUpdate)
				m.sessions.On("Get", mock.Anything, "s1").Return(nil)
				m.gateway.On("PublishToOperators", mock.Anything, model.EventNewUserMessage, mock.Anything).Return(true)
			},
			want: &RouteResult{MessageID: 13, MessageSaved: true, Pushed: true, CreatedAt: "2024-06-01 08:30:00.000000"},
		},
		{
			name:   "persisted messages are mirrored",
			text:   "hi",
			mirror: true,
			setup: func(m *chatMocks) {
				m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
				m.messages.On("Save", mock.Anything, "s1", model.SenderUser, model.TextBody{Text: "hi"}, noSender).
					Return(storedMessage(14, model.SenderUser, "hi"), nil)
				m.flow.On("Process", mock.Anything, "s1", "hi").Return(&FlowResult{Step: model.FlowCompleted}, nil)
				m.sessions.On("Get", mock.Anything, "s1").Return(nil)
				m.gateway.On("PublishToOperators", mock.Anything, mock.Anything, mock.Anything).Return(true)
				m.mirror.On("PublishJSON", mock.Anything, "livechat.message", "livechat.message.insert", mock.MatchedBy(func(ev model.MessageEvent) bool {
					return ev.MessageID == 14 && ev.SessionID == "s1"
				})).Return(errors.New("broker down")).Once()
			},
			want: &RouteResult{MessageID: 14, MessageSaved: true, Pushed: true, CreatedAt: "2024-06-01 08:30:00.000000", FlowStep: model.FlowCompleted},
		},
		{
			name: "persistence failure is fatal",
			text: "hi",
			setup: func(m *chatMocks) {
				m.sessions.On("Ensure", mock.Anything, "s1").Return(false)
				m.messages.On("Save", mock.Anything, "s1", model.SenderUser, model.TextBody{Text: "hi"}, noSender).
					Return(nil, errors.New("db down"))
			},
			wantErr: errors.New("db down"),
		},
		{
			name:    "blank message",
			text:    "   ",
			setup:   func(m *chatMocks) {},
			wantErr: ErrEmptyMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newChatUnderTest(tt.mirror)
			tt.setup(m)

			got, err := svc.RouteVisitorMessage(context.Background(), "s1", tt.text)
			if tt.wantErr != nil {
				require.Error(t, err)
				if errors.Is(tt.wantErr, ErrEmptyMessage) {
					assert.ErrorIs(t, err, ErrEmptyMessage)
				} else {
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
				m.gateway.AssertNotCalled(t, "PublishToOperators", mock.Anything, mock.Anything, mock.Anything)
				m.flow.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			m.assert(t)
		})
	}
}

func TestChatService_RouteVisitorMessage_MissingSession(t *testing.T) {
	svc, _ := newChatUnderTest(false)
	_, err := svc.RouteVisitorMessage(context.Background(), " ", "hi")
	assert.ErrorIs(t, err, ErrMissingSessionID)
}

func TestChatService_RouteOperatorMessage(t *testing.T) {
	op := &model.Operator{ID: 7, Name: "Sara", Role: model.RoleChatOperator}
	opID := uint64(7)

	t.Run("reply reaches the visitor channel", func(t *testing.T) {
		svc, m := newChatUnderTest(false)
		stored := storedMessage(20, model.SenderAdmin, "hello")
		stored.SenderID = &opID
		m.messages.On("Save", mock.Anything, "s1", model.SenderAdmin, model.TextBody{Text: "hello"}, &opID).Return(stored, nil)
		m.sessions.On("UpdateStatus", mock.Anything, "s1", model.SessionStatusOpen).Return(true)
		m.gateway.On("PublishToSession", mock.Anything, "s1", model.EventNewMessage, mock.MatchedBy(func(p model.RealtimePayload) bool {
			return p.SenderType == model.SenderAdmin && p.SenderID.OperatorID == 7 &&
				p.SenderName == "Sara" && p.OperatorRole == model.RoleChatOperator && p.MessageID == 20
		})).Return(true)

		got, err := svc.RouteOperatorMessage(context.Background(), "s1", "hello", op)
		require.NoError(t, err)
		assert.Equal(t, uint64(20), got.MessageID)
		assert.True(t, got.MessageSaved)
		assert.True(t, got.Pushed)
		assert.Empty(t, got.FlowStep)
		m.flow.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything)
		m.assert(t)
	})

	t.Run("status update failure is not fatal", func(t *testing.T) {
		svc, m := newChatUnderTest(false)
		m.messages.On("Save", mock.Anything, "s1", model.SenderAdmin, mock.Anything, &opID).Return(storedMessage(21, model.SenderAdmin, "x"), nil)
		m.sessions.On("UpdateStatus", mock.Anything, "s1", model.SessionStatusOpen).Return(false)
		m.gateway.On("PublishToSession", mock.Anything, "s1", model.EventNewMessage, mock.Anything).Return(false)

		got, err := svc.RouteOperatorMessage(context.Background(), "s1", "x", op)
		require.NoError(t, err)
		assert.True(t, got.MessageSaved)
		assert.False(t, got.Pushed)
	})

	t.Run("operator required", func(t *testing.T) {
		svc, _ := newChatUnderTest(false)
		_, err := svc.RouteOperatorMessage(context.Background(), "s1", "x", nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestChatService_CloseSession(t *testing.T) {
	op := &model.Operator{ID: 7, Name: "Sara", Role: model.RoleAdministrator}

	tests := []struct {
		name       string
		setup      func(*chatMocks)
		wantPushed bool
		wantErr    error
	}{
		{
			name: "closes and notifies the visitor",
			setup: func(m *chatMocks) {
				m.sessions.On("Exists", mock.Anything, "s1").Return(true)
				m.sessions.On("UpdateStatus", mock.Anything, "s1", model.SessionStatusClosed).Return(true)
				m.gateway.On("PublishToSession", mock.Anything, "s1", model.EventChatClosed, mock.MatchedBy(func(p model.ClosePayload) bool {
					return p.SessionID == "s1" && p.ClosedBy == "Sara" && p.ClosedByRole == model.RoleAdministrator && p.Timestamp != ""
				})).Return(true)
			},
			wantPushed: true,
		},
		{
			name: "unknown session",
			setup: func(m *chatMocks) {
				m.sessions.On("Exists", mock.Anything, "s1").Return(false)
			},
			wantErr: ErrSessionNotFound,
		},
		{
			name: "status write failure",
			setup: func(m *chatMocks) {
				m.sessions.On("Exists", mock.Anything, "s1").Return(true)
				m.sessions.On("UpdateStatus", mock.Anything, "s1", model.SessionStatusClosed).Return(false)
			},
			wantErr: ErrSessionUpdate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newChatUnderTest(false)
			tt.setup(m)
			pushed, err := svc.CloseSession(context.Background(), "s1", op)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantPushed, pushed)
			m.assert(t)
		})
	}
}

func TestChatService_RouteVisitorFile(t *testing.T) {
	file := &model.File{SessionID: "s1", FileName: "a.png", StorageKey: "chat/s1/a.png", FileURL: "https://f/a.png", FileType: "png", FileSize: 2048, MimeType: "image/png", SenderType: model.SenderUser}

	t.Run("upload is announced to operators", func(t *testing.T) {
		svc, m := newChatUnderTest(false)
		fh := uploadHeader(t, "a.png", []byte("x"))
		fd := file.Data()
		fd.FileID = 3
		stored := storedMessage(30, model.SenderUser, model.FileBody{File: fd}.Content())
		stored.File = &fd

		m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
		m.files.On("Store", mock.Anything, UploadInput{SessionID: "s1", SenderType: model.SenderUser, Header: fh}).Return(file, nil)
		m.messages.On("SaveFile", mock.Anything, file).Return(stored, nil)
		m.sessions.On("Get", mock.Anything, "s1").Return(nil)
		m.gateway.On("PublishToOperators", mock.Anything, model.EventNewUserMessage, mock.MatchedBy(func(p model.RealtimePayload) bool {
			return p.MessageType == "file" && p.FileData != nil && p.FileData.FileID == 3 && p.Content == "📎 فایل: a.png (2 KB)"
		})).Return(true)

		got, err := svc.RouteVisitorFile(context.Background(), "s1", fh)
		require.NoError(t, err)
		assert.Equal(t, uint64(30), got.MessageID)
		require.NotNil(t, got.File)
		assert.Equal(t, "https://f/a.png", got.File.FileURL)
		m.assert(t)
	})

	t.Run("rows failing removes the object again", func(t *testing.T) {
		svc, m := newChatUnderTest(false)
		fh := uploadHeader(t, "a.png", []byte("x"))
		m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
		m.files.On("Store", mock.Anything, mock.Anything).Return(file, nil)
		m.messages.On("SaveFile", mock.Anything, file).Return(nil, errors.New("db down"))
		m.files.On("Discard", mock.Anything, file).Once()

		_, err := svc.RouteVisitorFile(context.Background(), "s1", fh)
		assert.Error(t, err)
		m.assert(t)
	})

	t.Run("validation errors pass through", func(t *testing.T) {
		svc, m := newChatUnderTest(false)
		fh := uploadHeader(t, "shell.php", []byte("<?php"))
		m.sessions.On("Ensure", mock.Anything, "s1").Return(true)
		m.files.On("Store", mock.Anything, mock.Anything).Return(nil, ErrUnsafeFile)

		_, err := svc.RouteVisitorFile(context.Background(), "s1", fh)
		assert.ErrorIs(t, err, ErrUnsafeFile)
		assert.True(t, IsValidationError(err))
		m.messages.AssertNotCalled(t, "SaveFile", mock.Anything, mock.Anything)
	})
}

func TestChatService_RouteOperatorFile(t *testing.T) {
	op := &model.Operator{ID: 7, Name: "Sara", Role: model.RoleChatOperator}
	opID := uint64(7)
	file := &model.File{SessionID: "s1", FileName: "r.pdf", FileSize: 10, MimeType: "application/pdf", SenderType: model.SenderAdmin, SenderID: &opID}

	svc, m := newChatUnderTest(false)
	fh := uploadHeader(t, "r.pdf", []byte("%PDF-1.4"))
	fd := file.Data()
	stored := storedMessage(40, model.SenderAdmin, "x")
	stored.File = &fd

	m.files.On("Store", mock.Anything, UploadInput{SessionID: "s1", SenderType: model.SenderAdmin, SenderID: &opID, Header: fh}).Return(file, nil)
	m.messages.On("SaveFile", mock.Anything, file).Return(stored, nil)
	m.sessions.On("UpdateStatus", mock.Anything, "s1", model.SessionStatusOpen).Return(true)
	m.gateway.On("PublishToSession", mock.Anything, "s1", model.EventNewMessage, mock.MatchedBy(func(p model.RealtimePayload) bool {
		return p.MessageType == "file" && p.SenderType == model.SenderAdmin
	})).Return(true)

	got, err := svc.RouteOperatorFile(context.Background(), "s1", fh, op)
	require.NoError(t, err)
	assert.True(t, got.Pushed)
	m.assert(t)
}

func TestChatService_History(t *testing.T) {
	svc, m := newChatUnderTest(false)
	cursor := model.HistoryCursor{AfterID: 5}
	m.sessions.On("Ensure", mock.Anything, "s1").Return(true).Once()
	m.messages.On("History", mock.Anything, "s1", cursor).Return([]model.Message{{ID: 6}}, nil).Twice()

	got, err := svc.VisitorHistory(context.Background(), "s1", cursor)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = svc.OperatorHistory(context.Background(), "s1", cursor)
	require.NoError(t, err)
	m.assert(t)

	_, err = svc.VisitorHistory(context.Background(), "", cursor)
	assert.ErrorIs(t, err, ErrMissingSessionID)
}
