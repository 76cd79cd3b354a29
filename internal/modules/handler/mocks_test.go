package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/service"
)

// MockChatService is a mock implementation of service.ChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) RouteVisitorMessage(ctx context.Context, sessionID, text string) (*service.RouteResult, error) {
	args := m.Called(ctx, sessionID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RouteResult), args.Error(1)
}

func (m *MockChatService) RouteOperatorMessage(ctx context.Context, sessionID, text string, op *model.Operator) (*service.RouteResult, error) {
	args := m.Called(ctx, sessionID, text, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RouteResult), args.Error(1)
}

func (m *MockChatService) RouteVisitorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader) (*service.RouteResult, error) {
	args := m.Called(ctx, sessionID, fh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RouteResult), args.Error(1)
}

func (m *MockChatService) RouteOperatorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader, op *model.Operator) (*service.RouteResult, error) {
	args := m.Called(ctx, sessionID, fh, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RouteResult), args.Error(1)
}

func (m *MockChatService) CloseSession(ctx context.Context, sessionID string, op *model.Operator) (bool, error) {
	args := m.Called(ctx, sessionID, op)
	return args.Bool(0), args.Error(1)
}

func (m *MockChatService) VisitorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockChatService) OperatorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockChatService) ResetFlow(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

// MockSessionService is a mock implementation of service.SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Ensure(ctx context.Context, sessionID string) bool {
	return m.Called(ctx, sessionID).Bool(0)
}

func (m *MockSessionService) Exists(ctx context.Context, sessionID string) bool {
	return m.Called(ctx, sessionID).Bool(0)
}

func (m *MockSessionService) Get(ctx context.Context, sessionID string) *model.Session {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.Session)
}

func (m *MockSessionService) GetDetails(ctx context.Context, sessionID string) *model.SessionDetails {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.SessionDetails)
}

func (m *MockSessionService) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) bool {
	return m.Called(ctx, sessionID, status).Bool(0)
}

func (m *MockSessionService) UpdateUserInfo(ctx context.Context, sessionID, name, phone string) bool {
	return m.Called(ctx, sessionID, name, phone).Bool(0)
}

func (m *MockSessionService) List(ctx context.Context, statuses []string, limit int) []model.SessionSummary {
	return m.Called(ctx, statuses, limit).Get(0).([]model.SessionSummary)
}

// MockGateway is a mock implementation of service.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PublishToSession(ctx context.Context, sessionID, event string, payload any) bool {
	return m.Called(ctx, sessionID, event, payload).Bool(0)
}

func (m *MockGateway) PublishToOperators(ctx context.Context, event string, payload any) bool {
	return m.Called(ctx, event, payload).Bool(0)
}

func (m *MockGateway) AuthenticateChannel(ctx context.Context, in service.ChannelAuthInput) (*relay.AuthResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.AuthResponse), args.Error(1)
}

func (m *MockGateway) SessionChannel(sessionID string) string {
	return "private-session-" + sessionID
}

func (m *MockGateway) OperatorChannel() string { return "private-admin-new-sessions" }

func (m *MockGateway) Enabled() bool {
	return m.Called().Bool(0)
}

// MockPresenceService is a mock implementation of service.PresenceService
type MockPresenceService struct {
	mock.Mock
}

func (m *MockPresenceService) Touch(ctx context.Context, op *model.Operator) error {
	return m.Called(ctx, op).Error(0)
}

func (m *MockPresenceService) Online(ctx context.Context) ([]model.OnlineOperator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OnlineOperator), args.Error(1)
}

func (m *MockPresenceService) AnyOnline(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

// MockOperatorService is a mock implementation of service.OperatorService
type MockOperatorService struct {
	mock.Mock
}

func (m *MockOperatorService) Create(ctx context.Context, in service.CreateOperatorInput) (*model.Operator, string, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Operator), args.String(1), args.Error(2)
}

func (m *MockOperatorService) EnsureToken(ctx context.Context, in service.CreateOperatorInput) (*model.Operator, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorService) Authenticate(ctx context.Context, bearer string) (*model.Operator, error) {
	args := m.Called(ctx, bearer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorService) List(ctx context.Context) ([]model.Operator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Operator), args.Error(1)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}

func multipartRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
