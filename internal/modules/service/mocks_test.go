package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
)

// MockSessionRepo is a mock implementation of repo.SessionRepo
type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) Create(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepo) Exists(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSessionRepo) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Session), args.Error(1)
}

func (m *MockSessionRepo) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) error {
	args := m.Called(ctx, sessionID, status)
	return args.Error(0)
}

func (m *MockSessionRepo) UpdateUserInfo(ctx context.Context, sessionID, name, phone string) error {
	args := m.Called(ctx, sessionID, name, phone)
	return args.Error(0)
}

func (m *MockSessionRepo) List(ctx context.Context, statuses []string, limit int) ([]model.SessionSummary, error) {
	args := m.Called(ctx, statuses, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SessionSummary), args.Error(1)
}

// MockMessageRepo is a mock implementation of repo.MessageRepo
type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Save(ctx context.Context, msg *model.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) SaveWithFile(ctx context.Context, msg *model.Message, file *model.File) error {
	args := m.Called(ctx, msg, file)
	return args.Error(0)
}

func (m *MockMessageRepo) History(ctx context.Context, sessionID string, cursor model.HistoryCursor, limit int) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageRepo) Count(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepo) LatestPreview(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

// MockFileRepo is a mock implementation of repo.FileRepo
type MockFileRepo struct {
	mock.Mock
}

func (m *MockFileRepo) GetByID(ctx context.Context, fileID uint64) (*model.File, error) {
	args := m.Called(ctx, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.File, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.File), args.Error(1)
}

func (m *MockFileRepo) GetByMessageIDs(ctx context.Context, messageIDs []uint64) (map[uint64]model.File, error) {
	args := m.Called(ctx, messageIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint64]model.File), args.Error(1)
}

// MockOperatorRepo is a mock implementation of repo.OperatorRepo
type MockOperatorRepo struct {
	mock.Mock
}

func (m *MockOperatorRepo) Create(ctx context.Context, op *model.Operator) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockOperatorRepo) GetByID(ctx context.Context, id uint64) (*model.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorRepo) GetByEmail(ctx context.Context, email string) (*model.Operator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorRepo) GetBySecretHMAC(ctx context.Context, lookup string) (*model.Operator, error) {
	args := m.Called(ctx, lookup)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockOperatorRepo) GetByIDs(ctx context.Context, ids []uint64) (map[uint64]model.Operator, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uint64]model.Operator), args.Error(1)
}

func (m *MockOperatorRepo) UpdateSecret(ctx context.Context, id uint64, lookup, phc string) error {
	args := m.Called(ctx, id, lookup, phc)
	return args.Error(0)
}

func (m *MockOperatorRepo) List(ctx context.Context) ([]model.Operator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Operator), args.Error(1)
}

// MockSessionService is a mock implementation of SessionService
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

// MockMessageService is a mock implementation of MessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Save(ctx context.Context, sessionID string, senderType model.SenderType, body model.MessageBody, senderID *uint64) (*model.Message, error) {
	args := m.Called(ctx, sessionID, senderType, body, senderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) SaveFile(ctx context.Context, file *model.File) (*model.Message, error) {
	args := m.Called(ctx, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) History(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	args := m.Called(ctx, sessionID, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *MockMessageService) Count(ctx context.Context, sessionID string) int64 {
	return m.Called(ctx, sessionID).Get(0).(int64)
}

func (m *MockMessageService) LatestPreview(ctx context.Context, sessionID string) string {
	return m.Called(ctx, sessionID).String(0)
}

// MockFlowEngine is a mock implementation of FlowEngine
type MockFlowEngine struct {
	mock.Mock
}

func (m *MockFlowEngine) Process(ctx context.Context, sessionID, text string) (*FlowResult, error) {
	args := m.Called(ctx, sessionID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FlowResult), args.Error(1)
}

func (m *MockFlowEngine) Reset(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

func (m *MockFlowEngine) State(ctx context.Context, sessionID string) (*model.FlowState, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.FlowState), args.Error(1)
}

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PublishToSession(ctx context.Context, sessionID, event string, payload any) bool {
	return m.Called(ctx, sessionID, event, payload).Bool(0)
}

func (m *MockGateway) PublishToOperators(ctx context.Context, event string, payload any) bool {
	return m.Called(ctx, event, payload).Bool(0)
}

func (m *MockGateway) AuthenticateChannel(ctx context.Context, in ChannelAuthInput) (*relay.AuthResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.AuthResponse), args.Error(1)
}

func (m *MockGateway) SessionChannel(sessionID string) string {
	return m.Called(sessionID).String(0)
}

func (m *MockGateway) OperatorChannel() string {
	return m.Called().String(0)
}

func (m *MockGateway) Enabled() bool {
	return m.Called().Bool(0)
}

// MockFileService is a mock implementation of FileService
type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Store(ctx context.Context, in UploadInput) (*model.File, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.File), args.Error(1)
}

func (m *MockFileService) Discard(ctx context.Context, file *model.File) {
	m.Called(ctx, file)
}

// MockRelay is a mock implementation of relay.Relay
type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Publish(ctx context.Context, channel, event string, payload any) error {
	return m.Called(ctx, channel, event, payload).Error(0)
}

func (m *MockRelay) Authenticate(channel, socketID string, member *relay.Member) (*relay.AuthResponse, error) {
	args := m.Called(channel, socketID, member)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*relay.AuthResponse), args.Error(1)
}

func (m *MockRelay) Initialized() bool {
	return m.Called().Bool(0)
}

func (m *MockRelay) Close() error {
	return m.Called().Error(0)
}

// MockMirror is a mock implementation of MessageMirror
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) PublishJSON(ctx context.Context, exchange, routingKey string, body any) error {
	return m.Called(ctx, exchange, routingKey, body).Error(0)
}

// memoryObjectStore keeps uploads in memory.
type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: map[string][]byte{}}
}

func (s *memoryObjectStore) Upload(ctx context.Context, key, contentType, downloadName string, body io.Reader) (string, error) {
	if s.failPut != nil {
		return "", s.failPut
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return "https://files.example.com/" + key, nil
}

func (s *memoryObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// recordedEvent is one publish seen by recordingRelay.
type recordedEvent struct {
	Channel string
	Event   string
	Payload any
}

// recordingRelay is an initialized relay that keeps every publish.
type recordingRelay struct {
	relay.Signer
	mu     sync.Mutex
	events []recordedEvent
	fail   error
}

func (r *recordingRelay) Publish(ctx context.Context, channel, event string, payload any) error {
	if r.fail != nil {
		return r.fail
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Channel: channel, Event: event, Payload: payload})
	return nil
}

func (r *recordingRelay) Authenticate(channel, socketID string, member *relay.Member) (*relay.AuthResponse, error) {
	return r.Sign(channel, socketID, member)
}

func (r *recordingRelay) Initialized() bool { return true }
func (r *recordingRelay) Close() error      { return nil }

func (r *recordingRelay) on(channel string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// uploadHeader builds a multipart file header the way gin hands it to handlers.
func uploadHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}
