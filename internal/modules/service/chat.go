package service

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/telemetry"
	"go.uber.org/zap"
)

// MessageMirror republishes persisted messages for asynchronous consumers. *mq.Publisher
// satisfies it.
type MessageMirror interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, body any) error
}

// RouteResult is what a sender learns about a routed message. MessageID is the dedup key
// clients reconcile their optimistic echo with.
type RouteResult struct {
	MessageID       uint64          `json:"message_id"`
	MessageSaved    bool            `json:"message_saved"`
	Pushed          bool            `json:"pusher_sent"`
	CreatedAt       string          `json:"created_at"`
	FlowStep        model.FlowStep  `json:"flow_step,omitempty"`
	SystemResponse  string          `json:"system_response,omitempty"`
	SystemMessageID uint64          `json:"system_message_id,omitempty"`
	SystemCreatedAt string          `json:"system_created_at,omitempty"`
	File            *model.FileData `json:"file_data,omitempty"`
}

// ChatService is the message router: every visitor or operator action goes through it.
type ChatService interface {
	RouteVisitorMessage(ctx context.Context, sessionID, text string) (*RouteResult, error)
	RouteOperatorMessage(ctx context.Context, sessionID, text string, op *model.Operator) (*RouteResult, error)
	RouteVisitorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader) (*RouteResult, error)
	RouteOperatorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader, op *model.Operator) (*RouteResult, error)
	// CloseSession marks the session closed and tells the visitor. It reports whether the event went out.
	CloseSession(ctx context.Context, sessionID string, op *model.Operator) (bool, error)
	// VisitorHistory creates the session lazily and returns its history after cursor.
	VisitorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error)
	OperatorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error)
	ResetFlow(ctx context.Context, sessionID string) error
}

type chatService struct {
	sessions SessionService
	messages MessageService
	flow     FlowEngine
	gateway  Gateway
	files    FileService
	mirror   MessageMirror
	cfg      *config.Config
	log      *zap.Logger
	now      func() time.Time
}

type ChatServiceDeps struct {
	Sessions SessionService
	Messages MessageService
	Flow     FlowEngine
	Gateway  Gateway
	Files    FileService
	// Mirror is optional.
	Mirror MessageMirror
	Config *config.Config
	Log    *zap.Logger
}

func NewChatService(d ChatServiceDeps) ChatService {
	return &chatService{
		sessions: d.Sessions,
		messages: d.Messages,
		flow:     d.Flow,
		gateway:  d.Gateway,
		files:    d.Files,
		mirror:   d.Mirror,
		cfg:      d.Config,
		log:      d.Log,
		now:      time.Now,
	}
}

func normalizeText(sessionID, text string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", ErrMissingSessionID
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	return text, nil
}

func (s *chatService) visitorName(ctx context.Context, sessionID string) string {
	if ss := s.sessions.Get(ctx, sessionID); ss != nil && ss.UserName != "" {
		return ss.UserName
	}
	return model.DefaultVisitorName
}

func (s *chatService) mirrorMessage(ctx context.Context, msg *model.Message) {
	if s.mirror == nil || s.cfg == nil || !s.cfg.RabbitMQ.Enabled {
		return
	}
	ev := model.MessageEvent{
		MessageID:  msg.ID,
		SessionID:  msg.SessionID,
		SenderType: msg.SenderType,
		SenderID:   msg.SenderID,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
	if msg.File != nil {
		ev.FileID = msg.File.FileID
	}
	if err := s.mirror.PublishJSON(ctx, s.cfg.RabbitMQ.ExchangeName.ChatMessage, s.cfg.RabbitMQ.RoutingKey.ChatMessageInsert, ev); err != nil {
		s.log.Warn("mirror message", zap.Uint64("message_id", msg.ID), zap.Error(err))
	}
}

func visitorPayload(msg *model.Message, userName string) model.RealtimePayload {
	p := model.RealtimePayload{
		SessionID:  msg.SessionID,
		SenderType: model.SenderUser,
		SenderID:   &model.SenderRef{SessionID: msg.SessionID},
		MessageID:  msg.ID,
		Content:    msg.Content,
		UserName:   userName,
		SenderName: userName,
		CreatedAt:  model.FormatWireTime(msg.CreatedAt),
	}
	if msg.File != nil {
		p.MessageType = "file"
		p.FileData = msg.File
	}
	return p
}

func operatorPayload(msg *model.Message, op *model.Operator) model.RealtimePayload {
	p := model.RealtimePayload{
		SessionID:    msg.SessionID,
		SenderType:   model.SenderAdmin,
		SenderID:     &model.SenderRef{OperatorID: op.ID},
		MessageID:    msg.ID,
		Content:      msg.Content,
		SenderName:   op.DisplayName(),
		OperatorRole: op.Role,
		CreatedAt:    model.FormatWireTime(msg.CreatedAt),
	}
	if msg.File != nil {
		p.MessageType = "file"
		p.FileData = msg.File
	}
	return p
}

func (s *chatService) RouteVisitorMessage(ctx context.Context, sessionID, text string) (*RouteResult, error) {
	text, err := normalizeText(sessionID, text)
	if err != nil {
		return nil, err
	}

	s.sessions.Ensure(ctx, sessionID)

	msg, err := s.messages.Save(ctx, sessionID, model.SenderUser, model.TextBody{Text: text}, nil)
	if err != nil {
		telemetry.RecordRouteError(ctx, model.SenderUser)
		return nil, err
	}
	res := &RouteResult{
		MessageID:    msg.ID,
		MessageSaved: true,
		CreatedAt:    model.FormatWireTime(msg.CreatedAt),
	}

	flowRes, err := s.flow.Process(ctx, sessionID, text)
	if err != nil {
		s.log.Error("flow step failed", zap.String("session_id", sessionID), zap.Error(err))
	} else {
		res.FlowStep = flowRes.Step
		res.SystemResponse = flowRes.SystemResponse
	}

	res.Pushed = s.gateway.PublishToOperators(ctx, model.EventNewUserMessage, visitorPayload(msg, s.visitorName(ctx, sessionID)))

	if res.SystemResponse != "" {
		sys, err := s.messages.Save(ctx, sessionID, model.SenderSystem, model.TextBody{Text: res.SystemResponse}, nil)
		if err != nil {
			s.log.Error("save system response", zap.String("session_id", sessionID), zap.Error(err))
		} else {
			res.SystemMessageID = sys.ID
			res.SystemCreatedAt = model.FormatWireTime(sys.CreatedAt)
			s.mirrorMessage(ctx, sys)
		}
	}

	s.mirrorMessage(ctx, msg)
	telemetry.RecordMessageRouted(ctx, model.SenderUser, "text")
	return res, nil
}

func (s *chatService) RouteOperatorMessage(ctx context.Context, sessionID, text string, op *model.Operator) (*RouteResult, error) {
	text, err := normalizeText(sessionID, text)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ErrUnauthorized
	}

	opID := op.ID
	msg, err := s.messages.Save(ctx, sessionID, model.SenderAdmin, model.TextBody{Text: text}, &opID)
	if err != nil {
		telemetry.RecordRouteError(ctx, model.SenderAdmin)
		return nil, err
	}
	s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusOpen)

	res := &RouteResult{
		MessageID:    msg.ID,
		MessageSaved: true,
		CreatedAt:    model.FormatWireTime(msg.CreatedAt),
	}
	res.Pushed = s.gateway.PublishToSession(ctx, sessionID, model.EventNewMessage, operatorPayload(msg, op))

	s.mirrorMessage(ctx, msg)
	telemetry.RecordMessageRouted(ctx, model.SenderAdmin, "text")
	return res, nil
}

// storeFile uploads fh and persists the file message. The uploaded object is removed again
// when the rows cannot be written.
func (s *chatService) storeFile(ctx context.Context, in UploadInput) (*model.Message, error) {
	file, err := s.files.Store(ctx, in)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.SaveFile(ctx, file)
	if err != nil {
		telemetry.RecordRouteError(ctx, in.SenderType)
		s.files.Discard(ctx, file)
		return nil, err
	}
	return msg, nil
}

func (s *chatService) RouteVisitorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader) (*RouteResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	s.sessions.Ensure(ctx, sessionID)

	msg, err := s.storeFile(ctx, UploadInput{SessionID: sessionID, SenderType: model.SenderUser, Header: fh})
	if err != nil {
		return nil, err
	}
	res := &RouteResult{
		MessageID:    msg.ID,
		MessageSaved: true,
		CreatedAt:    model.FormatWireTime(msg.CreatedAt),
		File:         msg.File,
	}
	res.Pushed = s.gateway.PublishToOperators(ctx, model.EventNewUserMessage, visitorPayload(msg, s.visitorName(ctx, sessionID)))

	s.mirrorMessage(ctx, msg)
	telemetry.RecordMessageRouted(ctx, model.SenderUser, "file")
	return res, nil
}

func (s *chatService) RouteOperatorFile(ctx context.Context, sessionID string, fh *multipart.FileHeader, op *model.Operator) (*RouteResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	if op == nil {
		return nil, ErrUnauthorized
	}

	opID := op.ID
	msg, err := s.storeFile(ctx, UploadInput{SessionID: sessionID, SenderType: model.SenderAdmin, SenderID: &opID, Header: fh})
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusOpen)

	res := &RouteResult{
		MessageID:    msg.ID,
		MessageSaved: true,
		CreatedAt:    model.FormatWireTime(msg.CreatedAt),
		File:         msg.File,
	}
	res.Pushed = s.gateway.PublishToSession(ctx, sessionID, model.EventNewMessage, operatorPayload(msg, op))

	s.mirrorMessage(ctx, msg)
	telemetry.RecordMessageRouted(ctx, model.SenderAdmin, "file")
	return res, nil
}

func (s *chatService) CloseSession(ctx context.Context, sessionID string, op *model.Operator) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, ErrMissingSessionID
	}
	if !s.sessions.Exists(ctx, sessionID) {
		return false, ErrSessionNotFound
	}
	if !s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusClosed) {
		return false, ErrSessionUpdate
	}

	payload := model.ClosePayload{
		SessionID:    sessionID,
		ClosedBy:     op.DisplayName(),
		ClosedByRole: model.RoleChatOperator,
		Timestamp:    model.FormatWireTime(s.now()),
	}
	if op != nil {
		payload.ClosedByRole = op.Role
	}
	s.log.Info("session closed", zap.String("session_id", sessionID), zap.String("closed_by", payload.ClosedBy))
	return s.gateway.PublishToSession(ctx, sessionID, model.EventChatClosed, payload), nil
}

func (s *chatService) VisitorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	s.sessions.Ensure(ctx, sessionID)
	return s.messages.History(ctx, sessionID, cursor)
}

func (s *chatService) OperatorHistory(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrMissingSessionID
	}
	return s.messages.History(ctx, sessionID, cursor)
}

func (s *chatService) ResetFlow(ctx context.Context, sessionID string) error {
	return s.flow.Reset(ctx, sessionID)
}
