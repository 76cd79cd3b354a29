package service

import (
	"context"
	"fmt"

	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/repo"
	"go.uber.org/zap"
)

type MessageService interface {
	// Save persists a text or system message. The returned row carries the id and created_at.
	Save(ctx context.Context, sessionID string, senderType model.SenderType, body model.MessageBody, senderID *uint64) (*model.Message, error)
	// SaveFile persists the placeholder message for file together with the file row.
	SaveFile(ctx context.Context, file *model.File) (*model.Message, error)
	// History returns messages after cursor, ascending, with sender names and file data filled in.
	History(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error)
	Count(ctx context.Context, sessionID string) int64
	LatestPreview(ctx context.Context, sessionID string) string
}

type messageService struct {
	r         repo.MessageRepo
	sessions  repo.SessionRepo
	files     repo.FileRepo
	operators repo.OperatorRepo
	limit     int
	log       *zap.Logger
}

func NewMessageService(r repo.MessageRepo, sessions repo.SessionRepo, files repo.FileRepo, operators repo.OperatorRepo, limit int, log *zap.Logger) MessageService {
	if limit <= 0 || limit > repo.HistoryLimit {
		limit = repo.HistoryLimit
	}
	return &messageService{
		r:         r,
		sessions:  sessions,
		files:     files,
		operators: operators,
		limit:     limit,
		log:       log,
	}
}

func (s *messageService) Save(ctx context.Context, sessionID string, senderType model.SenderType, body model.MessageBody, senderID *uint64) (*model.Message, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	if body == nil || body.Content() == "" {
		return nil, ErrEmptyMessage
	}
	msg := &model.Message{
		SessionID:  sessionID,
		SenderType: senderType,
		SenderID:   senderID,
		Content:    body.Content(),
	}
	if err := s.r.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	if fb, ok := body.(model.FileBody); ok {
		fd := fb.File
		msg.File = &fd
	}
	return msg, nil
}

func (s *messageService) SaveFile(ctx context.Context, file *model.File) (*model.Message, error) {
	if file.SessionID == "" {
		return nil, ErrMissingSessionID
	}
	msg := &model.Message{
		SessionID:  file.SessionID,
		SenderType: file.SenderType,
		SenderID:   file.SenderID,
		Content:    model.FileBody{File: file.Data()}.Content(),
	}
	if err := s.r.SaveWithFile(ctx, msg, file); err != nil {
		return nil, fmt.Errorf("save file message: %w", err)
	}
	fd := file.Data()
	msg.File = &fd
	return msg, nil
}

func (s *messageService) History(ctx context.Context, sessionID string, cursor model.HistoryCursor) ([]model.Message, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	msgs, err := s.r.History(ctx, sessionID, cursor, s.limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if msgs == nil {
		return []model.Message{}, nil
	}
	s.decorate(ctx, sessionID, msgs)
	return msgs, nil
}

// decorate resolves sender names and attached files. Lookup failures only cost the decoration.
func (s *messageService) decorate(ctx context.Context, sessionID string, msgs []model.Message) {
	visitorName := model.DefaultVisitorName
	if ss, err := s.sessions.Get(ctx, sessionID); err == nil && ss.UserName != "" {
		visitorName = ss.UserName
	}

	ids := make([]uint64, 0, len(msgs))
	var opIDs []uint64
	for _, m := range msgs {
		ids = append(ids, m.ID)
		if m.SenderType == model.SenderAdmin && m.SenderID != nil {
			opIDs = append(opIDs, *m.SenderID)
		}
	}

	ops, err := s.operators.GetByIDs(ctx, opIDs)
	if err != nil {
		s.log.Warn("resolve operator names", zap.String("session_id", sessionID), zap.Error(err))
	}
	files, err := s.files.GetByMessageIDs(ctx, ids)
	if err != nil {
		s.log.Warn("resolve message files", zap.String("session_id", sessionID), zap.Error(err))
	}

	for i := range msgs {
		m := &msgs[i]
		switch m.SenderType {
		case model.SenderUser:
			m.SenderName = visitorName
		case model.SenderAdmin:
			var op *model.Operator
			if m.SenderID != nil {
				if o, ok := ops[*m.SenderID]; ok {
					op = &o
				}
			}
			m.SenderName = op.DisplayName()
		case model.SenderSystem:
			m.SenderName = model.SystemSenderName
		}
		if f, ok := files[m.ID]; ok {
			fd := f.Data()
			m.File = &fd
		}
	}
}

func (s *messageService) Count(ctx context.Context, sessionID string) int64 {
	n, err := s.r.Count(ctx, sessionID)
	if err != nil {
		s.log.Warn("count messages", zap.String("session_id", sessionID), zap.Error(err))
		return 0
	}
	return n
}

func (s *messageService) LatestPreview(ctx context.Context, sessionID string) string {
	p, err := s.r.LatestPreview(ctx, sessionID)
	if err != nil {
		s.log.Warn("latest preview", zap.String("session_id", sessionID), zap.Error(err))
		return model.EmptyPreview
	}
	return p
}
