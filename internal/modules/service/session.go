package service

import (
	"context"
	"errors"

	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/repo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionService is the session store seen by the rest of the app. Reads never fail: they
// degrade to empty or nil results. Writes report success as a bool and log the cause.
type SessionService interface {
	// Ensure creates the session when missing. It returns false only on store failure.
	Ensure(ctx context.Context, sessionID string) bool
	Exists(ctx context.Context, sessionID string) bool
	Get(ctx context.Context, sessionID string) *model.Session
	GetDetails(ctx context.Context, sessionID string) *model.SessionDetails
	UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) bool
	UpdateUserInfo(ctx context.Context, sessionID, name, phone string) bool
	List(ctx context.Context, statuses []string, limit int) []model.SessionSummary
}

type sessionService struct {
	r        repo.SessionRepo
	messages repo.MessageRepo
	files    repo.FileRepo
	log      *zap.Logger
}

func NewSessionService(r repo.SessionRepo, messages repo.MessageRepo, files repo.FileRepo, log *zap.Logger) SessionService {
	return &sessionService{
		r:        r,
		messages: messages,
		files:    files,
		log:      log,
	}
}

func (s *sessionService) Ensure(ctx context.Context, sessionID string) bool {
	created, err := s.r.Create(ctx, sessionID)
	if err != nil {
		s.log.Error("create session", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	if created {
		s.log.Info("session created", zap.String("session_id", sessionID))
	}
	return true
}

func (s *sessionService) Exists(ctx context.Context, sessionID string) bool {
	ok, err := s.r.Exists(ctx, sessionID)
	if err != nil {
		s.log.Warn("check session", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return ok
}

func (s *sessionService) Get(ctx context.Context, sessionID string) *model.Session {
	ss, err := s.r.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, repo.ErrSessionNotFound) {
			s.log.Warn("get session", zap.String("session_id", sessionID), zap.Error(err))
		}
		return nil
	}
	return ss
}

func (s *sessionService) GetDetails(ctx context.Context, sessionID string) *model.SessionDetails {
	ss := s.Get(ctx, sessionID)
	if ss == nil {
		return nil
	}
	out := &model.SessionDetails{Session: *ss, Files: []model.File{}}

	// Both lookups degrade independently, so neither goroutine reports an error.
	var g errgroup.Group
	g.Go(func() error {
		n, err := s.messages.Count(ctx, sessionID)
		if err != nil {
			s.log.Warn("count messages", zap.String("session_id", sessionID), zap.Error(err))
			return nil
		}
		out.MessageCount = n
		return nil
	})
	g.Go(func() error {
		files, err := s.files.ListBySession(ctx, sessionID, repo.DefaultSessionFilesLimit)
		if err != nil {
			s.log.Warn("list session files", zap.String("session_id", sessionID), zap.Error(err))
			return nil
		}
		if files != nil {
			out.Files = files
		}
		return nil
	})
	_ = g.Wait()
	return out
}

func (s *sessionService) UpdateStatus(ctx context.Context, sessionID string, status model.SessionStatus) bool {
	if err := s.r.UpdateStatus(ctx, sessionID, status); err != nil {
		s.log.Error("update session status",
			zap.String("session_id", sessionID),
			zap.String("status", status),
			zap.Error(err))
		return false
	}
	return true
}

func (s *sessionService) UpdateUserInfo(ctx context.Context, sessionID, name, phone string) bool {
	if err := s.r.UpdateUserInfo(ctx, sessionID, name, phone); err != nil {
		s.log.Error("update session user info", zap.String("session_id", sessionID), zap.Error(err))
		return false
	}
	return true
}

func (s *sessionService) List(ctx context.Context, statuses []string, limit int) []model.SessionSummary {
	out, err := s.r.List(ctx, statuses, limit)
	if err != nil {
		s.log.Error("list sessions", zap.Strings("statuses", statuses), zap.Error(err))
		return []model.SessionSummary{}
	}
	return out
}
