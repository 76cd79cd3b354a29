package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/repo"
	"github.com/wplc/livechat/internal/telemetry"
	"go.uber.org/zap"
)

// Prompts sent by the onboarding flow.
const (
	PromptAskPhone   = "👋 سلام! برای شروع گفتگو، لطفاً شماره تماس خود را وارد نمایید:"
	PromptPhoneError = "❌ شماره تماس وارد شده معتبر نیست. لطفاً یک شماره موبایل معتبر وارد کنید (مثال: 09123456789):"
	PromptAskName    = "✅ شماره شما ثبت شد. اکنون لطفاً نام کامل یا نام شرکت خود را وارد نمایید:"
	PromptNameError  = "❌ نام وارد شده کوتاه است. لطفاً نام کامل خود را وارد نمایید:"
	PromptCompleted  = "🎉 اطلاعات شما با موفقیت ثبت شد. همکاران ما به زودی با شما تماس خواهند گرفت."
)

const (
	minNameRunes    = 2
	maxFlowAttempts = 3
)

var mobilePattern = regexp.MustCompile(`^09[0-9]{9}$`)

type FlowResult struct {
	Step           model.FlowStep `json:"step"`
	SystemResponse string         `json:"system_response,omitempty"`
}

// FlowEngine walks a visitor through initial -> ask_phone -> ask_name -> completed, one step
// per visitor message.
type FlowEngine interface {
	Process(ctx context.Context, sessionID, text string) (*FlowResult, error)
	Reset(ctx context.Context, sessionID string) error
	State(ctx context.Context, sessionID string) (*model.FlowState, error)
}

type flowEngine struct {
	store    repo.FlowStateStore
	sessions SessionService
	log      *zap.Logger
}

func NewFlowEngine(store repo.FlowStateStore, sessions SessionService, log *zap.Logger) FlowEngine {
	return &flowEngine{store: store, sessions: sessions, log: log}
}

// NormalizePhone strips everything but digits and returns the 11-digit 09... form.
func NormalizePhone(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) < 10 || len(digits) > 11 {
		return "", false
	}
	if !strings.HasPrefix(digits, "09") && !strings.HasPrefix(digits, "9") {
		return "", false
	}
	if len(digits) == 10 && digits[0] == '9' {
		digits = "0" + digits
	}
	if !mobilePattern.MatchString(digits) {
		return "", false
	}
	return digits, true
}

// transition computes the next state for text without touching any store.
func transition(cur model.FlowState, text string) (model.FlowState, string) {
	next := cur
	switch cur.Step {
	case model.FlowAskPhone:
		phone, ok := NormalizePhone(text)
		if !ok {
			return cur, PromptPhoneError
		}
		next.Step = model.FlowAskName
		next.TempData.Phone = phone
		return next, PromptAskName
	case model.FlowAskName:
		name := strings.TrimSpace(text)
		if utf8.RuneCountInString(name) < minNameRunes {
			return cur, PromptNameError
		}
		next.Step = model.FlowCompleted
		next.TempData = model.FlowTempData{}
		return next, PromptCompleted
	case model.FlowCompleted:
		return cur, ""
	default:
		next.Step = model.FlowAskPhone
		next.TempData = model.FlowTempData{}
		return next, PromptAskPhone
	}
}

// restore reports whether a session with no stored flow state already finished onboarding,
// which happens when the state expired or was evicted.
func (e *flowEngine) restore(ctx context.Context, cur *model.FlowState) bool {
	if cur.Persisted || cur.Step != model.FlowInitial {
		return false
	}
	s := e.sessions.Get(ctx, cur.SessionID)
	return s != nil && s.UserName != "" && s.PhoneNumber != ""
}

func sameFlow(a, b model.FlowState) bool {
	return a.Step == b.Step && a.TempData == b.TempData
}

// Process always writes the state back, so the store's expiry follows the visitor's activity.
func (e *flowEngine) Process(ctx context.Context, sessionID, text string) (*FlowResult, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	for attempt := 0; attempt < maxFlowAttempts; attempt++ {
		cur, err := e.store.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}

		var (
			next  model.FlowState
			reply string
		)
		restored := e.restore(ctx, cur)
		if restored {
			next = model.FlowState{SessionID: sessionID, Step: model.FlowCompleted}
		} else {
			next, reply = transition(*cur, text)
		}

		// Side effects are idempotent, so a lost race below only repeats them.
		if next.Step != cur.Step && !restored {
			switch next.Step {
			case model.FlowAskPhone:
				e.sessions.Ensure(ctx, sessionID)
			case model.FlowCompleted:
				if !e.sessions.UpdateUserInfo(ctx, sessionID, strings.TrimSpace(text), cur.TempData.Phone) {
					return nil, ErrSessionUpdate
				}
			}
		}

		observed := *cur
		_, err = e.store.Update(ctx, sessionID, func(st *model.FlowState) error {
			if !sameFlow(*st, observed) {
				return ErrFlowStateChanged
			}
			*st = next
			return nil
		})
		if errors.Is(err, ErrFlowStateChanged) {
			e.log.Debug("flow state moved, retrying", zap.String("session_id", sessionID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		switch {
		case restored:
			e.log.Info("flow state restored from session contact details", zap.String("session_id", sessionID))
		case next.Step != cur.Step:
			telemetry.RecordFlowTransition(ctx, cur.Step, next.Step)
			e.log.Info("flow advanced",
				zap.String("session_id", sessionID),
				zap.String("from", cur.Step),
				zap.String("to", next.Step))
		}
		return &FlowResult{Step: next.Step, SystemResponse: reply}, nil
	}
	return nil, ErrFlowStateChanged
}

func (e *flowEngine) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSessionID
	}
	if err := e.store.Reset(ctx, sessionID); err != nil {
		return err
	}
	e.log.Info("flow reset", zap.String("session_id", sessionID))
	return nil
}

func (e *flowEngine) State(ctx context.Context, sessionID string) (*model.FlowState, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}
	return e.store.Get(ctx, sessionID)
}
