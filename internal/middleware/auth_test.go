package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/service"
)

type mockOperatorService struct {
	mock.Mock
}

func (m *mockOperatorService) Create(ctx context.Context, in service.CreateOperatorInput) (*model.Operator, string, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*model.Operator), args.String(1), args.Error(2)
}

func (m *mockOperatorService) EnsureToken(ctx context.Context, in service.CreateOperatorInput) (*model.Operator, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *mockOperatorService) Authenticate(ctx context.Context, bearer string) (*model.Operator, error) {
	args := m.Called(ctx, bearer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *mockOperatorService) List(ctx context.Context) ([]model.Operator, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Operator), args.Error(1)
}

type mockPresence struct {
	mock.Mock
}

func (m *mockPresence) Touch(ctx context.Context, op *model.Operator) error {
	return m.Called(ctx, op).Error(0)
}

func (m *mockPresence) Online(ctx context.Context) ([]model.OnlineOperator, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.OnlineOperator), args.Error(1)
}

func (m *mockPresence) AnyOnline(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func TestOperatorAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	op := &model.Operator{ID: 7, Name: "Sara", Role: model.RoleChatOperator}

	tests := []struct {
		name           string
		header         string
		setup          func(*mockOperatorService, *mockPresence)
		expectedStatus int
	}{
		{
			name:   "valid token",
			header: "Bearer sk-op-good",
			setup: func(s *mockOperatorService, p *mockPresence) {
				s.On("Authenticate", mock.Anything, "sk-op-good").Return(op, nil)
				p.On("Touch", mock.Anything, op).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "presence failure does not block",
			header: "Bearer sk-op-good",
			setup: func(s *mockOperatorService, p *mockPresence) {
				s.On("Authenticate", mock.Anything, "sk-op-good").Return(op, nil)
				p.On("Touch", mock.Anything, op).Return(errors.New("redis down"))
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header",
			setup:          func(*mockOperatorService, *mockPresence) {},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "invalid token",
			header: "Bearer nope",
			setup: func(s *mockOperatorService, p *mockPresence) {
				s.On("Authenticate", mock.Anything, "nope").Return(nil, service.ErrInvalidToken)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:   "database failure",
			header: "Bearer sk-op-good",
			setup: func(s *mockOperatorService, p *mockPresence) {
				s.On("Authenticate", mock.Anything, "sk-op-good").Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOperatorService{}
			presence := &mockPresence{}
			tt.setup(svc, presence)

			r := gin.New()
			r.Use(OperatorAuth(svc, presence, zap.NewNop()))
			var seen *model.Operator
			r.GET("/me", func(c *gin.Context) {
				seen = CurrentOperator(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, op, seen)
			} else {
				assert.Nil(t, seen)
			}
			presence.AssertExpectations(t)
		})
	}
}
