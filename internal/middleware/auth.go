package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/serializer"
	"github.com/wplc/livechat/internal/modules/service"
)

// OperatorKey is the gin context key holding the authenticated *model.Operator.
const OperatorKey = "operator"

// OperatorAuth returns a middleware that authenticates operators using bearer tokens.
// On success the operator is stored under OperatorKey and their presence is refreshed.
func OperatorAuth(operators service.OperatorService, presence service.PresenceService, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ctx, authSpan := otel.Tracer("middleware").Start(ctx, "operator_auth",
			trace.WithAttributes(attribute.String("middleware", "operator_auth")))

		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			authSpan.SetAttributes(attribute.Bool("authenticated", false))
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
			return
		}

		op, err := operators.Authenticate(ctx, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			if errors.Is(err, service.ErrInvalidToken) {
				authSpan.SetAttributes(attribute.Bool("authenticated", false))
				authSpan.End()
				c.AbortWithStatusJSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
				return
			}
			authSpan.RecordError(err)
			authSpan.End()
			c.AbortWithStatusJSON(http.StatusInternalServerError, serializer.DBErr("", err))
			return
		}

		operatorID := strconv.FormatUint(op.ID, 10)
		rootSpan := trace.SpanFromContext(c.Request.Context())
		if rootSpan.SpanContext().IsValid() {
			rootSpan.SetAttributes(attribute.String("operator_id", operatorID))
		}
		authSpan.SetAttributes(
			attribute.String("operator_id", operatorID),
			attribute.Bool("authenticated", true),
		)
		authSpan.End()

		if presence != nil {
			if err := presence.Touch(ctx, op); err != nil {
				log.Warn("refresh operator presence", zap.Uint64("operator_id", op.ID), zap.Error(err))
			}
		}

		c.Set(OperatorKey, op)
		c.Next()
	}
}

// CurrentOperator returns the operator set by OperatorAuth, or nil.
func CurrentOperator(c *gin.Context) *model.Operator {
	v, ok := c.Get(OperatorKey)
	if !ok {
		return nil
	}
	op, _ := v.(*model.Operator)
	return op
}
