package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/serializer"
	"github.com/wplc/livechat/internal/modules/service"
)

// respondError maps service errors to response envelopes. Validation errors keep their
// message so the widget can show it as is.
func respondError(c *gin.Context, err error) {
	switch {
	case service.IsValidationError(err), errors.Is(err, model.ErrInvalidCursor):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
	case errors.Is(err, service.ErrInvalidChannel), errors.Is(err, relay.ErrEmptySocketID):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	case errors.Is(err, service.ErrForbiddenChannel):
		c.JSON(http.StatusForbidden, serializer.ForbiddenErr(err.Error(), err))
	case errors.Is(err, relay.ErrNotInitialized), errors.Is(err, service.ErrFileStoreDisabled):
		c.JSON(http.StatusServiceUnavailable, serializer.Err(http.StatusServiceUnavailable, err.Error(), err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}
