package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wplc/livechat/internal/middleware"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/serializer"
	"github.com/wplc/livechat/internal/modules/service"
)

// AdminHandler serves the operator console API. Every route runs behind OperatorAuth.
type AdminHandler struct {
	chat      service.ChatService
	sessions  service.SessionService
	gateway   service.Gateway
	presence  service.PresenceService
	operators service.OperatorService
	listLimit int
}

type AdminHandlerDeps struct {
	Chat      service.ChatService
	Sessions  service.SessionService
	Gateway   service.Gateway
	Presence  service.PresenceService
	Operators service.OperatorService
	ListLimit int
}

func NewAdminHandler(d AdminHandlerDeps) *AdminHandler {
	return &AdminHandler{
		chat:      d.Chat,
		sessions:  d.Sessions,
		gateway:   d.Gateway,
		presence:  d.Presence,
		operators: d.Operators,
		listLimit: d.ListLimit,
	}
}

func operatorFrom(c *gin.Context) (*model.Operator, bool) {
	op := middleware.CurrentOperator(c)
	if op == nil {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr("Unauthorized"))
		return nil, false
	}
	return op, true
}

type ListSessionsReq struct {
	Status string `form:"status" json:"status" example:"new,open"`
	Limit  int    `form:"limit" json:"limit" binding:"omitempty,min=1,max=200" example:"50"`
}

type ListSessionsResp struct {
	Sessions []model.SessionSummary `json:"sessions"`
}

// ListSessions godoc
//
//	@Summary		List sessions
//	@Description	List sessions in the given statuses, most recently active first, with the latest message preview
//	@Tags			admin
//	@Produce		json
//	@Param			status	query	string	false	"Comma separated statuses, default new,open"	example(new,open)
//	@Param			limit	query	integer	false	"Max sessions, default 50, max 200"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.ListSessionsResp}
//	@Router			/admin/sessions [get]
func (h *AdminHandler) ListSessions(c *gin.Context) {
	req := ListSessionsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.BindErr(err))
		return
	}

	var statuses []string
	for _, s := range strings.Split(req.Status, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !model.ValidSessionStatus(s) {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid status", errors.New(s)))
			return
		}
		statuses = append(statuses, s)
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.listLimit
	}

	c.JSON(http.StatusOK, serializer.Response{Data: ListSessionsResp{
		Sessions: h.sessions.List(c.Request.Context(), statuses, limit),
	}})
}

// GetSession godoc
//
//	@Summary		Get session details
//	@Description	Return the session with its message count and uploaded files
//	@Tags			admin
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=model.SessionDetails}
//	@Router			/admin/sessions/{session_id} [get]
func (h *AdminHandler) GetSession(c *gin.Context) {
	d := h.sessions.GetDetails(c.Request.Context(), c.Param("session_id"))
	if d == nil {
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", nil))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: d})
}

// GetMessages godoc
//
//	@Summary		Get session messages
//	@Description	Return up to 100 messages in ascending order, optionally after a message id or timestamp
//	@Tags			admin
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"
//	@Param			since		query	string	false	"Message id or timestamp cursor"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.HistoryResp}
//	@Router			/admin/sessions/{session_id}/messages [get]
func (h *AdminHandler) GetMessages(c *gin.Context) {
	cursor, err := model.ParseCursor(c.Query("since"))
	if err != nil {
		respondError(c, err)
		return
	}
	sid := c.Param("session_id")
	msgs, err := h.chat.OperatorHistory(c.Request.Context(), sid, cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: HistoryResp{SessionID: sid, Messages: msgs}})
}

type OperatorMessageReq struct {
	Message string `form:"message" json:"message" binding:"required" example:"سلام، چطور می‌توانم کمک کنم؟"`
}

// SendMessage godoc
//
//	@Summary		Reply to a visitor
//	@Description	Persist the reply, reopen the session and push it to the visitor channel
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			session_id	path	string						true	"Session ID"
//	@Param			payload		body	handler.OperatorMessageReq	true	"Reply"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.RouteResult}
//	@Router			/admin/sessions/{session_id}/messages [post]
func (h *AdminHandler) SendMessage(c *gin.Context) {
	op, ok := operatorFrom(c)
	if !ok {
		return
	}
	req := OperatorMessageReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(service.ErrEmptyMessage.Error(), err))
		return
	}

	res, err := h.chat.RouteOperatorMessage(c.Request.Context(), c.Param("session_id"), req.Message, op)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

// UploadFile godoc
//
//	@Summary		Send a file to a visitor
//	@Tags			admin
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			session_id	path		string	true	"Session ID"
//	@Param			file		formData	file	true	"File to upload, 10 MB max"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=service.RouteResult}
//	@Router			/admin/sessions/{session_id}/files [post]
func (h *AdminHandler) UploadFile(c *gin.Context) {
	op, ok := operatorFrom(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(service.ErrNoFile.Error(), err))
		return
	}

	res, err := h.chat.RouteOperatorFile(c.Request.Context(), c.Param("session_id"), fh, op)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

type CloseSessionResp struct {
	Closed bool `json:"closed"`
	Pushed bool `json:"pusher_sent"`
}

// CloseSession godoc
//
//	@Summary		Close a session
//	@Description	Mark the session closed and send chat-closed to the visitor
//	@Tags			admin
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.CloseSessionResp}
//	@Router			/admin/sessions/{session_id}/close [post]
func (h *AdminHandler) CloseSession(c *gin.Context) {
	op, ok := operatorFrom(c)
	if !ok {
		return
	}
	pushed, err := h.chat.CloseSession(c.Request.Context(), c.Param("session_id"), op)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: CloseSessionResp{Closed: true, Pushed: pushed}})
}

// ResetFlow godoc
//
//	@Summary		Reset onboarding
//	@Description	Return the session's onboarding flow to its initial step
//	@Tags			admin
//	@Produce		json
//	@Param			session_id	path	string	true	"Session ID"
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response
//	@Router			/admin/sessions/{session_id}/flow/reset [post]
func (h *AdminHandler) ResetFlow(c *gin.Context) {
	if err := h.chat.ResetFlow(c.Request.Context(), c.Param("session_id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "ok"})
}

// RelayAuth godoc
//
//	@Summary		Authorize an operator subscription
//	@Description	Sign a private or presence channel subscription. The body is returned unwrapped because relay SDKs read it directly.
//	@Tags			admin
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			socket_id		formData	string	true	"Socket id"
//	@Param			channel_name	formData	string	true	"Channel name"
//	@Security		BearerAuth
//	@Success		200	{object}	relay.AuthResponse
//	@Router			/admin/relay/auth [post]
func (h *AdminHandler) RelayAuth(c *gin.Context) {
	op, ok := operatorFrom(c)
	if !ok {
		return
	}
	req := RelayAuthReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.BindErr(err))
		return
	}

	auth, err := h.gateway.AuthenticateChannel(c.Request.Context(), service.ChannelAuthInput{
		Channel:  req.ChannelName,
		SocketID: req.SocketID,
		Operator: op,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, auth)
}

type OnlineOperatorsResp struct {
	Operators []model.OnlineOperator `json:"operators"`
}

// OnlineOperators godoc
//
//	@Summary		List online operators
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.OnlineOperatorsResp}
//	@Router			/admin/operators/online [get]
func (h *AdminHandler) OnlineOperators(c *gin.Context) {
	ops, err := h.presence.Online(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "presence lookup failed", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: OnlineOperatorsResp{Operators: ops}})
}

// ListOperators godoc
//
//	@Summary		List operator accounts
//	@Description	Administrators only
//	@Tags			admin
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Operator}
//	@Router			/admin/operators [get]
func (h *AdminHandler) ListOperators(c *gin.Context) {
	op, ok := operatorFrom(c)
	if !ok {
		return
	}
	if op.Role != model.RoleAdministrator {
		c.JSON(http.StatusForbidden, serializer.ForbiddenErr("administrator role required", nil))
		return
	}
	ops, err := h.operators.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: ops})
}
