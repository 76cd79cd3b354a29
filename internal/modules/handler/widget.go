package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/middleware"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/serializer"
	"github.com/wplc/livechat/internal/modules/service"
)

// WidgetHandler serves the visitor-facing widget API.
type WidgetHandler struct {
	chat     service.ChatService
	gateway  service.Gateway
	presence service.PresenceService
	cfg      *config.Config
}

func NewWidgetHandler(chat service.ChatService, gateway service.Gateway, presence service.PresenceService, cfg *config.Config) *WidgetHandler {
	return &WidgetHandler{
		chat:     chat,
		gateway:  gateway,
		presence: presence,
		cfg:      cfg,
	}
}

// visitorSession prefers an explicit session id from the request over the cookie.
func visitorSession(c *gin.Context, explicit string) string {
	if sid := strings.TrimSpace(explicit); sid != "" {
		return sid
	}
	return middleware.VisitorSessionID(c)
}

// RealtimePath is where the in-process websocket relay is mounted.
const RealtimePath = "/api/v1/realtime"

type BootstrapResp struct {
	SessionID       string `json:"session_id"`
	RealtimeEnabled bool   `json:"realtime_enabled"`
	RelayDriver     string `json:"relay_driver,omitempty"`
	RelayKey        string `json:"relay_key,omitempty"`
	RelayCluster    string `json:"relay_cluster,omitempty"`
	RelayHost       string `json:"relay_host,omitempty"`
	SessionChannel  string `json:"session_channel"`
	MaxUploadBytes  int64  `json:"max_upload_bytes"`
}

// Bootstrap godoc
//
//	@Summary		Bootstrap the widget
//	@Description	Issue or reuse the visitor session cookie and return realtime connection settings
//	@Tags			widget
//	@Produce		json
//	@Success		200	{object}	serializer.Response{data=handler.BootstrapResp}
//	@Router			/widget/bootstrap [get]
func (h *WidgetHandler) Bootstrap(c *gin.Context) {
	sid := middleware.VisitorSessionID(c)
	resp := BootstrapResp{
		SessionID:       sid,
		RealtimeEnabled: h.gateway.Enabled(),
		SessionChannel:  h.gateway.SessionChannel(sid),
		MaxUploadBytes:  h.cfg.Chat.MaxUploadBytes,
	}
	if resp.RealtimeEnabled {
		resp.RelayDriver = h.cfg.Relay.Driver
		resp.RelayKey = h.cfg.Relay.Key
		resp.RelayCluster = h.cfg.Relay.Cluster
		resp.RelayHost = h.cfg.Relay.Host
		if resp.RelayDriver == "websocket" && resp.RelayHost == "" {
			resp.RelayHost = RealtimePath
		}
	}
	c.JSON(http.StatusOK, serializer.Response{Data: resp})
}

type VisitorHistoryReq struct {
	SessionID string `form:"session_id" json:"session_id" example:"wplc_4f1c2e9a-5b7d-4c3e-9a8f-1b2c3d4e5f60"`
	Since     string `form:"since" json:"since" example:"42"`
}

type HistoryResp struct {
	SessionID string          `json:"session_id"`
	Messages  []model.Message `json:"messages"`
}

// History godoc
//
//	@Summary		Get conversation history
//	@Description	Return up to 100 messages in ascending order. since is a message id or a timestamp; without it the history starts at the first message.
//	@Tags			widget
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		handler.VisitorHistoryReq	true	"History request"
//	@Success		200		{object}	serializer.Response{data=handler.HistoryResp}
//	@Router			/widget/history [post]
func (h *WidgetHandler) History(c *gin.Context) {
	req := VisitorHistoryReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.BindErr(err))
		return
	}
	cursor, err := model.ParseCursor(req.Since)
	if err != nil {
		respondError(c, err)
		return
	}

	sid := visitorSession(c, req.SessionID)
	msgs, err := h.chat.VisitorHistory(c.Request.Context(), sid, cursor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: HistoryResp{SessionID: sid, Messages: msgs}})
}

type VisitorMessageReq struct {
	SessionID string `form:"session_id" json:"session_id" example:"wplc_4f1c2e9a-5b7d-4c3e-9a8f-1b2c3d4e5f60"`
	Message   string `form:"message" json:"message" binding:"required" example:"سلام"`
}

// SendMessage godoc
//
//	@Summary		Send a visitor message
//	@Description	Persist the message, advance the onboarding flow and notify operators
//	@Tags			widget
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		handler.VisitorMessageReq	true	"Message"
//	@Success		200		{object}	serializer.Response{data=service.RouteResult}
//	@Router			/widget/messages [post]
func (h *WidgetHandler) SendMessage(c *gin.Context) {
	req := VisitorMessageReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(service.ErrEmptyMessage.Error(), err))
		return
	}

	res, err := h.chat.RouteVisitorMessage(c.Request.Context(), visitorSession(c, req.SessionID), req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

// UploadFile godoc
//
//	@Summary		Upload a visitor file
//	@Description	Validate and store the file, persist a file message and notify operators
//	@Tags			widget
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"File to upload, 10 MB max"
//	@Param			session_id	formData	string	false	"Visitor session id, defaults to the cookie"
//	@Success		200			{object}	serializer.Response{data=service.RouteResult}
//	@Router			/widget/files [post]
func (h *WidgetHandler) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr(service.ErrNoFile.Error(), err))
		return
	}

	res, err := h.chat.RouteVisitorFile(c.Request.Context(), visitorSession(c, c.PostForm("session_id")), fh)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: res})
}

type RelayAuthReq struct {
	SocketID    string `form:"socket_id" json:"socket_id" binding:"required" example:"1234.5678"`
	ChannelName string `form:"channel_name" json:"channel_name" binding:"required" example:"private-session-wplc_4f1c2e9a"`
	SessionID   string `form:"session_id" json:"session_id"`
}

// RelayAuth godoc
//
//	@Summary		Authorize a realtime subscription
//	@Description	Sign a private channel subscription for the visitor's own session channel. The body is returned unwrapped because relay SDKs read it directly.
//	@Tags			widget
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			socket_id		formData	string	true	"Socket id"
//	@Param			channel_name	formData	string	true	"Channel name"
//	@Success		200				{object}	relay.AuthResponse
//	@Router			/widget/relay/auth [post]
func (h *WidgetHandler) RelayAuth(c *gin.Context) {
	req := RelayAuthReq{}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.BindErr(err))
		return
	}

	auth, err := h.gateway.AuthenticateChannel(c.Request.Context(), service.ChannelAuthInput{
		Channel:   req.ChannelName,
		SocketID:  req.SocketID,
		SessionID: visitorSession(c, req.SessionID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, auth)
}

type OperatorsOnlineResp struct {
	Online bool `json:"online"`
}

// OperatorsOnline godoc
//
//	@Summary		Check operator availability
//	@Description	Report whether any operator was active in the last few minutes
//	@Tags			widget
//	@Produce		json
//	@Success		200	{object}	serializer.Response{data=handler.OperatorsOnlineResp}
//	@Router			/widget/operators/online [get]
func (h *WidgetHandler) OperatorsOnline(c *gin.Context) {
	c.JSON(http.StatusOK, serializer.Response{Data: OperatorsOnlineResp{Online: h.presence.AnyOnline(c.Request.Context())}})
}
