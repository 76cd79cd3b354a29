package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/wplc/livechat/docs"
	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/middleware"
	"github.com/wplc/livechat/internal/modules/handler"
	"github.com/wplc/livechat/internal/modules/serializer"
	"github.com/wplc/livechat/internal/modules/service"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config          *config.Config
	Log             *zap.Logger
	OperatorService service.OperatorService
	PresenceService service.PresenceService
	WidgetHandler   *handler.WidgetHandler
	AdminHandler    *handler.AdminHandler

	// Realtime serves the websocket relay when it runs in-process.
	Realtime http.Handler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "pong"}) })

		if d.Realtime != nil {
			v1.GET("/realtime", gin.WrapH(d.Realtime))
		}

		widget := v1.Group("/widget")
		{
			widget.Use(middleware.VisitorSession(d.Config))

			widget.GET("/bootstrap", d.WidgetHandler.Bootstrap)
			widget.POST("/history", d.WidgetHandler.History)
			widget.POST("/messages", d.WidgetHandler.SendMessage)
			widget.POST("/files", d.WidgetHandler.UploadFile)
			widget.POST("/relay/auth", d.WidgetHandler.RelayAuth)
			widget.GET("/operators/online", d.WidgetHandler.OperatorsOnline)
		}

		admin := v1.Group("/admin")
		{
			admin.Use(middleware.OperatorAuth(d.OperatorService, d.PresenceService, d.Log))

			session := admin.Group("/sessions")
			{
				session.GET("", d.AdminHandler.ListSessions)
				session.GET("/:session_id", d.AdminHandler.GetSession)
				session.GET("/:session_id/messages", d.AdminHandler.GetMessages)
				session.POST("/:session_id/messages", d.AdminHandler.SendMessage)
				session.POST("/:session_id/files", d.AdminHandler.UploadFile)
				session.POST("/:session_id/close", d.AdminHandler.CloseSession)
				session.POST("/:session_id/flow/reset", d.AdminHandler.ResetFlow)
			}

			admin.POST("/relay/auth", d.AdminHandler.RelayAuth)
			admin.GET("/operators", d.AdminHandler.ListOperators)
			admin.GET("/operators/online", d.AdminHandler.OnlineOperators)
		}
	}
	return r
}
