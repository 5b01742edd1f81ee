package main

import (
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// BuildGinRouter 构建 HTTP 路由
// 所有业务接口挂载在 /v1 分组下,统一走跨域中间件
func BuildGinRouter(app *AppContext) *gin.Engine {
	router := gin.Default()
	router.Use(httpapi.CORSMiddleware())

	router.GET("/healthz", func(context *gin.Context) {
		context.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	registerAPIRoutes(router, app)
	return router
}

// registerAPIRoutes 注册业务路由
func registerAPIRoutes(router *gin.Engine, app *AppContext) {
	tokenHandler := httpapi.NewTokenHandler(app.Registry)
	notifyHandler := httpapi.NewNotifyHandler(app.Dispatcher)
	eventsHandler := httpapi.NewEventsHandler(app.ListEnqueuer, app.FeedbackEnqueuer, app.StatusStore)
	recordsHandler := httpapi.NewRecordsHandler(app.RecordStore, app.Config.Storage.Namespace)
	statusHandler := httpapi.NewStatusHandler(app.StatusStore)
	inboxHandler := httpapi.NewInboxHandler(app.InboxStore)

	apiGroup := router.Group("/v1")
	{
		// 设备 token 管理
		apiGroup.POST("/users/:id/tokens", tokenHandler.HandleRegister)
		apiGroup.GET("/users/:id/tokens", tokenHandler.HandleList)
		apiGroup.DELETE("/users/:id/tokens", tokenHandler.HandleRemove)
		apiGroup.DELETE("/users/:id/tokens/all", tokenHandler.HandleClear)

		// 手动触发一次分发
		apiGroup.POST("/notify", notifyHandler.HandleNotify)

		// 变更事件接入(异步)
		apiGroup.POST("/events/list-updated", eventsHandler.HandleListUpdated)
		apiGroup.POST("/events/feedback", eventsHandler.HandleFeedback)

		// 分发记录与消息状态
		apiGroup.GET("/records", recordsHandler.HandleQuery)
		apiGroup.GET("/status/:message_id", statusHandler.HandleGetStatus)

		// 通知信箱
		apiGroup.GET("/inbox", inboxHandler.HandleQuery)
		apiGroup.POST("/inbox/read", inboxHandler.HandleMarkRead)
	}
}
