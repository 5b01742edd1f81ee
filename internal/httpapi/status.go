package httpapi

import (
	"log"
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/status"

	"github.com/gin-gonic/gin"
)

// StatusHandler 消息状态查询处理器
type StatusHandler struct {
	store status.StatusStore
}

// NewStatusHandler 创建状态处理器实例
func NewStatusHandler(store status.StatusStore) *StatusHandler {
	return &StatusHandler{store: store}
}

// HandleGetStatus 查询单条消息的分发状态及其流转历史
// GET /v1/status/:message_id
func (handler *StatusHandler) HandleGetStatus(context *gin.Context) {
	messageID := context.Param("message_id")
	if messageID == "" {
		sendErrorResponse(context, http.StatusBadRequest, "message_id 不能为空")
		return
	}

	messageStatus, err := handler.store.GetStatus(context.Request.Context(), messageID)
	if err != nil {
		log.Printf("[StatusHandler] 查询状态失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "查询消息状态失败")
		return
	}

	if messageStatus == nil {
		sendErrorResponse(context, http.StatusNotFound, "消息状态不存在: "+messageID)
		return
	}

	// 历史查询失败只降级为空列表,不影响当前状态的返回
	statusHistory, err := handler.store.GetStatusHistory(context.Request.Context(), messageID)
	if err != nil {
		log.Printf("[StatusHandler] 查询状态历史失败: %v", err)
		statusHistory = nil
	}

	sendSuccessResponse(context, gin.H{
		"status":  messageStatus,
		"history": statusHistory,
	})
}
