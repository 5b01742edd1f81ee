package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/gin-gonic/gin"
)

// ==================== 服务接口 ====================

// Notifier 通知分发能力
// 解耦 HTTP 层与分发器实现,便于测试替换
type Notifier interface {
	Dispatch(ctx context.Context, req push.NotificationRequest) (*push.DispatchResult, error)
}

// ==================== 数据模型 ====================

// NotifyRequest 同步通知请求
type NotifyRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	LinkPath string `json:"link_path"`
}

// NotifyResponseData 同步通知响应数据
type NotifyResponseData struct {
	MessageID      string `json:"message_id"`
	Sent           int    `json:"sent"`
	Removed        int    `json:"removed"`
	Failed         int    `json:"failed"`
	CleanupFailure string `json:"cleanup_failure,omitempty"`
}

// ==================== 处理器 ====================

// NotifyHandler 同步通知处理器
// 运营后台等内部调用方直接触发一次分发并拿到聚合结果
type NotifyHandler struct {
	notifier Notifier
}

// NewNotifyHandler 创建通知处理器实例
func NewNotifyHandler(notifier Notifier) *NotifyHandler {
	return &NotifyHandler{notifier: notifier}
}

// HandleNotify 同步分发一条通知
// POST /v1/notify
func (handler *NotifyHandler) HandleNotify(context *gin.Context) {
	var request NotifyRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	result, err := handler.notifier.Dispatch(context.Request.Context(), push.NotificationRequest{
		TargetUserID: request.UserID,
		Title:        request.Title,
		Body:         request.Body,
		LinkPath:     request.LinkPath,
		Trigger:      push.TriggerManual,
	})

	if err != nil {
		handler.respondDispatchError(context, request.UserID, err)
		return
	}

	responseData := NotifyResponseData{
		MessageID: result.MessageID,
		Sent:      result.Sent,
		Removed:   result.Removed,
		Failed:    result.Failed,
	}

	// 清理失败按部分成功上报,调用方可据此决定是否重放
	if result.CleanupErr != nil {
		responseData.CleanupFailure = result.CleanupErr.Error()
	}

	sendSuccessResponse(context, responseData)
}

// respondDispatchError 把分发错误映射为 HTTP 状态
func (handler *NotifyHandler) respondDispatchError(context *gin.Context, userID string, err error) {
	switch {
	case errors.Is(err, push.ErrUserNotFound):
		sendErrorResponse(context, http.StatusNotFound, "用户不存在: "+userID)
	case errors.Is(err, push.ErrEmptyUserID):
		sendErrorResponse(context, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[NotifyHandler] 分发失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "通知分发失败")
	}
}
