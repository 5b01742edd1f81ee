package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/events"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
	"github.com/AvertonDias/lista-limpeza-facil/internal/queue"
	"github.com/AvertonDias/lista-limpeza-facil/internal/status"

	"github.com/gin-gonic/gin"
)

// ==================== 处理器 ====================

// EventsHandler 变更事件接入处理器
// 事件校验后投递到 NSQ 异步处理,接口立即返回受理结果
type EventsHandler struct {
	listEnqueuer     queue.Enqueuer
	feedbackEnqueuer queue.Enqueuer
	statusStore      status.StatusStore
}

// NewEventsHandler 创建事件处理器实例
func NewEventsHandler(
	listEnqueuer queue.Enqueuer,
	feedbackEnqueuer queue.Enqueuer,
	statusStore status.StatusStore,
) *EventsHandler {
	return &EventsHandler{
		listEnqueuer:     listEnqueuer,
		feedbackEnqueuer: feedbackEnqueuer,
		statusStore:      statusStore,
	}
}

// HandleListUpdated 受理清单更新事件
// POST /v1/events/list-updated
func (handler *EventsHandler) HandleListUpdated(context *gin.Context) {
	var event events.ListUpdatedEvent
	if err := context.ShouldBindJSON(&event); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "事件格式错误: "+err.Error())
		return
	}

	if event.UserID == "" {
		sendErrorResponse(context, http.StatusBadRequest, events.ErrMissingUserID.Error())
		return
	}

	if event.EventID == "" {
		event.EventID = generateEventID(push.TriggerItemAdded)
	}

	handler.acceptEvent(context, handler.listEnqueuer, event.EventID, push.TriggerItemAdded, event.UserID, &event)
}

// HandleFeedback 受理访客反馈事件
// POST /v1/events/feedback
func (handler *EventsHandler) HandleFeedback(context *gin.Context) {
	var event events.FeedbackEvent
	if err := context.ShouldBindJSON(&event); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "事件格式错误: "+err.Error())
		return
	}

	if event.ListOwnerID == "" {
		sendErrorResponse(context, http.StatusBadRequest, events.ErrMissingUserID.Error())
		return
	}
	if event.Text == "" {
		sendErrorResponse(context, http.StatusBadRequest, events.ErrMissingFeedbackText.Error())
		return
	}

	if event.EventID == "" {
		event.EventID = generateEventID(push.TriggerFeedback)
	}

	handler.acceptEvent(context, handler.feedbackEnqueuer, event.EventID, push.TriggerFeedback, event.ListOwnerID, &event)
}

// ==================== 私有方法 ====================

// acceptEvent 事件受理的公共流程:标记 pending 状态并投递队列
func (handler *EventsHandler) acceptEvent(
	context *gin.Context,
	enqueuer queue.Enqueuer,
	eventID string,
	trigger push.TriggerKind,
	userID string,
	event interface{},
) {
	payload, err := json.Marshal(event)
	if err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "事件序列化失败: "+err.Error())
		return
	}

	handler.markPending(context, eventID, trigger, userID)

	if err := enqueuer.Enqueue(context.Request.Context(), payload); err != nil {
		log.Printf("[EventsHandler] 事件入队失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "事件投递失败")
		return
	}

	sendSuccessResponse(context, gin.H{"event_id": eventID, "status": status.StatusPending})
}

// markPending 在状态存储中登记 pending 状态
// 状态存储失败不阻断事件受理
func (handler *EventsHandler) markPending(context *gin.Context, eventID string, trigger push.TriggerKind, userID string) {
	if handler.statusStore == nil {
		return
	}

	now := time.Now().Unix()
	err := handler.statusStore.SaveStatus(context.Request.Context(), &status.MessageStatus{
		MessageID: eventID,
		Trigger:   string(trigger),
		UserID:    userID,
		Status:    status.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	})

	if err != nil {
		log.Printf("[EventsHandler] 登记 pending 状态失败: %v", err)
	}
}

// generateEventID 为未携带标识的事件生成 ID
// 前缀和消息 ID 保持同一格式,状态追踪可以按触发类型归类
func generateEventID(trigger push.TriggerKind) string {
	var randomBytes [4]byte
	_, _ = rand.Read(randomBytes[:])
	return fmt.Sprintf("%s_%d_%s", trigger, time.Now().UnixNano(), hex.EncodeToString(randomBytes[:]))
}
