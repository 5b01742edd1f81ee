package httpapi

import (
	"log"
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/inbox"

	"github.com/gin-gonic/gin"
)

// ==================== 数据模型 ====================

// InboxQueryRequest 信箱查询请求参数
type InboxQueryRequest struct {
	UserID string `form:"user_id" binding:"required"`
	Status string `form:"status"`
	Offset int64  `form:"offset"`
	Limit  int64  `form:"limit"`
}

// InboxReadRequest 标记已读请求
type InboxReadRequest struct {
	UserID string   `json:"user_id" binding:"required"`
	IDs    []string `json:"ids" binding:"required,min=1"`
}

// ==================== 处理器 ====================

// InboxHandler 通知信箱处理器
type InboxHandler struct {
	store inbox.Store
}

// NewInboxHandler 创建信箱处理器实例
func NewInboxHandler(store inbox.Store) *InboxHandler {
	return &InboxHandler{store: store}
}

// HandleQuery 查询用户的通知历史
// GET /v1/inbox?user_id=...&status=unread&offset=0&limit=20
func (handler *InboxHandler) HandleQuery(context *gin.Context) {
	var request InboxQueryRequest

	if err := context.ShouldBindQuery(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	applyDefaultPagination(&request)

	notifications, total, err := handler.store.List(
		context.Request.Context(),
		request.UserID,
		request.Status,
		request.Offset,
		request.Limit,
	)

	if err != nil {
		log.Printf("[InboxHandler] 查询失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "查询信箱失败")
		return
	}

	sendSuccessResponse(context, gin.H{
		"notifications": notifications,
		"total":         total,
	})
}

// HandleMarkRead 批量标记通知为已读
// POST /v1/inbox/read
func (handler *InboxHandler) HandleMarkRead(context *gin.Context) {
	var request InboxReadRequest

	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "请求格式错误: "+err.Error())
		return
	}

	updated, err := handler.store.MarkRead(context.Request.Context(), request.UserID, request.IDs)
	if err != nil {
		log.Printf("[InboxHandler] 标记已读失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "操作执行失败")
		return
	}

	sendSuccessResponse(context, gin.H{"updated": updated})
}

// applyDefaultPagination 为查询请求应用默认分页参数
// 避免客户端不传参数时查询过大数据集
func applyDefaultPagination(request *InboxQueryRequest) {
	if request.Limit == 0 {
		request.Limit = 20
	}
	if request.Limit > 100 {
		request.Limit = 100
	}
}
