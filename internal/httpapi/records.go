package httpapi

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/gin-gonic/gin"
)

// ==================== 常量定义 ====================

const (
	defaultRecordsLimit = 50
	maxRecordsLimit     = 500
)

// ==================== 接口定义 ====================

// RecordQuerier 分发记录查询能力
type RecordQuerier interface {
	QueryRecords(ctx context.Context, namespace string, limit int64) ([]push.Record, error)
	GetTotalRecords(ctx context.Context, namespace string) (int64, error)
}

// ==================== 处理器 ====================

// RecordsHandler 分发记录查询处理器
type RecordsHandler struct {
	store     RecordQuerier
	namespace string
}

// NewRecordsHandler 创建记录处理器实例
func NewRecordsHandler(store RecordQuerier, namespace string) *RecordsHandler {
	return &RecordsHandler{store: store, namespace: namespace}
}

// HandleQuery 查询最近的分发记录
// GET /v1/records?limit=50
func (handler *RecordsHandler) HandleQuery(context *gin.Context) {
	limit := parseLimit(context.Query("limit"))

	records, err := handler.store.QueryRecords(context.Request.Context(), handler.namespace, limit)
	if err != nil {
		log.Printf("[RecordsHandler] 查询分发记录失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "查询分发记录失败")
		return
	}

	total, err := handler.store.GetTotalRecords(context.Request.Context(), handler.namespace)
	if err != nil {
		log.Printf("[RecordsHandler] 统计分发记录失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "统计分发记录失败")
		return
	}

	sendSuccessResponse(context, gin.H{
		"records": records,
		"total":   total,
	})
}

// parseLimit 解析分页上限,失败或越界时回落到默认值
func parseLimit(raw string) int64 {
	if raw == "" {
		return defaultRecordsLimit
	}

	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return defaultRecordsLimit
	}

	if limit > maxRecordsLimit {
		return maxRecordsLimit
	}

	return limit
}
