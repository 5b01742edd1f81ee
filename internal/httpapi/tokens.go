package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/gin-gonic/gin"
)

// ==================== 数据模型 ====================

// TokenRegisterRequest 注册设备 token 请求
type TokenRegisterRequest struct {
	Token string `json:"token" binding:"required"`
}

// TokenRemoveRequest 移除设备 token 请求
type TokenRemoveRequest struct {
	Tokens []string `json:"tokens" binding:"required,min=1"`
}

// ==================== 处理器 ====================

// TokenHandler 设备 token 管理处理器
type TokenHandler struct {
	registry push.TokenRegistry
}

// NewTokenHandler 创建 token 处理器实例
func NewTokenHandler(registry push.TokenRegistry) *TokenHandler {
	return &TokenHandler{registry: registry}
}

// HandleRegister 注册设备 token
// POST /v1/users/:id/tokens
func (handler *TokenHandler) HandleRegister(context *gin.Context) {
	userID := context.Param("id")

	var request TokenRegisterRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	if err := handler.registry.AddToken(context.Request.Context(), userID, request.Token); err != nil {
		handler.respondRegistryError(context, userID, err)
		return
	}

	sendSuccessResponse(context, gin.H{"user_id": userID})
}

// HandleRemove 移除指定的设备 token
// DELETE /v1/users/:id/tokens
func (handler *TokenHandler) HandleRemove(context *gin.Context) {
	userID := context.Param("id")

	var request TokenRemoveRequest
	if err := context.ShouldBindJSON(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "参数验证失败: "+err.Error())
		return
	}

	removed, err := handler.registry.RemoveTokens(context.Request.Context(), userID, request.Tokens)
	if err != nil {
		handler.respondRegistryError(context, userID, err)
		return
	}

	sendSuccessResponse(context, gin.H{"removed": removed})
}

// HandleClear 清空用户的全部 token
// DELETE /v1/users/:id/tokens/all
func (handler *TokenHandler) HandleClear(context *gin.Context) {
	userID := context.Param("id")

	if err := handler.registry.ClearTokens(context.Request.Context(), userID); err != nil {
		handler.respondRegistryError(context, userID, err)
		return
	}

	sendSuccessResponse(context, gin.H{"user_id": userID})
}

// HandleList 查询用户当前注册的 token
// GET /v1/users/:id/tokens
func (handler *TokenHandler) HandleList(context *gin.Context) {
	userID := context.Param("id")

	tokens, err := handler.registry.ListTokens(context.Request.Context(), userID)
	if err != nil {
		handler.respondRegistryError(context, userID, err)
		return
	}

	sendSuccessResponse(context, gin.H{"tokens": tokens, "count": len(tokens)})
}

// respondRegistryError 把注册表错误映射为 HTTP 状态
func (handler *TokenHandler) respondRegistryError(context *gin.Context, userID string, err error) {
	switch {
	case errors.Is(err, push.ErrUserNotFound):
		sendErrorResponse(context, http.StatusNotFound, "用户不存在: "+userID)
	case errors.Is(err, push.ErrEmptyUserID), errors.Is(err, push.ErrEmptyToken):
		sendErrorResponse(context, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[TokenHandler] 注册表操作失败: %v", err)
		sendErrorResponse(context, http.StatusInternalServerError, "token 操作失败")
	}
}
