// Package httpapi 提供基于 Gin 的 HTTP 接入层
// token 管理、同步通知、事件接入、记录与状态查询、信箱接口都在这里
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UnifiedResponse 统一的 API 响应格式
type UnifiedResponse struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg"`
}

// sendSuccessResponse 发送成功响应
func sendSuccessResponse(context *gin.Context, data interface{}) {
	context.JSON(http.StatusOK, UnifiedResponse{
		Code: http.StatusOK,
		Data: data,
		Msg:  "success",
	})
}

// sendErrorResponse 发送错误响应
func sendErrorResponse(context *gin.Context, httpStatus int, message string) {
	context.JSON(httpStatus, UnifiedResponse{
		Code: httpStatus,
		Data: nil,
		Msg:  message,
	})
}

// CORSMiddleware 跨域资源共享中间件
// 允许所有来源访问,便于前端开发和集成
// 生产环境建议根据需求配置白名单
func CORSMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if context.Request.Method == "OPTIONS" {
			context.AbortWithStatus(http.StatusNoContent)
			return
		}

		context.Next()
	}
}
