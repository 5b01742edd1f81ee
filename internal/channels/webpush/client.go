// Package webpush 对接设备推送网关
// 网关收单个设备 token 和通知载荷,按 token 维度返回成功或失败
package webpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/AvertonDias/lista-limpeza-facil/internal/config"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
)

// ==================== 常量定义 ====================

const (
	channelName = "webpush"

	headerContentType   = "Content-Type"
	headerAuthorization = "Authorization"
	contentTypeJSON     = "application/json"
	bearerPrefix        = "Bearer "

	// 网关响应体读取上限
	maxResponseBodySize = 64 * 1024
)

// ==================== 数据结构 ====================

// sendRequest 推送网关的发送请求体
type sendRequest struct {
	Token        string `json:"token"`
	Notification struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		Image string `json:"image,omitempty"`
	} `json:"notification"`
	Data struct {
		Link string `json:"link,omitempty"`
	} `json:"data"`
}

// errorResponse 推送网关的错误响应体
// 形如 {"error": {"code": "messaging/invalid-registration-token", "message": "..."}}
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client 推送网关 HTTP 客户端,实现 push.Channel
type Client struct {
	gatewayURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient 创建推送网关客户端
// 单次请求的超时由分发器的 per-token context 控制,这里不再设置
func NewClient(channelConfig config.PushChannel) *Client {
	return &Client{
		gatewayURL: channelConfig.GatewayURL,
		apiKey:     channelConfig.APIKey,
		httpClient: &http.Client{},
	}
}

// Name 返回通道名称
func (client *Client) Name() string {
	return channelName
}

// ==================== 核心方法 ====================

// Send 向单个设备 token 推送一条通知
// 网关返回的错误码会被解析为 push.ChannelError,供上层做死活分类
func (client *Client) Send(ctx context.Context, token string, payload push.Payload) error {
	requestBody, err := client.buildRequestBody(token, payload)
	if err != nil {
		return fmt.Errorf("encode push request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, client.gatewayURL, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}

	request.Header.Set(headerContentType, contentTypeJSON)
	if client.apiKey != "" {
		request.Header.Set(headerAuthorization, bearerPrefix+client.apiKey)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		// 网络层错误统一视为暂时性故障
		return fmt.Errorf("push gateway request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return nil
	}

	return client.parseErrorResponse(response)
}

// ==================== 私有方法 ====================

// buildRequestBody 构建发送请求体
func (client *Client) buildRequestBody(token string, payload push.Payload) ([]byte, error) {
	var request sendRequest
	request.Token = token
	request.Notification.Title = payload.Title
	request.Notification.Body = payload.Body
	request.Notification.Image = payload.Image
	request.Data.Link = payload.Link

	return json.Marshal(request)
}

// parseErrorResponse 把网关的错误响应解析为 ChannelError
// 响应体不可解析时退化为带 HTTP 状态码的通用错误
func (client *Client) parseErrorResponse(response *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("push gateway returned status %d", response.StatusCode)
	}

	var gatewayError errorResponse
	if err := json.Unmarshal(body, &gatewayError); err == nil && gatewayError.Error.Code != "" {
		return push.NewChannelError(gatewayError.Error.Code, gatewayError.Error.Message)
	}

	return push.NewChannelError(
		client.statusToCode(response.StatusCode),
		fmt.Sprintf("push gateway returned status %d", response.StatusCode),
	)
}

// statusToCode 把 HTTP 状态码映射为通道错误码
func (client *Client) statusToCode(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return push.CodeUnauthenticated
	case http.StatusTooManyRequests:
		return push.CodeQuotaExceeded
	case http.StatusBadRequest:
		return push.CodeInvalidPayload
	case http.StatusServiceUnavailable:
		return push.CodeUnavailable
	default:
		return push.CodeServerError
	}
}
