package push

import (
	"context"
	"errors"
	"fmt"
)

// Channel 推送投递通道
// 对接上游 Web Push 网关,一次调用只负责一个 token 的投递
// 实现必须并发安全
type Channel interface {
	Name() string
	Send(ctx context.Context, token string, payload Payload) error
}

// ==================== 通道错误码 ====================

// 上游网关返回的错误码词汇表
// 仅下面两个 dead-token 错误码会触发 token 清理,其余一律视为瞬时失败
const (
	CodeInvalidToken      = "messaging/invalid-registration-token"
	CodeTokenUnregistered = "messaging/registration-token-not-registered"

	CodeQuotaExceeded   = "messaging/message-rate-exceeded"
	CodeServerError     = "messaging/internal-error"
	CodeUnavailable     = "messaging/server-unavailable"
	CodeUnauthenticated = "messaging/authentication-error"
	CodeInvalidPayload  = "messaging/invalid-payload"
)

// ChannelError 通道返回的带错误码的失败
// 没有 ChannelError 包装的错误(网络中断、超时等)一律按瞬时失败处理
type ChannelError struct {
	Code    string // 网关错误码
	Message string // 网关错误描述
}

func (e *ChannelError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewChannelError 创建通道错误
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}

// ==================== 失败分类 ====================

// FailureClass 失败分类
type FailureClass string

const (
	// FailurePermanent token 已永久失效,必须从注册表清除
	FailurePermanent FailureClass = "permanent"

	// FailureTransient 瞬时失败,token 保留,等待下一次事件自然重试
	FailureTransient FailureClass = "transient"
)

// permanentCodes 判定 token 永久失效的错误码映射表
// 供应商相关的错误字符串集中在这一处,除此之外不允许出现
var permanentCodes = map[string]bool{
	CodeInvalidToken:      true,
	CodeTokenUnregistered: true,
}

// Classify 对单次投递失败进行分类
// 只有网关明确报告 token 失效才判定为 permanent;
// 传输层异常(超时、连接失败)没有错误码,必然落入 transient
func Classify(err error) FailureClass {
	var channelErr *ChannelError
	if errors.As(err, &channelErr) && permanentCodes[channelErr.Code] {
		return FailurePermanent
	}
	return FailureTransient
}

// ==================== 投递结果 ====================

// DeliveryStatus 单 token 投递状态
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// DeliveryOutcome 单 token 单次分发的投递结果
// 由 Dispatcher 产出,立即交给 Reconciler 消费,不做持久化
type DeliveryOutcome struct {
	Token  string
	Status DeliveryStatus
	Class  FailureClass // 仅 Status == StatusFailed 时有效
	Err    error        // 原始错误,用于日志
}

// Delivered 判断该 token 是否投递成功
func (o DeliveryOutcome) Delivered() bool {
	return o.Status == StatusDelivered
}

// PermanentlyFailed 判断该 token 是否被判定永久失效
func (o DeliveryOutcome) PermanentlyFailed() bool {
	return o.Status == StatusFailed && o.Class == FailurePermanent
}

// DispatchResult 一次分发的聚合结果
type DispatchResult struct {
	MessageID string `json:"message_id"`
	Sent      int    `json:"sent"`    // 投递成功的 token 数
	Removed   int    `json:"removed"` // 被清理的失效 token 数
	Failed    int    `json:"failed"`  // 投递失败(含瞬时)的 token 数

	// CleanupErr 清理写入失败时置位
	// 已发出的通知无法撤回,因此按部分成功上报而不回滚
	CleanupErr error `json:"-"`
}
