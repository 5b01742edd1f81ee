package webpush

import (
	"context"
	"log"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
)

const stubChannelName = "webpush_stub"

// Stub 本地调试用的推送通道
// 不访问外部网关,只打印日志并返回成功
type Stub struct{}

// NewStub 创建调试通道实例
func NewStub() *Stub {
	return &Stub{}
}

// Name 返回通道名称
func (stub *Stub) Name() string {
	return stubChannelName
}

// Send 打印通知内容,始终成功
func (stub *Stub) Send(ctx context.Context, token string, payload push.Payload) error {
	log.Printf("[WebPushStub] token=%s title=%q body=%q link=%s",
		abbreviateToken(token), payload.Title, payload.Body, payload.Link)
	return nil
}

// abbreviateToken 截短 token 避免日志泄露完整凭据
func abbreviateToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
