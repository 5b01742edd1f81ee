// Package idempotency 提供事件消费的幂等性检查
// NSQ 至少投递一次,同一事件可能被重复消费,靠幂等键避免重复推送
package idempotency

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	keySeparator          = ":"
	idempotencyPrefix     = "idemp"
	redisPlaceholderValue = "1"
	contentDelimiter      = "|"
)

// ==================== 错误定义 ====================

var (
	// ErrRedisSetFailed Redis 设置失败错误
	ErrRedisSetFailed = errors.New("failed to set idempotency key in redis")
)

// ==================== 接口定义 ====================

// Checker 幂等性检查器接口
type Checker interface {
	// CheckAndSet 检查并设置幂等性标记
	// 返回值: isNewRequest(true=新请求, false=重复请求), keyHash(唯一标识), error
	CheckAndSet(
		ctx context.Context,
		request push.NotificationRequest,
		ttl time.Duration,
	) (bool, string, error)
}

// ==================== Redis 实现 ====================

// RedisChecker 基于 Redis 的幂等性检查器
// 利用 SETNX 实现原子性的检查和设置
type RedisChecker struct {
	client    *redis.Client
	Namespace string // 命名空间,隔离不同服务的幂等键
}

// NewRedisChecker 创建 Redis 幂等性检查器实例
func NewRedisChecker(client *redis.Client, namespace string) *RedisChecker {
	return &RedisChecker{
		client:    client,
		Namespace: namespace,
	}
}

// CheckAndSet 检查并设置幂等性
// SETNX 只有第一次设置会成功,高并发下的重复事件只会放行一个
func (checker *RedisChecker) CheckAndSet(
	ctx context.Context,
	request push.NotificationRequest,
	ttl time.Duration,
) (bool, string, error) {
	key := checker.buildIdempotencyKey(request)

	isNewRequest, err := checker.client.SetNX(ctx, key, redisPlaceholderValue, ttl).Result()
	if err != nil {
		return false, key, fmt.Errorf("%w: %v", ErrRedisSetFailed, err)
	}

	return isNewRequest, key, nil
}

// ==================== 私有方法：键构建 ====================

// buildIdempotencyKey 构建幂等性键
// 格式: {namespace}:idemp:{trigger}:{userID}_{contentHash}
// 事件自带 MessageID 时直接用它,否则用目标用户和内容哈希兜底
func (checker *RedisChecker) buildIdempotencyKey(request push.NotificationRequest) string {
	suffix := request.MessageID
	if suffix == "" {
		suffix = fmt.Sprintf("%s_%s", request.TargetUserID, checker.generateContentHash(request))
	}

	parts := []string{
		checker.Namespace,
		idempotencyPrefix,
		string(request.Trigger),
		suffix,
	}

	return strings.Join(parts, keySeparator)
}

// generateContentHash 生成通知内容的 SHA1 哈希
// 相同标题和正文的事件产生相同标识
func (checker *RedisChecker) generateContentHash(request push.NotificationRequest) string {
	content := strings.Join([]string{request.Title, request.Body}, contentDelimiter)
	hash := sha1.Sum([]byte(content))
	return hex.EncodeToString(hash[:])
}
