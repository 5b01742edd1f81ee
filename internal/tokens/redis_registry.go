package tokens

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	redisKeyTokensFormat = "%s:tokens:%s" // {namespace}:tokens:{userID}
)

// ==================== 错误定义 ====================

var (
	// ErrRedisOperationFailed Redis 操作失败错误
	ErrRedisOperationFailed = errors.New("redis operation failed")
)

// ==================== RedisRegistry ====================

// RedisRegistry 基于 Redis 集合的设备 token 注册表
//
// 每个用户一个 SET 键,全部变更通过 SADD/SREM/DEL 表达:
// 单条命令对单键原子生效,同一用户的多台设备同时注册也不会丢失更新,
// 天然满足"原子增删、禁止整体读改写"的约束。
type RedisRegistry struct {
	client    *redis.Client
	users     push.UserResolver
	namespace string
}

// NewRedisRegistry 创建 Redis token 注册表实例
// users 用于注册前的用户存在性校验,不允许隐式建档
func NewRedisRegistry(client *redis.Client, users push.UserResolver, namespace string) *RedisRegistry {
	return &RedisRegistry{
		client:    client,
		users:     users,
		namespace: namespace,
	}
}

// ==================== 核心方法 ====================

// AddToken 幂等地注册一个设备 token
// SADD 对已存在的成员是空操作,重复注册不会产生重复项
func (registry *RedisRegistry) AddToken(ctx context.Context, userID, token string) error {
	if userID == "" {
		return push.ErrEmptyUserID
	}
	if token == "" {
		return push.ErrEmptyToken
	}

	if err := registry.ensureUserExists(ctx, userID); err != nil {
		return err
	}

	added, err := registry.client.SAdd(ctx, registry.buildTokensKey(userID), token).Result()
	if err != nil {
		return fmt.Errorf("%w: sadd: %v", ErrRedisOperationFailed, err)
	}

	if added > 0 {
		log.Printf("[TokenRegistry] 用户 %s 注册新设备 token (当前新增 %d)", userID, added)
	}

	return nil
}

// RemoveTokens 从用户集合中移除给定 token,返回实际移除数量
// 入参为空时不发出任何写命令;不存在的成员被 SREM 静默忽略
func (registry *RedisRegistry) RemoveTokens(ctx context.Context, userID string, tokens []string) (int, error) {
	if userID == "" {
		return 0, push.ErrEmptyUserID
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	members := make([]interface{}, len(tokens))
	for index, token := range tokens {
		members[index] = token
	}

	removed, err := registry.client.SRem(ctx, registry.buildTokensKey(userID), members...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: srem: %v", ErrRedisOperationFailed, err)
	}

	return int(removed), nil
}

// ListTokens 返回用户当前注册的全部 token
// 键不存在时 SMEMBERS 返回空集,"没有注册设备"不是错误
func (registry *RedisRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, push.ErrEmptyUserID
	}

	tokens, err := registry.client.SMembers(ctx, registry.buildTokensKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: smembers: %v", ErrRedisOperationFailed, err)
	}

	return tokens, nil
}

// ClearTokens 清空用户的全部 token
// 重新认证时调用,避免旧设备的 token 不断累积。
// 尽力而为:键不存在时 DEL 返回 0,同样视为成功,
// 后续的 AddToken 会重新建立集合。
func (registry *RedisRegistry) ClearTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return push.ErrEmptyUserID
	}

	if err := registry.client.Del(ctx, registry.buildTokensKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: del: %v", ErrRedisOperationFailed, err)
	}

	log.Printf("[TokenRegistry] 已清空用户 %s 的 token 集合", userID)
	return nil
}

// ==================== 私有辅助方法 ====================

// ensureUserExists 校验用户记录存在
// 不存在时直接失败,不做隐式建档,调用方必须先走账户创建流程
func (registry *RedisRegistry) ensureUserExists(ctx context.Context, userID string) error {
	exists, err := registry.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user %s: %w", userID, err)
	}

	if !exists {
		return fmt.Errorf("%w: %s", push.ErrUserNotFound, userID)
	}

	return nil
}

// buildTokensKey 构建用户 token 集合的存储键
func (registry *RedisRegistry) buildTokensKey(userID string) string {
	return fmt.Sprintf(redisKeyTokensFormat, registry.namespace, userID)
}
