package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	// 分发生命周期状态
	StatusPending = "pending" // 事件已入队,等待消费
	StatusSuccess = "success" // 全部 token 投递成功
	StatusPartial = "partial" // 部分成功(含清理写失败)
	StatusFailed  = "failed"  // 无一成功或整体失败
	StatusSkipped = "skipped" // 目标用户没有注册设备

	defaultTTL = 24 * time.Hour

	redisKeyStatusFormat        = "notify_status:%s"
	redisKeyPendingFormat       = "pending_dispatches:%s"
	redisKeyStatusHistoryFormat = "notify_status_history:%s"
)

// ==================== 数据结构 ====================

// MessageStatus 分发状态
// 跟踪一个触发事件从入队到分发完成的生命周期
type MessageStatus struct {
	MessageID string `json:"message_id"`
	Trigger   string `json:"trigger"`           // 触发来源(item_added/feedback/manual)
	UserID    string `json:"user_id,omitempty"` // 目标用户
	Title     string `json:"title,omitempty"`   // 通知标题
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// StatusStore 状态存储接口
type StatusStore interface {
	SaveStatus(ctx context.Context, status *MessageStatus) error
	GetStatus(ctx context.Context, messageID string) (*MessageStatus, error)
	GetStatusHistory(ctx context.Context, messageID string) ([]*MessageStatus, error)
	UpdateStatus(ctx context.Context, messageID string, newStatus string, errorMessage string) error
	GetPendingStatuses(ctx context.Context, triggers []string) ([]*MessageStatus, error)
	CleanupOldStatuses(ctx context.Context, olderThan time.Duration) error
}

// RedisStatusStore Redis 状态存储实现
type RedisStatusStore struct {
	client *redis.Client
	ttl    time.Duration
}

// ==================== 构造函数 ====================

// NewRedisStatusStore 创建 Redis 状态存储实例
func NewRedisStatusStore(client *redis.Client, ttl time.Duration) *RedisStatusStore {
	if ttl == 0 {
		ttl = defaultTTL
	}

	return &RedisStatusStore{
		client: client,
		ttl:    ttl,
	}
}

// ==================== 核心方法 ====================

// SaveStatus 保存分发状态
func (store *RedisStatusStore) SaveStatus(ctx context.Context, status *MessageStatus) error {
	if err := store.validateMessageID(status.MessageID); err != nil {
		return err
	}

	statusKey := store.buildStatusKey(status.MessageID)
	if err := store.saveStatusToRedis(ctx, statusKey, status); err != nil {
		return err
	}

	store.addToPendingSetIfNeeded(ctx, status)
	store.logStatusSaved(status)

	return nil
}

// GetStatus 获取分发状态
func (store *RedisStatusStore) GetStatus(ctx context.Context, messageID string) (*MessageStatus, error) {
	statusKey := store.buildStatusKey(messageID)
	return store.fetchStatusFromRedis(ctx, statusKey)
}

// GetStatusHistory 获取分发状态历史
func (store *RedisStatusStore) GetStatusHistory(ctx context.Context, messageID string) ([]*MessageStatus, error) {
	historyKey := store.buildHistoryKey(messageID)
	return store.fetchStatusHistory(ctx, historyKey)
}

// UpdateStatus 更新分发状态
func (store *RedisStatusStore) UpdateStatus(
	ctx context.Context,
	messageID string,
	newStatus string,
	errorMessage string,
) error {
	existingStatus, err := store.getOrCreateStatus(ctx, messageID, newStatus, errorMessage)
	if err != nil {
		return err
	}

	store.updateStatusFields(existingStatus, newStatus, errorMessage)

	if err := store.SaveStatus(ctx, existingStatus); err != nil {
		return fmt.Errorf("failed to save updated status: %w", err)
	}

	store.appendStatusHistory(ctx, messageID, existingStatus)
	store.removeFromPendingSetIfNeeded(ctx, messageID, existingStatus.Trigger, newStatus)

	return nil
}

// GetPendingStatuses 获取指定触发来源的待处理状态
func (store *RedisStatusStore) GetPendingStatuses(ctx context.Context, triggers []string) ([]*MessageStatus, error) {
	var allStatuses []*MessageStatus

	for _, trigger := range triggers {
		statuses := store.fetchPendingStatusesForTrigger(ctx, trigger)
		allStatuses = append(allStatuses, statuses...)
	}

	return allStatuses, nil
}

// CleanupOldStatuses 清理过期的待处理标记
func (store *RedisStatusStore) CleanupOldStatuses(ctx context.Context, olderThan time.Duration) error {
	triggers := []string{"item_added", "feedback", "manual"}
	cutoffTimestamp := time.Now().Add(-olderThan).Unix()

	for _, trigger := range triggers {
		store.cleanupTriggerPendingSet(ctx, trigger, cutoffTimestamp)
	}

	return nil
}

// ==================== 私有方法 - Key 构建 ====================

func (store *RedisStatusStore) buildStatusKey(messageID string) string {
	return fmt.Sprintf(redisKeyStatusFormat, messageID)
}

func (store *RedisStatusStore) buildPendingKey(trigger string) string {
	return fmt.Sprintf(redisKeyPendingFormat, trigger)
}

func (store *RedisStatusStore) buildHistoryKey(messageID string) string {
	return fmt.Sprintf(redisKeyStatusHistoryFormat, messageID)
}

// ==================== 私有方法 - 验证 ====================

func (store *RedisStatusStore) validateMessageID(messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message_id is required")
	}
	return nil
}

// ==================== 私有方法 - Redis 操作 ====================

func (store *RedisStatusStore) saveStatusToRedis(ctx context.Context, key string, status *MessageStatus) error {
	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := store.client.Set(ctx, key, statusJSON, store.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save status to redis: %w", err)
	}

	return nil
}

func (store *RedisStatusStore) fetchStatusFromRedis(ctx context.Context, key string) (*MessageStatus, error) {
	data, err := store.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	return store.parseStatusJSON(data)
}

func (store *RedisStatusStore) fetchStatusHistory(ctx context.Context, key string) ([]*MessageStatus, error) {
	dataList, err := store.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get status history from redis: %w", err)
	}

	return store.parseStatusHistoryList(dataList)
}

// ==================== 私有方法 - 待处理集合管理 ====================

func (store *RedisStatusStore) addToPendingSetIfNeeded(ctx context.Context, status *MessageStatus) {
	if status.Status != StatusPending {
		return
	}

	pendingKey := store.buildPendingKey(status.Trigger)
	store.client.SAdd(ctx, pendingKey, status.MessageID)
	store.client.Expire(ctx, pendingKey, store.ttl)
}

func (store *RedisStatusStore) removeFromPendingSetIfNeeded(ctx context.Context, messageID, trigger, newStatus string) {
	if newStatus == StatusPending {
		return
	}

	pendingKey := store.buildPendingKey(trigger)
	store.client.SRem(ctx, pendingKey, messageID)
}

func (store *RedisStatusStore) fetchPendingStatusesForTrigger(ctx context.Context, trigger string) []*MessageStatus {
	pendingKey := store.buildPendingKey(trigger)

	messageIDs, err := store.client.SMembers(ctx, pendingKey).Result()
	if err != nil {
		log.Printf("[StatusStore] Failed to get pending dispatches (%s): %v", trigger, err)
		return []*MessageStatus{}
	}

	return store.fetchStatusesByIDs(ctx, messageIDs)
}

func (store *RedisStatusStore) fetchStatusesByIDs(ctx context.Context, messageIDs []string) []*MessageStatus {
	var statuses []*MessageStatus

	for _, messageID := range messageIDs {
		status, err := store.GetStatus(ctx, messageID)
		if err != nil {
			log.Printf("[StatusStore] Failed to get dispatch status (%s): %v", messageID, err)
			continue
		}

		if status != nil && status.Status == StatusPending {
			statuses = append(statuses, status)
		}
	}

	return statuses
}

func (store *RedisStatusStore) cleanupTriggerPendingSet(ctx context.Context, trigger string, cutoffTimestamp int64) {
	pendingKey := store.buildPendingKey(trigger)

	messageIDs, err := store.client.SMembers(ctx, pendingKey).Result()
	if err != nil {
		return
	}

	for _, messageID := range messageIDs {
		if store.shouldRemoveFromPendingSet(ctx, messageID, cutoffTimestamp) {
			store.client.SRem(ctx, pendingKey, messageID)
		}
	}
}

func (store *RedisStatusStore) shouldRemoveFromPendingSet(ctx context.Context, messageID string, cutoffTimestamp int64) bool {
	status, err := store.GetStatus(ctx, messageID)
	return err != nil || status == nil || status.CreatedAt < cutoffTimestamp
}

// ==================== 私有方法 - 状态处理 ====================

func (store *RedisStatusStore) getOrCreateStatus(
	ctx context.Context,
	messageID string,
	newStatus string,
	errorMessage string,
) (*MessageStatus, error) {
	existingStatus, err := store.GetStatus(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing status: %w", err)
	}

	if existingStatus != nil {
		return existingStatus, nil
	}

	return store.createNewStatus(messageID, newStatus, errorMessage), nil
}

func (store *RedisStatusStore) createNewStatus(messageID, newStatus, errorMessage string) *MessageStatus {
	now := time.Now().Unix()
	return &MessageStatus{
		MessageID: messageID,
		Trigger:   detectTriggerFromMessageID(messageID),
		Status:    newStatus,
		Error:     errorMessage,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (store *RedisStatusStore) updateStatusFields(status *MessageStatus, newStatus, errorMessage string) {
	status.Status = newStatus
	status.Error = errorMessage
	status.UpdatedAt = time.Now().Unix()
}

func (store *RedisStatusStore) appendStatusHistory(ctx context.Context, messageID string, status *MessageStatus) {
	historyKey := store.buildHistoryKey(messageID)
	statusJSON, _ := json.Marshal(status)

	store.client.RPush(ctx, historyKey, statusJSON)
	store.client.Expire(ctx, historyKey, store.ttl)
}

// ==================== 私有方法 - 触发来源检测 ====================

// detectTriggerFromMessageID 从消息ID前缀推断触发来源
// 消息ID格式: {trigger}_{timestamp}_{rand}
func detectTriggerFromMessageID(messageID string) string {
	for _, trigger := range []string{"item_added", "feedback", "manual"} {
		prefix := trigger + "_"
		if len(messageID) > len(prefix) && messageID[:len(prefix)] == prefix {
			return trigger
		}
	}
	return "unknown"
}

// ==================== 私有方法 - JSON 解析 ====================

func (store *RedisStatusStore) parseStatusJSON(data string) (*MessageStatus, error) {
	var status MessageStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return &status, nil
}

func (store *RedisStatusStore) parseStatusHistoryList(dataList []string) ([]*MessageStatus, error) {
	var history []*MessageStatus

	for _, data := range dataList {
		var status MessageStatus
		if err := json.Unmarshal([]byte(data), &status); err == nil {
			history = append(history, &status)
		}
	}

	return history, nil
}

// ==================== 私有方法 - 日志 ====================

func (store *RedisStatusStore) logStatusSaved(status *MessageStatus) {
	log.Printf("[StatusStore] Status saved: %s -> %s (%s)",
		status.MessageID, status.Status, status.Trigger)
}
