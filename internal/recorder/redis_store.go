// Package recorder 持久化每次分发的结果记录,供运营排查和审计
package recorder

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	defaultQueryLimit = 50
	redisKeyFormat    = "%s:record:%s"
	redisTimesKey     = "%s:record:times"
	redisSeqKey       = "%s:record:seq"
)

// ==================== 数据结构 ====================

// RedisStore 基于 Redis 的分发记录存储,实现 push.Store
type RedisStore struct {
	client         *redis.Client
	namespace      string
	maxKeepRecords int64
	ttl            time.Duration
	timeProvider   func() time.Time
}

// NewRedisStore 创建 Redis 记录存储实例
func NewRedisStore(client *redis.Client, namespace string, maxKeep int64, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:         client,
		namespace:      namespace,
		maxKeepRecords: maxKeep,
		ttl:            ttl,
		timeProvider:   nil,
	}
}

// SetTimeProvider 设置时间提供函数（主要用于测试）
func (store *RedisStore) SetTimeProvider(provider func() time.Time) {
	store.timeProvider = provider
}

// recordHashData Hash 存储的记录数据
type recordHashData map[string]string

// ==================== Lua 脚本 ====================

var trimRecordsScript = redis.NewScript(`
local sortedSetKey = KEYS[1]
local maxKeepCount = tonumber(ARGV[1])
if maxKeepCount <= 0 then return 0 end

local totalCount = redis.call("ZCARD", sortedSetKey)
if totalCount <= maxKeepCount then return 0 end

local excessCount = totalCount - maxKeepCount
local oldRecordKeys = redis.call("ZRANGE", sortedSetKey, 0, excessCount - 1)

for i, recordKey in ipairs(oldRecordKeys) do
  redis.call("DEL", recordKey)
end

redis.call("ZREMRANGEBYRANK", sortedSetKey, 0, excessCount - 1)
return excessCount
`)

// ==================== 核心方法 ====================

// SaveRecord 保存分发记录到 Redis
func (store *RedisStore) SaveRecord(ctx context.Context, record push.Record) error {
	storageKey, err := store.generateStorageKey(ctx, record.Key)
	if err != nil {
		return fmt.Errorf("generate storage key failed: %w", err)
	}

	createdTimestamp := store.getCreatedTimestamp(record.CreatedAt)
	hashKey := store.buildRecordHashKey(storageKey)
	hashData := store.buildHashData(record, storageKey, createdTimestamp)

	return store.saveRecordWithPipeline(ctx, hashKey, hashData, createdTimestamp)
}

// Trim 清理超出上限的旧记录
func (store *RedisStore) Trim(ctx context.Context) (int, error) {
	if store.maxKeepRecords <= 0 {
		return 0, nil
	}

	deletedCount, err := trimRecordsScript.Run(
		ctx,
		store.client,
		[]string{store.buildTimesKey()},
		store.maxKeepRecords,
	).Int()

	if err != nil {
		return 0, fmt.Errorf("trim records failed: %w", err)
	}

	return deletedCount, nil
}

// QueryRecords 按时间逆序查询分发记录
func (store *RedisStore) QueryRecords(ctx context.Context, namespace string, limit int64) ([]push.Record, error) {
	limit = store.normalizeQueryLimit(limit)
	sortedSetKey := store.buildQueryKey(namespace)

	recordKeys, err := store.client.ZRevRange(ctx, sortedSetKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch record keys failed: %w", err)
	}

	return store.fetchRecords(ctx, recordKeys, namespace)
}

// GetTotalRecords 获取总记录数
func (store *RedisStore) GetTotalRecords(ctx context.Context, namespace string) (int64, error) {
	count, err := store.client.ZCard(ctx, store.buildQueryKey(namespace)).Result()
	if err != nil {
		return 0, fmt.Errorf("get total records count failed: %w", err)
	}

	return count, nil
}

// ==================== 私有辅助方法 - Key 生成 ====================

func (store *RedisStore) buildRecordHashKey(id string) string {
	return fmt.Sprintf(redisKeyFormat, store.namespace, id)
}

func (store *RedisStore) buildTimesKey() string {
	return fmt.Sprintf(redisTimesKey, store.namespace)
}

func (store *RedisStore) buildSequenceKey() string {
	return fmt.Sprintf(redisSeqKey, store.namespace)
}

func (store *RedisStore) buildQueryKey(namespace string) string {
	if namespace != "" {
		return fmt.Sprintf(redisTimesKey, namespace)
	}
	return store.buildTimesKey()
}

// ==================== 私有辅助方法 - 存储逻辑 ====================

func (store *RedisStore) generateStorageKey(ctx context.Context, providedKey string) (string, error) {
	if providedKey != "" {
		return providedKey, nil
	}

	sequenceID, err := store.client.Incr(ctx, store.buildSequenceKey()).Result()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%d", sequenceID), nil
}

func (store *RedisStore) getCreatedTimestamp(recordCreatedAt int64) int64 {
	if recordCreatedAt != 0 {
		return recordCreatedAt
	}

	timeFunc := store.timeProvider
	if timeFunc == nil {
		timeFunc = time.Now
	}

	return timeFunc().Unix()
}

func (store *RedisStore) buildHashData(record push.Record, storageKey string, createdAt int64) recordHashData {
	return recordHashData{
		"key":          storageKey,
		"message_id":   record.MessageID,
		"namespace":    record.Namespace,
		"trigger":      string(record.Trigger),
		"user_id":      record.UserID,
		"title":        record.Title,
		"body":         record.Body,
		"link_path":    record.LinkPath,
		"sent":         strconv.Itoa(record.Sent),
		"removed":      strconv.Itoa(record.Removed),
		"failed":       strconv.Itoa(record.Failed),
		"status":       record.Status,
		"error_detail": record.ErrorDetail,
		"created_at":   strconv.FormatInt(createdAt, 10),
	}
}

func (store *RedisStore) saveRecordWithPipeline(ctx context.Context, hashKey string, data recordHashData, timestamp int64) error {
	pipeline := store.client.TxPipeline()

	pipeline.HSet(ctx, hashKey, data)

	if store.ttl > 0 {
		pipeline.Expire(ctx, hashKey, store.ttl)
	}

	pipeline.ZAdd(ctx, store.buildTimesKey(), redis.Z{
		Score:  float64(timestamp),
		Member: hashKey,
	})

	_, err := pipeline.Exec(ctx)
	if err != nil {
		return fmt.Errorf("save record pipeline failed: %w", err)
	}

	return nil
}

// ==================== 私有辅助方法 - 查询逻辑 ====================

func (store *RedisStore) normalizeQueryLimit(limit int64) int64 {
	if limit <= 0 {
		return defaultQueryLimit
	}
	return limit
}

func (store *RedisStore) fetchRecords(ctx context.Context, recordKeys []string, filterNamespace string) ([]push.Record, error) {
	records := make([]push.Record, 0, len(recordKeys))

	for _, recordKey := range recordKeys {
		record, err := store.fetchSingleRecord(ctx, recordKey, filterNamespace)
		if err != nil {
			continue
		}

		if record != nil {
			records = append(records, *record)
		}
	}

	return records, nil
}

func (store *RedisStore) fetchSingleRecord(ctx context.Context, recordKey string, filterNamespace string) (*push.Record, error) {
	hashData, err := store.client.HGetAll(ctx, recordKey).Result()
	if err != nil || len(hashData) == 0 {
		return nil, err
	}

	if !store.shouldIncludeRecord(hashData, filterNamespace) {
		return nil, nil
	}

	record := store.parseRecordFromHash(hashData)
	return &record, nil
}

func (store *RedisStore) shouldIncludeRecord(hashData map[string]string, filterNamespace string) bool {
	if filterNamespace == "" {
		return true
	}

	recordNamespace, exists := hashData["namespace"]
	return exists && recordNamespace == filterNamespace
}

// ==================== 私有辅助方法 - 数据解析 ====================

func (store *RedisStore) parseRecordFromHash(data map[string]string) push.Record {
	record := push.Record{
		Key:         data["key"],
		MessageID:   data["message_id"],
		Namespace:   data["namespace"],
		Trigger:     push.TriggerKind(data["trigger"]),
		UserID:      data["user_id"],
		Title:       data["title"],
		Body:        data["body"],
		LinkPath:    data["link_path"],
		Status:      data["status"],
		ErrorDetail: data["error_detail"],
	}

	record.Sent = parseCount(data["sent"])
	record.Removed = parseCount(data["removed"])
	record.Failed = parseCount(data["failed"])

	if createdAtStr := data["created_at"]; createdAtStr != "" {
		if timestamp, err := strconv.ParseInt(createdAtStr, 10, 64); err == nil {
			record.CreatedAt = timestamp
		}
	}

	return record
}

func parseCount(value string) int {
	if value == "" {
		return 0
	}
	count, _ := strconv.Atoi(value)
	return count
}
