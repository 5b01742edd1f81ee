package inbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	keyPrefixInbox    = "inbox"
	keyPrefixSequence = "seq"
	keyPrefixEntry    = "entry"
	keyPrefixUser     = "user"
	keyPrefixZSet     = "z"
	keySeparator      = ":"

	defaultLimit = 20

	fieldID        = "id"
	fieldUserID    = "user_id"
	fieldTrigger   = "trigger"
	fieldTitle     = "title"
	fieldBody      = "body"
	fieldLink      = "link"
	fieldCreatedAt = "created_at"
	fieldReadAt    = "read_at"
)

// ==================== 错误定义 ====================

var (
	// ErrEmptyUserID 用户ID为空错误
	ErrEmptyUserID = errors.New("user id cannot be empty")

	// ErrRedisOperationFailed Redis操作失败错误
	ErrRedisOperationFailed = errors.New("redis operation failed")
)

// ==================== Lua 脚本定义 ====================

// trimUserScript 用户通知裁剪脚本
// 原子性地删除超出上限的旧通知,时间线和正文同时清理
var trimUserScript = redis.NewScript(`
local zkey = KEYS[1]
local max  = tonumber(ARGV[1])
if max <= 0 then return 0 end
local total = redis.call("ZCARD", zkey)
if total <= max then return 0 end
local over = total - max
local olds = redis.call("ZRANGE", zkey, 0, over-1)
for i,k in ipairs(olds) do
  redis.call("DEL", k)
end
redis.call("ZREMRANGEBYRANK", zkey, 0, over-1)
return over
`)

// markReadScript 标记已读脚本
// 校验归属后批量写 read_at,保证并发下不会标到别人的通知
var markReadScript = redis.NewScript(`
local ns = ARGV[1]
local uid = ARGV[2]
local now = ARGV[3]
local updated = 0
for i=4,#ARGV do
  local hkey = ns .. ":inbox:entry:" .. ARGV[i]
  local real = redis.call("HGET", hkey, "user_id")
  if real and real == uid then
    redis.call("HSET", hkey, "read_at", now)
    updated = updated + 1
  end
end
return updated
`)

// ==================== 核心服务 ====================

// RedisStore 基于 Redis 的信箱存储
// Hash 存通知详情,ZSet 按创建时间维护用户时间线
type RedisStore struct {
	client  *redis.Client
	options Options
	// timeProvider 时间源,便于测试注入
	timeProvider func() time.Time
}

// NewRedisStore 创建 Redis 信箱存储实例
func NewRedisStore(client *redis.Client, options Options) *RedisStore {
	return &RedisStore{
		client:       client,
		options:      options,
		timeProvider: time.Now,
	}
}

// Append 保存一条通知
// 生成全局唯一ID,写入详情并加入用户时间线,之后按上限裁剪旧通知
func (store *RedisStore) Append(ctx context.Context, notification Notification) (string, error) {
	if err := store.validateUserID(notification.UserID); err != nil {
		return "", err
	}

	if notification.CreatedAt == 0 {
		notification.CreatedAt = store.getCurrentTimestamp()
	}

	notificationID, err := store.generateNotificationID(ctx)
	if err != nil {
		return "", err
	}

	if err := store.saveNotification(ctx, notificationID, notification); err != nil {
		return "", err
	}

	// 裁剪失败不影响主流程,只记录日志
	if _, err := store.TrimUser(ctx, notification.UserID); err != nil {
		log.Printf("[Inbox] 裁剪用户 %s 的旧通知失败: %v", notification.UserID, err)
	}

	return notificationID, nil
}

// List 按时间逆序分页查询通知
func (store *RedisStore) List(
	ctx context.Context,
	userID, status string,
	offset, limit int64,
) ([]Notification, int64, error) {
	if err := store.validateUserID(userID); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	userZSetKey := store.buildUserZSetKey(userID)

	// 带已读状态过滤时先取全量再过滤,分页窗口和 total 都针对过滤后的结果
	if hasStatusFilter(status) {
		return store.listFiltered(ctx, userZSetKey, status, offset, limit)
	}

	total, err := store.client.ZCard(ctx, userZSetKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: zcard: %v", ErrRedisOperationFailed, err)
	}

	// 最新的通知在前
	entryKeys, err := store.client.ZRevRange(ctx, userZSetKey, offset, offset+limit-1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: zrevrange: %v", ErrRedisOperationFailed, err)
	}

	if len(entryKeys) == 0 {
		return []Notification{}, total, nil
	}

	notifications, err := store.fetchNotifications(ctx, entryKeys, status)
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// listFiltered 读取整条时间线,按状态过滤后再切分页窗口
func (store *RedisStore) listFiltered(
	ctx context.Context,
	userZSetKey, status string,
	offset, limit int64,
) ([]Notification, int64, error) {
	entryKeys, err := store.client.ZRevRange(ctx, userZSetKey, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: zrevrange: %v", ErrRedisOperationFailed, err)
	}

	if len(entryKeys) == 0 {
		return []Notification{}, 0, nil
	}

	filtered, err := store.fetchNotifications(ctx, entryKeys, status)
	if err != nil {
		return nil, 0, err
	}

	return sliceWindow(filtered, offset, limit), int64(len(filtered)), nil
}

// MarkRead 批量标记通知为已读
func (store *RedisStore) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if err := store.validateUserID(userID); err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 0, nil
	}

	currentTime := strconv.FormatInt(store.getCurrentTimestamp(), 10)
	args := make([]interface{}, 0, 3+len(ids))
	args = append(args, store.options.Namespace, userID, currentTime)
	for _, id := range ids {
		args = append(args, id)
	}

	updatedCount, err := markReadScript.Run(ctx, store.client, nil, args...).Int()
	if err != nil {
		return 0, fmt.Errorf("%w: mark read: %v", ErrRedisOperationFailed, err)
	}

	return updatedCount, nil
}

// TrimUser 裁剪用户通知
// 删除超过数量上限的旧通知,避免单个用户无限累积
func (store *RedisStore) TrimUser(ctx context.Context, userID string) (int, error) {
	if store.options.MaxPerUser <= 0 {
		return 0, nil
	}

	trimmedCount, err := trimUserScript.Run(
		ctx,
		store.client,
		[]string{store.buildUserZSetKey(userID)},
		store.options.MaxPerUser,
	).Int()

	if err != nil {
		return 0, fmt.Errorf("%w: trim user: %v", ErrRedisOperationFailed, err)
	}

	return trimmedCount, nil
}

// ==================== 私有方法：保存与查询 ====================

// generateNotificationID 生成全局唯一的通知ID
// 使用 Redis INCR 保证唯一递增
func (store *RedisStore) generateNotificationID(ctx context.Context) (string, error) {
	id, err := store.client.Incr(ctx, store.buildSequenceKey()).Result()
	if err != nil {
		return "", fmt.Errorf("%w: generate id: %v", ErrRedisOperationFailed, err)
	}
	return strconv.FormatInt(id, 10), nil
}

// saveNotification 通过 Pipeline 写入详情、过期时间和时间线
func (store *RedisStore) saveNotification(
	ctx context.Context,
	notificationID string,
	notification Notification,
) error {
	entryKey := store.buildEntryKey(notificationID)
	userZSetKey := store.buildUserZSetKey(notification.UserID)

	pipeline := store.client.Pipeline()

	pipeline.HSet(ctx, entryKey,
		fieldID, notificationID,
		fieldUserID, notification.UserID,
		fieldTrigger, notification.Trigger,
		fieldTitle, notification.Title,
		fieldBody, notification.Body,
		fieldLink, notification.Link,
		fieldCreatedAt, strconv.FormatInt(notification.CreatedAt, 10),
		fieldReadAt, strconv.FormatInt(notification.ReadAt, 10),
	)

	if store.options.TTL > 0 {
		pipeline.Expire(ctx, entryKey, store.options.TTL)
	}

	pipeline.ZAdd(ctx, userZSetKey, redis.Z{
		Score:  float64(notification.CreatedAt),
		Member: entryKey,
	})

	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("%w: save notification: %v", ErrRedisOperationFailed, err)
	}

	return nil
}

// fetchNotifications 批量读取通知详情并按状态过滤
func (store *RedisStore) fetchNotifications(
	ctx context.Context,
	entryKeys []string,
	status string,
) ([]Notification, error) {
	pipeline := store.client.Pipeline()
	commands := make([]*redis.MapStringStringCmd, 0, len(entryKeys))

	for _, key := range entryKeys {
		commands = append(commands, pipeline.HGetAll(ctx, key))
	}

	if _, err := pipeline.Exec(ctx); err != nil {
		// Pipeline 部分失败不影响结果,继续处理可用的通知
		log.Printf("[Inbox] 批量读取通知部分失败: %v", err)
	}

	notifications := make([]Notification, 0, len(commands))
	for _, cmd := range commands {
		entryHash, err := cmd.Result()
		if err != nil || len(entryHash) == 0 {
			// 通知可能已过期或被裁剪,跳过
			continue
		}

		notification := store.parseNotification(entryHash)
		if store.shouldInclude(notification, status) {
			notifications = append(notifications, notification)
		}
	}

	return notifications, nil
}

// parseNotification 解析哈希为通知对象
func (store *RedisStore) parseNotification(entryHash map[string]string) Notification {
	return Notification{
		ID:        entryHash[fieldID],
		UserID:    entryHash[fieldUserID],
		Trigger:   entryHash[fieldTrigger],
		Title:     entryHash[fieldTitle],
		Body:      entryHash[fieldBody],
		Link:      entryHash[fieldLink],
		CreatedAt: parseTimestamp(entryHash[fieldCreatedAt]),
		ReadAt:    parseTimestamp(entryHash[fieldReadAt]),
	}
}

// shouldInclude 按已读状态过滤
func (store *RedisStore) shouldInclude(notification Notification, status string) bool {
	switch strings.ToLower(status) {
	case statusUnread:
		return notification.ReadAt == 0
	case statusRead:
		return notification.ReadAt != 0
	default:
		return true
	}
}

// hasStatusFilter 是否指定了已读状态过滤
func hasStatusFilter(status string) bool {
	switch strings.ToLower(status) {
	case statusUnread, statusRead:
		return true
	default:
		return false
	}
}

// sliceWindow 在过滤后的结果上切出分页窗口
func sliceWindow(notifications []Notification, offset, limit int64) []Notification {
	count := int64(len(notifications))
	if offset >= count {
		return []Notification{}
	}

	end := offset + limit
	if end > count {
		end = count
	}

	return notifications[offset:end]
}

// ==================== 私有方法：工具函数 ====================

// validateUserID 验证用户ID是否有效
func (store *RedisStore) validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

// buildSequenceKey 构建序列号键
func (store *RedisStore) buildSequenceKey() string {
	return store.buildKey(keyPrefixInbox, keyPrefixSequence)
}

// buildEntryKey 构建通知详情键
func (store *RedisStore) buildEntryKey(notificationID string) string {
	return store.buildKey(keyPrefixInbox, keyPrefixEntry, notificationID)
}

// buildUserZSetKey 构建用户时间线键
func (store *RedisStore) buildUserZSetKey(userID string) string {
	return store.buildKey(keyPrefixInbox, keyPrefixUser, userID, keyPrefixZSet)
}

// buildKey 通用键构建函数
func (store *RedisStore) buildKey(parts ...string) string {
	allParts := append([]string{store.options.Namespace}, parts...)
	return strings.Join(allParts, keySeparator)
}

// getCurrentTimestamp 获取当前时间戳
func (store *RedisStore) getCurrentTimestamp() int64 {
	return store.timeProvider().Unix()
}

// parseTimestamp 解析时间戳字符串
func parseTimestamp(timestampStr string) int64 {
	if timestampStr == "" {
		return 0
	}
	timestamp, _ := strconv.ParseInt(timestampStr, 10, 64)
	return timestamp
}
