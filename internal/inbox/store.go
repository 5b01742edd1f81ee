// Package inbox 维护每个用户的通知历史(站内信箱)
// 推送只负责送达提醒,信箱保证用户换了设备也能看到完整的通知记录
package inbox

import (
	"context"
	"time"
)

// 状态过滤取值
const (
	statusAll    = "all"
	statusUnread = "unread"
	statusRead   = "read"
)

// Notification 信箱中的一条通知
type Notification struct {
	ID        string `json:"id"`         // 由存储生成
	UserID    string `json:"user_id"`    // 归属用户
	Trigger   string `json:"trigger"`    // 触发来源(item_added / feedback / manual)
	Title     string `json:"title"`      // 通知标题
	Body      string `json:"body"`       // 通知正文
	Link      string `json:"link"`       // 点击跳转路径
	CreatedAt int64  `json:"created_at"` // Unix 时间戳
	ReadAt    int64  `json:"read_at"`    // 阅读时间,0 表示未读
}

// Store 信箱存储能力
type Store interface {
	// Append 保存一条通知,返回生成的 ID
	Append(ctx context.Context, notification Notification) (string, error)
	// List 按时间逆序分页返回通知,status 取 all/unread/read
	// 指定 unread/read 时先过滤再分页,total 为过滤后的数量
	List(ctx context.Context, userID, status string, offset, limit int64) ([]Notification, int64, error)
	// MarkRead 批量标记已读,忽略不存在或不属于该用户的 ID,返回成功数量
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)
	// TrimUser 按上限裁剪用户的旧通知,返回删除数量
	TrimUser(ctx context.Context, userID string) (int, error)
}

// Options 存储配置
type Options struct {
	Namespace  string
	MaxPerUser int64
	TTL        time.Duration // 单条通知 hash 的过期时间;时间线 ZSET 不自动过期
}
