package push

import "context"

// TriggerKind 触发来源
type TriggerKind string

const (
	TriggerItemAdded TriggerKind = "item_added" // 清单新增条目
	TriggerFeedback  TriggerKind = "feedback"   // 访客反馈
	TriggerManual    TriggerKind = "manual"     // 手动触发(HTTP 同步接口)
)

// NotificationRequest 一次分发请求
// 临时值对象:由触发事件构造,被 Dispatcher 消费一次后丢弃,不做持久化
type NotificationRequest struct {
	MessageID    string      `json:"message_id,omitempty"` // 唯一消息ID,为空时自动生成
	TargetUserID string      `json:"target_user_id"`       // 目标用户(清单拥有者)
	Title        string      `json:"title"`                // 通知标题
	Body         string      `json:"body"`                 // 通知正文(调用方负责截断)
	LinkPath     string      `json:"link_path,omitempty"`  // 可选的跳转路径
	Trigger      TriggerKind `json:"trigger"`              // 触发来源
}

// Payload 推送通道的投递内容
// 每个 token 收到完全相同的 payload
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
	Link  string `json:"link,omitempty"`
}

// Record 分发审计记录
type Record struct {
	Key         string      // 存储键,为空时由存储层生成
	MessageID   string      // 唯一消息ID,便于查状态
	Namespace   string      // 命名空间
	Trigger     TriggerKind // 触发来源
	UserID      string      // 目标用户
	Title       string      // 通知标题
	Body        string      // 通知正文
	LinkPath    string      // 跳转路径
	Sent        int         // 成功投递的 token 数
	Removed     int         // 被清理的失效 token 数
	Failed      int         // 投递失败(含瞬时失败)的 token 数
	Status      string      // success/partial/failed/skipped
	ErrorDetail string      // 详细错误信息
	CreatedAt   int64
}

// Store 分发记录存储接口
type Store interface {
	SaveRecord(ctx context.Context, rec Record) error
	Trim(ctx context.Context) (int, error) // 触发清理(超过 MaxKeep/TTL)
}
