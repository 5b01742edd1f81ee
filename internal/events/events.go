// Package events 定义触发通知的外部变更事件
// 事件由数据库变更监听器(或 HTTP 接入层)发布到 NSQ,本服务只消费,不订阅数据库本身
package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ==================== 常量定义 ====================

// 反馈类型
const (
	FeedbackSuggestion = "suggestion" // 建议
	FeedbackDoubt      = "doubt"      // 疑问
)

// ==================== 错误定义 ====================

var (
	// ErrMissingUserID 事件缺少目标用户
	ErrMissingUserID = errors.New("event is missing the target user id")

	// ErrMissingFeedbackText 反馈事件缺少正文
	ErrMissingFeedbackText = errors.New("feedback event is missing text")
)

// ==================== 事件结构 ====================

// ListItem 清单条目
type ListItem struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListUpdatedEvent 清单文档更新事件
// 携带变更前后的完整条目列表,由消费方自行判断是否新增了条目
type ListUpdatedEvent struct {
	EventID string     `json:"event_id,omitempty"` // 幂等用事件标识,可为空
	UserID  string     `json:"user_id"`            // 清单拥有者
	ListID  string     `json:"list_id,omitempty"`
	Before  []ListItem `json:"before"`
	After   []ListItem `json:"after"`
}

// FeedbackEvent 访客反馈创建事件
type FeedbackEvent struct {
	EventID     string `json:"event_id,omitempty"`
	ListOwnerID string `json:"list_owner_id"`  // 清单拥有者(通知目标)
	Type        string `json:"type"`           // suggestion | doubt
	Text        string `json:"text"`           // 反馈正文
	Name        string `json:"name,omitempty"` // 访客署名,可选
}

// ==================== 解码函数 ====================

// DecodeListUpdated 解码清单更新事件并做基础校验
func DecodeListUpdated(payload []byte) (*ListUpdatedEvent, error) {
	var event ListUpdatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode list-updated event: %w", err)
	}

	if event.UserID == "" {
		return nil, ErrMissingUserID
	}

	return &event, nil
}

// DecodeFeedback 解码反馈事件并做基础校验
func DecodeFeedback(payload []byte) (*FeedbackEvent, error) {
	var event FeedbackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode feedback event: %w", err)
	}

	if event.ListOwnerID == "" {
		return nil, ErrMissingUserID
	}

	if event.Text == "" {
		return nil, ErrMissingFeedbackText
	}

	return &event, nil
}
