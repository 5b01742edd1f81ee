package events

import (
	"fmt"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
)

// ==================== 常量定义 ====================

// 通知标题文案(产品语言为葡萄牙语,保持与客户端一致)
const (
	TitleNewItem          = "Novo Item na Lista!"
	TitleNewSuggestion    = "Nova Sugestão Recebida!"
	TitleDoubtWithNameFmt = "Nova Dúvida de %s"
	TitleFallback         = "Nova Mensagem Recebida"

	bodyNewItemFormat = `O item "%s" foi adicionado à sua lista.`

	// ellipsisSuffix 截断后缀
	ellipsisSuffix = "..."
)

// ==================== 正文截断 ====================

// TruncateBody 通知正文截断策略
// 自由文本超过 maxLength 个字符时截断到 maxLength 并追加省略号;
// 按字符(rune)计数而不是字节,避免把多字节字符截成乱码
func TruncateBody(text string, maxLength int) string {
	if maxLength <= 0 {
		return text
	}

	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	return string(runes[:maxLength]) + ellipsisSuffix
}

// ==================== 清单更新策略 ====================

// FindNewItem 从变更前后的条目列表中定位新增条目
// 仅当条目数量净增加时才认为有新增;依据 ID 而不是位置比较,
// 找不到新增条目(例如只是改名)时返回 false
func FindNewItem(before, after []ListItem) (ListItem, bool) {
	if len(after) <= len(before) {
		return ListItem{}, false
	}

	beforeIDs := make(map[string]bool, len(before))
	for _, item := range before {
		beforeIDs[item.ID] = true
	}

	for _, item := range after {
		if !beforeIDs[item.ID] {
			return item, true
		}
	}

	return ListItem{}, false
}

// BuildListUpdateRequest 由清单更新事件构造分发请求
// 未检测到新增条目时返回 false,表示本事件不触发任何通知
func BuildListUpdateRequest(event *ListUpdatedEvent, bodyMaxLength int) (push.NotificationRequest, bool) {
	newItem, found := FindNewItem(event.Before, event.After)
	if !found {
		return push.NotificationRequest{}, false
	}

	return push.NotificationRequest{
		MessageID:    event.EventID,
		TargetUserID: event.UserID,
		Title:        TitleNewItem,
		Body:         fmt.Sprintf(bodyNewItemFormat, TruncateBody(newItem.Name, bodyMaxLength)),
		Trigger:      push.TriggerItemAdded,
	}, true
}

// ==================== 反馈策略 ====================

// FeedbackTitle 按反馈类型与署名选择标题
// suggestion → 固定标题;doubt 且有署名 → 插入署名;其余 → 通用兜底标题
func FeedbackTitle(feedbackType, name string) string {
	switch {
	case feedbackType == FeedbackSuggestion:
		return TitleNewSuggestion
	case feedbackType == FeedbackDoubt && name != "":
		return fmt.Sprintf(TitleDoubtWithNameFmt, name)
	default:
		return TitleFallback
	}
}

// BuildFeedbackRequest 由反馈事件构造分发请求
func BuildFeedbackRequest(event *FeedbackEvent, bodyMaxLength int) push.NotificationRequest {
	return push.NotificationRequest{
		MessageID:    event.EventID,
		TargetUserID: event.ListOwnerID,
		Title:        FeedbackTitle(event.Type, event.Name),
		Body:         TruncateBody(event.Text, bodyMaxLength),
		Trigger:      push.TriggerFeedback,
	}
}
