package main

import (
	"context"
	"log"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
	"github.com/AvertonDias/lista-limpeza-facil/internal/status"
)

const (
	// 巡检间隔
	janitorInterval = 10 * time.Minute

	// pending 状态超过该时长视为滞留(消费者崩溃或消息丢失)
	stuckPendingThreshold = 30 * time.Minute
)

// StatusJanitor 消息状态后台巡检
// 定期清理过期的 pending 标记,并把滞留的分发暴露到日志里
type StatusJanitor struct {
	statusStore status.StatusStore
}

// NewStatusJanitor 创建状态巡检器实例
func NewStatusJanitor(statusStore status.StatusStore) *StatusJanitor {
	return &StatusJanitor{statusStore: statusStore}
}

// Run 周期执行巡检,直到 ctx 结束
func (janitor *StatusJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	log.Printf("[StatusJanitor] 状态巡检启动, 间隔 %s", janitorInterval)

	for {
		select {
		case <-ctx.Done():
			log.Println("[StatusJanitor] 状态巡检停止")
			return
		case <-ticker.C:
			janitor.sweep(ctx)
		}
	}
}

// sweep 执行一轮巡检
func (janitor *StatusJanitor) sweep(ctx context.Context) {
	janitor.reportStuckDispatches(ctx)

	if err := janitor.statusStore.CleanupOldStatuses(ctx, stuckPendingThreshold); err != nil {
		log.Printf("[StatusJanitor] 清理过期状态失败: %v", err)
	}
}

// reportStuckDispatches 把滞留的 pending 分发写入日志
func (janitor *StatusJanitor) reportStuckDispatches(ctx context.Context) {
	triggers := []string{
		string(push.TriggerItemAdded),
		string(push.TriggerFeedback),
		string(push.TriggerManual),
	}

	pending, err := janitor.statusStore.GetPendingStatuses(ctx, triggers)
	if err != nil {
		log.Printf("[StatusJanitor] 查询 pending 状态失败: %v", err)
		return
	}

	cutoff := time.Now().Add(-stuckPendingThreshold).Unix()
	for _, messageStatus := range pending {
		if messageStatus.CreatedAt < cutoff {
			log.Printf("[StatusJanitor] 滞留的分发: message=%s trigger=%s user=%s 创建于 %d",
				messageStatus.MessageID, messageStatus.Trigger, messageStatus.UserID, messageStatus.CreatedAt)
		}
	}
}
