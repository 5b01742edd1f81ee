package push

import (
	"context"
	"fmt"
	"log"
)

// Reconciler 失效 token 清理器
// 解读逐 token 投递结果,只清除被判定永久失效的 token。
// token 生命周期:registered --投递成功--> registered(自环);
// --永久失败--> removed(终态);--瞬时失败--> registered(原样保留,
// 下一次触发事件到来时自然重试,没有显式的重试调度器)。
type Reconciler struct {
	registry TokenRegistry
}

// NewReconciler 创建清理器实例
func NewReconciler(registry TokenRegistry) *Reconciler {
	return &Reconciler{registry: registry}
}

// Reconcile 清理永久失效的 token,返回实际移除数量
// 清理严格限定在传入的 userID 范围内:即使相同的 token 字符串
// 碰巧出现在其他用户的集合里,也不会被波及。
// 没有需要清理的 token 时不产生任何写操作。
func (r *Reconciler) Reconcile(ctx context.Context, userID string, outcomes []DeliveryOutcome) (int, error) {
	deadTokens := collectDeadTokens(outcomes)
	if len(deadTokens) == 0 {
		return 0, nil
	}

	removed, err := r.registry.RemoveTokens(ctx, userID, deadTokens)
	if err != nil {
		return 0, fmt.Errorf("remove dead tokens for user %s: %w", userID, err)
	}

	log.Printf("[RECONCILER] 已为用户 %s 清理 %d 个失效 token", userID, removed)
	return removed, nil
}

// collectDeadTokens 过滤出永久失效的 token
// 瞬时失败(网络、限流、网关内部错误)一律保留:设备可能在下次尝试时恢复可达
func collectDeadTokens(outcomes []DeliveryOutcome) []string {
	var deadTokens []string
	for _, outcome := range outcomes {
		if outcome.PermanentlyFailed() {
			deadTokens = append(deadTokens, outcome.Token)
		}
	}
	return deadTokens
}
