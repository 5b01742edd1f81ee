package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/AvertonDias/lista-limpeza-facil/internal/events"
	"github.com/AvertonDias/lista-limpeza-facil/internal/inbox"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
	"github.com/AvertonDias/lista-limpeza-facil/internal/queue"
	"github.com/AvertonDias/lista-limpeza-facil/internal/status"
)

//
// 事件队列消费者
//

// EventConsumerManager 变更事件消费者管理器
// 订阅清单更新和反馈两个主题,把事件转化为一次通知分发
type EventConsumerManager struct {
	app *AppContext
}

// NewEventConsumerManager 创建事件消费者管理器实例
func NewEventConsumerManager(app *AppContext) *EventConsumerManager {
	return &EventConsumerManager{app: app}
}

// Start 启动事件队列消费者
func (manager *EventConsumerManager) Start() {
	if !manager.app.Config.NSQ.ConsumerEnabled {
		log.Println("[EventConsumer] 消费者未启用,跳过启动")
		return
	}

	manager.startConsumer(manager.app.Config.NSQ.ListEventsTopic, manager.handleListUpdated)
	manager.startConsumer(manager.app.Config.NSQ.FeedbackTopic, manager.handleFeedback)
}

// startConsumer 按主题启动一个 NSQ 消费者并附加死信队列
func (manager *EventConsumerManager) startConsumer(topic string, handler queue.HandlerFunc) {
	nsqConfig := manager.app.Config.NSQ
	dlqTopic := topic + nsqConfig.DLQTopicSuffix

	consumer, err := queue.NewNSQConsumer(queue.ConsumerConfig{
		Topic:                topic,
		Channel:              nsqConfig.Channel,
		MaxInFlight:          nsqConfig.MaxInFlight,
		Concurrency:          nsqConfig.Concurrency,
		NsqdAddresses:        nsqConfig.NsqdTCPAddrs,
		LookupdAddresses:     nsqConfig.LookupdHTTPAddrs,
		DLQTopic:             dlqTopic,
		MaxAttemptsBeforeDLQ: uint16(nsqConfig.MaxConsumeAttemptsBeforeDLQ),
		Handler:              handler,
	})

	if err != nil {
		log.Fatalf("[EventConsumer] 创建消费者失败 (topic=%s): %v", topic, err)
	}

	if len(nsqConfig.NsqdTCPAddrs) > 0 {
		if err := consumer.AttachDLQProducer(nsqConfig.NsqdTCPAddrs[0]); err != nil {
			log.Fatalf("[EventConsumer] 附加死信队列失败 (topic=%s): %v", topic, err)
		}
	}

	go func() {
		log.Printf("[EventConsumer] 消费者启动: topic=%s channel=%s", topic, nsqConfig.Channel)
		if err := consumer.Run(); err != nil {
			log.Printf("[EventConsumer] 消费者退出 (topic=%s): %v", topic, err)
		}
	}()
}

//
// 清单更新事件处理
//

// handleListUpdated 处理清单更新事件
// 只有检测到新增条目时才分发通知,其余变更静默跳过
func (manager *EventConsumerManager) handleListUpdated(ctx context.Context, payload []byte, attempts uint16) error {
	event, err := events.DecodeListUpdated(payload)
	if err != nil {
		log.Printf("[EventConsumer] 清单事件解码失败 (尝试:%d): %v", attempts, err)
		return err
	}

	request, found := events.BuildListUpdateRequest(event, manager.app.Config.Notify.BodyMaxLength)
	if !found {
		log.Printf("[EventConsumer] 事件未新增条目,跳过: user=%s event=%s", event.UserID, event.EventID)
		manager.updateStatus(ctx, event.EventID, status.StatusSkipped, "no new item detected")
		return nil
	}

	return manager.dispatch(ctx, request, attempts)
}

//
// 反馈事件处理
//

// handleFeedback 处理访客反馈事件
// 推送之外再给清单拥有者发一封邮件,邮件失败不影响事件确认
func (manager *EventConsumerManager) handleFeedback(ctx context.Context, payload []byte, attempts uint16) error {
	event, err := events.DecodeFeedback(payload)
	if err != nil {
		log.Printf("[EventConsumer] 反馈事件解码失败 (尝试:%d): %v", attempts, err)
		return err
	}

	request := events.BuildFeedbackRequest(event, manager.app.Config.Notify.BodyMaxLength)

	if err := manager.dispatch(ctx, request, attempts); err != nil {
		return err
	}

	manager.emailListOwner(ctx, event, request)
	return nil
}

//
// 公共分发流程
//

// dispatch 幂等检查后执行一次通知分发
//
// 错误处理约定:
//   - 重复事件直接确认,不再分发
//   - 用户不存在是业务终态,确认消息避免无意义重投
//   - 其余错误返回给 NSQ 重投,超过次数阈值后转入死信队列
func (manager *EventConsumerManager) dispatch(ctx context.Context, request push.NotificationRequest, attempts uint16) error {
	isNew, idempotencyKey, err := manager.app.Idempotency.CheckAndSet(
		ctx, request, manager.app.Config.App.IdempotencyTTL,
	)

	if err != nil {
		// 幂等检查不可用时放行,宁可偶发重复也不丢通知
		log.Printf("[EventConsumer] 幂等检查失败,继续分发: %v", err)
	} else if !isNew {
		log.Printf("[EventConsumer] 重复事件,跳过: key=%s", idempotencyKey)
		return nil
	}

	result, err := manager.app.Dispatcher.Dispatch(ctx, request)
	if err != nil {
		if errors.Is(err, push.ErrUserNotFound) {
			log.Printf("[EventConsumer] 目标用户不存在,放弃事件: user=%s", request.TargetUserID)
			manager.updateStatus(ctx, request.MessageID, status.StatusFailed, err.Error())
			return nil
		}

		log.Printf("[EventConsumer] 分发失败 (尝试:%d): %v", attempts, err)
		return err
	}

	log.Printf("[EventConsumer] 分发完成: message=%s sent=%d removed=%d failed=%d",
		result.MessageID, result.Sent, result.Removed, result.Failed)

	manager.appendToInbox(ctx, request)
	return nil
}

// appendToInbox 把通知镜像到用户信箱
// 信箱保证换设备后仍能看到历史,写失败只记录日志
func (manager *EventConsumerManager) appendToInbox(ctx context.Context, request push.NotificationRequest) {
	_, err := manager.app.InboxStore.Append(ctx, inbox.Notification{
		UserID:  request.TargetUserID,
		Trigger: string(request.Trigger),
		Title:   request.Title,
		Body:    request.Body,
		Link:    request.LinkPath,
	})

	if err != nil {
		log.Printf("[EventConsumer] 写入信箱失败: user=%s err=%v", request.TargetUserID, err)
	}
}

// emailListOwner 给清单拥有者补发一封反馈邮件
func (manager *EventConsumerManager) emailListOwner(ctx context.Context, event *events.FeedbackEvent, request push.NotificationRequest) {
	if manager.app.Mailer == nil || !manager.app.Mailer.Enabled() {
		return
	}

	owner, err := manager.app.Users.Get(ctx, event.ListOwnerID)
	if err != nil || owner.Email == "" {
		return
	}

	htmlBody := fmt.Sprintf("<p>%s</p><p>%s</p>", request.Title, request.Body)
	if err := manager.app.Mailer.Send(ctx, owner.Email, request.Title, htmlBody); err != nil {
		log.Printf("[EventConsumer] 反馈邮件发送失败: user=%s err=%v", event.ListOwnerID, err)
	}
}

// updateStatus 更新消息状态,事件未携带 ID 时跳过
func (manager *EventConsumerManager) updateStatus(ctx context.Context, messageID, newStatus, detail string) {
	if messageID == "" || manager.app.StatusStore == nil {
		return
	}

	if err := manager.app.StatusStore.UpdateStatus(ctx, messageID, newStatus, detail); err != nil {
		log.Printf("[EventConsumer] 更新状态失败: message=%s err=%v", messageID, err)
	}
}

//
// 外部调用接口
//

// startEventConsumers 启动事件队列消费者
func startEventConsumers(app *AppContext) {
	manager := NewEventConsumerManager(app)
	manager.Start()
}
