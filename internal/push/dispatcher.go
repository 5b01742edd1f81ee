package push

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/AvertonDias/lista-limpeza-facil/internal/status"
)

// ==================== 常量定义 ====================

const (
	// 分发状态常量
	statusSuccess = "success"
	statusPartial = "partial"
	statusFailed  = "failed"
	statusSkipped = "skipped"

	// 兜底默认值
	defaultPerTokenTimeout = 5 * time.Second
	defaultMaxConcurrent   = 16
)

// ==================== Dispatcher 结构 ====================

// Dispatcher 通知分发器
// 针对一个用户的一次通知:解析 token 集合,逐 token 并发投递,
// 收集逐 token 结果后交给 Reconciler 清理失效 token,最后返回聚合结果。
// 分发器内部没有调度循环,每次调用都是请求级的短生命周期操作。
type Dispatcher struct {
	users      UserResolver
	registry   TokenRegistry
	channel    Channel
	reconciler *Reconciler

	perTokenTimeout time.Duration
	maxConcurrent   int
	payloadImage    string
	defaultLink     string

	namespace   string
	store       Store              // 可选:分发审计记录
	statusStore status.StatusStore // 可选:消息状态追踪
	currentTime func() time.Time
}

// Options 分发器行为参数
type Options struct {
	PerTokenTimeout time.Duration // 单 token 投递超时
	MaxConcurrent   int           // 并发投递上限
	PayloadImage    string        // 通知图标路径
	DefaultLink     string        // LinkPath 为空时的默认跳转
}

// NewDispatcher 创建通知分发器
// 所有协作方均通过参数显式注入,不依赖任何全局单例,便于测试替换
func NewDispatcher(
	users UserResolver,
	registry TokenRegistry,
	channel Channel,
	opts Options,
) *Dispatcher {
	if opts.PerTokenTimeout <= 0 {
		opts.PerTokenTimeout = defaultPerTokenTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	return &Dispatcher{
		users:           users,
		registry:        registry,
		channel:         channel,
		reconciler:      NewReconciler(registry),
		perTokenTimeout: opts.PerTokenTimeout,
		maxConcurrent:   opts.MaxConcurrent,
		payloadImage:    opts.PayloadImage,
		defaultLink:     opts.DefaultLink,
		currentTime:     time.Now,
	}
}

// SetStore 注入分发记录存储(可选)
func (d *Dispatcher) SetStore(store Store, namespace string) {
	d.store = store
	d.namespace = namespace
}

// SetStatusStore 注入状态存储(可选)
func (d *Dispatcher) SetStatusStore(statusStore status.StatusStore) {
	d.statusStore = statusStore
}

// ==================== 公共分发接口 ====================

// Dispatch 向目标用户的全部注册设备分发一条通知
//
// 约定:
//  1. 用户不存在 → 返回 ErrUserNotFound,注册表无任何副作用
//  2. token 集合为空 → 返回零值结果,这是正常稳态而非错误
//  3. 每个 token 恰好一次投递尝试,互相独立,单个失败不中断其余
//  4. 永久失效的 token 由 Reconciler 清理;清理写失败按部分成功上报
func (d *Dispatcher) Dispatch(ctx context.Context, req NotificationRequest) (*DispatchResult, error) {
	if req.TargetUserID == "" {
		return nil, ErrEmptyUserID
	}
	if d.channel == nil {
		return nil, ErrChannelNotSet
	}

	messageID := req.MessageID
	if messageID == "" {
		messageID = generateMessageID(req.Trigger)
	}

	tokens, err := d.resolveTokens(ctx, req.TargetUserID)
	if err != nil {
		return nil, err
	}

	if len(tokens) == 0 {
		log.Printf("[DISPATCHER] 用户 %s 没有注册设备,跳过分发: %s", req.TargetUserID, messageID)
		result := &DispatchResult{MessageID: messageID}
		d.finishDispatch(ctx, req, messageID, result, statusSkipped, "")
		return result, nil
	}

	outcomes := d.fanOut(ctx, tokens, d.buildPayload(req))

	// 调用方放弃(超时/取消)的分发不得执行清理,
	// 避免一次未完成的分发对注册表产生部分写入
	if ctx.Err() != nil {
		return d.aggregate(messageID, outcomes, 0), ctx.Err()
	}

	removed, cleanupErr := d.reconciler.Reconcile(ctx, req.TargetUserID, outcomes)

	result := d.aggregate(messageID, outcomes, removed)
	result.CleanupErr = cleanupErr

	d.saveDispatchOutcome(ctx, req, messageID, result, outcomes)
	return result, nil
}

// ==================== token 解析 ====================

// resolveTokens 解析目标用户当前的 token 集合
func (d *Dispatcher) resolveTokens(ctx context.Context, userID string) ([]string, error) {
	exists, err := d.users.Exists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve user %s: %w", userID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}

	tokens, err := d.registry.ListTokens(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryAccess, err)
	}

	return tokens, nil
}

// ==================== 并发扇出 ====================

// fanOut 对全部 token 并发执行投递
// 等待所有尝试结束后才返回(wait for all, not for the first),
// 单个 token 的缓慢或失败不会拖延或阻断其余 token
func (d *Dispatcher) fanOut(ctx context.Context, tokens []string, payload Payload) []DeliveryOutcome {
	outcomes := make([]DeliveryOutcome, len(tokens))
	semaphore := make(chan struct{}, d.maxConcurrent)

	var waitGroup sync.WaitGroup
	for index, token := range tokens {
		waitGroup.Add(1)
		go func(index int, token string) {
			defer waitGroup.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			outcomes[index] = d.sendToSingleToken(ctx, token, payload)
		}(index, token)
	}
	waitGroup.Wait()

	return outcomes
}

// sendToSingleToken 对单个 token 执行恰好一次投递尝试
// 不做重试:下一次触发事件到来时会自然再次尝试仍然注册的 token
func (d *Dispatcher) sendToSingleToken(ctx context.Context, token string, payload Payload) DeliveryOutcome {
	attemptCtx, cancel := context.WithTimeout(ctx, d.perTokenTimeout)
	defer cancel()

	err := d.channel.Send(attemptCtx, token, payload)
	if err == nil {
		return DeliveryOutcome{Token: token, Status: StatusDelivered}
	}

	class := Classify(err)
	log.Printf("[DISPATCHER] token 投递失败 (class=%s): %v", class, err)

	return DeliveryOutcome{
		Token:  token,
		Status: StatusFailed,
		Class:  class,
		Err:    err,
	}
}

// buildPayload 由请求构造投递内容
func (d *Dispatcher) buildPayload(req NotificationRequest) Payload {
	link := req.LinkPath
	if link == "" {
		link = d.defaultLink
	}

	return Payload{
		Title: req.Title,
		Body:  req.Body,
		Image: d.payloadImage,
		Link:  link,
	}
}

// ==================== 结果聚合 ====================

// aggregate 汇总逐 token 投递结果
func (d *Dispatcher) aggregate(messageID string, outcomes []DeliveryOutcome, removed int) *DispatchResult {
	result := &DispatchResult{MessageID: messageID, Removed: removed}

	for _, outcome := range outcomes {
		if outcome.Delivered() {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	return result
}

// deriveStatus 由聚合结果推导整体分发状态
func deriveStatus(result *DispatchResult) string {
	switch {
	case result.Failed == 0 && result.CleanupErr == nil:
		return statusSuccess
	case result.Sent > 0 || result.CleanupErr != nil:
		return statusPartial
	default:
		return statusFailed
	}
}

// ==================== 记录与状态落盘 ====================

// finishDispatch 保存记录并更新状态(空集合等早退路径)
func (d *Dispatcher) finishDispatch(
	ctx context.Context,
	req NotificationRequest,
	messageID string,
	result *DispatchResult,
	dispatchStatus string,
	errorDetail string,
) {
	d.saveRecord(ctx, req, messageID, result, dispatchStatus, errorDetail)
	d.updateStatusIfAvailable(ctx, messageID, dispatchStatus, errorDetail)
}

// saveDispatchOutcome 保存完整分发结果
func (d *Dispatcher) saveDispatchOutcome(
	ctx context.Context,
	req NotificationRequest,
	messageID string,
	result *DispatchResult,
	outcomes []DeliveryOutcome,
) {
	errorDetail := firstFailureDetail(outcomes)
	if result.CleanupErr != nil {
		errorDetail = fmt.Sprintf("cleanup failed: %v", result.CleanupErr)
	}

	d.finishDispatch(ctx, req, messageID, result, deriveStatus(result), errorDetail)
}

// saveRecord 保存分发审计记录
func (d *Dispatcher) saveRecord(
	ctx context.Context,
	req NotificationRequest,
	messageID string,
	result *DispatchResult,
	dispatchStatus string,
	errorDetail string,
) {
	if d.store == nil {
		return
	}

	record := Record{
		Key:         messageID,
		MessageID:   messageID,
		Namespace:   d.namespace,
		Trigger:     req.Trigger,
		UserID:      req.TargetUserID,
		Title:       req.Title,
		Body:        req.Body,
		LinkPath:    req.LinkPath,
		Sent:        result.Sent,
		Removed:     result.Removed,
		Failed:      result.Failed,
		Status:      dispatchStatus,
		ErrorDetail: errorDetail,
		CreatedAt:   d.currentTime().Unix(),
	}

	_ = d.store.SaveRecord(ctx, record)
	_, _ = d.store.Trim(ctx)
}

// updateStatusIfAvailable 如果状态存储可用则更新状态
func (d *Dispatcher) updateStatusIfAvailable(ctx context.Context, messageID, dispatchStatus, detail string) {
	if d.statusStore == nil {
		return
	}

	log.Printf("[DISPATCHER] UpdateStatus: messageID=%s, status=%s", messageID, dispatchStatus)
	_ = d.statusStore.UpdateStatus(ctx, messageID, dispatchStatus, detail)
}

// firstFailureDetail 提取首个失败的错误描述
func firstFailureDetail(outcomes []DeliveryOutcome) string {
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			return outcome.Err.Error()
		}
	}
	return ""
}

// ==================== 工具函数 ====================

// generateMessageID 生成唯一的消息ID
func generateMessageID(trigger TriggerKind) string {
	timestamp := time.Now().UnixNano()
	randomSuffix := generateRandomUint32()
	return fmt.Sprintf("%s_%d_%d", trigger, timestamp, randomSuffix)
}

// generateRandomUint32 生成随机的 uint32 数字
func generateRandomUint32() uint32 {
	var randomBytes [4]byte
	_, _ = rand.Read(randomBytes[:])
	return binary.LittleEndian.Uint32(randomBytes[:])
}
