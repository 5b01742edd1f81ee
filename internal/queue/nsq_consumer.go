package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
)

// ==================== 常量定义 ====================

const (
	// 单条消息处理超时
	defaultMessageHandleTimeout = 30 * time.Second

	// 用户代理标识
	defaultUserAgent = "lista-limpeza-facil"

	// 日志前缀
	logPrefix = "[nsq] "
)

// ==================== 错误定义 ====================

var (
	errTopicRequired       = errors.New("topic is required")
	errChannelRequired     = errors.New("channel is required")
	errHandlerRequired     = errors.New("handler is required")
	errNoAddressConfigured = errors.New("no nsqd address or lookupd configured")
)

// ==================== 类型定义 ====================

// HandlerFunc 消息处理函数类型
// attempts 为 NSQ 的投递次数,用于 DLQ 判定
type HandlerFunc func(ctx context.Context, payload []byte, attempts uint16) error

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Topic                string
	Channel              string
	MaxInFlight          int
	Concurrency          int
	NsqdAddresses        []string
	LookupdAddresses     []string
	DLQTopic             string
	MaxAttemptsBeforeDLQ uint16
	MessageHandleTimeout time.Duration
	Handler              HandlerFunc
}

// NSQConsumer 事件消费者
// 处理失败的消息由 NSQ 自动重投,超过次数阈值后转入死信 topic
type NSQConsumer struct {
	config  *nsq.Config
	topic   string
	channel string

	nsqdAddresses    []string // nsqd TCP 地址
	lookupdAddresses []string // lookupd HTTP 地址

	consumer *nsq.Consumer
	handler  HandlerFunc

	concurrency int

	dlqTopic             string
	maxAttemptsBeforeDLQ uint16
	dlqProducer          *nsq.Producer

	messageHandleTimeout time.Duration
}

// ==================== 构造函数 ====================

// NewNSQConsumer 从配置创建 NSQ 消费者
func NewNSQConsumer(config ConsumerConfig) (*NSQConsumer, error) {
	if err := validateConsumerConfig(config); err != nil {
		return nil, err
	}

	nsqConfig := nsq.NewConfig()
	if config.MaxInFlight > 0 {
		nsqConfig.MaxInFlight = config.MaxInFlight
	}
	nsqConfig.UserAgent = defaultUserAgent

	consumer, err := nsq.NewConsumer(config.Topic, config.Channel, nsqConfig)
	if err != nil {
		return nil, fmt.Errorf("create nsq consumer: %w", err)
	}
	consumer.SetLogger(log.New(os.Stdout, logPrefix, log.LstdFlags), nsq.LogLevelInfo)

	timeout := config.MessageHandleTimeout
	if timeout == 0 {
		timeout = defaultMessageHandleTimeout
	}

	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &NSQConsumer{
		config:               nsqConfig,
		topic:                config.Topic,
		channel:              config.Channel,
		nsqdAddresses:        config.NsqdAddresses,
		lookupdAddresses:     config.LookupdAddresses,
		consumer:             consumer,
		handler:              config.Handler,
		concurrency:          concurrency,
		dlqTopic:             config.DLQTopic,
		maxAttemptsBeforeDLQ: config.MaxAttemptsBeforeDLQ,
		messageHandleTimeout: timeout,
	}, nil
}

// validateConsumerConfig 验证消费者配置
func validateConsumerConfig(config ConsumerConfig) error {
	if config.Topic == "" {
		return errTopicRequired
	}

	if config.Channel == "" {
		return errChannelRequired
	}

	if config.Handler == nil {
		return errHandlerRequired
	}

	if len(config.NsqdAddresses) == 0 && len(config.LookupdAddresses) == 0 {
		return errNoAddressConfigured
	}

	return nil
}

// ==================== DLQ 配置 ====================

// AttachDLQProducer 附加死信队列生产者
// 未配置 DLQ topic 或地址为空时直接跳过
func (consumer *NSQConsumer) AttachDLQProducer(nsqdAddress string) error {
	if consumer.dlqTopic == "" || nsqdAddress == "" {
		return nil
	}

	producer, err := nsq.NewProducer(nsqdAddress, nsq.NewConfig())
	if err != nil {
		return fmt.Errorf("create dlq producer: %w", err)
	}

	consumer.dlqProducer = producer
	return nil
}

// ==================== 消息处理 ====================

// Run 启动消费者并阻塞到 Stop 被调用
func (consumer *NSQConsumer) Run() error {
	consumer.consumer.AddConcurrentHandlers(nsq.HandlerFunc(consumer.handleMessage), consumer.concurrency)

	if err := consumer.connect(); err != nil {
		return err
	}

	<-consumer.consumer.StopChan
	return nil
}

// handleMessage 处理单条消息
func (consumer *NSQConsumer) handleMessage(message *nsq.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), consumer.messageHandleTimeout)
	defer cancel()

	err := consumer.handler(ctx, message.Body, message.Attempts)
	if err == nil {
		return nil
	}

	return consumer.handleFailedMessage(message, err)
}

// handleFailedMessage 处理失败的消息
// 未达到重试阈值时返回原错误让 NSQ 重投;达到后转入 DLQ 并确认消息
func (consumer *NSQConsumer) handleFailedMessage(message *nsq.Message, originalError error) error {
	if !consumer.shouldSendToDLQ(message) {
		return originalError
	}

	if err := consumer.dlqProducer.Publish(consumer.dlqTopic, message.Body); err != nil {
		log.Printf("[NSQ] 投递死信队列失败: %v, 原始错误: %v", err, originalError)
		return originalError
	}

	log.Printf("[NSQ] 消息重试 %d 次后转入死信队列 %s", message.Attempts, consumer.dlqTopic)
	return nil
}

// shouldSendToDLQ 判断是否应该转入死信队列
func (consumer *NSQConsumer) shouldSendToDLQ(message *nsq.Message) bool {
	if consumer.dlqTopic == "" || consumer.dlqProducer == nil {
		return false
	}

	return message.Attempts >= consumer.maxAttemptsBeforeDLQ
}

// ==================== 连接管理 ====================

// connect 连接到配置的 nsqd 与 lookupd 节点
func (consumer *NSQConsumer) connect() error {
	for _, address := range consumer.nsqdAddresses {
		if err := consumer.consumer.ConnectToNSQD(address); err != nil {
			return fmt.Errorf("connect to nsqd %s: %w", address, err)
		}
		log.Printf("[NSQ] 已连接 nsqd: %s", address)
	}

	for _, address := range consumer.lookupdAddresses {
		if err := consumer.consumer.ConnectToNSQLookupd(address); err != nil {
			return fmt.Errorf("connect to lookupd %s: %w", address, err)
		}
		log.Printf("[NSQ] 已连接 lookupd: %s", address)
	}

	return nil
}

// ==================== 生命周期管理 ====================

// Stop 停止消费者及 DLQ 生产者
func (consumer *NSQConsumer) Stop() {
	if consumer.consumer != nil {
		log.Printf("[NSQ] 正在停止消费者, topic: %s", consumer.topic)
		consumer.consumer.Stop()
	}

	if consumer.dlqProducer != nil {
		consumer.dlqProducer.Stop()
	}
}

// ==================== 状态查询 ====================

// IsConnected 检查是否已建立连接
func (consumer *NSQConsumer) IsConnected() bool {
	return consumer.consumer.Stats().Connections > 0
}

// GetTopic 获取 Topic 名称
func (consumer *NSQConsumer) GetTopic() string {
	return consumer.topic
}
