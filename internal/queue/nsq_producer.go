package queue

import (
	"context"
	"fmt"

	"github.com/nsqio/go-nsq"
)

// NSQProducer 面向单个 topic 的 NSQ 生产者
type NSQProducer struct {
	producer *nsq.Producer
	topic    string
}

// NewNSQProducer 创建 NSQ 生产者
func NewNSQProducer(addr, topic string) (*NSQProducer, error) {
	config := nsq.NewConfig()
	producer, err := nsq.NewProducer(addr, config)
	if err != nil {
		return nil, fmt.Errorf("create nsq producer: %w", err)
	}
	return &NSQProducer{producer: producer, topic: topic}, nil
}

// Enqueue 投递一条事件
// nsqio/go-nsq 的 Publish 不接收 context,这里保留 ctx 以满足接口规范
func (n *NSQProducer) Enqueue(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	return n.producer.Publish(n.topic, payload)
}

// Close 关闭生产者连接
func (n *NSQProducer) Close() {
	if n.producer != nil {
		n.producer.Stop()
	}
}
