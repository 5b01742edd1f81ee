// Package queue 封装事件队列的生产与消费
// 清单更新和反馈事件经 NSQ 异步流转,HTTP 接入层只负责投递
package queue

import "context"

// Enqueuer 事件入队能力
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) error
	Close()
}

// Consumer 事件消费能力
type Consumer interface {
	Run() error
	Stop()
}
