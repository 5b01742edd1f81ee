package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, payload []byte, attempts uint16) error {
	return nil
}

func TestNewNSQConsumerValidation(t *testing.T) {
	testCases := []struct {
		name        string
		config      ConsumerConfig
		expectedErr error
	}{
		{
			name: "缺少topic",
			config: ConsumerConfig{
				Channel:       "workers",
				Handler:       noopHandler,
				NsqdAddresses: []string{"127.0.0.1:4150"},
			},
			expectedErr: errTopicRequired,
		},
		{
			name: "缺少channel",
			config: ConsumerConfig{
				Topic:         "list-updates",
				Handler:       noopHandler,
				NsqdAddresses: []string{"127.0.0.1:4150"},
			},
			expectedErr: errChannelRequired,
		},
		{
			name: "缺少handler",
			config: ConsumerConfig{
				Topic:         "list-updates",
				Channel:       "workers",
				NsqdAddresses: []string{"127.0.0.1:4150"},
			},
			expectedErr: errHandlerRequired,
		},
		{
			name: "没有任何地址",
			config: ConsumerConfig{
				Topic:   "list-updates",
				Channel: "workers",
				Handler: noopHandler,
			},
			expectedErr: errNoAddressConfigured,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := NewNSQConsumer(testCase.config)
			assert.ErrorIs(t, err, testCase.expectedErr)
		})
	}
}

func TestNewNSQConsumerDefaults(t *testing.T) {
	consumer, err := NewNSQConsumer(ConsumerConfig{
		Topic:         "list-updates",
		Channel:       "workers",
		Handler:       noopHandler,
		NsqdAddresses: []string{"127.0.0.1:4150"},
	})

	require.NoError(t, err)
	assert.Equal(t, "list-updates", consumer.GetTopic())
	assert.Equal(t, 1, consumer.concurrency)
	assert.Equal(t, defaultMessageHandleTimeout, consumer.messageHandleTimeout)
}

func TestAttachDLQProducerSkippedWithoutTopic(t *testing.T) {
	consumer, err := NewNSQConsumer(ConsumerConfig{
		Topic:         "list-updates",
		Channel:       "workers",
		Handler:       noopHandler,
		NsqdAddresses: []string{"127.0.0.1:4150"},
	})
	require.NoError(t, err)

	// 未配置 DLQ topic 时附加是空操作
	require.NoError(t, consumer.AttachDLQProducer("127.0.0.1:4150"))
	assert.Nil(t, consumer.dlqProducer)
}
