package push_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected push.FailureClass
	}{
		{
			name:     "无效token判定为永久失效",
			err:      push.NewChannelError(push.CodeInvalidToken, "malformed"),
			expected: push.FailurePermanent,
		},
		{
			name:     "已注销token判定为永久失效",
			err:      push.NewChannelError(push.CodeTokenUnregistered, "app uninstalled"),
			expected: push.FailurePermanent,
		},
		{
			name:     "限流判定为瞬时失败",
			err:      push.NewChannelError(push.CodeQuotaExceeded, "rate limited"),
			expected: push.FailureTransient,
		},
		{
			name:     "网关内部错误判定为瞬时失败",
			err:      push.NewChannelError(push.CodeServerError, "500"),
			expected: push.FailureTransient,
		},
		{
			name:     "鉴权失败判定为瞬时失败",
			err:      push.NewChannelError(push.CodeUnauthenticated, "bad key"),
			expected: push.FailureTransient,
		},
		{
			name:     "无错误码的传输层错误判定为瞬时失败",
			err:      errors.New("connection refused"),
			expected: push.FailureTransient,
		},
		{
			name:     "包装后的永久错误仍可识别",
			err:      fmt.Errorf("send to gateway: %w", push.NewChannelError(push.CodeTokenUnregistered, "gone")),
			expected: push.FailurePermanent,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, push.Classify(testCase.err))
		})
	}
}

func TestDeliveryOutcomePredicates(t *testing.T) {
	delivered := push.DeliveryOutcome{Token: "a", Status: push.StatusDelivered}
	assert.True(t, delivered.Delivered())
	assert.False(t, delivered.PermanentlyFailed())

	permanent := push.DeliveryOutcome{Token: "b", Status: push.StatusFailed, Class: push.FailurePermanent}
	assert.False(t, permanent.Delivered())
	assert.True(t, permanent.PermanentlyFailed())

	transient := push.DeliveryOutcome{Token: "c", Status: push.StatusFailed, Class: push.FailureTransient}
	assert.False(t, transient.Delivered())
	assert.False(t, transient.PermanentlyFailed())
}

func TestChannelErrorMessage(t *testing.T) {
	withMessage := push.NewChannelError(push.CodeInvalidToken, "malformed token")
	assert.Equal(t, "messaging/invalid-registration-token: malformed token", withMessage.Error())

	withoutMessage := push.NewChannelError(push.CodeServerError, "")
	assert.Equal(t, "messaging/internal-error", withoutMessage.Error())
}
