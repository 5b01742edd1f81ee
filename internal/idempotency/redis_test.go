package idempotency

import (
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"

	"github.com/stretchr/testify/assert"
)

func TestBuildIdempotencyKeyWithMessageID(t *testing.T) {
	checker := NewRedisChecker(nil, "lista")

	key := checker.buildIdempotencyKey(push.NotificationRequest{
		MessageID:    "item_added_123_abcd",
		TargetUserID: "u1",
		Trigger:      push.TriggerItemAdded,
	})

	assert.Equal(t, "lista:idemp:item_added:item_added_123_abcd", key)
}

func TestBuildIdempotencyKeyFallsBackToContentHash(t *testing.T) {
	checker := NewRedisChecker(nil, "lista")

	request := push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "Novo Item na Lista!",
		Body:         `O item "Sabão" foi adicionado à sua lista.`,
		Trigger:      push.TriggerItemAdded,
	}

	first := checker.buildIdempotencyKey(request)
	second := checker.buildIdempotencyKey(request)

	// 相同内容的事件必须落到同一个幂等键
	assert.Equal(t, first, second)
	assert.Contains(t, first, "lista:idemp:item_added:u1_")

	// 内容变化后键必须不同
	request.Body = "outro corpo"
	assert.NotEqual(t, first, checker.buildIdempotencyKey(request))
}
