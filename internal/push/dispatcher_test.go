package push_test

import (
	"context"
	"errors"
	"testing"

	"github.com/AvertonDias/lista-limpeza-facil/internal/push"
	"github.com/AvertonDias/lista-limpeza-facil/internal/push/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelFunc 用函数充当推送通道,便于在测试里注入任意行为
type channelFunc func(ctx context.Context, token string, payload push.Payload) error

func (f channelFunc) Name() string { return "func" }
func (f channelFunc) Send(ctx context.Context, token string, payload push.Payload) error {
	return f(ctx, token, payload)
}

func newTestDispatcher(resolver push.UserResolver, registry push.TokenRegistry, channel push.Channel) *push.Dispatcher {
	return push.NewDispatcher(resolver, registry, channel, push.Options{})
}

func TestDispatchEmptyUserID(t *testing.T) {
	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{}},
		test.NewMockRegistry(),
		&test.MockChannel{},
	)

	_, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{})
	assert.ErrorIs(t, err, push.ErrEmptyUserID)
}

func TestDispatchUserNotFound(t *testing.T) {
	registry := test.NewMockRegistry()
	channel := &test.MockChannel{}
	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{}},
		registry,
		channel,
	)

	_, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "ghost",
		Title:        "t",
		Body:         "b",
	})

	require.ErrorIs(t, err, push.ErrUserNotFound)

	// 用户不存在的分发不得触碰注册表或通道
	assert.Equal(t, 0, registry.TotalWrites())
	assert.Equal(t, 0, channel.SendCalls)
}

func TestDispatchEmptyTokenSet(t *testing.T) {
	registry := test.NewMockRegistry()
	channel := &test.MockChannel{}
	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, channel.SendCalls)
	assert.Equal(t, 0, registry.TotalWrites())
}

func TestDispatchAllDelivered(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b", "tok-c"}

	channel := &test.MockChannel{}
	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		MessageID:    "msg-1",
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 0, result.Removed)

	// 全部成功时不应产生清理写操作
	assert.Equal(t, 0, registry.RemoveCalls)
}

func TestDispatchGeneratesMessageID(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a"}

	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		&test.MockChannel{},
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
		Trigger:      push.TriggerItemAdded,
	})

	require.NoError(t, err)
	assert.Contains(t, result.MessageID, string(push.TriggerItemAdded)+"_")
}

func TestDispatchPrunesDeadTokens(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-live", "tok-dead", "tok-flaky"}

	channel := &test.MockChannel{
		ErrByToken: map[string]error{
			"tok-dead":  push.NewChannelError(push.CodeTokenUnregistered, "gone"),
			"tok-flaky": errors.New("connection reset"),
		},
	}

	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 1, result.Removed)

	// 只有网关明确报死的 token 被清理,瞬时失败的保留
	assert.ElementsMatch(t, []string{"tok-live", "tok-flaky"}, registry.Sets["u1"])
}

func TestDispatchTransientFailuresKeepTokens(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b"}

	channel := &test.MockChannel{
		ErrByToken: map[string]error{
			"tok-a": push.NewChannelError(push.CodeQuotaExceeded, "slow down"),
			"tok-b": errors.New("dial timeout"),
		},
	}

	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Equal(t, 0, result.Removed)
	assert.Equal(t, 0, registry.RemoveCalls)
	assert.Len(t, registry.Sets["u1"], 2)
}

func TestDispatchCleanupFailureReported(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-live", "tok-dead"}
	registry.WriteE = errors.New("redis down")

	channel := &test.MockChannel{
		ErrByToken: map[string]error{
			"tok-dead": push.NewChannelError(push.CodeInvalidToken, "bad token"),
		},
	}

	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	// 通知已经发出,清理失败只能按部分成功上报,不算整体失败
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 0, result.Removed)
	require.Error(t, result.CleanupErr)
}

func TestDispatchCanceledContextSkipsCleanup(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-dead"}

	ctx, cancel := context.WithCancel(context.Background())

	// 投递过程中调用方放弃:通道返回死 token 错误并取消上层 context
	channel := channelFunc(func(_ context.Context, token string, _ push.Payload) error {
		cancel()
		return push.NewChannelError(push.CodeTokenUnregistered, "gone")
	})

	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)

	result, err := dispatcher.Dispatch(ctx, push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Failed)

	// 被放弃的分发不得执行清理
	assert.Equal(t, 0, registry.RemoveCalls)
	assert.Len(t, registry.Sets["u1"], 1)
}

func TestDispatchSavesRecord(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-dead"}

	channel := &test.MockChannel{
		ErrByToken: map[string]error{
			"tok-dead": push.NewChannelError(push.CodeTokenUnregistered, "gone"),
		},
	}

	store := &test.MockStore{}
	dispatcher := newTestDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
	)
	dispatcher.SetStore(store, "lista")

	_, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		MessageID:    "msg-7",
		TargetUserID: "u1",
		Title:        "t",
		Body:         "b",
		Trigger:      push.TriggerItemAdded,
	})

	require.NoError(t, err)
	require.Len(t, store.Records, 1)

	record := store.Records[0]
	assert.Equal(t, "msg-7", record.MessageID)
	assert.Equal(t, "lista", record.Namespace)
	assert.Equal(t, push.TriggerItemAdded, record.Trigger)
	assert.Equal(t, 1, record.Sent)
	assert.Equal(t, 1, record.Removed)
	assert.Equal(t, 1, record.Failed)
	assert.Equal(t, "partial", record.Status)
}

func TestDispatchPayloadUsesDefaultLink(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a"}

	channel := &test.MockChannel{}
	dispatcher := push.NewDispatcher(
		&test.MockUserResolver{Known: map[string]bool{"u1": true}},
		registry,
		channel,
		push.Options{PayloadImage: "/icon.png", DefaultLink: "/"},
	)

	_, err := dispatcher.Dispatch(context.Background(), push.NotificationRequest{
		TargetUserID: "u1",
		Title:        "título",
		Body:         "corpo",
	})

	require.NoError(t, err)
	assert.Equal(t, "título", channel.LastLoad.Title)
	assert.Equal(t, "/icon.png", channel.LastLoad.Image)
	assert.Equal(t, "/", channel.LastLoad.Link)
}
