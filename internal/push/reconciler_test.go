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

func TestReconcileRemovesOnlyPermanentFailures(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a", "tok-b", "tok-c"}

	reconciler := push.NewReconciler(registry)

	outcomes := []push.DeliveryOutcome{
		{Token: "tok-a", Status: push.StatusDelivered},
		{Token: "tok-b", Status: push.StatusFailed, Class: push.FailurePermanent},
		{Token: "tok-c", Status: push.StatusFailed, Class: push.FailureTransient},
	}

	removed, err := reconciler.Reconcile(context.Background(), "u1", outcomes)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.ElementsMatch(t, []string{"tok-a", "tok-c"}, registry.Sets["u1"])
}

func TestReconcileNoDeadTokensNoWrites(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-a"}

	reconciler := push.NewReconciler(registry)

	outcomes := []push.DeliveryOutcome{
		{Token: "tok-a", Status: push.StatusDelivered},
	}

	removed, err := reconciler.Reconcile(context.Background(), "u1", outcomes)

	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 0, registry.TotalWrites())
}

func TestReconcileScopedToSingleUser(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"shared-token"}
	registry.Sets["u2"] = []string{"shared-token"}

	reconciler := push.NewReconciler(registry)

	outcomes := []push.DeliveryOutcome{
		{Token: "shared-token", Status: push.StatusFailed, Class: push.FailurePermanent},
	}

	removed, err := reconciler.Reconcile(context.Background(), "u1", outcomes)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, registry.Sets["u1"])

	// 相同 token 字符串出现在其他用户集合时不受波及
	assert.Equal(t, []string{"shared-token"}, registry.Sets["u2"])
}

func TestReconcileRegistryFailure(t *testing.T) {
	registry := test.NewMockRegistry()
	registry.Sets["u1"] = []string{"tok-dead"}
	registry.WriteE = errors.New("redis down")

	reconciler := push.NewReconciler(registry)

	outcomes := []push.DeliveryOutcome{
		{Token: "tok-dead", Status: push.StatusFailed, Class: push.FailurePermanent},
	}

	removed, err := reconciler.Reconcile(context.Background(), "u1", outcomes)

	require.Error(t, err)
	assert.Equal(t, 0, removed)
}
