package trigger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradekit/stratrunner/pkg/eventlog"
	"github.com/tradekit/stratrunner/pkg/models"
	"github.com/tradekit/stratrunner/pkg/runtime"
	"github.com/tradekit/stratrunner/pkg/storage"
)

func newTestScheduler(t *testing.T) (*Scheduler, *storage.MemoryEphemeralStore, *storage.MemoryActionStore) {
	t.Helper()

	ephemeral := storage.NewMemoryEphemeralStore()
	actions := storage.NewMemoryActionStore()
	logger := eventlog.NewLogger(ephemeral, actions, nil)
	invoker := &runtime.StaticToolInvoker{
		Results: map[string]runtime.ToolResult{
			"send_transaction": {Result: "sent", TxHash: "0xdead"},
		},
	}
	controller := runtime.NewController(logger, ephemeral, runtime.NewScriptRunner(invoker))

	return NewScheduler(controller, ephemeral), ephemeral, actions
}

func testSubscription() Subscription {
	return Subscription{
		ID:                 "sub-1",
		WalletAddress:      "0xAB12",
		DelegationWalletID: "wallet-1",
		Strategy: models.StrategyDefinition{
			Name:     "send",
			Code:     `tool("send_transaction", {amount: 1});`,
			Schedule: "* * * * * *",
		},
	}
}

func TestRunOnceExecutesAndReleasesMarker(t *testing.T) {
	scheduler, ephemeral, actions := newTestScheduler(t)
	ctx := context.Background()

	scheduler.runOnce(testSubscription())

	// The controller released the wallet lock on completion
	_, err := ephemeral.Get(ctx, storage.ExecutionMarkerKey("0xAB12"))
	assert.Equal(t, storage.ErrKeyNotFound, err)

	// The run was flushed to durable action records
	assert.Eventually(t, func() bool {
		records, err := actions.ListActions(ctx, "sub-1")
		return err == nil && len(records) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRunOnceSkipsWhenMarkerPresent(t *testing.T) {
	scheduler, ephemeral, actions := newTestScheduler(t)
	ctx := context.Background()

	markerKey := storage.ExecutionMarkerKey("0xAB12")
	require.NoError(t, ephemeral.Put(ctx, markerKey, []byte(time.Now().UTC().Format(time.RFC3339))))

	scheduler.runOnce(testSubscription())

	// The skipped tick must not touch the existing marker
	_, err := ephemeral.Get(ctx, markerKey)
	assert.NoError(t, err)

	records, err := actions.ListActions(ctx, "sub-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAddRejectsInvalidSchedule(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	sub := testSubscription()
	sub.Strategy.Schedule = "not a cron expression"
	assert.Error(t, scheduler.Add(sub))
}

func TestAddReplacesExistingSubscription(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	sub := testSubscription()
	require.NoError(t, scheduler.Add(sub))
	require.NoError(t, scheduler.Add(sub))

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.Len(t, scheduler.entries, 1)
}

func TestRemoveDeregistersSubscription(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t)

	sub := testSubscription()
	require.NoError(t, scheduler.Add(sub))
	scheduler.Remove(sub.ID)

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	assert.Empty(t, scheduler.entries)
}

func TestScheduledRunFires(t *testing.T) {
	scheduler, _, actions := newTestScheduler(t)

	require.NoError(t, scheduler.Add(testSubscription()))
	scheduler.Start()
	defer scheduler.Stop()

	// The every-second schedule should fire within a couple of seconds
	assert.Eventually(t, func() bool {
		records, err := actions.ListActions(context.Background(), "sub-1")
		return err == nil && len(records) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}
