package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*TaskQueue, storage.Store, *registry.Registry) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New()
	cfg := config.TaskQueueConfig{
		GlobalMax:    4,
		TickInterval: 20 * time.Millisecond,
	}
	return New(store, reg, cfg), store, reg
}

func TestEnqueue_RejectsMissingDependency(t *testing.T) {
	q, _, _ := newTestQueue(t)
	_, err := q.Enqueue(&types.Task{Operation: "noop", DependsOn: "does-not-exist"})
	assert.Error(t, err)
}

func TestCancel_PendingTaskNeverRuns(t *testing.T) {
	q, _, reg := newTestQueue(t)
	invoked := false
	var mu sync.Mutex
	reg.Register(registry.Entry{
		Operation:      "noop",
		DefaultTimeout: time.Second,
		Fn: func(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
			mu.Lock()
			invoked = true
			mu.Unlock()
			return types.HandlerResult{Success: true}
		},
	})

	id, err := q.Enqueue(&types.Task{Operation: "noop"})
	require.NoError(t, err)
	require.NoError(t, q.Cancel(id))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	time.Sleep(100 * time.Millisecond)

	task, err := q.Get(id)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCancelled, task.Status)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, invoked, "cancelled pending task must never invoke its handler")
}

func TestDependencyOrder_RunsAfterCompletion(t *testing.T) {
	q, _, reg := newTestQueue(t)
	var order []string
	var mu sync.Mutex
	record := func(name string) registry.HandlerFunc {
		return func(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return types.HandlerResult{Success: true}
		}
	}
	reg.Register(registry.Entry{Operation: "a", DefaultTimeout: time.Second, Fn: record("a")})
	reg.Register(registry.Entry{Operation: "b", DefaultTimeout: time.Second, Fn: record("b")})

	aID, err := q.Enqueue(&types.Task{Operation: "a", Priority: types.PriorityHigh})
	require.NoError(t, err)
	_, err = q.Enqueue(&types.Task{Operation: "b", Priority: types.PriorityHigh, DependsOn: aID})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestDependencyFailure_PropagatesCancellation(t *testing.T) {
	q, _, reg := newTestQueue(t)
	reg.Register(registry.Entry{
		Operation:      "fails",
		DefaultTimeout: time.Second,
		Fn: func(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
			return types.HandlerResult{Success: false, Error: "boom"}
		},
	})

	aID, err := q.Enqueue(&types.Task{Operation: "fails"})
	require.NoError(t, err)
	bID, err := q.Enqueue(&types.Task{Operation: "fails", DependsOn: aID})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Start(ctx))
	defer q.Stop()

	require.Eventually(t, func() bool {
		b, err := q.Get(bID)
		return err == nil && b.Status == types.TaskCancelled
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerCrashRecovery_FailsStaleRunning(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	stale := &types.Task{ID: "stale", Status: types.TaskRunning, StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, store.CreateTask(stale))

	reg := registry.New()
	cfg := config.TaskQueueConfig{CrashRecoveryGrace: time.Minute}
	q := New(store, reg, cfg)

	require.NoError(t, q.recoverCrashedTasks())

	task, err := store.GetTask("stale")
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, task.Status)
	assert.Equal(t, "worker_crash", task.Error)
}
