// Package scheduler implements the TaskQueue: a persistent, priority- and
// dependency-aware queue of units of work, with concurrency limits,
// retries, cancellation, dependency resolution, and cleanup.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/log"
	"github.com/makr91/zoneweaver-api/pkg/metrics"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/rs/zerolog"
)

// TaskQueue claims and dispatches pending tasks, enforcing priority
// ordering, dependency chains, and concurrency caps.
type TaskQueue struct {
	store    storage.Store
	registry *registry.Registry
	cfg      config.TaskQueueConfig
	logger   zerolog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu          sync.Mutex
	runningOps  map[string]int  // operation -> count of in-flight tasks
	zoneBusy    map[string]bool // zone_name -> a per-zone-exclusive task is running
	cancelFlags map[string]*cancelFlag
}

type cancelFlag struct {
	mu        sync.Mutex
	cancelled bool
}

func (c *cancelFlag) set() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

func (c *cancelFlag) get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// New creates a TaskQueue bound to store and reg, tuned by cfg.
func New(store storage.Store, reg *registry.Registry, cfg config.TaskQueueConfig) *TaskQueue {
	return &TaskQueue{
		store:       store,
		registry:    reg,
		cfg:         cfg,
		logger:      log.WithComponent("scheduler"),
		stopCh:      make(chan struct{}),
		runningOps:  make(map[string]int),
		zoneBusy:    make(map[string]bool),
		cancelFlags: make(map[string]*cancelFlag),
	}
}

// Start runs the worker-crash recovery sweep, then begins the scheduling
// and cleanup loops.
func (q *TaskQueue) Start(ctx context.Context) error {
	if err := q.recoverCrashedTasks(); err != nil {
		return fmt.Errorf("crash recovery sweep failed: %w", err)
	}

	q.wg.Add(2)
	go q.scheduleLoop(ctx)
	go q.cleanupLoop(ctx)
	return nil
}

// Stop signals both loops to exit and waits for them.
func (q *TaskQueue) Stop() {
	close(q.stopCh)
	q.wg.Wait()
}

// Enqueue validates and persists task as pending, returning its id.
func (q *TaskQueue) Enqueue(task *types.Task) (string, error) {
	if task.DependsOn != "" {
		dep, err := q.store.GetTask(task.DependsOn)
		if err != nil {
			return "", fmt.Errorf("depends_on task does not exist: %s", task.DependsOn)
		}
		if dep.Status.IsTerminal() && dep.Status != types.TaskCompleted {
			return "", fmt.Errorf("depends_on task %s is already %s", dep.ID, dep.Status)
		}
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.Priority == "" {
		task.Priority = types.PriorityMedium
	}
	task.Status = types.TaskPending
	task.CreatedAt = time.Now()

	if err := q.store.CreateTask(task); err != nil {
		return "", fmt.Errorf("failed to persist task: %w", err)
	}
	metrics.TasksTotal.WithLabelValues(string(task.Status)).Inc()
	return task.ID, nil
}

// Cancel marks a pending task cancelled directly, or sets a running
// task's cooperative cancellation flag.
func (q *TaskQueue) Cancel(id string) error {
	ok, err := q.store.CancelPendingTask(id)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	q.mu.Lock()
	flag, exists := q.cancelFlags[id]
	q.mu.Unlock()
	if exists {
		flag.set()
		return nil
	}

	task, err := q.store.GetTask(id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("task %s is already terminal (%s)", id, task.Status)
	}
	return nil
}

// Get returns a task's current record.
func (q *TaskQueue) Get(id string) (*types.Task, error) {
	return q.store.GetTask(id)
}

// List returns tasks matching filter.
func (q *TaskQueue) List(filter storage.TaskFilter) ([]*types.Task, error) {
	return q.store.ListTasks(filter)
}

func (q *TaskQueue) scheduleLoop(ctx context.Context) {
	defer q.wg.Done()

	interval := q.cfg.TickInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := q.tick(ctx); err != nil {
				q.logger.Error().Err(err).Msg("scheduling tick failed")
			}
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick performs one scheduling cycle: select candidates, filter
// eligibility, claim, dispatch.
func (q *TaskQueue) tick(ctx context.Context) error {
	candidates, err := q.store.ListPendingTasks()
	if err != nil {
		return fmt.Errorf("failed to list pending tasks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority.Ord() != candidates[j].Priority.Ord() {
			return candidates[i].Priority.Ord() < candidates[j].Priority.Ord()
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	for _, task := range candidates {
		if cancelled, err := q.resolveDependency(task); err != nil {
			q.logger.Error().Err(err).Str("task_id", task.ID).Msg("dependency resolution failed")
			continue
		} else if cancelled {
			continue
		}

		if !q.eligible(task) {
			continue
		}

		claimed, err := q.store.ClaimTask(task.ID)
		if err != nil {
			q.logger.Error().Err(err).Str("task_id", task.ID).Msg("claim failed")
			continue
		}
		if !claimed {
			continue // another worker won the race
		}

		q.reserve(task)
		q.wg.Add(1)
		go q.execute(ctx, task)
	}
	return nil
}

// resolveDependency propagates cancellation when a task's dependency
// ended failed/cancelled; returns cancelled=true if this task was just
// cancelled and should not be considered further this tick.
func (q *TaskQueue) resolveDependency(task *types.Task) (bool, error) {
	if task.DependsOn == "" {
		return false, nil
	}
	dep, err := q.store.GetTask(task.DependsOn)
	if err != nil {
		return false, fmt.Errorf("dependency %s vanished: %w", task.DependsOn, err)
	}
	if dep.Status == types.TaskFailed || dep.Status == types.TaskCancelled {
		task.Status = types.TaskCancelled
		task.CompletedAt = time.Now()
		task.Error = fmt.Sprintf("dependency %s ended %s", dep.ID, dep.Status)
		if err := q.store.UpdateTask(task); err != nil {
			return false, err
		}
		metrics.TasksTotal.WithLabelValues(string(types.TaskCancelled)).Inc()
		return true, nil
	}
	return false, nil
}

// eligible reports whether task may be claimed this tick given its
// dependency state and the concurrency policy.
func (q *TaskQueue) eligible(task *types.Task) bool {
	if task.DependsOn != "" {
		dep, err := q.store.GetTask(task.DependsOn)
		if err != nil || dep.Status != types.TaskCompleted {
			return false
		}
	}

	entry, ok := q.registry.Lookup(task.Operation)
	if !ok {
		return true // let dispatch surface unknown_operation
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	globalMax := q.cfg.GlobalMax
	if globalMax <= 0 {
		globalMax = 8
	}
	if q.totalRunningLocked() >= globalMax {
		return false
	}
	if entry.Serial && q.runningOps[task.Operation] > 0 {
		return false
	}
	if entry.PerZoneExclusive && q.zoneBusy[task.ZoneName] {
		return false
	}
	return true
}

func (q *TaskQueue) totalRunningLocked() int {
	total := 0
	for _, n := range q.runningOps {
		total += n
	}
	return total
}

func (q *TaskQueue) reserve(task *types.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.runningOps[task.Operation]++
	if entry, ok := q.registry.Lookup(task.Operation); ok && entry.PerZoneExclusive {
		q.zoneBusy[task.ZoneName] = true
	}
	q.cancelFlags[task.ID] = &cancelFlag{}
}

func (q *TaskQueue) release(task *types.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.runningOps[task.Operation]--
	if q.runningOps[task.Operation] <= 0 {
		delete(q.runningOps, task.Operation)
	}
	if entry, ok := q.registry.Lookup(task.Operation); ok && entry.PerZoneExclusive {
		delete(q.zoneBusy, task.ZoneName)
	}
	delete(q.cancelFlags, task.ID)
}

func (q *TaskQueue) execute(ctx context.Context, task *types.Task) {
	defer q.wg.Done()
	defer q.release(task)

	timer := metrics.NewSchedulingTimer()
	handle := &taskHandle{queue: q, task: task}

	result := q.registry.Dispatch(ctx, task, handle)
	timer.ObserveDuration()

	q.finalize(task, result)
}

// finalize applies a handler result to the task record: completed, or on
// failure either returned to pending at once (no backoff delay) when
// shouldRetry allows another attempt, or failed. With shouldRetry's
// current cap of one attempt, a failed task is never retried.
func (q *TaskQueue) finalize(task *types.Task, result types.HandlerResult) {
	fresh, err := q.store.GetTask(task.ID)
	if err != nil {
		q.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to reload task for finalize")
		return
	}

	if result.Success {
		fresh.Status = types.TaskCompleted
		fresh.CompletedAt = time.Now()
		fresh.ResultMessage = result.Message
		fresh.ProgressPercent = 100
		metrics.TasksTotal.WithLabelValues(string(types.TaskCompleted)).Inc()
	} else {
		fresh.Error = result.Error
		fresh.Attempt++
		if q.shouldRetry(fresh) {
			fresh.Status = types.TaskPending
			fresh.StartedAt = time.Time{}
			q.logger.Warn().Str("task_id", fresh.ID).Int("attempt", fresh.Attempt).Msg("task failed, scheduled for retry")
		} else {
			fresh.Status = types.TaskFailed
			fresh.CompletedAt = time.Now()
			metrics.TasksTotal.WithLabelValues(string(types.TaskFailed)).Inc()
		}
	}

	if err := q.store.UpdateTask(fresh); err != nil {
		q.logger.Error().Err(err).Str("task_id", fresh.ID).Msg("failed to persist finalized task")
	}
}

// shouldRetry is conservative by default: operations opt into retries by
// keeping Attempt below a small fixed cap; the registry carries no
// explicit retry policy field today, so this caps at zero retries unless
// a future handler sets metadata indicating otherwise.
func (q *TaskQueue) shouldRetry(task *types.Task) bool {
	const maxAttempts = 1
	return task.Attempt < maxAttempts
}

// taskHandle is the registry.TaskHandle implementation handed to
// executors; it reports progress by writing straight to the store and
// checks cooperative cancellation via the queue's in-memory flag.
type taskHandle struct {
	queue *TaskQueue
	task  *types.Task
}

func (h *taskHandle) TaskID() string   { return h.task.ID }
func (h *taskHandle) ZoneName() string { return h.task.ZoneName }

func (h *taskHandle) ReportProgress(percent int, info []byte) {
	fresh, err := h.queue.store.GetTask(h.task.ID)
	if err != nil {
		return
	}
	fresh.ProgressPercent = percent
	fresh.ProgressInfo = json.RawMessage(info)
	_ = h.queue.store.UpdateTask(fresh)
}

func (h *taskHandle) Cancelled() bool {
	h.queue.mu.Lock()
	flag, ok := h.queue.cancelFlags[h.task.ID]
	h.queue.mu.Unlock()
	if !ok {
		return false
	}
	return flag.get()
}
