package scheduler

import (
	"context"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/types"
)

// recoverCrashedTasks runs once at startup: every task left in running
// by a previous process whose start is older than the grace window is
// swept to failed with reason worker_crash. A running task that started
// within the grace window is left as it is; the sweep does not revisit it.
func (q *TaskQueue) recoverCrashedTasks() error {
	running, err := q.store.ListRunningTasks()
	if err != nil {
		return err
	}

	grace := q.cfg.CrashRecoveryGrace
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	cutoff := time.Now().Add(-grace)

	for _, task := range running {
		if task.StartedAt.After(cutoff) {
			continue
		}
		task.Status = types.TaskFailed
		task.CompletedAt = time.Now()
		task.Error = "worker_crash"
		if err := q.store.UpdateTask(task); err != nil {
			q.logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to recover crashed task")
			continue
		}
		q.logger.Warn().Str("task_id", task.ID).Msg("recovered crashed task, marked failed")
	}
	return nil
}

// cleanupLoop periodically deletes terminal tasks older than the
// configured retention window, mirroring the teacher's reconciliation
// ticker-loop shape.
func (q *TaskQueue) cleanupLoop(ctx context.Context) {
	defer q.wg.Done()

	interval := q.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.runCleanup()
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (q *TaskQueue) runCleanup() {
	completedRetention := q.cfg.RetentionCompleted
	if completedRetention <= 0 {
		completedRetention = 7 * 24 * time.Hour
	}
	failedRetention := q.cfg.RetentionFailed
	if failedRetention <= 0 {
		failedRetention = 30 * 24 * time.Hour
	}

	now := time.Now()
	if n, err := q.store.DeleteTasksOlderThan(types.TaskCompleted, now.Add(-completedRetention).Unix()); err != nil {
		q.logger.Error().Err(err).Msg("cleanup of completed tasks failed")
	} else if n > 0 {
		q.logger.Info().Int("count", n).Msg("deleted retired completed tasks")
	}

	if n, err := q.store.DeleteTasksOlderThan(types.TaskFailed, now.Add(-failedRetention).Unix()); err != nil {
		q.logger.Error().Err(err).Msg("cleanup of failed tasks failed")
	} else if n > 0 {
		q.logger.Info().Int("count", n).Msg("deleted retired failed tasks")
	}
}
