package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestClaimTask_ExclusiveUnderConcurrency(t *testing.T) {
	store := newTestStore(t)
	task := &types.Task{ID: uuid.NewString(), Operation: "zpool_create", Status: types.TaskPending, CreatedAt: time.Now()}
	require.NoError(t, store.CreateTask(task))

	const workers = 16
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			ok, err := store.ClaimTask(task.ID)
			assert.NoError(t, err)
			results <- ok
		}()
	}

	claims := 0
	for i := 0; i < workers; i++ {
		if <-results {
			claims++
		}
	}
	assert.Equal(t, 1, claims)

	got, err := store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TaskRunning, got.Status)
}

func TestCancelPendingTask_OnlyAffectsPending(t *testing.T) {
	store := newTestStore(t)
	task := &types.Task{ID: uuid.NewString(), Status: types.TaskPending, CreatedAt: time.Now()}
	require.NoError(t, store.CreateTask(task))

	ok, err := store.CancelPendingTask(task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.CancelPendingTask(task.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already-cancelled task must not be cancellable again")
}

func TestCountArtifactAggregates(t *testing.T) {
	store := newTestStore(t)
	loc := &types.ArtifactStorageLocation{ID: "loc1", Path: "/isos", Type: types.ArtifactTypeISO}
	require.NoError(t, store.CreateStorageLocation(loc))

	require.NoError(t, store.CreateArtifact(&types.Artifact{ID: "a1", StorageLocationID: "loc1", Path: "/isos/a.iso", Size: 100}))
	require.NoError(t, store.CreateArtifact(&types.Artifact{ID: "a2", StorageLocationID: "loc1", Path: "/isos/b.iso", Size: 200}))
	require.NoError(t, store.CreateArtifact(&types.Artifact{ID: "a3", StorageLocationID: "other", Path: "/images/c.img", Size: 999}))

	count, total, err := store.CountArtifactAggregates("loc1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(300), total)
}

func TestBulkDeleteArtifactsByPath(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateArtifact(&types.Artifact{ID: "a1", Path: "/isos/a.iso"}))
	require.NoError(t, store.CreateArtifact(&types.Artifact{ID: "a2", Path: "/isos/b.iso"}))

	deleted, err := store.BulkDeleteArtifactsByPath([]string{"/isos/a.iso", "/isos/missing.iso"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetArtifact("a1")
	assert.Error(t, err)
	_, err = store.GetArtifact("a2")
	assert.NoError(t, err)
}

func TestDeleteTasksOlderThan(t *testing.T) {
	store := newTestStore(t)
	old := &types.Task{ID: "old", Status: types.TaskCompleted, CompletedAt: time.Now().Add(-48 * time.Hour)}
	recent := &types.Task{ID: "recent", Status: types.TaskCompleted, CompletedAt: time.Now()}
	require.NoError(t, store.CreateTask(old))
	require.NoError(t, store.CreateTask(recent))

	cutoff := time.Now().Add(-24 * time.Hour).Unix()
	deleted, err := store.DeleteTasksOlderThan(types.TaskCompleted, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.GetTask("old")
	assert.Error(t, err)
	_, err = store.GetTask("recent")
	assert.NoError(t, err)
}
