package storage

import (
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// TaskFilter narrows ListTasks queries.
type TaskFilter struct {
	Status   types.TaskStatus
	ZoneName string
	Limit    int
	Offset   int
}

// Store defines the transactional persistence contract for the Task
// Execution Subsystem: tasks, artifacts, storage locations, log-stream
// sessions, and the collateral projection tables executors write to.
type Store interface {
	// Tasks
	CreateTask(task *types.Task) error
	GetTask(id string) (*types.Task, error)
	ListTasks(filter TaskFilter) ([]*types.Task, error)
	ListPendingTasks() ([]*types.Task, error)
	ListRunningTasks() ([]*types.Task, error)
	// ClaimTask performs the compare-and-set pending->running transition
	// in a single transaction; ok is false if the task was not pending.
	ClaimTask(id string) (ok bool, err error)
	UpdateTask(task *types.Task) error
	CancelPendingTask(id string) (ok bool, err error)
	DeleteTasksOlderThan(status types.TaskStatus, olderThanUnixSeconds int64) (int, error)

	// Artifact storage locations
	CreateStorageLocation(loc *types.ArtifactStorageLocation) error
	GetStorageLocation(id string) (*types.ArtifactStorageLocation, error)
	ListStorageLocations() ([]*types.ArtifactStorageLocation, error)
	UpdateStorageLocation(loc *types.ArtifactStorageLocation) error
	DeleteStorageLocation(id string) error

	// Artifacts
	CreateArtifact(a *types.Artifact) error
	GetArtifact(id string) (*types.Artifact, error)
	GetArtifactByPath(path string) (*types.Artifact, error)
	ListArtifactsByLocation(locationID string) ([]*types.Artifact, error)
	UpdateArtifact(a *types.Artifact) error
	DeleteArtifact(id string) error
	BulkDeleteArtifactsByPath(paths []string) (int, error)
	CountArtifactAggregates(locationID string) (count int64, totalSize int64, err error)

	// Log-stream sessions
	CreateLogSession(s *types.LogStreamSession) error
	GetLogSession(sessionID string) (*types.LogStreamSession, error)
	ListLogSessions() ([]*types.LogStreamSession, error)
	UpdateLogSession(s *types.LogStreamSession) error
	DeleteLogSessionsOlderThan(status types.LogSessionStatus, olderThanUnixSeconds int64) (int, error)

	// Collateral projections
	UpsertZone(z *types.Zone) error
	ListZones() ([]*types.Zone, error)
	UpsertIPAddress(a *types.IPAddress) error
	DeleteIPAddress(hostname, addrObj string) error
	ListIPAddresses(hostname string) ([]*types.IPAddress, error)
	UpsertNetworkInterface(n *types.NetworkInterface) error
	UpsertZFSDataset(d *types.ZFSDataset) error
	ListZFSDatasets(pool string) ([]*types.ZFSDataset, error)

	Close() error
}
