package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTasks             = []byte("tasks")
	bucketStorageLocations  = []byte("storage_locations")
	bucketArtifacts         = []byte("artifacts")
	bucketLogSessions       = []byte("log_sessions")
	bucketZones             = []byte("zones")
	bucketIPAddresses       = []byte("ip_addresses")
	bucketNetworkInterfaces = []byte("network_interfaces")
	bucketZFSDatasets       = []byte("zfs_datasets")
)

// BoltStore implements Store using an embedded bbolt database, mirroring
// the bucket-per-entity layout the rest of this codebase's persistence
// layer uses.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if necessary) the zoneweaverd database
// file under dataDir and ensures every bucket exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "zoneweaverd.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketTasks,
			bucketStorageLocations,
			bucketArtifacts,
			bucketLogSessions,
			bucketZones,
			bucketIPAddresses,
			bucketNetworkInterfaces,
			bucketZFSDatasets,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// --- Tasks ---

func (s *BoltStore) CreateTask(task *types.Task) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data, err := json.Marshal(task)
		if err != nil {
			return err
		}
		return b.Put([]byte(task.ID), data)
	})
}

func (s *BoltStore) GetTask(id string) (*types.Task, error) {
	var task types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task not found: %s", id)
		}
		return json.Unmarshal(data, &task)
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *BoltStore) ListTasks(filter TaskFilter) ([]*types.Task, error) {
	var tasks []*types.Task
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		return b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if filter.Status != "" && task.Status != filter.Status {
				return nil
			}
			if filter.ZoneName != "" && task.ZoneName != filter.ZoneName {
				return nil
			}
			tasks = append(tasks, &task)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if filter.Offset > 0 && filter.Offset < len(tasks) {
		tasks = tasks[filter.Offset:]
	} else if filter.Offset >= len(tasks) {
		tasks = nil
	}
	if filter.Limit > 0 && filter.Limit < len(tasks) {
		tasks = tasks[:filter.Limit]
	}
	return tasks, nil
}

func (s *BoltStore) ListPendingTasks() ([]*types.Task, error) {
	return s.ListTasks(TaskFilter{Status: types.TaskPending})
}

func (s *BoltStore) ListRunningTasks() ([]*types.Task, error) {
	return s.ListTasks(TaskFilter{Status: types.TaskRunning})
}

// ClaimTask is the compare-and-set claim primitive: it re-reads the task
// inside the write transaction and only flips pending->running if no
// other worker has already claimed it. bbolt's single-writer Update
// transaction makes this atomic without a separate application lock.
func (s *BoltStore) ClaimTask(id string) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task not found: %s", id)
		}
		var task types.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		if task.Status != types.TaskPending {
			return nil // another worker already claimed it
		}
		task.Status = types.TaskRunning
		task.StartedAt = time.Now()
		updated, err := json.Marshal(&task)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), updated); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	return claimed, err
}

func (s *BoltStore) UpdateTask(task *types.Task) error {
	return s.CreateTask(task) // upsert by overwrite
}

// CancelPendingTask atomically transitions a pending task to cancelled;
// ok is false if the task was not pending (e.g. already claimed/terminal).
func (s *BoltStore) CancelPendingTask(id string) (bool, error) {
	cancelled := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("task not found: %s", id)
		}
		var task types.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		if task.Status != types.TaskPending {
			return nil
		}
		task.Status = types.TaskCancelled
		task.CompletedAt = time.Now()
		updated, err := json.Marshal(&task)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), updated); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	return cancelled, err
}

func (s *BoltStore) DeleteTasksOlderThan(status types.TaskStatus, olderThanUnixSeconds int64) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTasks)
		var staleKeys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var task types.Task
			if err := json.Unmarshal(v, &task); err != nil {
				return err
			}
			if task.Status == status && task.CompletedAt.Unix() < olderThanUnixSeconds {
				key := append([]byte(nil), k...)
				staleKeys = append(staleKeys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// --- Artifact storage locations ---

func (s *BoltStore) CreateStorageLocation(loc *types.ArtifactStorageLocation) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStorageLocations)
		data, err := json.Marshal(loc)
		if err != nil {
			return err
		}
		return b.Put([]byte(loc.ID), data)
	})
}

func (s *BoltStore) GetStorageLocation(id string) (*types.ArtifactStorageLocation, error) {
	var loc types.ArtifactStorageLocation
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStorageLocations)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("storage location not found: %s", id)
		}
		return json.Unmarshal(data, &loc)
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *BoltStore) ListStorageLocations() ([]*types.ArtifactStorageLocation, error) {
	var locs []*types.ArtifactStorageLocation
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStorageLocations)
		return b.ForEach(func(k, v []byte) error {
			var loc types.ArtifactStorageLocation
			if err := json.Unmarshal(v, &loc); err != nil {
				return err
			}
			locs = append(locs, &loc)
			return nil
		})
	})
	return locs, err
}

func (s *BoltStore) UpdateStorageLocation(loc *types.ArtifactStorageLocation) error {
	return s.CreateStorageLocation(loc)
}

func (s *BoltStore) DeleteStorageLocation(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStorageLocations)
		return b.Delete([]byte(id))
	})
}

// --- Artifacts ---

func (s *BoltStore) CreateArtifact(a *types.Artifact) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return b.Put([]byte(a.ID), data)
	})
}

func (s *BoltStore) GetArtifact(id string) (*types.Artifact, error) {
	var a types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("artifact not found: %s", id)
		}
		return json.Unmarshal(data, &a)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) GetArtifactByPath(path string) (*types.Artifact, error) {
	var found *types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var a types.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.Path == path {
				found = &a
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("artifact not found for path: %s", path)
	}
	return found, nil
}

func (s *BoltStore) ListArtifactsByLocation(locationID string) ([]*types.Artifact, error) {
	var artifacts []*types.Artifact
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var a types.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.StorageLocationID == locationID {
				artifacts = append(artifacts, &a)
			}
			return nil
		})
	})
	return artifacts, err
}

func (s *BoltStore) UpdateArtifact(a *types.Artifact) error {
	return s.CreateArtifact(a)
}

func (s *BoltStore) DeleteArtifact(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.Delete([]byte(id))
	})
}

// BulkDeleteArtifactsByPath removes every artifact row whose path is in
// paths in a single transaction, avoiding per-row round-trips.
func (s *BoltStore) BulkDeleteArtifactsByPath(paths []string) (int, error) {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		var staleKeys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var a types.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if want[a.Path] {
				key := append([]byte(nil), k...)
				staleKeys = append(staleKeys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// CountArtifactAggregates recomputes file_count/total_size for a
// location directly from its artifact rows, the source of truth the
// cached location fields must track.
func (s *BoltStore) CountArtifactAggregates(locationID string) (int64, int64, error) {
	var count, totalSize int64
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketArtifacts)
		return b.ForEach(func(k, v []byte) error {
			var a types.Artifact
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if a.StorageLocationID == locationID {
				count++
				totalSize += a.Size
			}
			return nil
		})
	})
	return count, totalSize, err
}

// --- Log-stream sessions ---

func (s *BoltStore) CreateLogSession(sess *types.LogStreamSession) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogSessions)
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return b.Put([]byte(sess.SessionID), data)
	})
}

func (s *BoltStore) GetLogSession(sessionID string) (*types.LogStreamSession, error) {
	var sess types.LogStreamSession
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogSessions)
		data := b.Get([]byte(sessionID))
		if data == nil {
			return fmt.Errorf("log session not found: %s", sessionID)
		}
		return json.Unmarshal(data, &sess)
	})
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *BoltStore) ListLogSessions() ([]*types.LogStreamSession, error) {
	var sessions []*types.LogStreamSession
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogSessions)
		return b.ForEach(func(k, v []byte) error {
			var sess types.LogStreamSession
			if err := json.Unmarshal(v, &sess); err != nil {
				return err
			}
			sessions = append(sessions, &sess)
			return nil
		})
	})
	return sessions, err
}

func (s *BoltStore) UpdateLogSession(sess *types.LogStreamSession) error {
	return s.CreateLogSession(sess)
}

func (s *BoltStore) DeleteLogSessionsOlderThan(status types.LogSessionStatus, olderThanUnixSeconds int64) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLogSessions)
		var staleKeys [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var sess types.LogStreamSession
			if err := json.Unmarshal(v, &sess); err != nil {
				return err
			}
			if sess.Status == status && sess.DisconnectedAt.Unix() < olderThanUnixSeconds {
				key := append([]byte(nil), k...)
				staleKeys = append(staleKeys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range staleKeys {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// --- Collateral projections ---

func (s *BoltStore) UpsertZone(z *types.Zone) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZones)
		data, err := json.Marshal(z)
		if err != nil {
			return err
		}
		return b.Put([]byte(z.Name), data)
	})
}

func (s *BoltStore) ListZones() ([]*types.Zone, error) {
	var zones []*types.Zone
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZones)
		return b.ForEach(func(k, v []byte) error {
			var z types.Zone
			if err := json.Unmarshal(v, &z); err != nil {
				return err
			}
			zones = append(zones, &z)
			return nil
		})
	})
	return zones, err
}

func ipAddressKey(hostname, addrObj string) []byte {
	return []byte(hostname + "/" + addrObj)
}

func (s *BoltStore) UpsertIPAddress(a *types.IPAddress) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIPAddresses)
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return b.Put(ipAddressKey(a.Hostname, a.AddrObj), data)
	})
}

func (s *BoltStore) DeleteIPAddress(hostname, addrObj string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIPAddresses)
		return b.Delete(ipAddressKey(hostname, addrObj))
	})
}

func (s *BoltStore) ListIPAddresses(hostname string) ([]*types.IPAddress, error) {
	var addrs []*types.IPAddress
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIPAddresses)
		return b.ForEach(func(k, v []byte) error {
			var a types.IPAddress
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			if hostname == "" || a.Hostname == hostname {
				addrs = append(addrs, &a)
			}
			return nil
		})
	})
	return addrs, err
}

func (s *BoltStore) UpsertNetworkInterface(n *types.NetworkInterface) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketNetworkInterfaces)
		data, err := json.Marshal(n)
		if err != nil {
			return err
		}
		return b.Put([]byte(n.Hostname+"/"+n.Name), data)
	})
}

func (s *BoltStore) UpsertZFSDataset(d *types.ZFSDataset) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZFSDatasets)
		data, err := json.Marshal(d)
		if err != nil {
			return err
		}
		return b.Put([]byte(d.Name), data)
	})
}

func (s *BoltStore) ListZFSDatasets(pool string) ([]*types.ZFSDataset, error) {
	var datasets []*types.ZFSDataset
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketZFSDatasets)
		return b.ForEach(func(k, v []byte) error {
			var d types.ZFSDataset
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if pool == "" || d.Pool == pool {
				datasets = append(datasets, &d)
			}
			return nil
		})
	})
	return datasets, err
}
