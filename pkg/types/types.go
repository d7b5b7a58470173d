package types

import (
	"encoding/json"
	"time"
)

// Task is a unit of deferred, persisted, observable work executed by the queue.
type Task struct {
	ID              string
	Operation       string
	ZoneName        string // grouping key; concrete zone name or sentinel "system"/"artifact"
	Priority        TaskPriority
	Status          TaskStatus
	Metadata        json.RawMessage
	DependsOn       string // id of another task, or empty
	CreatedBy       string
	ProgressPercent int
	ProgressInfo    json.RawMessage
	Error           string
	ResultMessage   string
	Attempt         int
	CreatedAt       time.Time
	StartedAt       time.Time
	CompletedAt     time.Time
}

// TaskStatus is the lifecycle state of a Task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether status is a final state.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority orders scheduling candidates; CRITICAL first.
type TaskPriority string

const (
	PriorityCritical   TaskPriority = "CRITICAL"
	PriorityHigh       TaskPriority = "HIGH"
	PriorityMedium     TaskPriority = "MEDIUM"
	PriorityLow        TaskPriority = "LOW"
	PriorityBackground TaskPriority = "BACKGROUND"
)

// Ord returns a sort weight; lower sorts first (higher priority).
func (p TaskPriority) Ord() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	case PriorityBackground:
		return 4
	default:
		return 5
	}
}

// HandlerResult is what an executor returns; never an error, always a value.
type HandlerResult struct {
	Success      bool
	Message      string
	Error        string
	ProgressInfo json.RawMessage
}

// ArtifactStorageLocation is a configured filesystem path scanned for artifacts.
type ArtifactStorageLocation struct {
	ID               string
	Name             string
	Path             string
	Type             ArtifactType
	Enabled          bool
	FileCount        int64
	TotalSize        int64
	LastScanAt       time.Time
	ScanErrors       int
	LastErrorMessage string
	CreatedAt        time.Time
}

// ArtifactType is the kind of content a storage location holds.
type ArtifactType string

const (
	ArtifactTypeISO          ArtifactType = "iso"
	ArtifactTypeImage        ArtifactType = "image"
	ArtifactTypeProvisioning ArtifactType = "provisioning"
)

// Artifact is a file (ISO, image, or provisioning bundle) tracked by the inventory.
type Artifact struct {
	ID                string
	StorageLocationID string
	Filename          string
	Path              string
	Size              int64
	FileType          string
	Extension         string
	MimeType          string
	Checksum          string
	ChecksumAlgorithm ChecksumAlgorithm
	ChecksumVerified  *bool // nil = not checked
	SourceURL         string
	DiscoveredAt      time.Time
	LastVerified      time.Time
}

// ChecksumAlgorithm names a supported hash function.
type ChecksumAlgorithm string

const (
	ChecksumMD5    ChecksumAlgorithm = "md5"
	ChecksumSHA1   ChecksumAlgorithm = "sha1"
	ChecksumSHA256 ChecksumAlgorithm = "sha256"
)

// LogStreamSession is a per-session WebSocket log tail.
type LogStreamSession struct {
	SessionID      string
	Cookie         string
	LogName        string
	LogPath        string
	FollowLines    int
	GrepPattern    string
	Status         LogSessionStatus
	CreatedAt      time.Time
	ConnectedAt    time.Time
	DisconnectedAt time.Time
	LinesSent      int64
	ErrorMessage   string
}

// LogSessionStatus is the lifecycle state of a LogStreamSession.
type LogSessionStatus string

const (
	LogSessionCreated LogSessionStatus = "created"
	LogSessionActive  LogSessionStatus = "active"
	LogSessionClosed  LogSessionStatus = "closed"
	LogSessionError   LogSessionStatus = "error"
	LogSessionStopped LogSessionStatus = "stopped"
)

// Zone is a named virtualization sandbox on the host (collateral projection).
type Zone struct {
	Name       string
	State      string
	BrandType  string
	IPAddress  string
	UUID       string
	AutoBoot   bool
	LastSeenAt time.Time
}

// NetworkInterface is a collateral projection row written by ipaddr executors.
type NetworkInterface struct {
	Hostname  string
	Name      string
	Class     string
	State     string
	UpdatedAt time.Time
}

// IPAddress is a collateral projection row keyed by (hostname, addrobj).
type IPAddress struct {
	Hostname  string
	AddrObj   string
	Type      string // static, dhcp, addrconf
	Address   string
	State     string
	UpdatedAt time.Time
}

// NetworkStat is a collateral projection row for interface throughput samples.
type NetworkStat struct {
	Hostname  string
	Interface string
	RxBytes   int64
	TxBytes   int64
	SampledAt time.Time
}

// ZFSDataset is a collateral projection row for pool/dataset inventory.
type ZFSDataset struct {
	Name      string
	Pool      string
	Type      string // filesystem, volume, snapshot
	Used      int64
	Available int64
	UpdatedAt time.Time
}

// User is a read-model row shaped after getent/user_attr output; no executor populates it.
type User struct {
	Username string
	UID      int
	GID      int
	Comment  string
	Home     string
	Shell    string
	Locked   bool
}

// Group is a read-model row shaped after getent group output; no executor populates it.
type Group struct {
	Name    string
	GID     int
	Members []string
}

// Role is a read-model row shaped after /etc/user_attr and related RBAC databases; no executor populates it.
type Role struct {
	Name            string
	Authorizations  []string
	Profiles        []string
	Description     string
}
