/*
Package types defines the shared domain model for zoneweaverd: the Task
Execution Subsystem's central entities and the collateral projection rows
its executors maintain.

# Core Types

Task Execution:
  - Task: a unit of deferred, persisted work dispatched by the scheduler
  - TaskStatus: pending, running, completed, failed, cancelled
  - TaskPriority: CRITICAL, HIGH, MEDIUM, LOW, BACKGROUND with an Ord() weight
  - HandlerResult: what an executor returns to the scheduler

Artifact Inventory:
  - ArtifactStorageLocation: a configured filesystem path scanned for files
  - Artifact: a tracked file (ISO, image, provisioning bundle)
  - ChecksumAlgorithm: md5, sha1, sha256

Log Streaming:
  - LogStreamSession: per-session WebSocket log tail state

Collateral projections (not produced by the queue itself): Zone,
NetworkInterface, IPAddress, NetworkStat, ZFSDataset, User, Group, Role.
Only IPAddress rows are written by an executor (the ipaddr executors); the
store has upsert methods for Zone, NetworkInterface and ZFSDataset that no
executor calls, and NetworkStat, User, Group and Role have no storage.

All types favor plain structs with string-backed enum constants, matching
the rest of the codebase; opaque per-operation parameters travel as
json.RawMessage on Task.Metadata and are decoded inside the handler that
understands them.
*/
package types
