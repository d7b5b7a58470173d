/*
Package storage provides bbolt-backed persistence for the Task Execution
Subsystem: tasks, artifact storage locations, artifacts, log-stream
sessions, and the collateral projection tables (zones, IP addresses,
network interfaces, ZFS datasets); of these, only IP address rows are
written by an executor.

Each entity lives in its own bucket, keyed by the entity's own id, and is
serialized as JSON — the same bucket-per-entity pattern used throughout
this codebase. The one deviation from plain upsert-by-overwrite is
ClaimTask, which performs the scheduler's pending->running
compare-and-set inside a single bbolt write transaction: bbolt permits
only one writer at a time, so re-reading and re-checking the task's
status inside that transaction is sufficient to make the claim atomic
across concurrently ticking scheduler workers without a separate lock.
*/
package storage
