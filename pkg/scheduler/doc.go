/*
Package scheduler implements the TaskQueue: the persistent, priority- and
dependency-aware scheduler every mutating HTTP endpoint funnels work
into.

The scheduling loop ticks on a configurable interval: it selects pending
tasks ordered by priority then creation time, filters out any whose
dependency hasn't completed or whose operation/zone is over its
concurrency cap, claims the survivors with a compare-and-set transition
on the store, and dispatches each to the HandlerRegistry on its own
goroutine. A separate cleanup loop sweeps terminal tasks past their
retention window, and a one-time startup sweep fails any task a prior
process left running for longer than the crash-recovery grace window
(worker_crash recovery).

Concurrency accounting (global cap, per-operation serial execution,
per-zone exclusivity) is tracked in-memory for the lifetime of the
process; the store remains the durable source of truth for task state.
*/
package scheduler
