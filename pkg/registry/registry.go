// Package registry provides the HandlerRegistry: the static table mapping
// an operation name to the executor that implements it. The registry is
// the only place that knows which operations exist; the scheduler itself
// stays domain-agnostic.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/types"
)

// TaskHandle lets a handler report progress and poll for cancellation
// without knowing about the store or scheduler directly.
type TaskHandle interface {
	TaskID() string
	ZoneName() string
	ReportProgress(percent int, info []byte)
	Cancelled() bool
}

// HandlerFunc executes one task's semantic action. It never panics across
// the task boundary — every failure becomes a HandlerResult with
// Success=false.
type HandlerFunc func(ctx context.Context, metadata []byte, handle TaskHandle) types.HandlerResult

// Entry is a single registered operation.
type Entry struct {
	Operation        string
	Fn               HandlerFunc
	DefaultPriority  types.TaskPriority
	DefaultTimeout   time.Duration
	Serial           bool // at most one task for this operation runs at a time
	PerZoneExclusive bool // at most one task per zone_name runs at a time
}

// Registry is a static, thread-safe table of registered operations built
// once at startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds an operation. Re-registering the same operation name
// overwrites the prior entry, which is only expected to happen during
// startup wiring, never at runtime.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.Operation] = e
}

// Lookup returns the entry for operation, or ok=false if unknown. An
// unknown operation is a runtime error the caller surfaces as a task
// failure, never a crash.
func (r *Registry) Lookup(operation string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[operation]
	return e, ok
}

// Operations returns every registered operation name.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}

// ErrUnknownOperation is the error message recorded on a task whose
// operation has no registered handler.
const ErrUnknownOperation = "unknown_operation"

// Dispatch looks up and invokes the handler for task.Operation, applying
// its declared timeout. Returns a HandlerResult in every case, including
// unknown operations.
func (r *Registry) Dispatch(ctx context.Context, task *types.Task, handle TaskHandle) types.HandlerResult {
	entry, ok := r.Lookup(task.Operation)
	if !ok {
		return types.HandlerResult{Success: false, Error: ErrUnknownOperation}
	}

	timeout := entry.DefaultTimeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return safeInvoke(runCtx, entry.Fn, task.Metadata, handle)
}

func safeInvoke(ctx context.Context, fn HandlerFunc, metadata []byte, handle TaskHandle) (result types.HandlerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.HandlerResult{Success: false, Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()
	return fn(ctx, metadata, handle)
}
