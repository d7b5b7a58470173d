package registry

import (
	"context"
	"testing"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/stretchr/testify/assert"
)

type fakeHandle struct{ id, zone string }

func (f *fakeHandle) TaskID() string                        { return f.id }
func (f *fakeHandle) ZoneName() string                      { return f.zone }
func (f *fakeHandle) ReportProgress(percent int, info []byte) {}
func (f *fakeHandle) Cancelled() bool                        { return false }

func TestDispatch_UnknownOperation(t *testing.T) {
	r := New()
	task := &types.Task{Operation: "does_not_exist"}
	result := r.Dispatch(context.Background(), task, &fakeHandle{})

	assert.False(t, result.Success)
	assert.Equal(t, ErrUnknownOperation, result.Error)
}

func TestDispatch_RecoversHandlerPanic(t *testing.T) {
	r := New()
	r.Register(Entry{
		Operation:      "boom",
		DefaultTimeout: time.Second,
		Fn: func(ctx context.Context, metadata []byte, handle TaskHandle) types.HandlerResult {
			panic("kaboom")
		},
	})

	result := r.Dispatch(context.Background(), &types.Task{Operation: "boom"}, &fakeHandle{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "kaboom")
}

func TestDispatch_Success(t *testing.T) {
	r := New()
	r.Register(Entry{
		Operation:      "noop",
		DefaultTimeout: time.Second,
		Fn: func(ctx context.Context, metadata []byte, handle TaskHandle) types.HandlerResult {
			return types.HandlerResult{Success: true, Message: "ok"}
		},
	})

	result := r.Dispatch(context.Background(), &types.Task{Operation: "noop"}, &fakeHandle{})
	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Message)
}
