package executors

import (
	"context"
	"testing"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/stretchr/testify/assert"
)

func TestHostLifecycleParams_RequiresConfirm(t *testing.T) {
	p := HostLifecycleParams{Confirm: false}
	assert.ErrorContains(t, p.Validate(false), "Confirmation required")
}

func TestHostLifecycleParams_HaltRequiresEmergency(t *testing.T) {
	p := HostLifecycleParams{Confirm: true}
	assert.ErrorContains(t, p.Validate(true), "Emergency confirmation required")

	p.Emergency = true
	assert.NoError(t, p.Validate(true))
}

func TestHostLifecycleParams_RejectsGracePeriodOutOfRange(t *testing.T) {
	p := HostLifecycleParams{Confirm: true, GracePeriod: 7201}
	assert.ErrorContains(t, p.Validate(false), "Grace period cannot exceed 2 hours")
}

func TestHostLifecycleParams_RejectsOverlongMessage(t *testing.T) {
	msg := make([]byte, 201)
	for i := range msg {
		msg[i] = 'a'
	}
	p := HostLifecycleParams{Confirm: true, Message: string(msg)}
	assert.ErrorContains(t, p.Validate(false), "200 characters")
}

func TestHostLifecycleParams_SanitizedMessageStripsQuotes(t *testing.T) {
	p := HostLifecycleParams{Message: `it's a "test" ` + "`cmd`"}
	assert.Equal(t, "its a test cmd", p.sanitizedMessage())
}

func TestHostRestart_RejectsWithoutConfirm(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.hostRestart(context.Background(), []byte(`{"confirm":false}`), nil)
	assert.False(t, result.Success)
}

func TestHostHalt_RejectsWithoutEmergency(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.hostHalt(context.Background(), []byte(`{"confirm":true}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Emergency")
}

func TestHostRunlevelChange_RejectsUnknownRunlevel(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.hostRunlevelChange(context.Background(), []byte(`{"confirm":true,"runlevel":"9"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Runlevel")
}

func TestHostRunlevelChange_AcceptsSingleUser(t *testing.T) {
	assert.True(t, validRunlevels["s"])
	assert.True(t, validRunlevels["S"])
	assert.True(t, validRunlevels["0"])
	assert.False(t, validRunlevels["9"])
}
