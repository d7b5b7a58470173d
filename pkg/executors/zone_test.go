package executors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSecondsOrDefault_UsesFallbackWhenZeroOrNegative(t *testing.T) {
	assert.Equal(t, time.Duration(120), secondsOrDefault(0, 120))
	assert.Equal(t, time.Duration(120), secondsOrDefault(-5, 120))
	assert.Equal(t, time.Duration(30), secondsOrDefault(30, 120))
}

func TestZoneWaitSSH_RejectsMissingIP(t *testing.T) {
	d := &ZoneDeps{Deps: newTestDeps(t)}
	result := d.zoneWaitSSH(context.Background(), []byte(`{"port":22}`), fakeHandle{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "ip is required")
}

func TestZoneSync_RejectsMissingFields(t *testing.T) {
	d := &ZoneDeps{Deps: newTestDeps(t)}
	result := d.zoneSync(context.Background(), []byte(`{"ip":"10.0.0.5"}`), fakeHandle{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "required")
}

func TestZoneProvision_RejectsMissingPlaybook(t *testing.T) {
	d := &ZoneDeps{Deps: newTestDeps(t)}
	result := d.zoneProvision(context.Background(), []byte(`{"ip":"10.0.0.5"}`), fakeHandle{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "playbook")
}

func TestZoneProvisioningExtract_RejectsMissingFields(t *testing.T) {
	d := &ZoneDeps{Deps: newTestDeps(t)}
	result := d.zoneProvisioningExtract(context.Background(), []byte(`{"zone_name":"web-01"}`), fakeHandle{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "dataset_name")
}

type fakeHandle struct{}

func (fakeHandle) TaskID() string                      { return "test-task" }
func (fakeHandle) ZoneName() string                    { return "web-01" }
func (fakeHandle) ReportProgress(percent int, info []byte) {}
func (fakeHandle) Cancelled() bool                     { return false }
