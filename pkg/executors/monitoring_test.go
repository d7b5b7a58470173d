package executors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostMonitoringStatus_SamplesLocalHost(t *testing.T) {
	m := &MonitoringDeps{CommandTimeout: 5 * time.Second, MountPoints: []string{"/"}}
	result := m.hostMonitoringStatus(context.Background(), nil, nil)

	require.True(t, result.Success)
	require.NotNil(t, result.ProgressInfo)
	assert.Contains(t, string(result.ProgressInfo), "disk_usage")
}

func TestHostMonitoringStatus_DefaultsMountPointToRoot(t *testing.T) {
	m := &MonitoringDeps{}
	result := m.hostMonitoringStatus(context.Background(), nil, nil)
	assert.True(t, result.Success)
}

func TestMonitoringTimeout_FallsBackWhenUnset(t *testing.T) {
	assert.Equal(t, 10*time.Second, monitoringTimeout(&MonitoringDeps{}))
	assert.Equal(t, 30*time.Second, monitoringTimeout(&MonitoringDeps{CommandTimeout: 30 * time.Second}))
}
