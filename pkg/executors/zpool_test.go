package executors

import (
	"context"
	"testing"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/stretchr/testify/assert"
)

func TestVDevSpec_JoinsTypeAndDevices(t *testing.T) {
	p := ZpoolCreateParams{
		Vdevs: []VDev{
			{Type: "mirror", Devices: []string{"c1t0d0", "c1t1d0"}},
			{Type: "log", Devices: []string{"c2t0d0"}},
		},
	}
	assert.Equal(t, "mirror c1t0d0 c1t1d0 log c2t0d0", p.vdevSpec())
}

func TestVDevSpec_OmitsTypeWhenEmpty(t *testing.T) {
	p := ZpoolCreateParams{Vdevs: []VDev{{Devices: []string{"c1t0d0"}}}}
	assert.Equal(t, "c1t0d0", p.vdevSpec())
}

func TestZpoolCreate_RejectsMissingPoolName(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.zpoolCreate(context.Background(), []byte(`{"vdevs":[{"devices":["c1t0d0"]}]}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "pool_name is required")
}

func TestZpoolCreate_RejectsMissingVdevs(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.zpoolCreate(context.Background(), []byte(`{"pool_name":"tank"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "at least one vdev")
}

func TestZpoolSetProperties_RejectsEmptyProperties(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.zpoolSetProperties(context.Background(), []byte(`{"pool_name":"tank","properties":{}}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "at least one property")
}

func TestZpoolSetProperties_ReportsPartialFailure(t *testing.T) {
	d := &Deps{Runner: command.NewRunner()}
	result := d.zpoolSetProperties(context.Background(), []byte(`{"pool_name":"tank","properties":{"compression":"on"}}`), nil)
	assert.False(t, result.Success)
	assert.NotNil(t, result.ProgressInfo)
}
