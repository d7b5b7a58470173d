package executors

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// VDev is one device or redundancy group in a pool's vdev spec.
type VDev struct {
	Type    string   `json:"type,omitempty"` // mirror, raidz, raidz2, raidz3, spare, log, cache, special
	Devices []string `json:"devices"`
}

// ZpoolCreateParams is the zpool_create task metadata.
type ZpoolCreateParams struct {
	PoolName   string            `json:"pool_name"`
	Vdevs      []VDev            `json:"vdevs"`
	Properties map[string]string `json:"properties"`
	Force      bool              `json:"force"`
	MountPoint string            `json:"mount_point"`
}

func (p ZpoolCreateParams) vdevSpec() string {
	var parts []string
	for _, v := range p.Vdevs {
		if v.Type != "" {
			parts = append(parts, v.Type)
		}
		parts = append(parts, v.Devices...)
	}
	return strings.Join(parts, " ")
}

// zpoolCreate builds and runs `zpool create [-f] [-m <mp>] [-o k=v]* <name> <vdev_spec>`.
func (d *Deps) zpoolCreate(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZpoolCreateParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.PoolName == "" {
		return fail("pool_name is required")
	}
	if len(p.Vdevs) == 0 {
		return fail("at least one vdev is required")
	}

	args := []string{"pfexec", "zpool", "create"}
	if p.Force {
		args = append(args, "-f")
	}
	if p.MountPoint != "" {
		args = append(args, "-m", p.MountPoint)
	}
	for k, v := range p.Properties {
		args = append(args, "-o", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, p.PoolName, p.vdevSpec())

	result := d.Runner.Run(ctx, strings.Join(args, " "), 2*time.Minute)
	if !result.Success {
		return fail("zpool create failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("pool %s created", p.PoolName))
}

// ZpoolSetPropertiesParams is the zpool_set_properties task metadata.
type ZpoolSetPropertiesParams struct {
	PoolName   string            `json:"pool_name"`
	Properties map[string]string `json:"properties"`
}

type propertyOutcome struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// zpoolSetProperties runs one `zpool set k=v <pool>` per property in
// parallel and reports partial success when some properties fail.
func (d *Deps) zpoolSetProperties(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZpoolSetPropertiesParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.PoolName == "" {
		return fail("pool_name is required")
	}
	if len(p.Properties) == 0 {
		return fail("at least one property is required")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make([]propertyOutcome, 0, len(p.Properties))
	failures := 0

	for key, value := range p.Properties {
		wg.Add(1)
		go func(key, value string) {
			defer wg.Done()
			cmd := fmt.Sprintf("pfexec zpool set %s=%s %s", key, value, p.PoolName)
			result := d.Runner.Run(ctx, cmd, 30*time.Second)

			mu.Lock()
			defer mu.Unlock()
			if result.Success {
				outcomes = append(outcomes, propertyOutcome{Key: key, OK: true})
			} else {
				failures++
				outcomes = append(outcomes, propertyOutcome{Key: key, OK: false, Error: result.Error})
			}
		}(key, value)
	}
	wg.Wait()

	info := progressInfo(map[string]interface{}{"properties": outcomes})
	if failures == len(p.Properties) {
		return types.HandlerResult{
			Success:      false,
			Error:        fmt.Sprintf("%d of %d properties failed", failures, len(p.Properties)),
			ProgressInfo: info,
		}
	}
	if failures > 0 {
		msg := fmt.Sprintf("%d of %d properties set, %d failed", len(p.Properties)-failures, len(p.Properties), failures)
		return types.HandlerResult{Success: true, Message: msg, ProgressInfo: info}
	}
	return types.HandlerResult{Success: true, Message: "all properties set", ProgressInfo: info}
}
