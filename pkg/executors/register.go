package executors

import (
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// Register builds every executor entry and installs it into reg. Timeouts
// and serial/per-zone-exclusive flags follow spec.md §4.4/§5's declared
// policy per operation; the registry is the only place that knows which
// operations exist.
func Register(reg *registry.Registry, deps *Deps, zoneDeps *ZoneDeps, monitoring *MonitoringDeps) {
	reg.Register(registry.Entry{
		Operation: "zpool_create", Fn: deps.zpoolCreate,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "zpool_set_properties", Fn: deps.zpoolSetProperties,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: time.Minute, Serial: true,
	})

	reg.Register(registry.Entry{
		Operation: "ip_address_create", Fn: deps.ipAddressCreate,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 30 * time.Second, PerZoneExclusive: true,
	})
	reg.Register(registry.Entry{
		Operation: "ip_address_delete", Fn: deps.ipAddressDelete,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 30 * time.Second, PerZoneExclusive: true,
	})

	reg.Register(registry.Entry{
		Operation: "zone_wait_ssh", Fn: zoneDeps.zoneWaitSSH,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 3 * time.Minute, PerZoneExclusive: true,
	})
	reg.Register(registry.Entry{
		Operation: "zone_sync", Fn: zoneDeps.zoneSync,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 10 * time.Minute, PerZoneExclusive: true,
	})
	reg.Register(registry.Entry{
		Operation: "zone_provision", Fn: zoneDeps.zoneProvision,
		DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Minute, PerZoneExclusive: true,
	})
	reg.Register(registry.Entry{
		Operation: "zone_provisioning_extract", Fn: zoneDeps.zoneProvisioningExtract,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 5 * time.Minute, PerZoneExclusive: true,
	})

	reg.Register(registry.Entry{
		Operation: "system_update_check", Fn: deps.systemUpdateCheck,
		DefaultPriority: types.PriorityLow, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_update_install", Fn: deps.systemUpdateInstall,
		DefaultPriority: types.PriorityHigh, DefaultTimeout: 20 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_update_refresh", Fn: deps.systemUpdateRefresh,
		DefaultPriority: types.PriorityLow, DefaultTimeout: 5 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_update_history", Fn: deps.systemUpdateHistory,
		DefaultPriority: types.PriorityLow, DefaultTimeout: 30 * time.Second,
	})

	reg.Register(registry.Entry{
		Operation: "system_host_restart", Fn: deps.hostRestart,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_reboot", Fn: deps.hostReboot,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_fast_reboot", Fn: deps.hostFastReboot,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_shutdown", Fn: deps.hostShutdown,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Hour, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_poweroff", Fn: deps.hostPoweroff,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_halt", Fn: deps.hostHalt,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: 2 * time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_runlevel_change", Fn: deps.hostRunlevelChange,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_enter_single_user", Fn: deps.hostEnterSingleUser,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: time.Minute, Serial: true,
	})
	reg.Register(registry.Entry{
		Operation: "system_host_enter_multi_user", Fn: deps.hostEnterMultiUser,
		DefaultPriority: types.PriorityCritical, DefaultTimeout: time.Minute, Serial: true,
	})

	reg.Register(registry.Entry{Operation: "user_create", Fn: deps.userCreate, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "user_modify", Fn: deps.userModify, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "user_delete", Fn: deps.userDelete, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "user_set_password", Fn: deps.userSetPassword, DefaultPriority: types.PriorityMedium, DefaultTimeout: 10 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "user_lock", Fn: deps.userLock, DefaultPriority: types.PriorityHigh, DefaultTimeout: 10 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "user_unlock", Fn: deps.userUnlock, DefaultPriority: types.PriorityHigh, DefaultTimeout: 10 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "group_create", Fn: deps.groupCreate, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "group_modify", Fn: deps.groupModify, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "group_delete", Fn: deps.groupDelete, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "role_create", Fn: deps.roleCreate, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "role_modify", Fn: deps.roleModify, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})
	reg.Register(registry.Entry{Operation: "role_delete", Fn: deps.roleDelete, DefaultPriority: types.PriorityMedium, DefaultTimeout: 30 * time.Second, Serial: true})

	reg.Register(registry.Entry{
		Operation: "host_monitoring_status", Fn: monitoring.hostMonitoringStatus,
		DefaultPriority: types.PriorityLow, DefaultTimeout: monitoringTimeout(monitoring),
	})
}

func monitoringTimeout(m *MonitoringDeps) time.Duration {
	if m.CommandTimeout <= 0 {
		return 10 * time.Second
	}
	return m.CommandTimeout
}
