package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/sshsession"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// ZoneDeps bundles the zone-provisioning-specific collaborators on top
// of the base Deps; kept separate since SSHSession is only needed by the
// zone executor family.
type ZoneDeps struct {
	*Deps
	ProvisioningRootFor func(zoneName string) string
}

func (d *ZoneDeps) session(zoneName string) *sshsession.Session {
	root := ""
	if d.ProvisioningRootFor != nil {
		root = d.ProvisioningRootFor(zoneName)
	}
	return sshsession.New(d.Runner, root)
}

// ZoneWaitSSHParams is the zone_wait_ssh task metadata.
type ZoneWaitSSHParams struct {
	IP              string               `json:"ip"`
	Port            int                  `json:"port"`
	Credentials     sshsession.Credentials `json:"credentials"`
	TimeoutSeconds  int                  `json:"timeout_seconds"`
	IntervalSeconds int                  `json:"interval_seconds"`
}

func (d *ZoneDeps) zoneWaitSSH(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZoneWaitSSHParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.IP == "" {
		return fail("ip is required")
	}
	if p.Port == 0 {
		p.Port = 22
	}
	timeout := secondsOrDefault(p.TimeoutSeconds, 120) * time.Second
	interval := secondsOrDefault(p.IntervalSeconds, 5) * time.Second

	s := d.session(handle.ZoneName())
	if err := s.WaitForReady(ctx, p.IP, p.Port, p.Credentials, timeout, interval); err != nil {
		return fail("zone did not become SSH-ready: %v", err)
	}
	return ok(fmt.Sprintf("%s:%d is SSH-ready", p.IP, p.Port))
}

// ZoneSyncParams is the zone_sync task metadata. Task granularity is one
// folder; multi-folder sync is expressed as multiple tasks chained via
// depends_on.
type ZoneSyncParams struct {
	IP          string                  `json:"ip"`
	Port        int                     `json:"port"`
	Credentials sshsession.Credentials  `json:"credentials"`
	Src         string                  `json:"src"`
	Dst         string                  `json:"dst"`
	Options     sshsession.RsyncOptions `json:"options"`
}

func (d *ZoneDeps) zoneSync(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZoneSyncParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.IP == "" || p.Src == "" || p.Dst == "" {
		return fail("ip, src, and dst are required")
	}
	if p.Port == 0 {
		p.Port = 22
	}

	s := d.session(handle.ZoneName())
	if err := s.Rsync(ctx, p.IP, p.Port, p.Credentials, p.Src, p.Dst, p.Options, 10*time.Minute); err != nil {
		return fail("zone_sync failed: %v", err)
	}
	return ok(fmt.Sprintf("synced %s -> %s:%s", p.Src, p.IP, p.Dst))
}

// ZoneProvisionParams is the zone_provision task metadata: one ansible
// playbook per task, ordering enforced via depends_on chains.
type ZoneProvisionParams struct {
	IP          string                 `json:"ip"`
	Port        int                    `json:"port"`
	Credentials sshsession.Credentials `json:"credentials"`
	Playbook    string                 `json:"playbook"`
	ExtraVars   map[string]string      `json:"extra_vars"`
}

func (d *ZoneDeps) zoneProvision(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZoneProvisionParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.IP == "" || p.Playbook == "" {
		return fail("ip and playbook are required")
	}
	if p.Port == 0 {
		p.Port = 22
	}

	extraVars := ""
	for k, v := range p.ExtraVars {
		extraVars += fmt.Sprintf(" -e %s=%s", k, v)
	}

	s := d.session(handle.ZoneName())
	cmd := fmt.Sprintf("ansible-playbook %s%s", p.Playbook, extraVars)
	result, err := s.Exec(ctx, p.IP, p.Port, p.Credentials, cmd, 30*time.Minute)
	if err != nil {
		return types.HandlerResult{Success: false, Error: fmt.Sprintf("playbook run failed: %v", err), ProgressInfo: progressInfo(result)}
	}
	return ok(fmt.Sprintf("playbook %s completed", p.Playbook))
}

// ZoneProvisioningExtractParams is the zone_provisioning_extract task
// metadata: idempotent dataset create, artifact extraction, permission
// tightening, pre-provision snapshot.
type ZoneProvisioningExtractParams struct {
	ZoneName    string `json:"zone_name"`
	DatasetName string `json:"dataset_name"`
	MountPoint  string `json:"mount_point"`
	ArtifactTar string `json:"artifact_tar"`
	OwnerUser   string `json:"owner_user"`
}

func (d *ZoneDeps) zoneProvisioningExtract(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p ZoneProvisioningExtractParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.DatasetName == "" || p.MountPoint == "" || p.ArtifactTar == "" {
		return fail("dataset_name, mount_point, and artifact_tar are required")
	}

	createCmd := fmt.Sprintf("pfexec zfs create -o mountpoint=%s %s 2>/dev/null || true", p.MountPoint, p.DatasetName)
	if res := d.Runner.Run(ctx, createCmd, 30*time.Second); !res.Success {
		return fail("dataset create failed: %s", res.Error)
	}

	extractCmd := fmt.Sprintf("pfexec tar -xf %s -C %s", p.ArtifactTar, p.MountPoint)
	if res := d.Runner.Run(ctx, extractCmd, 5*time.Minute); !res.Success {
		return fail("extract failed: %s", res.Error)
	}

	if p.OwnerUser != "" {
		chownCmd := fmt.Sprintf("pfexec chown -R %s %s", p.OwnerUser, p.MountPoint)
		if res := d.Runner.Run(ctx, chownCmd, 30*time.Second); !res.Success {
			return fail("chown failed: %s", res.Error)
		}
	}

	chmodCmd := fmt.Sprintf("pfexec find %s -iname '*.pem' -o -iname 'id_*' | xargs -r pfexec chmod 600", p.MountPoint)
	if res := d.Runner.Run(ctx, chmodCmd, 30*time.Second); !res.Success {
		return fail("private key permission tightening failed: %s", res.Error)
	}

	snapCmd := fmt.Sprintf("pfexec zfs snapshot %s@pre-provision", p.DatasetName)
	if res := d.Runner.Run(ctx, snapCmd, 30*time.Second); !res.Success {
		return fail("pre-provision snapshot failed: %s", res.Error)
	}

	return ok(fmt.Sprintf("provisioning dataset %s extracted and snapshotted", p.DatasetName))
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		return time.Duration(fallback)
	}
	return time.Duration(seconds)
}
