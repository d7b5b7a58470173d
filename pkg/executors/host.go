package executors

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// ZoneOrchestration is the optional shutdown-time zone wind-down plan.
// Passed through to the handler but not decomposed here, per spec.
type ZoneOrchestration struct {
	Enabled       bool   `json:"enabled"`
	Strategy      string `json:"strategy"` // sequential, parallel_by_priority, staggered
	FailureAction string `json:"failure_action"` // abort, force_stuck, skip_stuck
	PriorityDelay int    `json:"priority_delay"`
	ZoneTimeout   int    `json:"zone_timeout"`
}

// HostLifecycleParams covers restart/reboot/shutdown/poweroff/halt.
type HostLifecycleParams struct {
	Confirm          bool               `json:"confirm"`
	Emergency        bool               `json:"emergency,omitempty"`
	GracePeriod      int                `json:"grace_period"`
	Message          string             `json:"message,omitempty"`
	ZoneOrchestration *ZoneOrchestration `json:"zone_orchestration,omitempty"`
}

var controlCharStripper = regexp.MustCompile("['\"`]")

// Validate checks confirm/emergency/grace_period/message. It is exported so
// the HTTP layer can reject bad requests synchronously with the same rules
// and wording the executor enforces as a second line of defense.
func (p HostLifecycleParams) Validate(requireEmergency bool) error {
	if !p.Confirm {
		return fmt.Errorf("Confirmation required")
	}
	if requireEmergency && !p.Emergency {
		return fmt.Errorf("Emergency confirmation required for halt")
	}
	if p.GracePeriod < 0 {
		return fmt.Errorf("Grace period cannot be negative")
	}
	if p.GracePeriod > 7200 {
		return fmt.Errorf("Grace period cannot exceed 2 hours")
	}
	if len(p.Message) > 200 {
		return fmt.Errorf("Message cannot exceed 200 characters")
	}
	return nil
}

func (p HostLifecycleParams) sanitizedMessage() string {
	return controlCharStripper.ReplaceAllString(p.Message, "")
}

// LifecycleWarnings returns the operator-facing warnings a given host
// lifecycle operation carries, surfaced by the API layer on the 202
// response. The executor's async result message does not include them.
func LifecycleWarnings(operation string) []string {
	switch operation {
	case "system_host_shutdown", "system_host_poweroff", "system_host_halt":
		return []string{"this will interrupt all system services running on this host"}
	case "system_host_restart", "system_host_reboot", "system_host_fast_reboot":
		return []string{"this will interrupt all system services during the reboot"}
	default:
		return nil
	}
}

// RequiresEmergency reports whether operation requires emergency:true.
func RequiresEmergency(operation string) bool {
	return operation == "system_host_halt"
}

// hostRestart, hostReboot, hostShutdown, hostPoweroff, hostHalt all
// validate via HostLifecycleParams before shelling out.
func (d *Deps) hostRestart(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "restart", "pfexec init 6", false)
}

func (d *Deps) hostReboot(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "reboot", "pfexec reboot", false)
}

func (d *Deps) hostFastReboot(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "fast_reboot", "pfexec reboot -f", false)
}

func (d *Deps) hostShutdown(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "shutdown", "pfexec shutdown -y -g0 -i5", false)
}

func (d *Deps) hostPoweroff(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "poweroff", "pfexec poweroff", false)
}

func (d *Deps) hostHalt(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "halt", "pfexec halt", true)
}

func (d *Deps) runHostCommand(ctx context.Context, metadata []byte, op, cmd string, requireEmergency bool) types.HandlerResult {
	var p HostLifecycleParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := p.Validate(requireEmergency); err != nil {
		return fail("%v", err)
	}
	if p.GracePeriod > 0 {
		cmd = fmt.Sprintf("sleep %d && %s", p.GracePeriod, cmd)
	}
	result := d.Runner.Run(ctx, cmd, time.Duration(p.GracePeriod+30)*time.Second)
	if !result.Success {
		return fail("%s failed: %s", op, result.Error)
	}
	msg := fmt.Sprintf("%s initiated", op)
	if sanitized := p.sanitizedMessage(); sanitized != "" {
		msg = fmt.Sprintf("%s: %s", msg, sanitized)
	}
	return ok(msg)
}

// RunlevelParams is the runlevel_change task metadata.
type RunlevelParams struct {
	Confirm  bool   `json:"confirm"`
	Runlevel string `json:"runlevel"`
}

var validRunlevels = map[string]bool{
	"0": true, "1": true, "2": true, "3": true, "4": true, "5": true, "6": true,
	"s": true, "S": true,
}

// Validate checks confirm and runlevel membership in {0-6, s, S}.
func (p RunlevelParams) Validate() error {
	if !p.Confirm {
		return fmt.Errorf("Confirmation required")
	}
	if !validRunlevels[p.Runlevel] {
		return fmt.Errorf("Runlevel must be one of 0-6, s, S")
	}
	return nil
}

func (d *Deps) hostRunlevelChange(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p RunlevelParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if err := p.Validate(); err != nil {
		return fail("%v", err)
	}

	result := d.Runner.Run(ctx, fmt.Sprintf("pfexec init %s", p.Runlevel), 60*time.Second)
	if !result.Success {
		return fail("runlevel change failed: %s", result.Error)
	}
	return ok(fmt.Sprintf("runlevel changed to %s", p.Runlevel))
}

func (d *Deps) hostEnterSingleUser(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "enter_single_user", "pfexec init s", false)
}

func (d *Deps) hostEnterMultiUser(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	return d.runHostCommand(ctx, metadata, "enter_multi_user", "pfexec init 3", false)
}
