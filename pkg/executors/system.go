package executors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// PackageChange is one publisher's pending change in a system_update_check dry-run.
type PackageChange struct {
	Publisher string   `json:"publisher"`
	Packages  []string `json:"packages"`
}

// UpdateCheckResult is the structured result of system_update_check.
type UpdateCheckResult struct {
	UpdatesAvailable bool            `json:"updates_available"`
	Changes          []PackageChange `json:"changes"`
	BootEnvironment  string          `json:"boot_environment_plan,omitempty"`
	Raw              string          `json:"raw"`
}

// systemUpdateCheck runs `pkg update -n` (dry-run) synchronously and
// parses per-publisher changed packages and the boot-environment plan.
func (d *Deps) systemUpdateCheck(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	result := d.Runner.Run(ctx, "pfexec pkg update -n", 2*time.Minute)
	if !result.Success && !strings.Contains(result.Output, "No updates available") {
		return fail("pkg update dry-run failed: %s", result.Error)
	}

	parsed := UpdateCheckResult{Raw: result.Output}
	parsed.Changes = parsePkgChanges(result.Output)
	parsed.UpdatesAvailable = len(parsed.Changes) > 0
	if be := beRegexp.FindStringSubmatch(result.Output); len(be) > 1 {
		parsed.BootEnvironment = strings.TrimSpace(be[1])
	}

	return types.HandlerResult{Success: true, Message: "update check complete", ProgressInfo: progressInfo(parsed)}
}

var (
	publisherRegexp = regexp.MustCompile(`(?m)^Packages to (?:update|install|remove):\s*$`)
	beRegexp        = regexp.MustCompile(`(?m)^Create boot environment:\s*(.+)$`)
)

func parsePkgChanges(output string) []PackageChange {
	if !publisherRegexp.MatchString(output) {
		return nil
	}
	var changes []PackageChange
	index := make(map[string]int)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "Packages to") || strings.HasPrefix(trimmed, "Create boot") {
			continue
		}
		pkgName := strings.Fields(trimmed)[0]
		publisher := "default"
		if rest, found := strings.CutPrefix(pkgName, "pkg://"); found {
			if slash := strings.Index(rest, "/"); slash > 0 {
				publisher = rest[:slash]
			}
		}
		i, seen := index[publisher]
		if !seen {
			i = len(changes)
			index[publisher] = i
			changes = append(changes, PackageChange{Publisher: publisher})
		}
		changes[i].Packages = append(changes[i].Packages, pkgName)
	}
	return changes
}

// systemUpdateInstall runs `pkg update` applying all available updates.
func (d *Deps) systemUpdateInstall(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	result := d.Runner.Run(ctx, "pfexec pkg update -y", 20*time.Minute)
	if !result.Success {
		return fail("pkg update failed: %s", result.Error)
	}
	return ok("system update installed")
}

// SystemUpdateRefreshParams is the system_update_refresh task metadata.
type SystemUpdateRefreshParams struct {
	Publisher string `json:"publisher,omitempty"`
}

// systemUpdateRefresh refreshes the package repository catalog.
func (d *Deps) systemUpdateRefresh(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p SystemUpdateRefreshParams
	_ = decode(metadata, &p)

	cmd := "pfexec pkg refresh"
	if p.Publisher != "" {
		cmd = fmt.Sprintf("pfexec pkg refresh %s", p.Publisher)
	}
	result := d.Runner.Run(ctx, cmd, 5*time.Minute)
	if !result.Success {
		return fail("pkg refresh failed: %s", result.Error)
	}
	return ok("package catalog refreshed")
}

// systemUpdateHistory lists recent pkg history entries.
func (d *Deps) systemUpdateHistory(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	result := d.Runner.Run(ctx, "pfexec pkg history -l", 30*time.Second)
	if !result.Success {
		return fail("pkg history failed: %s", result.Error)
	}
	return types.HandlerResult{Success: true, Message: "history retrieved", ProgressInfo: progressInfo(map[string]string{"raw": result.Output})}
}
