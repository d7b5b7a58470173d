package artifact

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// deleteFileParams is the artifact_delete_file task metadata.
type deleteFileParams struct {
	ArtifactIDs []string `json:"artifact_ids"`
	DeleteFiles bool     `json:"delete_files"`
	Force       bool     `json:"force"`
}

type fileDeleteOutcome struct {
	ArtifactID string `json:"artifact_id"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
}

// DeleteFile loads the named artifacts, removes their files in parallel
// (when delete_files is set), bulk-destroys the rows, and decrements the
// owning locations' aggregates. Total success requires every target to
// have succeeded.
func (e *Engine) DeleteFile(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p deleteFileParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if len(p.ArtifactIDs) == 0 {
		return fail("artifact_ids is required")
	}

	artifacts := make([]*types.Artifact, 0, len(p.ArtifactIDs))
	for _, id := range p.ArtifactIDs {
		a, err := e.Store.GetArtifact(id)
		if err != nil {
			return fail("artifact %s not found: %v", id, err)
		}
		artifacts = append(artifacts, a)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := make([]fileDeleteOutcome, 0, len(artifacts))
	failures := 0

	if p.DeleteFiles {
		for _, a := range artifacts {
			wg.Add(1)
			go func(a *types.Artifact) {
				defer wg.Done()
				flag := ""
				if p.Force {
					flag = "-f "
				}
				result := e.Runner.Run(ctx, fmt.Sprintf("pfexec rm %s%s", flag, shArg(a.Path)), 30*time.Second)

				mu.Lock()
				defer mu.Unlock()
				if result.Success {
					outcomes = append(outcomes, fileDeleteOutcome{ArtifactID: a.ID, OK: true})
				} else {
					failures++
					outcomes = append(outcomes, fileDeleteOutcome{ArtifactID: a.ID, OK: false, Error: result.Error})
				}
			}(a)
		}
		wg.Wait()
	}

	if failures > 0 {
		return types.HandlerResult{
			Success:      false,
			Error:        fmt.Sprintf("%d of %d files failed to delete", failures, len(artifacts)),
			ProgressInfo: progressInfo(map[string]interface{}{"results": outcomes}),
		}
	}

	locations := make(map[string]bool)
	for _, a := range artifacts {
		locations[a.StorageLocationID] = true
	}
	if _, err := e.Store.BulkDeleteArtifactsByPath(pathsOf(artifacts)); err != nil {
		return fail("files deleted but row cleanup failed: %v", err)
	}
	for locID := range locations {
		if err := e.recomputeAggregates(locID); err != nil {
			return fail("rows deleted but aggregate update failed: %v", err)
		}
	}

	return ok(fmt.Sprintf("%d artifacts deleted", len(artifacts)))
}

func pathsOf(artifacts []*types.Artifact) []string {
	paths := make([]string, len(artifacts))
	for i, a := range artifacts {
		paths[i] = a.Path
	}
	return paths
}

// deleteFolderParams is the artifact_delete_folder task metadata.
type deleteFolderParams struct {
	StorageLocationID string `json:"storage_location_id"`
	Recursive         bool   `json:"recursive"`
	RemoveDBRecords   bool   `json:"remove_db_records"`
	Force             bool   `json:"force"`
}

// DeleteFolder removes the contents of a storage location's backing
// directory (without recursive, a subdirectory makes the removal fail);
// the directory itself is left in place. When remove_db_records is set it also deletes
// the location row and every artifact row that referenced it.
func (e *Engine) DeleteFolder(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p deleteFolderParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.StorageLocationID == "" {
		return fail("storage_location_id is required")
	}

	loc, err := e.Store.GetStorageLocation(p.StorageLocationID)
	if err != nil {
		return fail("storage location not found: %v", err)
	}

	contents := shArg(loc.Path) + "/*"
	cmd := fmt.Sprintf("pfexec rm %s", contents)
	if p.Recursive {
		flag := "-r"
		if p.Force {
			flag = "-rf"
		}
		cmd = fmt.Sprintf("pfexec rm %s %s", flag, contents)
	}
	if entries, readErr := os.ReadDir(loc.Path); readErr != nil || len(entries) > 0 {
		result := e.Runner.Run(ctx, cmd, 2*time.Minute)
		if !result.Success {
			return fail("folder removal failed: %s", result.Error)
		}
	}

	if p.RemoveDBRecords {
		artifacts, err := e.Store.ListArtifactsByLocation(loc.ID)
		if err != nil {
			return fail("folder removed but artifact lookup failed: %v", err)
		}
		if len(artifacts) > 0 {
			if _, err := e.Store.BulkDeleteArtifactsByPath(pathsOf(artifacts)); err != nil {
				return fail("folder removed but artifact row cleanup failed: %v", err)
			}
		}
		if err := e.Store.DeleteStorageLocation(loc.ID); err != nil {
			return fail("folder removed but location row cleanup failed: %v", err)
		}
	}

	if entries, readErr := os.ReadDir(loc.Path); readErr == nil && len(entries) > 0 {
		return fail("folder removal reported success but %d entries remain", len(entries))
	}

	return ok(fmt.Sprintf("storage location %s contents removed", loc.Name))
}
