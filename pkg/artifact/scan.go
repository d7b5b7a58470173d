package artifact

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// scanParams is the artifact_scan_location task metadata.
type scanParams struct {
	StorageLocationID string `json:"storage_location_id"`
	VerifyChecksums   bool   `json:"verify_checksums"`
	RemoveOrphaned    bool   `json:"remove_orphaned"`
}

type scanResult struct {
	Scanned int `json:"scanned"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
}

// ScanLocation lists a location's directory, skips paths under an
// in-flight download, inserts bare rows for new files, touches
// last_verified on existing rows, and optionally removes orphaned rows.
func (e *Engine) ScanLocation(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p scanParams
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

	result, err := e.scanOneLocation(loc, p.VerifyChecksums, p.RemoveOrphaned)
	if err != nil {
		return fail("scan failed: %v", err)
	}
	return types.HandlerResult{Success: true, Message: "scan complete", ProgressInfo: progressInfo(result)}
}

// scanAllParams is the artifact_scan_all task metadata.
type scanAllParams struct {
	VerifyChecksums bool `json:"verify_checksums"`
	RemoveOrphaned  bool `json:"remove_orphaned"`
}

// ScanAll scans every enabled storage location.
func (e *Engine) ScanAll(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p scanAllParams
	_ = decode(metadata, &p)

	locations, err := e.Store.ListStorageLocations()
	if err != nil {
		return fail("failed to list storage locations: %v", err)
	}

	totals := scanResult{}
	var scanErrs []string
	for _, loc := range locations {
		if !loc.Enabled {
			continue
		}
		r, err := e.scanOneLocation(loc, p.VerifyChecksums, p.RemoveOrphaned)
		if err != nil {
			scanErrs = append(scanErrs, loc.Name+": "+err.Error())
			continue
		}
		totals.Scanned += r.Scanned
		totals.Added += r.Added
		totals.Removed += r.Removed
		totals.Skipped += r.Skipped
	}

	if len(scanErrs) > 0 {
		return types.HandlerResult{
			Success:      false,
			Error:        scanErrs[0],
			ProgressInfo: progressInfo(totals),
		}
	}
	return types.HandlerResult{Success: true, Message: "scan_all complete", ProgressInfo: progressInfo(totals)}
}

func (e *Engine) scanOneLocation(loc *types.ArtifactStorageLocation, verifyChecksums, removeOrphaned bool) (scanResult, error) {
	result := scanResult{}

	downloading, err := e.downloadingPaths(loc.ID)
	if err != nil {
		return result, err
	}

	entries, err := os.ReadDir(loc.Path)
	if err != nil {
		return result, err
	}

	existing, err := e.Store.ListArtifactsByLocation(loc.ID)
	if err != nil {
		return result, err
	}
	byPath := make(map[string]*types.Artifact, len(existing))
	for _, a := range existing {
		byPath[a.Path] = a
	}

	onDisk := make(map[string]bool)
	supported := e.Config.Scanning.SupportedExtensions

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(loc.Path, entry.Name())
		if downloading[path] {
			result.Skipped++
			continue
		}
		if !extensionAllowed(filepath.Ext(entry.Name()), loc.Type, supported) {
			continue
		}
		result.Scanned++
		onDisk[path] = true

		if row, found := byPath[path]; found {
			row.LastVerified = time.Now()
			if verifyChecksums {
				if sum, err := hashFile(path, row.ChecksumAlgorithm); err == nil {
					row.Checksum = sum
				}
			}
			if err := e.Store.UpdateArtifact(row); err != nil {
				return result, err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		newRow := &types.Artifact{
			ID:                uuid.NewString(),
			StorageLocationID: loc.ID,
			Filename:          entry.Name(),
			Path:              path,
			Size:              info.Size(),
			Extension:         filepath.Ext(entry.Name()),
			MimeType:          sniffMimeType(path),
			DiscoveredAt:      time.Now(),
			LastVerified:      time.Now(),
		}
		if err := e.Store.CreateArtifact(newRow); err != nil {
			return result, err
		}
		result.Added++
	}

	if removeOrphaned {
		var orphaned []string
		for path := range byPath {
			if !onDisk[path] && !downloading[path] {
				orphaned = append(orphaned, path)
			}
		}
		if len(orphaned) > 0 {
			n, err := e.Store.BulkDeleteArtifactsByPath(orphaned)
			if err != nil {
				return result, err
			}
			result.Removed = n
		}
	}

	count, totalSize, err := e.Store.CountArtifactAggregates(loc.ID)
	if err != nil {
		return result, err
	}
	loc.FileCount = count
	loc.TotalSize = totalSize
	loc.LastScanAt = time.Now()
	loc.ScanErrors = 0
	loc.LastErrorMessage = ""
	if err := e.Store.UpdateStorageLocation(loc); err != nil {
		return result, err
	}

	return result, nil
}
