package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// uploadParams is the artifact_upload_process task metadata. The file has
// already been staged at FinalPath by a multipart-upload preamble; this
// handler only checksums it and records the inventory row.
type uploadParams struct {
	FinalPath         string                  `json:"final_path"`
	OriginalName      string                  `json:"original_name"`
	Size              int64                   `json:"size"`
	StorageLocationID string                  `json:"storage_location_id"`
	Checksum          string                  `json:"checksum,omitempty"`
	ChecksumAlgorithm types.ChecksumAlgorithm `json:"checksum_algorithm,omitempty"`
}

// UploadProcess verifies a staged upload against its expected checksum
// (if any) and writes the resulting Artifact row and location aggregates.
func (e *Engine) UploadProcess(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p uploadParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.FinalPath == "" || p.StorageLocationID == "" {
		return fail("final_path and storage_location_id are required")
	}

	loc, err := e.Store.GetStorageLocation(p.StorageLocationID)
	if err != nil {
		return fail("storage location not found: %v", err)
	}

	info, err := os.Stat(p.FinalPath)
	if err != nil {
		return fail("staged upload not found at %s: %v", p.FinalPath, err)
	}

	algo := p.ChecksumAlgorithm
	if algo == "" {
		algo = types.ChecksumSHA256
	}
	actual, err := hashFile(p.FinalPath, algo)
	if err != nil {
		return fail("checksum computation failed: %v", err)
	}
	if p.Checksum != "" && p.Checksum != actual {
		_ = os.Remove(p.FinalPath)
		return fail("checksum mismatch: expected %s, got %s", p.Checksum, actual)
	}
	var checksumVerified *bool
	if p.Checksum != "" {
		verified := true
		checksumVerified = &verified
	}

	filename := p.OriginalName
	if filename == "" {
		filename = filepath.Base(p.FinalPath)
	}

	existing, err := e.Store.GetArtifactByPath(p.FinalPath)
	row := &types.Artifact{
		ID:                uuid.NewString(),
		StorageLocationID: loc.ID,
		Filename:          filename,
		Path:              p.FinalPath,
		Size:              info.Size(),
		Extension:         filepath.Ext(p.FinalPath),
		MimeType:          sniffMimeType(p.FinalPath),
		Checksum:          actual,
		ChecksumAlgorithm: algo,
		ChecksumVerified:  checksumVerified,
		DiscoveredAt:      time.Now(),
		LastVerified:      time.Now(),
	}
	if err == nil && existing != nil {
		row.ID = existing.ID
		if storeErr := e.Store.UpdateArtifact(row); storeErr != nil {
			return fail("upload processed but artifact row update failed: %v", storeErr)
		}
	} else {
		if storeErr := e.Store.CreateArtifact(row); storeErr != nil {
			return fail("upload processed but artifact row create failed: %v", storeErr)
		}
	}

	if err := e.recomputeAggregates(loc.ID); err != nil {
		return fail("upload processed but aggregate update failed: %v", err)
	}

	return ok(fmt.Sprintf("upload %s processed (%d bytes)", filename, info.Size()))
}
