package artifact

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// downloadParams is the artifact_download_url task metadata.
type downloadParams struct {
	URL               string                  `json:"url"`
	StorageLocationID string                  `json:"storage_location_id"`
	Filename          string                  `json:"filename,omitempty"`
	Checksum          string                  `json:"checksum,omitempty"`
	ChecksumAlgorithm types.ChecksumAlgorithm `json:"checksum_algorithm,omitempty"`
	OverwriteExisting bool                    `json:"overwrite_existing"`
}

type downloadProgress struct {
	DownloadedMB float64 `json:"downloaded_mb"`
	TotalMB      float64 `json:"total_mb"`
	SpeedMbps    float64 `json:"speed_mbps"`
	ETASeconds   int     `json:"eta_seconds"`
	Status       string  `json:"status"`
}

// DownloadURL streams url to the location's directory, computing a
// checksum afterward and recording the resulting Artifact row. Progress
// is written periodically to handle.ReportProgress without blocking the
// copy loop.
func (e *Engine) DownloadURL(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p downloadParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.URL == "" || p.StorageLocationID == "" {
		return fail("url and storage_location_id are required")
	}

	loc, err := e.Store.GetStorageLocation(p.StorageLocationID)
	if err != nil {
		return fail("storage location not found: %v", err)
	}
	if !loc.Enabled {
		return fail("storage location %s is disabled", loc.Name)
	}

	finalPath := finalFilePath(loc, p.Filename, p.URL)
	if _, err := os.Stat(finalPath); err == nil && !p.OverwriteExisting {
		return fail("file already exists at %s and overwrite_existing is false", finalPath)
	}

	if res := e.Runner.Run(ctx, fmt.Sprintf("pfexec touch %s && pfexec chmod 666 %s", shArg(finalPath), shArg(finalPath)), 10*time.Second); !res.Success {
		return fail("failed to pre-create destination file: %s", res.Error)
	}

	timeout := time.Duration(e.Config.Download.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	downloadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fail("invalid url: %v", err)
	}
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return fail("download request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fail("download request returned status %d", resp.StatusCode)
	}
	totalBytes := parseContentLength(resp.Header.Get("Content-Length"))

	e.trackDownload(handle.TaskID(), finalPath)
	defer e.untrackDownload(handle.TaskID())

	out, err := os.OpenFile(finalPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return fail("failed to open destination file: %v", err)
	}

	var downloaded int64
	progressPeriod := time.Duration(e.Config.Download.ProgressUpdateSeconds) * time.Second
	if progressPeriod <= 0 {
		progressPeriod = 2 * time.Second
	}
	stopProgress := make(chan struct{})
	started := time.Now()
	go e.reportDownloadProgress(handle, &downloaded, totalBytes, started, progressPeriod, stopProgress)

	counting := &countingReader{r: resp.Body, n: &downloaded}
	_, copyErr := io.Copy(out, counting)
	close(stopProgress)
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(finalPath)
		return fail("download stream failed: %v", copyErr)
	}
	if closeErr != nil {
		return fail("failed to finalize downloaded file: %v", closeErr)
	}

	algo := p.ChecksumAlgorithm
	if algo == "" {
		algo = types.ChecksumSHA256
	}
	actual, err := hashFile(finalPath, algo)
	if err != nil {
		return fail("checksum computation failed: %v", err)
	}
	if p.Checksum != "" && p.Checksum != actual {
		_ = os.Remove(finalPath)
		return fail("checksum mismatch: expected %s, got %s", p.Checksum, actual)
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return fail("downloaded file vanished: %v", err)
	}
	var checksumVerified *bool
	if p.Checksum != "" {
		verified := true
		checksumVerified = &verified
	}

	existing, err := e.Store.GetArtifactByPath(finalPath)
	artifactRow := &types.Artifact{
		ID:                uuid.NewString(),
		StorageLocationID: loc.ID,
		Filename:          filepath.Base(finalPath),
		Path:              finalPath,
		Size:              info.Size(),
		Extension:         filepath.Ext(finalPath),
		MimeType:          sniffMimeType(finalPath),
		Checksum:          actual,
		ChecksumAlgorithm: algo,
		ChecksumVerified:  checksumVerified,
		SourceURL:         p.URL,
		DiscoveredAt:      time.Now(),
		LastVerified:      time.Now(),
	}
	if err == nil && existing != nil {
		artifactRow.ID = existing.ID
		if storeErr := e.Store.UpdateArtifact(artifactRow); storeErr != nil {
			return fail("download complete but artifact row update failed: %v", storeErr)
		}
	} else {
		if storeErr := e.Store.CreateArtifact(artifactRow); storeErr != nil {
			return fail("download complete but artifact row create failed: %v", storeErr)
		}
	}

	if err := e.recomputeAggregates(loc.ID); err != nil {
		return fail("download complete but aggregate update failed: %v", err)
	}

	return ok(fmt.Sprintf("downloaded %s (%d bytes)", filepath.Base(finalPath), info.Size()))
}

func (e *Engine) reportDownloadProgress(handle registry.TaskHandle, downloaded *int64, total int64, started time.Time, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := atomic.LoadInt64(downloaded)
			pct := 0
			if total > 0 {
				pct = int(float64(n) / float64(total) * 100)
			}
			progress := downloadProgress{
				DownloadedMB: bytesToMB(n),
				TotalMB:      bytesToMB(total),
				SpeedMbps:    speedMbps(n, started),
				ETASeconds:   etaSeconds(n, total, started),
				Status:       "downloading",
			}
			handle.ReportProgress(pct, progressInfo(progress))
		}
	}
}

type countingReader struct {
	r io.Reader
	n *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	atomic.AddInt64(c.n, int64(n))
	return n, err
}

func shArg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
