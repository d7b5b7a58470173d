// Package artifact implements the Artifact Storage Engine: scanning
// configured filesystem locations into an inventory, streaming URL
// downloads with checksumming, processing staged uploads, and deleting
// files/folders while keeping each location's cached aggregates correct.
package artifact

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// Engine bundles the collaborators every artifact executor needs.
type Engine struct {
	Store      storage.Store
	Config     config.ArtifactStorageConfig
	Runner     *command.Runner
	HTTPClient *http.Client

	mu                sync.RWMutex
	inFlightDownloads map[string]string // taskID -> final path, advisory index for the scan race rule
}

// New builds an Engine with a default HTTP client timeout of 0 (caller
// supplies per-request context deadlines).
func New(store storage.Store, cfg config.ArtifactStorageConfig, runner *command.Runner) *Engine {
	return &Engine{
		Store:             store,
		Config:            cfg,
		Runner:            runner,
		HTTPClient:        &http.Client{},
		inFlightDownloads: make(map[string]string),
	}
}

func newHasher(algo types.ChecksumAlgorithm) (hash.Hash, error) {
	switch algo {
	case types.ChecksumMD5:
		return md5.New(), nil
	case types.ChecksumSHA1:
		return sha1.New(), nil
	case types.ChecksumSHA256, "":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algo)
	}
}

// hashFile streams path through algo and returns the lowercase hex digest.
func hashFile(path string, algo types.ChecksumAlgorithm) (string, error) {
	h, err := newHasher(algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sniffMimeType(path string) string {
	if mt := mime.TypeByExtension(filepath.Ext(path)); mt != "" {
		return mt
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, _ := f.Read(buf)
	return http.DetectContentType(buf[:n])
}

func extensionAllowed(ext string, locationType types.ArtifactType, supported map[string][]string) bool {
	allowed, ok := supported[string(locationType)]
	if !ok || len(allowed) == 0 {
		return true
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == ext {
			return true
		}
	}
	return false
}

// trackDownload registers a final path as in-flight for the scan race
// rule. Callers must defer untrackDownload.
func (e *Engine) trackDownload(taskID, finalPath string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlightDownloads[taskID] = finalPath
}

func (e *Engine) untrackDownload(taskID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlightDownloads, taskID)
}

// downloadingPaths returns the final path of every download this process
// currently has in flight, unioned with every currently-running
// artifact_download_url task recorded in the store (another process/
// restart may have one in flight that this process doesn't know about).
func (e *Engine) downloadingPaths(locationID string) (map[string]bool, error) {
	paths := make(map[string]bool)

	e.mu.RLock()
	for _, p := range e.inFlightDownloads {
		paths[p] = true
	}
	e.mu.RUnlock()

	running, err := e.Store.ListRunningTasks()
	if err != nil {
		return nil, err
	}
	for _, t := range running {
		if t.Operation != "artifact_download_url" {
			continue
		}
		var p downloadParams
		if err := decode(t.Metadata, &p); err != nil {
			continue
		}
		if p.StorageLocationID != locationID {
			continue
		}
		loc, err := e.Store.GetStorageLocation(p.StorageLocationID)
		if err != nil {
			continue
		}
		paths[finalFilePath(loc, p.Filename, p.URL)] = true
	}
	return paths, nil
}

func finalFilePath(loc *types.ArtifactStorageLocation, filename, url string) string {
	if filename == "" {
		filename = filepath.Base(url)
	}
	return filepath.Join(loc.Path, filename)
}

func fail(format string, args ...interface{}) types.HandlerResult {
	return types.HandlerResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

func ok(message string) types.HandlerResult {
	return types.HandlerResult{Success: true, Message: message}
}

func progressInfo(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

func decode(metadata []byte, v interface{}) error {
	if len(metadata) == 0 {
		return fmt.Errorf("missing task metadata")
	}
	if err := json.Unmarshal(metadata, v); err != nil {
		return fmt.Errorf("invalid task metadata: %w", err)
	}
	return nil
}

// recomputeAggregates recalculates and persists file_count/total_size for
// a location from the artifact rows that currently reference it.
func (e *Engine) recomputeAggregates(locationID string) error {
	loc, err := e.Store.GetStorageLocation(locationID)
	if err != nil {
		return err
	}
	count, totalSize, err := e.Store.CountArtifactAggregates(locationID)
	if err != nil {
		return err
	}
	loc.FileCount = count
	loc.TotalSize = totalSize
	return e.Store.UpdateStorageLocation(loc)
}

func bytesToMB(n int64) float64 {
	return float64(n) / (1024 * 1024)
}

func etaSeconds(downloaded, total int64, started time.Time) int {
	if downloaded <= 0 || total <= 0 {
		return 0
	}
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	rate := float64(downloaded) / elapsed
	if rate <= 0 {
		return 0
	}
	remaining := float64(total - downloaded)
	return int(remaining / rate)
}

func speedMbps(downloaded int64, started time.Time) float64 {
	elapsed := time.Since(started).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return (bytesToMB(downloaded) * 8) / elapsed
}

func parseContentLength(header string) int64 {
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
