package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct{ id string }

func (f fakeHandle) TaskID() string                        { return f.id }
func (fakeHandle) ZoneName() string                        { return "artifact" }
func (fakeHandle) ReportProgress(percent int, info []byte) {}
func (fakeHandle) Cancelled() bool                          { return false }

func newTestEngine(t *testing.T) (*Engine, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := config.ArtifactStorageConfig{
		Enabled: true,
		Download: config.DownloadConfig{
			TimeoutSeconds:        30,
			ProgressUpdateSeconds: 1,
		},
	}
	return New(store, cfg, command.NewRunner()), store
}

func newTestLocation(t *testing.T, store storage.Store) *types.ArtifactStorageLocation {
	t.Helper()
	loc := &types.ArtifactStorageLocation{
		ID:      uuid.NewString(),
		Name:    "isos",
		Path:    t.TempDir(),
		Type:    types.ArtifactTypeISO,
		Enabled: true,
	}
	require.NoError(t, store.CreateStorageLocation(loc))
	return loc
}

func TestDownloadURL_RejectsMissingFields(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.DownloadURL(context.Background(), []byte(`{}`), fakeHandle{id: "t1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "url and storage_location_id are required")
}

func TestDownloadURL_RejectsDisabledLocation(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)
	loc.Enabled = false
	require.NoError(t, store.UpdateStorageLocation(loc))

	result := e.DownloadURL(context.Background(), []byte(`{"url":"http://example.test/f.iso","storage_location_id":"`+loc.ID+`"}`), fakeHandle{id: "t1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "disabled")
}

// requirePfexec skips tests that exercise the download path's privileged
// pre-create step when pfexec isn't on PATH (any host that isn't
// illumos/OmniOS).
func requirePfexec(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pfexec"); err != nil {
		t.Skip("pfexec not available on this host")
	}
}

func TestDownloadURL_SuccessWritesArtifactAndAggregates(t *testing.T) {
	requirePfexec(t)
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)

	body := []byte("hello world")
	sum := sha256.Sum256(body)
	checksum := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	metadata := []byte(`{"url":"` + srv.URL + `/f.iso","storage_location_id":"` + loc.ID + `","filename":"f.iso","checksum":"` + checksum + `","checksum_algorithm":"sha256"}`)
	result := e.DownloadURL(context.Background(), metadata, fakeHandle{id: "t1"})
	require.True(t, result.Success)

	artifact, err := store.GetArtifactByPath(filepath.Join(loc.Path, "f.iso"))
	require.NoError(t, err)
	assert.Equal(t, checksum, artifact.Checksum)
	assert.True(t, *artifact.ChecksumVerified)

	refreshed, err := store.GetStorageLocation(loc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refreshed.FileCount)
	assert.Equal(t, int64(len(body)), refreshed.TotalSize)
}

func TestDownloadURL_ChecksumMismatchDeletesFile(t *testing.T) {
	requirePfexec(t)
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	metadata := []byte(`{"url":"` + srv.URL + `/f.iso","storage_location_id":"` + loc.ID + `","filename":"f.iso","checksum":"deadbeef","checksum_algorithm":"sha256"}`)
	result := e.DownloadURL(context.Background(), metadata, fakeHandle{id: "t1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "checksum mismatch")

	_, err := os.Stat(filepath.Join(loc.Path, "f.iso"))
	assert.True(t, os.IsNotExist(err))
}

func TestScanLocation_SkipsInFlightDownloadPath(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)

	downloadingPath := filepath.Join(loc.Path, "in-progress.iso")
	require.NoError(t, os.WriteFile(downloadingPath, []byte("partial"), 0644))
	e.trackDownload("download-task", downloadingPath)
	defer e.untrackDownload("download-task")

	result := e.ScanLocation(context.Background(), []byte(`{"storage_location_id":"`+loc.ID+`"}`), fakeHandle{id: "scan-task"})
	require.True(t, result.Success)

	_, err := store.GetArtifactByPath(downloadingPath)
	assert.Error(t, err)
}

func TestScanLocation_InsertsNewFilesAndUpdatesAggregates(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)
	require.NoError(t, os.WriteFile(filepath.Join(loc.Path, "a.iso"), []byte("12345"), 0644))

	result := e.ScanLocation(context.Background(), []byte(`{"storage_location_id":"`+loc.ID+`"}`), fakeHandle{id: "scan-task"})
	require.True(t, result.Success)

	artifacts, err := store.ListArtifactsByLocation(loc.ID)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, int64(5), artifacts[0].Size)

	refreshed, err := store.GetStorageLocation(loc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refreshed.FileCount)
}

func TestScanLocation_RemovesOrphanedRows(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)

	stale := &types.Artifact{ID: uuid.NewString(), StorageLocationID: loc.ID, Filename: "gone.iso", Path: filepath.Join(loc.Path, "gone.iso"), Size: 10}
	require.NoError(t, store.CreateArtifact(stale))

	result := e.ScanLocation(context.Background(), []byte(`{"storage_location_id":"`+loc.ID+`","remove_orphaned":true}`), fakeHandle{id: "scan-task"})
	require.True(t, result.Success)

	_, err := store.GetArtifact(stale.ID)
	assert.Error(t, err)
}

func TestDeleteFile_RequiresArtifactIDs(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.DeleteFile(context.Background(), []byte(`{}`), fakeHandle{id: "t1"})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "artifact_ids is required")
}

func TestDeleteFile_RemovesRowsAndDecrementsAggregates(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)
	path := filepath.Join(loc.Path, "a.iso")
	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))
	a := &types.Artifact{ID: uuid.NewString(), StorageLocationID: loc.ID, Filename: "a.iso", Path: path, Size: 5}
	require.NoError(t, store.CreateArtifact(a))
	loc.FileCount = 1
	loc.TotalSize = 5
	require.NoError(t, store.UpdateStorageLocation(loc))

	result := e.DeleteFile(context.Background(), []byte(`{"artifact_ids":["`+a.ID+`"],"delete_files":false}`), fakeHandle{id: "t1"})
	require.True(t, result.Success)

	_, err := store.GetArtifact(a.ID)
	assert.Error(t, err)

	refreshed, err := store.GetStorageLocation(loc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), refreshed.FileCount)
}

func TestUploadProcess_RejectsMismatchedChecksum(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)
	staged := filepath.Join(loc.Path, "upload.bin")
	require.NoError(t, os.WriteFile(staged, []byte("payload"), 0644))

	metadata := []byte(`{"final_path":"` + staged + `","storage_location_id":"` + loc.ID + `","checksum":"00","checksum_algorithm":"sha256"}`)
	result := e.UploadProcess(context.Background(), metadata, fakeHandle{id: "t1"})
	assert.False(t, result.Success)

	_, err := os.Stat(staged)
	assert.True(t, os.IsNotExist(err))
}

func TestUploadProcess_SuccessWritesArtifactRow(t *testing.T) {
	e, store := newTestEngine(t)
	loc := newTestLocation(t, store)
	staged := filepath.Join(loc.Path, "upload.bin")
	require.NoError(t, os.WriteFile(staged, []byte("payload"), 0644))

	metadata := []byte(`{"final_path":"` + staged + `","original_name":"upload.bin","storage_location_id":"` + loc.ID + `"}`)
	result := e.UploadProcess(context.Background(), metadata, fakeHandle{id: "t1"})
	require.True(t, result.Success)

	artifact, err := store.GetArtifactByPath(staged)
	require.NoError(t, err)
	assert.Equal(t, "upload.bin", artifact.Filename)
}

func TestDeleteFolder_RequiresStorageLocationID(t *testing.T) {
	e, _ := newTestEngine(t)
	result := e.DeleteFolder(context.Background(), []byte(`{}`), fakeHandle{id: "t1"})
	assert.False(t, result.Success)
}

func TestExtensionAllowed_NoConfigAllowsEverything(t *testing.T) {
	assert.True(t, extensionAllowed(".iso", types.ArtifactTypeISO, nil))
}

func TestExtensionAllowed_RestrictsToConfiguredList(t *testing.T) {
	supported := map[string][]string{"iso": {"iso"}}
	assert.True(t, extensionAllowed(".iso", types.ArtifactTypeISO, supported))
	assert.False(t, extensionAllowed(".txt", types.ArtifactTypeISO, supported))
}
