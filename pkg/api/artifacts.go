package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// GET /artifacts/storage/paths
func (s *Server) listStorageLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.ListStorageLocations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list storage locations: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "storage_locations": locs})
}

type createStorageLocationRequest struct {
	Name    string          `json:"name"`
	Path    string          `json:"path"`
	Type    types.ArtifactType `json:"type"`
	Enabled bool            `json:"enabled"`
}

// POST /artifacts/storage/paths
func (s *Server) createStorageLocation(w http.ResponseWriter, r *http.Request) {
	var req createStorageLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Name == "" || req.Path == "" {
		writeError(w, http.StatusBadRequest, "name and path are required")
		return
	}
	loc := &types.ArtifactStorageLocation{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Path:      req.Path,
		Type:      req.Type,
		Enabled:   req.Enabled,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateStorageLocation(loc); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create storage location: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "storage_location": loc})
}

// PUT /artifacts/storage/paths/{id}
func (s *Server) updateStorageLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loc, err := s.store.GetStorageLocation(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "storage location not found: %s", id)
		return
	}
	var req createStorageLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.Name != "" {
		loc.Name = req.Name
	}
	if req.Path != "" {
		loc.Path = req.Path
	}
	if req.Type != "" {
		loc.Type = req.Type
	}
	loc.Enabled = req.Enabled
	if err := s.store.UpdateStorageLocation(loc); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update storage location: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "storage_location": loc})
}

// DELETE /artifacts/storage/paths/{id}
func (s *Server) deleteStorageLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteStorageLocation(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete storage location: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) listArtifactsOfType(w http.ResponseWriter, r *http.Request, filterType types.ArtifactType) {
	locs, err := s.store.ListStorageLocations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list storage locations: %v", err)
		return
	}
	var artifacts []*types.Artifact
	for _, loc := range locs {
		if filterType != "" && loc.Type != filterType {
			continue
		}
		rows, err := s.store.ListArtifactsByLocation(loc.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list artifacts: %v", err)
			return
		}
		artifacts = append(artifacts, rows...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "artifacts": artifacts})
}

// GET /artifacts?location_id=
func (s *Server) listArtifacts(w http.ResponseWriter, r *http.Request) {
	if locID := r.URL.Query().Get("location_id"); locID != "" {
		rows, err := s.store.ListArtifactsByLocation(locID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list artifacts: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "artifacts": rows})
		return
	}
	s.listArtifactsOfType(w, r, "")
}

// GET /artifacts/iso
func (s *Server) listArtifactsISO(w http.ResponseWriter, r *http.Request) {
	s.listArtifactsOfType(w, r, types.ArtifactTypeISO)
}

// GET /artifacts/image
func (s *Server) listArtifactsImage(w http.ResponseWriter, r *http.Request) {
	s.listArtifactsOfType(w, r, types.ArtifactTypeImage)
}

// GET /artifacts/stats
func (s *Server) artifactStats(w http.ResponseWriter, r *http.Request) {
	locs, err := s.store.ListStorageLocations()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list storage locations: %v", err)
		return
	}
	var totalFiles, totalSize int64
	for _, loc := range locs {
		totalFiles += loc.FileCount
		totalSize += loc.TotalSize
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"locations":   len(locs),
		"total_files": totalFiles,
		"total_size":  totalSize,
	})
}

// GET /artifacts/{id}
func (s *Server) getArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.GetArtifact(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found: %s", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "artifact": a})
}

// GET /artifacts/{id}/download streams the artifact's file directly.
func (s *Server) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := s.store.GetArtifact(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact not found: %s", id)
		return
	}
	f, err := os.Open(a.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, "artifact file missing: %v", err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))
	w.Header().Set("Content-Type", a.MimeType)
	_, _ = io.Copy(w, f)
}

type downloadRequest struct {
	URL               string                  `json:"url"`
	StorageLocationID string                  `json:"storage_location_id"`
	Filename          string                  `json:"filename,omitempty"`
	Checksum          string                  `json:"checksum,omitempty"`
	ChecksumAlgorithm types.ChecksumAlgorithm `json:"checksum_algorithm,omitempty"`
	OverwriteExisting bool                    `json:"overwrite_existing"`
}

// POST /artifacts/download enqueues artifact_download_url.
func (s *Server) enqueueDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if req.URL == "" || req.StorageLocationID == "" {
		writeError(w, http.StatusBadRequest, "url and storage_location_id are required")
		return
	}
	// PerZoneExclusive keys off zone_name, so scope it to this location's
	// id rather than "artifact" host-wide: concurrent downloads into
	// different storage locations are allowed.
	s.enqueueArtifactTaskForZone(w, "artifact_download_url", "artifact-location:"+req.StorageLocationID, types.PriorityMedium, req)
}

type uploadRequest struct {
	FinalPath         string                  `json:"final_path"`
	OriginalName      string                  `json:"original_name"`
	Size              int64                   `json:"size"`
	StorageLocationID string                  `json:"storage_location_id"`
	Checksum          string                  `json:"checksum,omitempty"`
	ChecksumAlgorithm types.ChecksumAlgorithm `json:"checksum_algorithm,omitempty"`
}

// POST /artifacts/upload accepts a staged multipart upload, writes it to
// the location's directory, and enqueues artifact_upload_process to
// checksum and index it.
func (s *Server) enqueueUpload(w http.ResponseWriter, r *http.Request) {
	locationID := r.FormValue("storage_location_id")
	if locationID == "" {
		writeError(w, http.StatusBadRequest, "storage_location_id is required")
		return
	}
	loc, err := s.store.GetStorageLocation(locationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "storage location not found: %s", locationID)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: %v", err)
		return
	}
	defer file.Close()

	finalPath := filepath.Join(loc.Path, header.Filename)
	dst, err := os.OpenFile(finalPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stage upload: %v", err)
		return
	}
	defer dst.Close()
	size, err := io.Copy(dst, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write upload: %v", err)
		return
	}

	req := uploadRequest{
		FinalPath:         finalPath,
		OriginalName:      header.Filename,
		Size:              size,
		StorageLocationID: locationID,
		Checksum:          r.FormValue("checksum"),
		ChecksumAlgorithm: types.ChecksumAlgorithm(r.FormValue("checksum_algorithm")),
	}
	s.enqueueArtifactTask(w, "artifact_upload_process", types.PriorityMedium, req)
}

type scanRequest struct {
	StorageLocationID string `json:"storage_location_id,omitempty"`
	VerifyChecksums   bool   `json:"verify_checksums"`
	RemoveOrphaned    bool   `json:"remove_orphaned"`
}

// POST /artifacts/scan enqueues artifact_scan_location, or
// artifact_scan_all when storage_location_id is omitted.
func (s *Server) enqueueScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	op := "artifact_scan_all"
	if req.StorageLocationID != "" {
		op = "artifact_scan_location"
	}
	s.enqueueArtifactTask(w, op, types.PriorityLow, req)
}

type deleteFilesRequest struct {
	ArtifactIDs []string `json:"artifact_ids"`
	DeleteFiles bool     `json:"delete_files"`
	Force       bool     `json:"force"`
}

// DELETE /artifacts/files enqueues artifact_delete_file.
func (s *Server) enqueueDeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req deleteFilesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if len(req.ArtifactIDs) == 0 {
		writeError(w, http.StatusBadRequest, "artifact_ids is required")
		return
	}
	s.enqueueArtifactTask(w, "artifact_delete_file", types.PriorityMedium, req)
}

// enqueueArtifactTask marshals metadata and enqueues a task on the
// "artifact" zone_name grouping, replying with the standard accepted shape.
func (s *Server) enqueueArtifactTask(w http.ResponseWriter, operation string, priority types.TaskPriority, metadata interface{}) {
	s.enqueueArtifactTaskForZone(w, operation, "artifact", priority, metadata)
}

// enqueueArtifactTaskForZone is enqueueArtifactTask with an explicit
// zone_name, used by artifact_download_url to scope PerZoneExclusive to
// one storage location's id rather than every artifact task host-wide.
func (s *Server) enqueueArtifactTaskForZone(w http.ResponseWriter, operation, zoneName string, priority types.TaskPriority, metadata interface{}) {
	raw, err := json.Marshal(metadata)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode task metadata: %v", err)
		return
	}
	id, err := s.queue.Enqueue(&types.Task{
		Operation: operation,
		ZoneName:  zoneName,
		Priority:  priority,
		Metadata:  raw,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue task: %v", err)
		return
	}
	writeJSON(w, http.StatusAccepted, taskAcceptedResponse{
		Success:   true,
		Message:   fmt.Sprintf("%s enqueued", operation),
		TaskID:    id,
		Status:    string(types.TaskPending),
		CreatedAt: time.Now(),
	})
}

// GET /artifacts/service/status
func (s *Server) artifactServiceStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "enabled": s.artifact != nil})
}
