package api

import (
	"io"
	"net/http"

	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// GET /system/updates/check enqueues a system_update_check task on the
// "system" zone_name grouping and replies 202 with its task id. The
// response carries only the task id, not the dry-run result.
func (s *Server) systemUpdateCheck(w http.ResponseWriter, r *http.Request) {
	id, err := s.queue.Enqueue(&types.Task{
		Operation: "system_update_check",
		ZoneName:  "system",
		Priority:  types.PriorityLow,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to enqueue task: %v", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "system_update_check enqueued",
		"task_id": id,
	})
}

// enqueueSystemUpdate returns a handler enqueuing operation with whatever
// JSON body the caller sent as task metadata (publisher for refresh, none
// needed for install).
func (s *Server) enqueueSystemUpdate(operation string) http.HandlerFunc {
	priority := types.PriorityLow
	if operation == "system_update_install" {
		priority = types.PriorityHigh
	}
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
			return
		}
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		id, err := s.queue.Enqueue(&types.Task{
			Operation: operation,
			ZoneName:  "system",
			Priority:  priority,
			Metadata:  raw,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue task: %v", err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"success": true,
			"message": operation + " enqueued",
			"task_id": id,
		})
	}
}

// GET /system/updates/history
func (s *Server) systemUpdateHistory(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.queue.List(storage.TaskFilter{Status: types.TaskCompleted, ZoneName: "system"})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history: %v", err)
		return
	}
	var history []*types.Task
	for _, t := range tasks {
		if t.Operation == "system_update_install" || t.Operation == "system_update_refresh" {
			history = append(history, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "history": history})
}
