package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// GET /tasks?status=&zone_name=&limit=&offset=
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.TaskFilter{
		Status:   types.TaskStatus(q.Get("status")),
		ZoneName: q.Get("zone_name"),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	tasks, err := s.queue.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tasks": tasks})
}

// GET /tasks/{id}
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.queue.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found: %s", id)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "task": task})
}

// DELETE /tasks/{id} cancels a pending task, or requests cooperative
// cancellation of a running one.
func (s *Server) cancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.queue.Cancel(id); err != nil {
		writeError(w, http.StatusConflict, "failed to cancel task: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "cancellation requested"})
}
