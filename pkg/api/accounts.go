package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// enqueueAccount returns a handler enqueuing operation on the "system"
// zone_name grouping. When the route carries a {name} path param, it is
// merged into the decoded body under key as the executor's metadata
// expects (username/name), overriding whatever the body supplied.
func (s *Server) enqueueAccount(operation string) http.HandlerFunc {
	key := accountKeyFor(operation)
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
			return
		}

		body := map[string]interface{}{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
				return
			}
		}
		if name := chi.URLParam(r, "name"); name != "" && key != "" {
			body[key] = name
		}

		metadata, err := json.Marshal(body)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode task metadata: %v", err)
			return
		}

		id, err := s.queue.Enqueue(&types.Task{
			Operation: operation,
			ZoneName:  "system",
			Priority:  types.PriorityMedium,
			Metadata:  metadata,
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

// accountKeyFor returns the task-metadata field name that identifies the
// target of operation, matching each executor's *Params struct.
func accountKeyFor(operation string) string {
	switch operation {
	case "group_create", "group_modify", "group_delete",
		"role_create", "role_modify", "role_delete":
		return "name"
	case "user_create", "user_modify", "user_delete",
		"user_set_password", "user_lock", "user_unlock":
		return "username"
	default:
		return ""
	}
}
