package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/makr91/zoneweaver-api/pkg/executors"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// hostLifecycle returns a handler that validates confirm/emergency/
// grace_period/message synchronously (the same rule set the executor
// re-checks as a second line of defense) and, only once the request
// passes, enqueues operation at CRITICAL priority on the "system"
// zone_name grouping, forwarding the body unchanged as task metadata.
func (s *Server) hostLifecycle(operation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body: %v", err)
			return
		}
		if len(raw) == 0 {
			raw = []byte("{}")
		}

		if operation == "system_host_runlevel_change" {
			var p executors.RunlevelParams
			if err := json.Unmarshal(raw, &p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
				return
			}
			if err := p.Validate(); err != nil {
				writeError(w, http.StatusBadRequest, "%v", err)
				return
			}
		} else {
			var p executors.HostLifecycleParams
			if err := json.Unmarshal(raw, &p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
				return
			}
			if err := p.Validate(executors.RequiresEmergency(operation)); err != nil {
				writeError(w, http.StatusBadRequest, "%v", err)
				return
			}
		}

		id, err := s.queue.Enqueue(&types.Task{
			Operation: operation,
			ZoneName:  "system",
			Priority:  types.PriorityCritical,
			Metadata:  raw,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue task: %v", err)
			return
		}
		resp := map[string]interface{}{
			"success": true,
			"message": fmt.Sprintf("%s enqueued", operation),
			"task_id": id,
		}
		if warnings := executors.LifecycleWarnings(operation); len(warnings) > 0 {
			resp["warnings"] = warnings
		}
		writeJSON(w, http.StatusAccepted, resp)
	}
}
