package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/makr91/zoneweaver-api/pkg/logstream"
)

type startLogStreamRequest struct {
	FollowLines int    `json:"follow_lines,omitempty"`
	GrepPattern string `json:"grep_pattern,omitempty"`
}

// POST /system/logs/{logname}/stream/start validates and creates a
// session row, returning the id/cookie the caller needs to open the
// WebSocket at GET /logs/stream/{session_id}.
func (s *Server) startLogStream(w http.ResponseWriter, r *http.Request) {
	logname := chi.URLParam(r, "logname")
	var req startLogStreamRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
	}

	row, err := s.logs.CreateSession(logstream.StartParams{
		LogName:     logname,
		FollowLines: req.FollowLines,
		GrepPattern: req.GrepPattern,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to start log stream: %v", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"session_id":     row.SessionID,
		"cookie":         row.Cookie,
		"websocket_url":  fmt.Sprintf("/logs/stream/%s", row.SessionID),
	})
}

// GET /logs/stream/{sessionId}?cookie=... upgrades the connection.
func (s *Server) attachLogStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	cookie := r.URL.Query().Get("cookie")
	if err := s.logs.Attach(w, r, sessionID, cookie); err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("log stream attach failed")
	}
}

// GET /system/logs/stream/sessions
func (s *Server) listLogSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.ListLogSessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "sessions": sessions})
}

// DELETE /system/logs/stream/{sessionId}/stop
func (s *Server) stopLogSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	if err := s.logs.StopSession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "failed to stop session: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
