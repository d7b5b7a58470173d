package logstream

import (
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireTail(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tail"); err != nil {
		t.Skip("tail not available on this host")
	}
}

// TestHandleWebSocket_StreamsExistingLines drives a real tail subprocess
// against a small fixture file and asserts the client receives the
// status frame followed by at least one log_line frame.
func TestHandleWebSocket_StreamsExistingLines(t *testing.T) {
	requireTail(t)

	root := t.TempDir()
	logPath := filepath.Join(root, "a.log")
	require.NoError(t, os.WriteFile(logPath, []byte("hello from the log\n"), 0644))

	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})
	row, err := m.CreateSession(StartParams{LogName: "a.log"})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/logs/stream/"+row.SessionID, func(w http.ResponseWriter, r *http.Request) {
		_ = m.Attach(w, r, row.SessionID, row.Cookie)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/logs/stream/" + row.SessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var status wsMessage
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "status", status.Type)

	var line wsMessage
	require.NoError(t, conn.ReadJSON(&line))
	assert.Equal(t, "log_line", line.Type)
	assert.Contains(t, line.Line, "hello from the log")
}

func TestAttach_RejectsCookieMismatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.log"), []byte("hello\n"), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})
	row, err := m.CreateSession(StartParams{LogName: "a.log"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/logs/stream/"+row.SessionID, nil)
	err = m.Attach(rec, req, row.SessionID, "wrong-cookie")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
