package logstream

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// wsMessage is the envelope for every frame exchanged over the log-stream
// socket, in both directions.
type wsMessage struct {
	Type      string `json:"type"`
	Line      string `json:"line,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
	Status    string `json:"status,omitempty"`
}

// session is the live, in-memory half of a LogStreamSession row: the
// spawned tail process and the socket it feeds.
type session struct {
	id          string
	grepPattern string

	cmd  *exec.Cmd
	conn *websocket.Conn

	mu        sync.Mutex
	paused    bool
	lines     int64
	closed    bool
	closeOnce sync.Once
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Attach looks up sessionID, validates cookie against the value minted at
// creation, and upgrades the connection. It is the entry point the HTTP
// layer calls for GET /logs/stream/{session_id}.
func (m *Manager) Attach(w http.ResponseWriter, r *http.Request, sessionID, cookie string) error {
	row, err := m.store.GetLogSession(sessionID)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return err
	}
	if row.Status != types.LogSessionCreated {
		http.Error(w, "session is not awaiting connection", http.StatusConflict)
		return fmt.Errorf("session %s is in state %s", sessionID, row.Status)
	}
	if row.Cookie != "" && row.Cookie != cookie {
		http.Error(w, "cookie mismatch", http.StatusForbidden)
		return fmt.Errorf("cookie mismatch for session %s", sessionID)
	}
	return m.HandleWebSocket(w, r, row)
}

// HandleWebSocket upgrades r, spawns `tail -f [-n follow_lines] <path>`
// for row, and bridges its output to the socket until either side closes.
// It blocks until the session terminates.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request, row *types.LogStreamSession) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	args := []string{"-f"}
	if row.FollowLines > 0 {
		args = append(args, "-n", itoa(row.FollowLines))
	}
	args = append(args, row.LogPath)

	cmd := exec.Command("tail", args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = conn.Close()
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		_ = conn.Close()
		return err
	}

	if err := cmd.Start(); err != nil {
		_ = conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()})
		_ = conn.Close()
		return err
	}

	sess := &session{id: row.SessionID, grepPattern: row.GrepPattern, cmd: cmd, conn: conn}

	m.mu.Lock()
	m.sessions[row.SessionID] = sess
	m.mu.Unlock()

	row.Status = types.LogSessionActive
	row.ConnectedAt = time.Now()
	_ = m.store.UpdateLogSession(row)

	_ = conn.WriteJSON(wsMessage{Type: "status", Status: "active"})

	done := make(chan struct{})
	go sess.pumpLines(stdout, false, done)
	go sess.pumpLines(stderr, true, nil)
	go sess.readControl()

	<-done

	// StopSession takes the session out of the map before terminating it
	// and records the stopped row itself; only a session still owned here
	// is finalized as closed.
	m.mu.Lock()
	_, owned := m.sessions[row.SessionID]
	delete(m.sessions, row.SessionID)
	m.mu.Unlock()
	sess.terminate()
	if !owned {
		return nil
	}

	row.LinesSent = sess.linesSent()
	row.DisconnectedAt = time.Now()
	row.Status = types.LogSessionClosed
	_ = m.store.UpdateLogSession(row)
	return nil
}

// pumpLines forwards each non-empty line from r to the socket, applying
// the session's grep_pattern substring filter to stdout lines. When done
// is non-nil it is closed once the pipe reaches EOF, signaling the caller
// that the tail process has exited.
func (s *session) pumpLines(r io.Reader, isStderr bool, done chan struct{}) {
	if done != nil {
		defer close(done)
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.mu.Lock()
		paused := s.paused
		s.mu.Unlock()
		if paused {
			continue
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		if isStderr {
			_ = s.conn.WriteJSON(wsMessage{Type: "error", Error: line})
			continue
		}
		if s.grepPattern != "" && !strings.Contains(line, s.grepPattern) {
			continue
		}
		atomic.AddInt64(&s.lines, 1)
		_ = s.conn.WriteJSON(wsMessage{Type: "log_line", Line: line, Timestamp: time.Now().UTC().Format(time.RFC3339Nano)})
	}
}

// readControl handles inbound control frames: ping, pause, resume. It
// returns (and the caller's outer HandleWebSocket unblocks) when the
// socket errors or closes, since that is this session's only read loop.
func (s *session) readControl() {
	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			_ = s.killTail()
			return
		}
		switch msg.Type {
		case "ping":
			_ = s.conn.WriteJSON(wsMessage{Type: "pong"})
		case "pause":
			s.mu.Lock()
			s.paused = true
			s.mu.Unlock()
			s.signalTail(syscall.SIGSTOP)
		case "resume":
			s.mu.Lock()
			s.paused = false
			s.mu.Unlock()
			s.signalTail(syscall.SIGCONT)
		}
	}
}

func (s *session) signalTail(sig syscall.Signal) {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-s.cmd.Process.Pid, sig)
}

func (s *session) killTail() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
	return s.cmd.Wait()
}

// terminate kills the tail process and closes the socket. Safe to call
// more than once.
func (s *session) terminate() {
	s.closeOnce.Do(func() {
		_ = s.killTail()
		_ = s.conn.Close()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) linesSent() int64 {
	return atomic.LoadInt64(&s.lines)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
