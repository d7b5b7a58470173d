// Package logstream implements the LogStreamManager: validated creation of
// per-file tail sessions, a WebSocket bridge for each session's lines, and
// a janitor sweep that retires terminal sessions. It never touches the
// task queue; sessions are driven directly off HTTP/WS requests the way
// the teacher's control surface handles other stateful connections.
package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/log"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/makr91/zoneweaver-api/pkg/types"
	"github.com/rs/zerolog"
)

// Manager owns every live tail session and the janitor sweep that retires
// terminal ones. Session rows are persisted through Store; the live
// *session value (process handle, socket) only ever lives in sessions.
type Manager struct {
	store  storage.Store
	cfg    config.SystemLogsConfig
	logger zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Manager bound to store, governed by the system_logs
// configuration section.
func New(store storage.Store, cfg config.SystemLogsConfig) *Manager {
	return &Manager{
		store:    store,
		cfg:      cfg,
		logger:   log.WithComponent("logstream"),
		sessions: make(map[string]*session),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the janitor sweep loop.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go m.janitorLoop(ctx)
}

// Stop signals the janitor loop to exit and waits for it.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

// StartParams is the POST /system/logs/{logname}/stream/start request body.
type StartParams struct {
	LogName     string
	FollowLines int
	GrepPattern string
}

// CreateSession validates p against the configured log-streaming policy
// and records a `created` session row. The tail process is not spawned
// until the WebSocket upgrade arrives (HandleWebSocket).
func (m *Manager) CreateSession(p StartParams) (*types.LogStreamSession, error) {
	logsCfg := m.cfg
	if !logsCfg.Enabled {
		return nil, fmt.Errorf("log streaming is disabled")
	}

	path, err := resolveLogPath(logsCfg.AllowedPaths, p.LogName)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("log file not found: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", p.LogName)
	}

	maxBytes := int64(logsCfg.Security.MaxFileSizeMB) * 2 * 1024 * 1024
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%s exceeds the maximum streamable size", p.LogName)
	}

	if matchesForbidden(path, logsCfg.Security.ForbiddenPatterns) {
		return nil, fmt.Errorf("%s matches a forbidden pattern", p.LogName)
	}

	binary, err := looksBinary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", p.LogName, err)
	}
	if binary {
		return nil, fmt.Errorf("%s looks like a binary file", p.LogName)
	}

	active, err := m.activeSessionCount()
	if err != nil {
		return nil, err
	}
	if logsCfg.MaxConcurrentStreams > 0 && active >= logsCfg.MaxConcurrentStreams {
		return nil, fmt.Errorf("maximum concurrent log streams (%d) reached", logsCfg.MaxConcurrentStreams)
	}

	follow := p.FollowLines
	if follow <= 0 {
		follow = 200
	}

	row := &types.LogStreamSession{
		SessionID:   uuid.NewString(),
		Cookie:      uuid.NewString(),
		LogName:     p.LogName,
		LogPath:     path,
		FollowLines: follow,
		GrepPattern: p.GrepPattern,
		Status:      types.LogSessionCreated,
		CreatedAt:   time.Now(),
	}
	if err := m.store.CreateLogSession(row); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	return row, nil
}

// StopSession transitions a session to `stopped`, killing its tail
// process and closing its socket if it is currently attached.
func (m *Manager) StopSession(sessionID string) error {
	row, err := m.store.GetLogSession(sessionID)
	if err != nil {
		return fmt.Errorf("session not found: %w", err)
	}

	m.mu.Lock()
	live := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if live != nil {
		live.terminate()
	}

	row.Status = types.LogSessionStopped
	row.DisconnectedAt = time.Now()
	if live != nil {
		row.LinesSent = live.linesSent()
	}
	return m.store.UpdateLogSession(row)
}

func (m *Manager) activeSessionCount() (int, error) {
	rows, err := m.store.ListLogSessions()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range rows {
		if r.Status == types.LogSessionCreated || r.Status == types.LogSessionActive {
			n++
		}
	}
	return n, nil
}

// resolveLogPath joins logname under whichever allowed_paths root
// contains it, rejecting any attempt to escape the root via "..".
func resolveLogPath(allowedRoots []string, logname string) (string, error) {
	if logname == "" {
		return "", fmt.Errorf("logname is required")
	}
	if strings.Contains(logname, "..") {
		return "", fmt.Errorf("logname must not contain '..'")
	}
	for _, root := range allowedRoots {
		candidate := filepath.Join(root, logname)
		rel, err := filepath.Rel(root, candidate)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s not found under any configured allowed path", logname)
}

// matchesForbidden reports whether path matches any of the glob patterns
// in forbidden, each translated to an anchored regexp.
func matchesForbidden(path string, forbidden []string) bool {
	base := filepath.Base(path)
	for _, pattern := range forbidden {
		re, err := globToRegexp(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(base) || re.MatchString(path) {
			return true
		}
	}
	return false
}

func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '^', '$', '[', ']', '{', '}', '\\':
			b.WriteString(regexp.QuoteMeta(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// looksBinary reads the first 8 KiB of path and applies the NUL/control
// byte ratio heuristic.
func looksBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	buf = buf[:n]
	if n == 0 {
		return false, nil
	}

	var nulCount, controlCount int
	for _, b := range buf {
		switch {
		case b == 0:
			nulCount++
		case b < 0x20 && b != '\t' && b != '\n' && b != '\r':
			controlCount++
		}
	}
	if float64(nulCount)/float64(n) > 0.01 {
		return true, nil
	}
	if float64(controlCount)/float64(n) > 0.05 {
		return true, nil
	}
	return false, nil
}
