package logstream

import (
	"context"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/types"
)

// janitorLoop periodically sweeps terminal session rows and GCs any
// in-memory session whose socket already died without reaching Stop or
// HandleWebSocket's own cleanup, mirroring the scheduler's cleanupLoop
// ticker shape.
func (m *Manager) janitorLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.runJanitorSweep()
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) runJanitorSweep() {
	cutoff := time.Now().Add(-time.Hour).Unix()
	for _, status := range []types.LogSessionStatus{types.LogSessionClosed, types.LogSessionError} {
		if n, err := m.store.DeleteLogSessionsOlderThan(status, cutoff); err != nil {
			m.logger.Error().Err(err).Str("status", string(status)).Msg("log session cleanup failed")
		} else if n > 0 {
			m.logger.Info().Int("count", n).Str("status", string(status)).Msg("deleted retired log sessions")
		}
	}

	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.isClosed() {
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
}
