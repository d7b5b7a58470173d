package logstream

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/makr91/zoneweaver-api/pkg/config"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, cfg config.SystemLogsConfig) (*Manager, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, cfg), store
}

func TestCreateSession_RejectsWhenDisabled(t *testing.T) {
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: false})
	_, err := m.CreateSession(StartParams{LogName: "messages"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestCreateSession_RejectsPathOutsideAllowedRoots(t *testing.T) {
	root := t.TempDir()
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})
	_, err := m.CreateSession(StartParams{LogName: "../../etc/passwd"})
	require.Error(t, err)
}

func TestCreateSession_RejectsMissingFile(t *testing.T) {
	root := t.TempDir()
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})
	_, err := m.CreateSession(StartParams{LogName: "nope.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateSession_ZeroMaxFileSizeMeansUnbounded(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.log"), make([]byte, 4096), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{
		Enabled:      true,
		AllowedPaths: []string{root},
		Security:     config.SecurityConfig{MaxFileSizeMB: 0},
	})
	_, err := m.CreateSession(StartParams{LogName: "big.log"})
	require.NoError(t, err, "a zero limit must mean unbounded, not zero bytes")
}

func TestCreateSession_RejectsFileOverTwiceTheLimit(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.log"), make([]byte, 3*1024*1024), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{
		Enabled:      true,
		AllowedPaths: []string{root},
		Security:     config.SecurityConfig{MaxFileSizeMB: 1},
	})
	_, err := m.CreateSession(StartParams{LogName: "big.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCreateSession_RejectsForbiddenPattern(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.key"), []byte("hello"), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{
		Enabled:      true,
		AllowedPaths: []string{root},
		Security:     config.SecurityConfig{ForbiddenPatterns: []string{"*.key"}},
	})
	_, err := m.CreateSession(StartParams{LogName: "secret.key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forbidden")
}

func TestCreateSession_RejectsBinaryFile(t *testing.T) {
	root := t.TempDir()
	payload := append([]byte{0, 0, 0, 1, 2, 3}, []byte(strings.Repeat("x", 100))...)
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.bin"), payload, 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})
	_, err := m.CreateSession(StartParams{LogName: "image.bin"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binary")
}

func TestCreateSession_RejectsAtConcurrencyCap(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.log"), []byte("line one\n"), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}, MaxConcurrentStreams: 1})

	_, err := m.CreateSession(StartParams{LogName: "a.log"})
	require.NoError(t, err)

	_, err = m.CreateSession(StartParams{LogName: "a.log"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum concurrent")
}

func TestCreateSession_DefaultsFollowLines(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.log"), []byte("line one\n"), 0644))
	m, _ := newTestManager(t, config.SystemLogsConfig{Enabled: true, AllowedPaths: []string{root}})

	row, err := m.CreateSession(StartParams{LogName: "a.log"})
	require.NoError(t, err)
	assert.Equal(t, 200, row.FollowLines)
}

func TestGlobToRegexp_MatchesWildcard(t *testing.T) {
	re, err := globToRegexp("*.key")
	require.NoError(t, err)
	assert.True(t, re.MatchString("id_rsa.key"))
	assert.False(t, re.MatchString("id_rsa.pub"))
}

func TestLooksBinary_DetectsNulBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.bin")
	require.NoError(t, os.WriteFile(path, []byte{0, 0, 0, 0, 'a', 'b'}, 0644))
	binary, err := looksBinary(path)
	require.NoError(t, err)
	assert.True(t, binary)
}

func TestLooksBinary_AcceptsPlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.log")
	require.NoError(t, os.WriteFile(path, []byte("just some log text\nanother line\n"), 0644))
	binary, err := looksBinary(path)
	require.NoError(t, err)
	assert.False(t, binary)
}

func TestResolveLogPath_RejectsDotDotEscape(t *testing.T) {
	root := t.TempDir()
	_, err := resolveLogPath([]string{root}, "../secrets")
	require.Error(t, err)
}
