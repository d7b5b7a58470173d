package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
artifact_storage:
  enabled: true
system_logs:
  enabled: true
  allowed_paths:
    - /var/log
`), 0644))

	p, err := Load(path)
	require.NoError(t, err)

	assert.True(t, p.ArtifactStorage().Enabled)
	assert.Equal(t, []string{"/var/log"}, p.SystemLogs().AllowedPaths)
	assert.Equal(t, 8, p.TaskQueue().GlobalMax)
	assert.Equal(t, 20, p.SystemLogs().MaxConcurrentStreams)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/zoneweaverd.yaml")
	assert.Error(t, err)
}
