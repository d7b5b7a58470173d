package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunner_SuccessCapturesStdout(t *testing.T) {
	r := NewRunner()
	result := r.Run(context.Background(), "echo -n hello", 2*time.Second)

	assert.True(t, result.Success)
	assert.Equal(t, "hello", result.Output)
	assert.Empty(t, result.Error)
}

func TestRunner_NonZeroExitIsFailure(t *testing.T) {
	r := NewRunner()
	result := r.Run(context.Background(), "echo bad 1>&2; exit 1", 2*time.Second)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "bad")
}

func TestRunner_TimeoutKillsProcess(t *testing.T) {
	r := NewRunner().WithTermGrace(100 * time.Millisecond)
	start := time.Now()
	result := r.Run(context.Background(), "sleep 10", 200*time.Millisecond)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "timed out")
	assert.Less(t, time.Since(start), 2*time.Second)
}
