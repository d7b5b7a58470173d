package sshsession

import (
	"context"
	"testing"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForReady_TimesOutWhenPortClosed(t *testing.T) {
	s := New(command.NewRunner(), "/zones/myzone/provisioning")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.WaitForReady(ctx, "127.0.0.1", 1, Credentials{Username: "root"}, 200*time.Millisecond, 50*time.Millisecond)
	require.Error(t, err)
}

func TestResolveKeyPath_RelativeJoinsProvisioningRoot(t *testing.T) {
	s := New(command.NewRunner(), "/zones/myzone/provisioning")
	got := s.resolveKeyPath(Credentials{KeyPath: "keys/id_rsa"})
	assert.Equal(t, "/zones/myzone/provisioning/keys/id_rsa", got)
}

func TestResolveKeyPath_AbsoluteUnchanged(t *testing.T) {
	s := New(command.NewRunner(), "/zones/myzone/provisioning")
	got := s.resolveKeyPath(Credentials{KeyPath: "/etc/ssh/custom_key"})
	assert.Equal(t, "/etc/ssh/custom_key", got)
}

func TestShellQuote_EscapesSingleQuotes(t *testing.T) {
	got := shellQuote(`echo "it's a test"`)
	assert.Equal(t, `'echo "it'\''s a test"'`, got)
}
