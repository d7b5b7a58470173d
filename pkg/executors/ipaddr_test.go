package executors

import (
	"context"
	"testing"

	"github.com/makr91/zoneweaver-api/pkg/command"
	"github.com/makr91/zoneweaver-api/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeps(t *testing.T) *Deps {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &Deps{Runner: command.NewRunner(), Store: store}
}

func TestIPAddressCreate_RejectsMissingFields(t *testing.T) {
	d := newTestDeps(t)
	result := d.ipAddressCreate(context.Background(), []byte(`{"type":"dhcp"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "interface and addrobj are required")
}

func TestIPAddressCreate_RejectsUnsupportedType(t *testing.T) {
	d := newTestDeps(t)
	result := d.ipAddressCreate(context.Background(), []byte(`{"interface":"net0","addrobj":"net0/v4","type":"bogus"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported address type")
}

func TestIPAddressCreate_RejectsStaticWithoutAddress(t *testing.T) {
	d := newTestDeps(t)
	result := d.ipAddressCreate(context.Background(), []byte(`{"interface":"net0","addrobj":"net0/v4","type":"static"}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "address is required")
}

func TestIPAddressDelete_RejectsMissingAddrObj(t *testing.T) {
	d := newTestDeps(t)
	result := d.ipAddressDelete(context.Background(), []byte(`{}`), nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "addrobj is required")
}

func TestLocalHostname_NeverEmpty(t *testing.T) {
	assert.NotEmpty(t, localHostname())
}
