package executors

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/makr91/zoneweaver-api/pkg/registry"
	"github.com/makr91/zoneweaver-api/pkg/types"
)

// IPAddressCreateParams is the ip_address_create task metadata.
type IPAddressCreateParams struct {
	Interface string `json:"interface"`
	AddrObj   string `json:"addrobj"`
	Type      string `json:"type"` // static, dhcp, addrconf
	Address   string `json:"address,omitempty"`
}

func (d *Deps) ipAddressCreate(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p IPAddressCreateParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.Interface == "" || p.AddrObj == "" {
		return fail("interface and addrobj are required")
	}

	var cmd string
	switch p.Type {
	case "static":
		if p.Address == "" {
			return fail("address is required for static type")
		}
		cmd = fmt.Sprintf("pfexec ipadm create-addr -T static -a %s %s", p.Address, p.AddrObj)
	case "dhcp":
		cmd = fmt.Sprintf("pfexec ipadm create-addr -T dhcp %s", p.AddrObj)
	case "addrconf":
		cmd = fmt.Sprintf("pfexec ipadm create-addr -T addrconf %s", p.AddrObj)
	default:
		return fail("unsupported address type %q", p.Type)
	}

	result := d.Runner.Run(ctx, cmd, 30*time.Second)
	if !result.Success {
		return fail("ipadm create-addr failed: %s", result.Error)
	}

	if err := d.Store.UpsertIPAddress(&types.IPAddress{
		Hostname: localHostname(),
		AddrObj:  p.AddrObj,
		Type:     p.Type,
		Address:  p.Address,
		State:    "ok",
	}); err != nil {
		return fail("address created but projection write failed: %v", err)
	}
	return ok(fmt.Sprintf("address %s created", p.AddrObj))
}

// IPAddressDeleteParams is the ip_address_delete task metadata.
type IPAddressDeleteParams struct {
	Interface string `json:"interface"`
	AddrObj   string `json:"addrobj"`
}

// ipAddressDelete removes an address and, if no remaining address
// references the underlying interface, removes the IP interface too.
// Interface projection rows survive deletion of a single address.
func (d *Deps) ipAddressDelete(ctx context.Context, metadata []byte, handle registry.TaskHandle) types.HandlerResult {
	var p IPAddressDeleteParams
	if err := decode(metadata, &p); err != nil {
		return fail("%v", err)
	}
	if p.AddrObj == "" {
		return fail("addrobj is required")
	}

	result := d.Runner.Run(ctx, fmt.Sprintf("pfexec ipadm delete-addr %s", p.AddrObj), 30*time.Second)
	if !result.Success {
		return fail("ipadm delete-addr failed: %s", result.Error)
	}

	if err := d.Store.DeleteIPAddress(localHostname(), p.AddrObj); err != nil {
		return fail("address deleted but projection cleanup failed: %v", err)
	}

	if p.Interface != "" {
		showResult := d.Runner.Run(ctx, fmt.Sprintf("ipadm show-addr -p -o addrobj %s/", p.Interface), 10*time.Second)
		if showResult.Success && strings.TrimSpace(showResult.Output) == "" {
			ifResult := d.Runner.Run(ctx, fmt.Sprintf("pfexec ipadm delete-ip %s", p.Interface), 30*time.Second)
			if !ifResult.Success {
				return fail("address deleted but interface cleanup failed: %s", ifResult.Error)
			}
		}
	}

	return ok(fmt.Sprintf("address %s deleted", p.AddrObj))
}

// localHostname resolves the projection table's grouping key; falls back
// to a sentinel when the host's hostname can't be read.
func localHostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}
