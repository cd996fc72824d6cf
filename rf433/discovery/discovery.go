package discovery

import (
	"errors"
	"net/netip"
	"sort"
)

var (
	ErrNotFound = errors.New("repeater not found")
)

// Capability keys announced by repeaters.
const (
	CapRole    = "role"
	CapProfile = "profile"
	CapMode    = "mode"

	RoleRepeater = "repeater"
	RoleGateway  = "gateway"
)

// AddrInfo describes a reachable rf433 node.
type AddrInfo struct {
	Name         string
	Addr         netip.Addr
	Port         uint16
	Capabilities map[string]string
}

// AddrPort returns the address to dial.
func (i AddrInfo) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(i.Addr, i.Port)
}

// Clone returns a copy that shares no maps with i.
func (i AddrInfo) Clone() AddrInfo {
	caps := map[string]string{}
	for k, v := range i.Capabilities {
		caps[k] = v
	}
	i.Capabilities = caps
	return i
}

// Resolver is a generic discovery interface.
// Implementations can be backed by mDNS/DNS-SD, static lists, etc.
type Resolver interface {
	Announce(info AddrInfo) error
	Lookup(name string) (AddrInfo, error)
	List() ([]AddrInfo, error)
}

// Repeaters returns the repeaters known to r that carry packets of the
// named profile, sorted by name. An empty profile matches all.
func Repeaters(r Resolver, profile string) ([]AddrInfo, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var out []AddrInfo
	for _, info := range all {
		if info.Capabilities[CapRole] != RoleRepeater {
			continue
		}
		if profile != "" && info.Capabilities[CapProfile] != profile {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
