// Package mdns announces and browses rf433 nodes with DNS-SD over
// multicast DNS.
package mdns

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/TheusHen/rf433/rf433/discovery"
	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

const (
	ServiceType = "_rf433._udp"
	Domain      = "local."

	DefaultBrowseTimeout = 2 * time.Second
)

var ErrClosed = errors.New("mdns: closed")

// Server is a running registration.
type Server interface {
	Shutdown()
}

// RegisterFunc registers one service instance.
type RegisterFunc func(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error)

// Browser browses for service instances.
type Browser interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// BrowserFunc creates a Browser for a single browse. A zeroconf resolver
// closes its sockets when its browse ends and cannot be reused.
type BrowserFunc func() (Browser, error)

func zeroconfBrowser() (Browser, error) {
	return zeroconf.NewResolver(nil)
}

func zeroconfRegister(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (Server, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// Config configures a Resolver.
type Config struct {
	// Interfaces restricts announcements to these interfaces.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// BrowseTimeout bounds List and Lookup. Zero uses DefaultBrowseTimeout.
	BrowseTimeout time.Duration

	// Register and NewBrowser replace the zeroconf implementations.
	Register   RegisterFunc
	NewBrowser BrowserFunc

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver implements discovery.Resolver over mDNS.
type Resolver struct {
	config   Config
	register   RegisterFunc
	newBrowser BrowserFunc
	log        logging.LeveledLogger

	mu      sync.Mutex
	servers map[string]Server
	closed  bool
}

var _ discovery.Resolver = (*Resolver)(nil)

func New(config Config) (*Resolver, error) {
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	r := &Resolver{
		config:     config,
		register:   config.Register,
		newBrowser: config.NewBrowser,
		servers:    map[string]Server{},
	}
	if r.register == nil {
		r.register = zeroconfRegister
	}
	if r.newBrowser == nil {
		r.newBrowser = zeroconfBrowser
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("mdns")
	}
	return r, nil
}

// Announce registers info under its name, replacing an earlier
// registration of the same name. Addr is ignored; zeroconf announces the
// host's own addresses.
func (r *Resolver) Announce(info discovery.AddrInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if old, ok := r.servers[info.Name]; ok {
		old.Shutdown()
		delete(r.servers, info.Name)
	}
	srv, err := r.register(info.Name, ServiceType, Domain, int(info.Port), EncodeTXT(info.Capabilities), r.config.Interfaces)
	if err != nil {
		return err
	}
	r.servers[info.Name] = srv
	if r.log != nil {
		r.log.Infof("announcing %s on port %d", info.Name, info.Port)
	}
	return nil
}

// Lookup browses for the named instance.
func (r *Resolver) Lookup(name string) (discovery.AddrInfo, error) {
	all, err := r.List()
	if err != nil {
		return discovery.AddrInfo{}, err
	}
	for _, info := range all {
		if info.Name == name {
			return info, nil
		}
	}
	return discovery.AddrInfo{}, discovery.ErrNotFound
}

// List collects every instance that answers within the browse timeout.
func (r *Resolver) List() ([]discovery.AddrInfo, error) {
	return r.Browse(context.Background())
}

// Browse collects instances until ctx is done or the browse timeout
// expires, whichever comes first.
func (r *Resolver) Browse(ctx context.Context) ([]discovery.AddrInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.BrowseTimeout)
	defer cancel()

	browser, err := r.newBrowser()
	if err != nil {
		return nil, err
	}
	entries := make(chan *zeroconf.ServiceEntry)
	if err := browser.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, err
	}

	seen := map[string]discovery.AddrInfo{}
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return collect(seen), nil
			}
			if entry == nil {
				continue
			}
			info, ok := entryToAddrInfo(entry)
			if !ok {
				continue
			}
			if r.log != nil {
				r.log.Debugf("found %s at %s", info.Name, info.AddrPort())
			}
			seen[info.Name] = info
		case <-ctx.Done():
			return collect(seen), nil
		}
	}
}

// Close withdraws all announcements.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for name, srv := range r.servers {
		srv.Shutdown()
		delete(r.servers, name)
	}
	return nil
}

func collect(seen map[string]discovery.AddrInfo) []discovery.AddrInfo {
	out := make([]discovery.AddrInfo, 0, len(seen))
	for _, info := range seen {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// entryToAddrInfo prefers an IPv6 address, like the QUIC transport.
func entryToAddrInfo(entry *zeroconf.ServiceEntry) (discovery.AddrInfo, bool) {
	var ips []net.IP
	ips = append(ips, entry.AddrIPv6...)
	ips = append(ips, entry.AddrIPv4...)
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		return discovery.AddrInfo{
			Name:         entry.Instance,
			Addr:         addr.Unmap(),
			Port:         uint16(entry.Port),
			Capabilities: DecodeTXT(entry.Text),
		}, true
	}
	return discovery.AddrInfo{}, false
}

// EncodeTXT renders capabilities as sorted key=value TXT strings.
func EncodeTXT(caps map[string]string) []string {
	txt := make([]string, 0, len(caps))
	for k, v := range caps {
		txt = append(txt, k+"="+v)
	}
	sort.Strings(txt)
	return txt
}

// DecodeTXT parses key=value TXT strings. Keys without a value map to "".
func DecodeTXT(txt []string) map[string]string {
	caps := map[string]string{}
	for _, s := range txt {
		k, v, _ := strings.Cut(s, "=")
		if k == "" {
			continue
		}
		caps[k] = v
	}
	return caps
}
