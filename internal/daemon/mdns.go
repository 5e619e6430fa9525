package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"localchat.dev/go/localchat/internal/protocol"
)

const (
	// MDNSServiceType is the mDNS service type for localchat
	MDNSServiceType = "_localchat._tcp"

	// MDNSDomain is the mDNS domain
	MDNSDomain = "local."

	// mdnsBrowseInterval is how long to wait between browse passes
	mdnsBrowseInterval = 15 * time.Second

	// mdnsBrowseWindow is how long a single browse pass listens for records
	mdnsBrowseWindow = 5 * time.Second

	// mdnsRetryDelay is the backoff after a failed browse pass
	mdnsRetryDelay = 1 * time.Second

	// mdnsMissThreshold is how many consecutive browse passes a known peer
	// may stay silent before it is expired from the registry
	mdnsMissThreshold = 3

	// fallbackHostLabel is used when the interface name sanitizes to nothing
	fallbackHostLabel = "localchat-host"

	// fallbackInterfaceName stands in when no usable interface is found, so
	// registration can still be attempted
	fallbackInterfaceName = "DefaultIface"
)

// TXT record keys advertised with the service.
const (
	txtUsername = "username"
	txtFullID   = "full_id"
	txtVersion  = "version"
)

// DiscoveryState tracks the discovery service's lifecycle. The progression
// Idle -> Registering -> Browsing is one-way while the daemon runs; there is
// no automatic re-registration after a failure.
type DiscoveryState int

const (
	DiscoveryIdle DiscoveryState = iota
	DiscoveryRegistering
	DiscoveryBrowsing
)

func (s DiscoveryState) String() string {
	switch s {
	case DiscoveryRegistering:
		return "registering"
	case DiscoveryBrowsing:
		return "browsing"
	default:
		return "idle"
	}
}

// Discovery advertises this daemon on the LAN and keeps the peer registry in
// sync with what it sees other daemons advertise.
type Discovery struct {
	port     int
	version  string
	registry *Registry
	metrics  *Metrics

	mu          sync.Mutex
	state       DiscoveryState
	server      *zeroconf.Server
	ownFullName string

	// misses counts consecutive browse passes without an announcement, per
	// instance name. Touched only by the browse loop.
	misses map[string]int

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDiscovery creates a discovery service for the given peer TCP port.
func NewDiscovery(port int, version string, registry *Registry, metrics *Metrics) *Discovery {
	ctx, cancel := context.WithCancel(context.Background())
	return &Discovery{
		port:     port,
		version:  version,
		registry: registry,
		metrics:  metrics,
		state:    DiscoveryIdle,
		misses:   make(map[string]int),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the current lifecycle state.
func (d *Discovery) State() DiscoveryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// OwnFullName returns this instance's fully-qualified registered service
// name, or "" before registration.
func (d *Discovery) OwnFullName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ownFullName
}

// Register advertises the given identity on the LAN and, on success, starts
// browsing for other instances. Registration happens at most once; a failure
// is returned to the caller and the daemon keeps running without discovery.
func (d *Discovery) Register(id Identity) error {
	d.mu.Lock()
	if d.state != DiscoveryIdle {
		d.mu.Unlock()
		return fmt.Errorf("discovery already started (state %s)", d.state)
	}
	d.state = DiscoveryRegistering
	d.mu.Unlock()

	ip, ifaceName, ok := localIPv4AndInterface()
	if !ok {
		// Register anyway with a placeholder so the record exists once the
		// network comes back.
		ip = net.IPv4zero
		ifaceName = fallbackInterfaceName
		slog.Warn("No usable IPv4 interface found, registering with placeholder address")
	}

	host := sanitizeHostLabel(ifaceName)
	txt := []string{
		txtUsername + "=" + id.DisplayName,
		txtFullID + "=" + id.FullID,
		txtVersion + "=" + d.version,
	}

	slog.Info("Registering mDNS service",
		"instance", id.InstanceName,
		"host", host,
		"addr", fmt.Sprintf("%s:%d", ip, d.port),
		"full_id", id.FullID,
	)

	server, err := zeroconf.RegisterProxy(
		id.InstanceName,
		MDNSServiceType,
		MDNSDomain,
		d.port,
		host,
		[]string{ip.String()},
		txt,
		nil, // all interfaces
	)
	if err != nil {
		d.mu.Lock()
		d.state = DiscoveryIdle
		d.mu.Unlock()
		return fmt.Errorf("register mDNS service: %w", err)
	}

	d.mu.Lock()
	d.server = server
	d.ownFullName = fmt.Sprintf("%s.%s.%s", id.InstanceName, MDNSServiceType, MDNSDomain)
	d.state = DiscoveryBrowsing
	d.mu.Unlock()

	go d.browseLoop()

	return nil
}

// browseLoop browses for peer instances until the discovery service stops.
// Transport errors are logged and retried after a short backoff; the loop
// itself never gives up.
func (d *Discovery) browseLoop() {
	slog.Info("mDNS browsing started", "service", MDNSServiceType, "own", d.OwnFullName())

	for {
		err := d.browseOnce()

		var delay time.Duration
		if err != nil {
			d.metrics.BrowseErrors.Add(1)
			slog.Warn("mDNS browse pass failed", "error", err)
			delay = mdnsRetryDelay
		} else {
			delay = mdnsBrowseInterval
		}

		select {
		case <-d.ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// browseOnce runs a single bounded browse pass, feeding every received entry
// through handleEntry. Instances announced during the pass feed the expiry
// sweep: the browse client only ever reports live records, so departure is
// inferred from a peer staying silent across consecutive passes.
func (d *Discovery) browseOnce() error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(d.ctx, mdnsBrowseWindow)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	seen := make(map[string]bool)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for entry := range entries {
			if instance, ok := d.handleEntry(entry); ok {
				seen[instance] = true
			}
		}
	}()

	if err := resolver.Browse(browseCtx, MDNSServiceType, MDNSDomain, entries); err != nil {
		return fmt.Errorf("browse: %w", err)
	}

	<-browseCtx.Done()
	// The resolver closes the entries channel once the context expires.
	<-consumed

	d.sweepExpired(seen)
	return nil
}

// handleEntry translates one announcement into a registry upsert and reports
// the instance name it counted as alive.
func (d *Discovery) handleEntry(entry *zeroconf.ServiceEntry) (string, bool) {
	fullName := entry.ServiceInstanceName()

	// Self-discovery filter: our own advertisement comes back on every
	// browse pass.
	if fullName == d.OwnFullName() {
		return "", false
	}

	fullID, username := peerAttributes(entry)

	ip, ok := firstUsableIPv4(entry.AddrIPv4)
	if !ok {
		slog.Warn("mDNS peer resolved without a usable IPv4 address, dropping",
			"name", fullName,
			"addrs", entry.AddrIPv4,
		)
		return "", false
	}

	peer := protocol.Peer{
		ID:       fullID,
		Username: username,
		IP:       ip.String(),
		Port:     uint16(entry.Port),
	}
	_, known := d.registry.Get(fullID)
	d.registry.Upsert(peer, entry.Instance)

	if !known {
		d.metrics.PeersDiscovered.Add(1)
		slog.Info("mDNS discovered peer",
			"id", fullID,
			"username", username,
			"addr", fmt.Sprintf("%s:%d", peer.IP, peer.Port),
		)
	}
	return entry.Instance, true
}

// sweepExpired removes peers whose instance was not announced for
// mdnsMissThreshold consecutive browse passes. Removal is keyed on the exact
// stored instance name, so two peers sharing a display name never evict each
// other. Only called from the browse loop.
func (d *Discovery) sweepExpired(seen map[string]bool) {
	live := make(map[string]bool)
	for _, instance := range d.registry.InstanceNames() {
		live[instance] = true

		if seen[instance] {
			delete(d.misses, instance)
			continue
		}

		d.misses[instance]++
		if d.misses[instance] < mdnsMissThreshold {
			continue
		}
		delete(d.misses, instance)

		if id, ok := d.registry.RemoveByInstance(instance); ok {
			d.metrics.PeersRemoved.Add(1)
			slog.Info("mDNS peer expired",
				"id", id,
				"instance", instance,
				"missed_passes", mdnsMissThreshold,
			)
		}
	}

	// Forget counters for peers that left the registry by other means, such
	// as a front-end clearing the cache.
	for instance := range d.misses {
		if !live[instance] {
			delete(d.misses, instance)
		}
	}
}

// Stop shuts down advertising and browsing.
func (d *Discovery) Stop() {
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil {
		d.server.Shutdown()
		d.server = nil
	}
	slog.Info("mDNS service stopped")
}

// peerAttributes extracts the full_id and username TXT attributes, falling
// back to the directory-provided names when absent.
func peerAttributes(entry *zeroconf.ServiceEntry) (fullID, username string) {
	for _, txt := range entry.Text {
		if v, ok := strings.CutPrefix(txt, txtFullID+"="); ok {
			fullID = v
		} else if v, ok := strings.CutPrefix(txt, txtUsername+"="); ok {
			username = v
		}
	}
	if fullID == "" {
		fullID = entry.ServiceInstanceName()
	}
	if username == "" {
		username = entry.Instance
	}
	return fullID, username
}

// firstUsableIPv4 picks the first non-loopback IPv4 address.
func firstUsableIPv4(addrs []net.IP) (net.IP, bool) {
	for _, ip := range addrs {
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4, true
		}
	}
	return nil, false
}

// localIPv4AndInterface returns the first non-loopback IPv4 address and the
// name of the interface carrying it.
func localIPv4AndInterface() (net.IP, string, bool) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, "", false
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok || ipnet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4, iface.Name, true
			}
		}
	}
	return nil, "", false
}

// sanitizeHostLabel turns an interface name into a valid mDNS host label:
// lowercase, alphanumerics and hyphens only, no leading/trailing hyphens.
func sanitizeHostLabel(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}

	label := strings.Trim(b.String(), "-")
	if label == "" {
		return fallbackHostLabel
	}
	return label
}

// networkStatus reports whether a usable interface exists and its name, for
// the status snapshot sent to a connecting front-end.
func networkStatus() (bool, *string) {
	_, iface, ok := localIPv4AndInterface()
	if !ok {
		return false, nil
	}
	return true, &iface
}
