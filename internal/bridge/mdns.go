package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
	"github.com/muurk/switcher/internal/version"
)

const (
	// ServiceType is the mDNS service type bridges advertise
	ServiceType = "_switcher._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is the default time Browse listens for bridges
	DefaultBrowseTimeout = 3 * time.Second
)

// Bridge is a bridge found over mDNS
type Bridge struct {
	Instance     string
	Hostname     string
	IP           string
	Port         int
	Metadata     map[string]string
	DiscoveredAt time.Time
}

// URL returns the WebSocket address of the bridge
func (b *Bridge) URL() string {
	u := URL(b.IP, b.Port)
	if path := b.Metadata["path"]; path != "" && path != WebSocketPath {
		u = strings.TrimSuffix(u, WebSocketPath) + path
	}
	return u
}

func (b *Bridge) String() string {
	return fmt.Sprintf("%s at %s:%d", b.Instance, b.IP, b.Port)
}

// Announce advertises a bridge listening on port. Call Shutdown on the
// returned server to withdraw it.
func Announce(instance string, port int) (*zeroconf.Server, error) {
	txt := []string{
		"path=" + WebSocketPath,
		"version=" + version.Version,
	}
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Bridge announced over mDNS",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port),
	)
	return server, nil
}

// Browse lists the bridges that answer within timeout
func Browse(ctx context.Context, timeout time.Duration) ([]*Bridge, error) {
	if timeout <= 0 {
		timeout = DefaultBrowseTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu      sync.Mutex
		bridges []*Bridge
		seen    = make(map[string]bool)
	)
	go func() {
		for entry := range entries {
			b := parseServiceEntry(entry)
			if b == nil {
				continue
			}
			mu.Lock()
			if !seen[b.Instance] {
				seen[b.Instance] = true
				bridges = append(bridges, b)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Bridge(nil), bridges...), nil
}

// parseServiceEntry converts a zeroconf service entry to a Bridge.
// Returns nil if the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Bridge {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	return &Bridge{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
