// ABOUTME: mDNS service discovery for vortex ingestion servers
// ABOUTME: Servers advertise _vortexstream._tcp, producers browse for it
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/multivox/vortexstream/internal/version"
)

// ServiceType is the DNS-SD service type of an ingestion server
const ServiceType = "_" + version.Product + "._tcp"

// Config holds discovery configuration
type Config struct {
	ServiceName   string
	Port          int
	WebSocketPort int    // advertised in TXT when non-zero
	Version       string // advertised in TXT when non-empty
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name          string
	Host          string
	Port          int
	WebSocketPort int
	Version       string
}

// Addr returns host:port of the TCP ingestion endpoint.
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// WebSocketAddr returns host:port of the WebSocket endpoint, or "" when the
// server does not advertise one.
func (s *ServerInfo) WebSocketAddr() string {
	if s.WebSocketPort == 0 {
		return ""
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.WebSocketPort))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise advertises this server via mDNS until Stop is called
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		txtRecords(m.config),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for ingestion servers until Stop is called. Results
// arrive on Servers().
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

// browseLoop continuously browses for servers
func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		done := make(chan struct{})

		go func() {
			defer close(done)
			for entry := range entries {
				server := entryToServer(entry)
				if server == nil {
					continue
				}

				log.Printf("Discovered server: %s at %s", server.Name, server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
				}
			}
		}()

		params := mdns.DefaultParams(ServiceType)
		params.Timeout = 3 * time.Second
		params.Entries = entries
		params.DisableIPv6 = true

		if err := mdns.Query(params); err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		close(entries)
		<-done
	}
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops the discovery manager
func (m *Manager) Stop() {
	m.cancel()
}

// Discover browses until the first server is found, ctx is done or timeout
// passes.
func Discover(ctx context.Context, timeout time.Duration) (*ServerInfo, error) {
	m := NewManager(Config{})
	defer m.Stop()

	if err := m.Browse(); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case server := <-m.Servers():
		return server, nil
	case <-timer.C:
		return nil, fmt.Errorf("no %s server found within %v", ServiceType, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func txtRecords(config Config) []string {
	txt := []string{"transport=tcp"}
	if config.WebSocketPort != 0 {
		txt = append(txt, fmt.Sprintf("ws_port=%d", config.WebSocketPort), "path=/vortex")
	}
	if config.Version != "" {
		txt = append(txt, "version="+config.Version)
	}
	txt = append(txt, "manufacturer="+version.Manufacturer)
	return txt
}

func entryToServer(entry *mdns.ServiceEntry) *ServerInfo {
	if entry.AddrV4 == nil {
		return nil
	}

	server := &ServerInfo{
		Name: strings.TrimSuffix(entry.Name, "."+ServiceType+".local."),
		Host: entry.AddrV4.String(),
		Port: entry.Port,
	}

	for _, field := range entry.InfoFields {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "ws_port":
			server.WebSocketPort, _ = strconv.Atoi(value)
		case "version":
			server.Version = value
		}
	}
	return server
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
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
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
