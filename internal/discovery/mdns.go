// Package discovery advertises the mixing server on the local network via mDNS.
package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/hashicorp/mdns"
	"go.uber.org/zap"
)

// ServiceType is the DNS-SD service type producers browse for.
const ServiceType = "_lanemixer._tcp"

// Config describes the advertised service.
type Config struct {
	Name string
	Port int
	Path string
}

// Advertiser publishes a single mDNS service record until stopped.
type Advertiser struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	server *mdns.Server
}

// NewAdvertiser creates an advertiser. Nothing is published until Start.
func NewAdvertiser(logger *zap.Logger, config Config) *Advertiser {
	return &Advertiser{
		config: config,
		logger: logger,
	}
}

// Start begins answering mDNS queries for the service.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	ips, err := localIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(a.config.Name, ServiceType, "", "", a.config.Port, ips, TXTRecords(a.config.Path))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}
	a.server = server

	a.logger.Info("Advertising mDNS service",
		zap.String("name", a.config.Name),
		zap.String("type", ServiceType),
		zap.Int("port", a.config.Port),
		zap.Int("addresses", len(ips)))

	return nil
}

// Stop withdraws the advertisement. It is safe to call without Start.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}

	err := a.server.Shutdown()
	a.server = nil
	if err != nil {
		return fmt.Errorf("failed to shut down mdns server: %w", err)
	}
	a.logger.Info("mDNS advertisement stopped")

	return nil
}

// TXTRecords returns the TXT entries advertised alongside the service.
func TXTRecords(path string) []string {
	return []string{"path=" + path}
}

func localIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var ips []net.IP
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
			if ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP)
			}
		}
	}

	return ips, nil
}
