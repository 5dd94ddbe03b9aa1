package web

import (
	"fmt"
	"os"
	"sort"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service under which the UI is advertised.
const ServiceType = "_sketchlab._tcp"

// Advertise announces the UI on the local network. Shut the returned server
// down to withdraw the announcement.
func Advertise(port int, version string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	info := []string{"sketchlab", "version=" + version}
	service, err := mdns.NewMDNSService(host, ServiceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	return server, nil
}

// Discover lists the host:port addresses of UIs advertised on the local
// network. It blocks for the lookup timeout of the mdns package.
func Discover() ([]string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan []string)
	go func() {
		seen := make(map[string]bool)
		var addrs []string
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			addr := fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)
			if !seen[addr] {
				seen[addr] = true
				addrs = append(addrs, addr)
			}
		}
		sort.Strings(addrs)
		done <- addrs
	}()

	err := mdns.Lookup(ServiceType, entries)
	close(entries)
	addrs := <-done
	if err != nil {
		return nil, fmt.Errorf("mDNS lookup failed: %w", err)
	}
	return addrs, nil
}
