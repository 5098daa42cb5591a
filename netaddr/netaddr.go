// Package netaddr discovers the local address the host uses for outbound
// traffic.
package netaddr

import (
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrNoAddress is returned when no outbound address can be determined.
var ErrNoAddress = errors.New("no address found")

// DefaultTarget is the remote endpoint used to select the outbound route.
// No packet is sent to it.
const DefaultTarget = "8.8.8.8:8080"

// Resolver caches the preferred outbound address until invalidated.
type Resolver struct {
	mu      sync.Mutex
	target  string
	address string
	dial    func(network, address string) (net.Conn, error)
}

// NewResolver creates a resolver routing towards target, or DefaultTarget
// when target is empty.
func NewResolver(target string) *Resolver {
	if target == "" {
		target = DefaultTarget
	}
	return &Resolver{target: target, dial: net.Dial}
}

// Default is the process-wide resolver.
var Default = NewResolver("")

// PreferredAddress returns the local IP of the interface routing to the
// target. Connecting a UDP socket selects the route without sending data.
func (r *Resolver) PreferredAddress() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.address != "" {
		return r.address, nil
	}

	conn, err := r.dial("udp", r.target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoAddress, err)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", fmt.Errorf("%w: unexpected local address %v", ErrNoAddress, conn.LocalAddr())
	}
	r.address = addr.IP.String()
	return r.address, nil
}

// Invalidate drops the cached address, e.g. after a network change.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.address = ""
}

// PreferredAddress resolves through Default.
func PreferredAddress() (string, error) {
	return Default.PreferredAddress()
}
