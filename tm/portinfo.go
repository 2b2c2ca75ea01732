package tm

import (
	"sync"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

// PortInfo answers port questions owned by the port manager and the low level driver.
type PortInfo interface {
	// HasMac determines whether the port is attached to a MAC.
	HasMac(port tmdef.DevPort) bool
	// Recirculation determines whether recirculation is currently enabled on the port.
	Recirculation(port tmdef.DevPort) bool
}

// StaticPortInfo is a PortInfo backed by tables.
// The zero value reports every port as MAC-attached without recirculation.
type StaticPortInfo struct {
	mu     sync.Mutex
	noMac  map[tmdef.DevPort]bool
	recirc map[tmdef.DevPort]bool
}

var _ PortInfo = (*StaticPortInfo)(nil)

// SetHasMac changes whether a port is attached to a MAC.
func (pi *StaticPortInfo) SetHasMac(port tmdef.DevPort, hasMac bool) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.noMac == nil {
		pi.noMac = map[tmdef.DevPort]bool{}
	}
	pi.noMac[port] = !hasMac
}

// SetRecirculation changes whether recirculation is enabled on a port.
func (pi *StaticPortInfo) SetRecirculation(port tmdef.DevPort, enable bool) {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	if pi.recirc == nil {
		pi.recirc = map[tmdef.DevPort]bool{}
	}
	pi.recirc[port] = enable
}

// HasMac implements PortInfo.
func (pi *StaticPortInfo) HasMac(port tmdef.DevPort) bool {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return !pi.noMac[port]
}

// Recirculation implements PortInfo.
func (pi *StaticPortInfo) Recirculation(port tmdef.DevPort) bool {
	pi.mu.Lock()
	defer pi.mu.Unlock()
	return pi.recirc[port]
}
