// Package tmdef contains traffic manager definitions shared by the device model and hardware backends.
package tmdef

import (
	"go.uber.org/zap"
)

// Limits.
const (
	// MaxDevices is the maximum number of TM devices in a process.
	MaxDevices = 8

	// NIcos is the number of ingress class-of-service values.
	NIcos = 8

	// MaxPfcLevels is the maximum number of allocatable PPGs on a port.
	MaxPfcLevels = 8

	// NAppPools is the number of application shared pools per direction.
	NAppPools = 4

	// NColors is the number of packet colors.
	NColors = 3

	// NPreFifos is the number of PRE FIFOs per pipe.
	NPreFifos = 4
)

// DevID identifies a TM device.
type DevID int

// Valid determines whether id is in range.
func (id DevID) Valid() bool {
	return id >= 0 && id < MaxDevices
}

// ZapField returns a zap.Field for logging.
func (id DevID) ZapField(key string) zap.Field {
	return zap.Int(key, int(id))
}

// Dir indicates traffic direction of a buffer pool.
type Dir uint8

// Dir values.
const (
	Ingress Dir = iota
	Egress
)

func (dir Dir) String() string {
	if dir == Egress {
		return "eg"
	}
	return "ig"
}

// PoolID identifies an application shared pool.
type PoolID int

// Valid determines whether pool is an application shared pool.
func (pool PoolID) Valid() bool {
	return pool >= 0 && pool < NAppPools
}

// Color is a packet color used in color-aware thresholds.
type Color uint8

// Color values.
const (
	Green Color = iota
	Yellow
	Red
)

// Valid determines whether c is a known color.
func (c Color) Valid() bool {
	return c <= Red
}

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Yellow:
		return "yellow"
	case Red:
		return "red"
	}
	return "invalid"
}

// ParseColor parses color name.
func ParseColor(s string) (c Color, ok bool) {
	for c = Green; c <= Red; c++ {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// IcosMask is a bitmask of ingress class-of-service values.
type IcosMask uint8

// AllIcos contains every iCoS.
const AllIcos IcosMask = 0xFF

// Has determines whether icos is in the mask.
func (m IcosMask) Has(icos int) bool {
	return icos >= 0 && icos < NIcos && m&(1<<icos) != 0
}
