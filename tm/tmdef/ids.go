package tmdef

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DevPort identifies a port on a device, encoding pipe and local port.
type DevPort uint32

const devPortShift = 7

// MakeDevPort constructs DevPort from pipe and local port.
func MakeDevPort(pipe, port int) DevPort {
	return DevPort(pipe<<devPortShift | port&(1<<devPortShift-1))
}

// Pipe returns the pipe number.
func (p DevPort) Pipe() int {
	return int(p >> devPortShift)
}

// Port returns the local port number within the pipe.
func (p DevPort) Port() int {
	return int(p & (1<<devPortShift - 1))
}

func (p DevPort) String() string {
	return strconv.Itoa(p.Pipe()) + "/" + strconv.Itoa(p.Port())
}

// ZapField returns a zap.Field for logging.
func (p DevPort) ZapField(key string) zap.Field {
	return zap.Stringer(key, p)
}

// ParseDevPort parses "pipe/port" or a decimal DevPort number.
func ParseDevPort(s string) (p DevPort, e error) {
	if pipeS, portS, ok := strings.Cut(s, "/"); ok {
		pipe, e := strconv.ParseUint(pipeS, 10, 8)
		if e != nil {
			return 0, fmt.Errorf("bad pipe in %q: %w", s, e)
		}
		port, e := strconv.ParseUint(portS, 10, devPortShift)
		if e != nil {
			return 0, fmt.Errorf("bad port in %q: %w", s, e)
		}
		return MakeDevPort(int(pipe), int(port)), nil
	}
	n, e := strconv.ParseUint(s, 10, 32)
	if e != nil {
		return 0, e
	}
	return DevPort(n), nil
}

// PpgHandle identifies a PPG, encoding pipe, local port and PPG number.
// Default PPG numbers start after the allocatable PPG range of the pipe.
type PpgHandle uint32

// InvalidPpg is an invalid PpgHandle.
const InvalidPpg PpgHandle = 0xFFFFFFFF

// MakePpgHandle constructs PpgHandle.
func MakePpgHandle(pipe, port, ppg int) PpgHandle {
	return PpgHandle(uint32(pipe&0xFF)<<24 | uint32(port&0xFF)<<16 | uint32(ppg&0xFFFF))
}

// Pipe returns the pipe number.
func (h PpgHandle) Pipe() int {
	return int(h >> 24)
}

// Port returns the local port number.
func (h PpgHandle) Port() int {
	return int(h >> 16 & 0xFF)
}

// DevPort returns the owning port.
func (h PpgHandle) DevPort() DevPort {
	return MakeDevPort(h.Pipe(), h.Port())
}

// Ppg returns the PPG number within the pipe.
func (h PpgHandle) Ppg() int {
	return int(h & 0xFFFF)
}

func (h PpgHandle) String() string {
	if h == InvalidPpg {
		return "invalid"
	}
	return fmt.Sprintf("%d/%d/%d", h.Pipe(), h.Port(), h.Ppg())
}

// ZapField returns a zap.Field for logging.
func (h PpgHandle) ZapField(key string) zap.Field {
	return zap.Stringer(key, h)
}

// ParsePpgHandle parses "pipe/port/ppg" or a decimal handle.
func ParsePpgHandle(s string) (h PpgHandle, e error) {
	tokens := strings.Split(s, "/")
	switch len(tokens) {
	case 1:
		n, e := strconv.ParseUint(s, 0, 32)
		return PpgHandle(n), e
	case 3:
		var v [3]uint64
		for i, token := range tokens {
			if v[i], e = strconv.ParseUint(token, 10, 16); e != nil {
				return InvalidPpg, fmt.Errorf("bad PPG handle %q: %w", s, e)
			}
		}
		return MakePpgHandle(int(v[0]), int(v[1]), int(v[2])), nil
	}
	return InvalidPpg, fmt.Errorf("bad PPG handle %q", s)
}
