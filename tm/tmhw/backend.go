// Package tmhw provides traffic manager hardware backends.
//
// Each ASIC generation is a Generation variant created by New.
// A Generation supplies one backend per resource concern; managers never branch on the generation.
package tmhw

import (
	"fmt"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

// Caps reports which fields and counters a backend supports.
type Caps interface {
	CanWrite(f Field) bool
	CanRead(f Field) bool
	HasCounter(c Counter) bool
}

// PoolRef identifies a pool register set.
type PoolRef struct {
	Dir    tmdef.Dir
	Pool   tmdef.PoolID
	Global bool // global pool; Pool is ignored
	Icos   int  // PFC priority, only for PoolPfcLimit
}

func (ref PoolRef) index() int {
	if ref.Global {
		return 0
	}
	return int(ref.Pool)*tmdef.NIcos + ref.Icos
}

func (ref PoolRef) String() string {
	if ref.Global {
		return ref.Dir.String() + ".gpool"
	}
	return fmt.Sprintf("%s.spool%d", ref.Dir, ref.Pool)
}

// Carve describes the queue range of a port.
type Carve struct {
	Port    tmdef.DevPort
	Group   int // port group within the pipe
	Channel int // channel within the port group
	Base    int // first queue within the port group
	Count   int
	Profile int
}

// PoolBackend programs buffer pools.
type PoolBackend interface {
	Caps
	WritePool(ref PoolRef, f Field, v uint32) error
	ReadPool(ref PoolRef, f Field) (uint32, error)
}

// PpgBackend programs PPGs.
type PpgBackend interface {
	Caps
	WritePpg(pipe, ppg int, f Field, v uint32) error
	ReadPpg(pipe, ppg int, f Field) (uint32, error)
	ReadPpgCounter(pipe, ppg int, c Counter) (uint64, error)
	ClearPpgCounter(pipe, ppg int, c Counter) error
}

// PortBackend programs ports.
// Structural operations are required of every variant.
type PortBackend interface {
	Caps
	AddPort(port tmdef.DevPort, speed tmdef.Speed) error
	RemovePort(port tmdef.DevPort) error
	SetQacRx(port tmdef.DevPort, enable bool) error
	SetCpuPort(port tmdef.DevPort) error
	WritePort(port tmdef.DevPort, f Field, index int, v uint32) error
	ReadPort(port tmdef.DevPort, f Field, index int) (uint32, error)
	ReadPortCounter(port tmdef.DevPort, c Counter) (uint64, error)
	ClearPortCounter(port tmdef.DevPort, c Counter) error
}

// QueueBackend programs queues.
type QueueBackend interface {
	Caps
	CarveQueues(c Carve) error
	ReleaseQueues(c Carve) error
	SetQueueChannel(pipe, queue, channel int) error
	WriteQueue(pipe, queue int, f Field, v uint32) error
	ReadQueue(pipe, queue int, f Field) (uint32, error)
	ReadQueueCounter(pipe, queue int, c Counter) (uint64, error)
	ClearQueueCounter(pipe, queue int, c Counter) error
}

// PipeBackend programs pipe-level limits and reads path counters.
type PipeBackend interface {
	Caps
	WritePipe(pipe int, f Field, index int, v uint32) error
	ReadPipe(pipe int, f Field, index int) (uint32, error)
	ReadPipeCounter(pipe int, c Counter, index int) (uint64, error)
	ClearPipeCounter(pipe int, c Counter, index int) error
}

// Generation is the hardware backend of an ASIC generation.
// The set of implementations is closed: Tofino, Tofino2, Tofino3, plus the ReadOnly and Null wrappers.
type Generation interface {
	Asic() tmdef.AsicType
	Params() tmdef.Params

	// CounterWidth returns the bit width of a hardware counter.
	CounterWidth(c Counter) uint

	Pool() PoolBackend
	Ppg() PpgBackend
	Port() PortBackend
	Queue() QueueBackend
	Pipe() PipeBackend

	generation()
}

// New creates the Generation of an ASIC type, accessing registers through chip.
func New(asic tmdef.AsicType, chip Chip) (Generation, error) {
	if chip == nil {
		return nil, fmt.Errorf("%w: nil chip", tmdef.ErrInvalidArg)
	}
	switch asic {
	case tmdef.Tofino:
		return tofino{newRegBackend(tofinoTraits(), chip)}, nil
	case tmdef.Tofino2:
		return tofino2{newRegBackend(tofino2Traits(), chip)}, nil
	case tmdef.Tofino3:
		return tofino3{newRegBackend(tofino3Traits(), chip)}, nil
	}
	return nil, fmt.Errorf("%w: ASIC type %d", tmdef.ErrNotSupported, asic)
}
