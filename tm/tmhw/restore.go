package tmhw

import (
	"fmt"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

// ReadOnly wraps a Generation so that hardware can be read but not changed.
// Field writes are rejected and structural operations succeed without touching hardware.
// It is used while restoring configuration from a running device.
func ReadOnly(g Generation) Generation {
	if ro, ok := g.(readOnly); ok {
		return ro
	}
	return readOnly{g}
}

type readOnly struct {
	g Generation
}

func (readOnly) generation() {}

func (r readOnly) Asic() tmdef.AsicType {
	return r.g.Asic()
}

func (r readOnly) Params() tmdef.Params {
	return r.g.Params()
}

func (r readOnly) CounterWidth(c Counter) uint {
	return r.g.CounterWidth(c)
}

func (r readOnly) Pool() PoolBackend   { return r }
func (r readOnly) Ppg() PpgBackend     { return r }
func (r readOnly) Port() PortBackend   { return r }
func (r readOnly) Queue() QueueBackend { return r }
func (r readOnly) Pipe() PipeBackend   { return r }

func (r readOnly) caps(concern Concern) Caps {
	switch concern {
	case ConcernPool:
		return r.g.Pool()
	case ConcernPpg:
		return r.g.Ppg()
	case ConcernPort:
		return r.g.Port()
	case ConcernQueue:
		return r.g.Queue()
	case ConcernPipe:
		return r.g.Pipe()
	}
	return nil
}

func (readOnly) CanWrite(f Field) bool {
	return false
}

func (r readOnly) CanRead(f Field) bool {
	caps := r.caps(f.Concern())
	return caps != nil && caps.CanRead(f)
}

func (r readOnly) HasCounter(c Counter) bool {
	caps := r.caps(c.Concern())
	return caps != nil && caps.HasCounter(c)
}

func errReadOnly(f Field) error {
	return fmt.Errorf("%w: %s is read-only during restore", tmdef.ErrNotSupported, f)
}

func (readOnly) WritePool(ref PoolRef, f Field, v uint32) error {
	return errReadOnly(f)
}

func (r readOnly) ReadPool(ref PoolRef, f Field) (uint32, error) {
	return r.g.Pool().ReadPool(ref, f)
}

func (readOnly) WritePpg(pipe, ppg int, f Field, v uint32) error {
	return errReadOnly(f)
}

func (r readOnly) ReadPpg(pipe, ppg int, f Field) (uint32, error) {
	return r.g.Ppg().ReadPpg(pipe, ppg, f)
}

func (r readOnly) ReadPpgCounter(pipe, ppg int, c Counter) (uint64, error) {
	return r.g.Ppg().ReadPpgCounter(pipe, ppg, c)
}

func (readOnly) ClearPpgCounter(pipe, ppg int, c Counter) error {
	return nil
}

func (readOnly) AddPort(port tmdef.DevPort, speed tmdef.Speed) error {
	return nil
}

func (readOnly) RemovePort(port tmdef.DevPort) error {
	return nil
}

func (readOnly) SetQacRx(port tmdef.DevPort, enable bool) error {
	return nil
}

func (readOnly) SetCpuPort(port tmdef.DevPort) error {
	return nil
}

func (readOnly) WritePort(port tmdef.DevPort, f Field, index int, v uint32) error {
	return errReadOnly(f)
}

func (r readOnly) ReadPort(port tmdef.DevPort, f Field, index int) (uint32, error) {
	return r.g.Port().ReadPort(port, f, index)
}

func (r readOnly) ReadPortCounter(port tmdef.DevPort, c Counter) (uint64, error) {
	return r.g.Port().ReadPortCounter(port, c)
}

func (readOnly) ClearPortCounter(port tmdef.DevPort, c Counter) error {
	return nil
}

func (readOnly) CarveQueues(c Carve) error {
	return nil
}

func (readOnly) ReleaseQueues(c Carve) error {
	return nil
}

func (readOnly) SetQueueChannel(pipe, queue, channel int) error {
	return nil
}

func (readOnly) WriteQueue(pipe, queue int, f Field, v uint32) error {
	return errReadOnly(f)
}

func (r readOnly) ReadQueue(pipe, queue int, f Field) (uint32, error) {
	return r.g.Queue().ReadQueue(pipe, queue, f)
}

func (r readOnly) ReadQueueCounter(pipe, queue int, c Counter) (uint64, error) {
	return r.g.Queue().ReadQueueCounter(pipe, queue, c)
}

func (readOnly) ClearQueueCounter(pipe, queue int, c Counter) error {
	return nil
}

func (readOnly) WritePipe(pipe int, f Field, index int, v uint32) error {
	return errReadOnly(f)
}

func (r readOnly) ReadPipe(pipe int, f Field, index int) (uint32, error) {
	return r.g.Pipe().ReadPipe(pipe, f, index)
}

func (r readOnly) ReadPipeCounter(pipe int, c Counter, index int) (uint64, error) {
	return r.g.Pipe().ReadPipeCounter(pipe, c, index)
}

func (readOnly) ClearPipeCounter(pipe int, c Counter, index int) error {
	return nil
}

// Null returns a Generation without hardware.
// Every field and counter is unsupported; structural operations succeed.
func Null(asic tmdef.AsicType) (Generation, error) {
	params, ok := tmdef.ParamsOf(asic)
	if !ok {
		return nil, fmt.Errorf("%w: ASIC type %d", tmdef.ErrNotSupported, asic)
	}
	return null{params}, nil
}

type null struct {
	params tmdef.Params
}

func (null) generation() {}

func (n null) Asic() tmdef.AsicType {
	return n.params.Asic
}

func (n null) Params() tmdef.Params {
	return n.params
}

func (null) CounterWidth(c Counter) uint {
	return 0
}

func (n null) Pool() PoolBackend   { return n }
func (n null) Ppg() PpgBackend     { return n }
func (n null) Port() PortBackend   { return n }
func (n null) Queue() QueueBackend { return n }
func (n null) Pipe() PipeBackend   { return n }

func (null) CanWrite(f Field) bool     { return false }
func (null) CanRead(f Field) bool      { return false }
func (null) HasCounter(c Counter) bool { return false }

var errNoHardware = fmt.Errorf("%w: no hardware", tmdef.ErrNotSupported)

func (null) WritePool(ref PoolRef, f Field, v uint32) error          { return errNoHardware }
func (null) ReadPool(ref PoolRef, f Field) (uint32, error)           { return 0, errNoHardware }
func (null) WritePpg(pipe, ppg int, f Field, v uint32) error         { return errNoHardware }
func (null) ReadPpg(pipe, ppg int, f Field) (uint32, error)          { return 0, errNoHardware }
func (null) ReadPpgCounter(pipe, ppg int, c Counter) (uint64, error) { return 0, errNoHardware }
func (null) ClearPpgCounter(pipe, ppg int, c Counter) error          { return errNoHardware }

func (null) AddPort(port tmdef.DevPort, speed tmdef.Speed) error { return nil }
func (null) RemovePort(port tmdef.DevPort) error                 { return nil }
func (null) SetQacRx(port tmdef.DevPort, enable bool) error      { return nil }
func (null) SetCpuPort(port tmdef.DevPort) error                 { return nil }

func (null) WritePort(port tmdef.DevPort, f Field, index int, v uint32) error {
	return errNoHardware
}
func (null) ReadPort(port tmdef.DevPort, f Field, index int) (uint32, error) {
	return 0, errNoHardware
}
func (null) ReadPortCounter(port tmdef.DevPort, c Counter) (uint64, error) { return 0, errNoHardware }
func (null) ClearPortCounter(port tmdef.DevPort, c Counter) error          { return errNoHardware }

func (null) CarveQueues(c Carve) error                      { return nil }
func (null) ReleaseQueues(c Carve) error                    { return nil }
func (null) SetQueueChannel(pipe, queue, channel int) error { return nil }

func (null) WriteQueue(pipe, queue int, f Field, v uint32) error { return errNoHardware }
func (null) ReadQueue(pipe, queue int, f Field) (uint32, error)  { return 0, errNoHardware }
func (null) ReadQueueCounter(pipe, queue int, c Counter) (uint64, error) {
	return 0, errNoHardware
}
func (null) ClearQueueCounter(pipe, queue int, c Counter) error { return errNoHardware }

func (null) WritePipe(pipe int, f Field, index int, v uint32) error { return errNoHardware }
func (null) ReadPipe(pipe int, f Field, index int) (uint32, error)  { return 0, errNoHardware }
func (null) ReadPipeCounter(pipe int, c Counter, index int) (uint64, error) {
	return 0, errNoHardware
}
func (null) ClearPipeCounter(pipe int, c Counter, index int) error { return errNoHardware }
