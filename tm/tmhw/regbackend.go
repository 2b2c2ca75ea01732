package tmhw

import (
	"fmt"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
)

type fieldSet [nFields]bool

func makeFieldSet(fields ...Field) (set fieldSet) {
	for _, f := range fields {
		set[f] = true
	}
	return set
}

// traits describes how a generation lays out the shared register model.
type traits struct {
	params  tmdef.Params
	prefix  string
	noWrite fieldSet
	noRead  fieldSet
	widths  [NCounters]uint
}

// regBackend implements every concern backend on top of Chip.
type regBackend struct {
	traits
	chip Chip
}

func newRegBackend(t traits, chip Chip) *regBackend {
	return &regBackend{traits: t, chip: chip}
}

func (b *regBackend) Asic() tmdef.AsicType {
	return b.params.Asic
}

func (b *regBackend) Params() tmdef.Params {
	return b.params
}

func (b *regBackend) CounterWidth(c Counter) uint {
	if c >= NCounters {
		return 0
	}
	return b.widths[c]
}

func (b *regBackend) Pool() PoolBackend   { return b }
func (b *regBackend) Ppg() PpgBackend     { return b }
func (b *regBackend) Port() PortBackend   { return b }
func (b *regBackend) Queue() QueueBackend { return b }
func (b *regBackend) Pipe() PipeBackend   { return b }

func (b *regBackend) CanWrite(f Field) bool {
	return f.Concern() != ConcernNone && !b.noWrite[f]
}

func (b *regBackend) CanRead(f Field) bool {
	return f.Concern() != ConcernNone && !b.noRead[f]
}

func (b *regBackend) HasCounter(c Counter) bool {
	return c < NCounters && b.widths[c] > 0
}

func (b *regBackend) addr(block string, pipe, index int) Addr {
	return Addr{Block: b.prefix + "." + block, Pipe: pipe, Index: index}
}

func (b *regBackend) checkField(f Field, concern Concern, write bool) error {
	if f.Concern() != concern {
		return fmt.Errorf("%w: field %d is not in concern %d", tmdef.ErrInvalidArg, f, concern)
	}
	if (write && !b.CanWrite(f)) || (!write && !b.CanRead(f)) {
		return fmt.Errorf("%w: %s on %s", tmdef.ErrNotSupported, f, b.params.Asic)
	}
	return nil
}

func (b *regBackend) write(f Field, concern Concern, a Addr, v uint32) error {
	if e := b.checkField(f, concern, true); e != nil {
		return e
	}
	return b.chip.WriteReg(a, uint64(v))
}

func (b *regBackend) read(f Field, concern Concern, a Addr) (uint32, error) {
	if e := b.checkField(f, concern, false); e != nil {
		return 0, e
	}
	v, e := b.chip.ReadReg(a)
	return uint32(v), e
}

func (b *regBackend) readCounter(c Counter, concern Concern, a Addr) (uint64, error) {
	if c.Concern() != concern || !b.HasCounter(c) {
		return 0, fmt.Errorf("%w: counter %s on %s", tmdef.ErrNotSupported, c, b.params.Asic)
	}
	v, e := b.chip.ReadReg(a)
	if w := b.widths[c]; w < 64 {
		v &= 1<<w - 1
	}
	return v, e
}

func (b *regBackend) clearCounter(c Counter, concern Concern, a Addr) error {
	if c.Concern() != concern || !b.HasCounter(c) {
		return fmt.Errorf("%w: counter %s on %s", tmdef.ErrNotSupported, c, b.params.Asic)
	}
	return b.chip.WriteReg(a, 0)
}

func (b *regBackend) counterAddr(c Counter, pipe, index int) Addr {
	return b.addr("cnt."+c.String(), pipe, index)
}

func (b *regBackend) poolAddr(ref PoolRef, f Field) Addr {
	return b.addr("pool."+ref.Dir.String()+"."+f.String(), AllPipes, ref.index())
}

func (b *regBackend) WritePool(ref PoolRef, f Field, v uint32) error {
	return b.write(f, ConcernPool, b.poolAddr(ref, f), v)
}

func (b *regBackend) ReadPool(ref PoolRef, f Field) (uint32, error) {
	return b.read(f, ConcernPool, b.poolAddr(ref, f))
}

func (b *regBackend) WritePpg(pipe, ppg int, f Field, v uint32) error {
	return b.write(f, ConcernPpg, b.addr("ppg."+f.String(), pipe, ppg), v)
}

func (b *regBackend) ReadPpg(pipe, ppg int, f Field) (uint32, error) {
	return b.read(f, ConcernPpg, b.addr("ppg."+f.String(), pipe, ppg))
}

func (b *regBackend) ReadPpgCounter(pipe, ppg int, c Counter) (uint64, error) {
	return b.readCounter(c, ConcernPpg, b.counterAddr(c, pipe, ppg))
}

func (b *regBackend) ClearPpgCounter(pipe, ppg int, c Counter) error {
	return b.clearCounter(c, ConcernPpg, b.counterAddr(c, pipe, ppg))
}

func (b *regBackend) portAddr(block string, port tmdef.DevPort, index int) Addr {
	return b.addr("port."+block, port.Pipe(), port.Port()*tmdef.NIcos+index)
}

func (b *regBackend) AddPort(port tmdef.DevPort, speed tmdef.Speed) error {
	if e := b.chip.WriteReg(b.portAddr("speed", port, 0), uint64(speed)); e != nil {
		return e
	}
	return b.chip.WriteReg(b.portAddr("enable", port, 0), 1)
}

func (b *regBackend) RemovePort(port tmdef.DevPort) error {
	return b.chip.WriteReg(b.portAddr("enable", port, 0), 0)
}

func (b *regBackend) SetQacRx(port tmdef.DevPort, enable bool) error {
	var v uint64
	if enable {
		v = 1
	}
	return b.chip.WriteReg(b.portAddr("qac_rx", port, 0), v)
}

func (b *regBackend) SetCpuPort(port tmdef.DevPort) error {
	return b.chip.WriteReg(b.addr("cpu_port", AllPipes, 0), uint64(port))
}

func (b *regBackend) WritePort(port tmdef.DevPort, f Field, index int, v uint32) error {
	return b.write(f, ConcernPort, b.portAddr(f.String(), port, index), v)
}

func (b *regBackend) ReadPort(port tmdef.DevPort, f Field, index int) (uint32, error) {
	return b.read(f, ConcernPort, b.portAddr(f.String(), port, index))
}

func (b *regBackend) ReadPortCounter(port tmdef.DevPort, c Counter) (uint64, error) {
	return b.readCounter(c, ConcernPort, b.counterAddr(c, port.Pipe(), port.Port()))
}

func (b *regBackend) ClearPortCounter(port tmdef.DevPort, c Counter) error {
	return b.clearCounter(c, ConcernPort, b.counterAddr(c, port.Pipe(), port.Port()))
}

func (b *regBackend) carveAddr(c Carve) Addr {
	return b.addr("q.carve", c.Port.Pipe(), c.Group*b.params.PortsPerGroup+c.Channel)
}

func (b *regBackend) CarveQueues(c Carve) error {
	hq := b.params.HqPerVq
	v := uint64(c.Base*hq) | uint64(c.Count*hq)<<16 | uint64(c.Profile)<<32 | 1<<63
	return b.chip.WriteReg(b.carveAddr(c), v)
}

func (b *regBackend) ReleaseQueues(c Carve) error {
	return b.chip.WriteReg(b.carveAddr(c), 0)
}

func (b *regBackend) SetQueueChannel(pipe, queue, channel int) error {
	return b.chip.WriteReg(b.addr("q.channel", pipe, queue), uint64(channel))
}

func (b *regBackend) WriteQueue(pipe, queue int, f Field, v uint32) error {
	return b.write(f, ConcernQueue, b.addr("q."+f.String(), pipe, queue), v)
}

func (b *regBackend) ReadQueue(pipe, queue int, f Field) (uint32, error) {
	return b.read(f, ConcernQueue, b.addr("q."+f.String(), pipe, queue))
}

func (b *regBackend) ReadQueueCounter(pipe, queue int, c Counter) (uint64, error) {
	return b.readCounter(c, ConcernQueue, b.counterAddr(c, pipe, queue))
}

func (b *regBackend) ClearQueueCounter(pipe, queue int, c Counter) error {
	return b.clearCounter(c, ConcernQueue, b.counterAddr(c, pipe, queue))
}

func (b *regBackend) WritePipe(pipe int, f Field, index int, v uint32) error {
	return b.write(f, ConcernPipe, b.addr("pipe."+f.String(), pipe, index), v)
}

func (b *regBackend) ReadPipe(pipe int, f Field, index int) (uint32, error) {
	return b.read(f, ConcernPipe, b.addr("pipe."+f.String(), pipe, index))
}

func (b *regBackend) ReadPipeCounter(pipe int, c Counter, index int) (uint64, error) {
	return b.readCounter(c, ConcernPipe, b.counterAddr(c, pipe, index))
}

func (b *regBackend) ClearPipeCounter(pipe int, c Counter, index int) error {
	return b.clearCounter(c, ConcernPipe, b.counterAddr(c, pipe, index))
}
