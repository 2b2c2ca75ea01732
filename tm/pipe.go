package tm

import (
	"go.uber.org/multierr"

	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

type pipeState struct {
	shadow
	pipe         int
	limit        uint32
	hyst         uint32
	node         *counterNode
	hystProfiles *hystTable
}

// PipeCounters contains drop counters of a pipe.
type PipeCounters struct {
	WacDrop     uint64                  `json:"wacDrop"`
	QacDrop     uint64                  `json:"qacDrop"`
	PreFifoDrop [tmdef.NPreFifos]uint64 `json:"preFifoDrop"`
}

// Pipes provides access to pipe-level egress limits and path counters.
type Pipes struct {
	dev *Device
}

// Pipes returns pipe-level accessors.
func (dev *Device) Pipes() Pipes {
	return Pipes{dev}
}

func (p Pipes) find(pipe int) (*pipeState, error) {
	if e := p.dev.checkPipe(pipe); e != nil {
		return nil, e
	}
	return p.dev.pipes[pipe], nil
}

// SetLimit changes the egress buffer limit of a pipe, in cells.
func (p Pipes) SetLimit(pipe int, limit uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return e
	}
	if limit > p.dev.params.CellsPerPipe {
		return errLimitExceeds(limit, p.dev.params.CellsPerPipe)
	}
	return setField(p.dev, &ps.shadow, &ps.limit, limit, tmhw.PipeLimit, 0, func(g tmhw.Generation) error {
		return g.Pipe().WritePipe(pipe, tmhw.PipeLimit, 0, limit)
	})
}

// Limit returns the egress buffer limit of a pipe.
func (p Pipes) Limit(pipe int, hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return 0, e
	}
	return getField(p.dev, ps.limit, hw, tmhw.PipeLimit, func(g tmhw.Generation) (uint32, error) {
		return g.Pipe().ReadPipe(pipe, tmhw.PipeLimit, 0)
	})
}

// SetHyst changes the egress buffer hysteresis of a pipe, in cells.
func (p Pipes) SetHyst(pipe int, hyst uint32) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return e
	}
	return setField(p.dev, &ps.shadow, &ps.hyst, hyst, tmhw.PipeHyst, 0, func(g tmhw.Generation) error {
		return g.Pipe().WritePipe(pipe, tmhw.PipeHyst, 0, hyst)
	})
}

// Hyst returns the egress buffer hysteresis of a pipe.
func (p Pipes) Hyst(pipe int, hw *uint32) (uint32, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return 0, e
	}
	return getField(p.dev, ps.hyst, hw, tmhw.PipeHyst, func(g tmhw.Generation) (uint32, error) {
		return g.Pipe().ReadPipe(pipe, tmhw.PipeHyst, 0)
	})
}

// HystProfilesInUse returns the number of hysteresis profile entries referenced in a pipe.
func (p Pipes) HystProfilesInUse(pipe int) (int, error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return 0, e
	}
	return ps.hystProfiles.inUse(), nil
}

// Counters reads block-level and PRE FIFO drop counters of a pipe.
func (p Pipes) Counters(pipe int) (cnt PipeCounters, e error) {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return cnt, e
	}

	read := func(c tmhw.Counter, index int) (uint64, error) {
		return p.dev.readCounter(ps.node, c, index, func(g tmhw.Generation) (uint64, error) {
			return g.Pipe().ReadPipeCounter(pipe, c, index)
		})
	}
	errs := make([]error, 2+tmdef.NPreFifos)
	cnt.WacDrop, errs[0] = read(tmhw.PipeWacDrop, 0)
	cnt.QacDrop, errs[1] = read(tmhw.PipeQacDrop, 0)
	for i := range cnt.PreFifoDrop {
		cnt.PreFifoDrop[i], errs[2+i] = read(tmhw.PipePreFifoDrop, i)
	}
	return cnt, multierr.Combine(errs...)
}

// ClearCounters clears drop counters of a pipe.
func (p Pipes) ClearCounters(pipe int) error {
	p.dev.lock()
	defer p.dev.unlockAndFlush()
	ps, e := p.find(pipe)
	if e != nil {
		return e
	}

	clearOne := func(c tmhw.Counter, index int) error {
		return p.dev.clearCounter(&ps.shadow, ps.node, c, index, func(g tmhw.Generation) error {
			return g.Pipe().ClearPipeCounter(pipe, c, index)
		})
	}
	errs := []error{clearOne(tmhw.PipeWacDrop, 0), clearOne(tmhw.PipeQacDrop, 0)}
	for i := 0; i < tmdef.NPreFifos; i++ {
		errs = append(errs, clearOne(tmhw.PipePreFifoDrop, i))
	}
	return multierr.Combine(errs...)
}

func (dev *Device) restorePipe(ps *pipeState) error {
	caps := dev.hw.Pipe()
	errs := []error{}
	for _, r := range []struct {
		cache *uint32
		f     tmhw.Field
	}{
		{&ps.limit, tmhw.PipeLimit},
		{&ps.hyst, tmhw.PipeHyst},
	} {
		if !caps.CanRead(r.f) {
			continue
		}
		v, e := caps.ReadPipe(ps.pipe, r.f, 0)
		if e != nil {
			errs = append(errs, e)
			continue
		}
		*r.cache = v
	}
	return multierr.Combine(errs...)
}
